package core

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ternio/rtmpcore/internal/chunk"
	"github.com/ternio/rtmpcore/internal/logging"
)

// ControlStreamID is the always-present stream carrying session control
// messages. It cannot be deleted.
const ControlStreamID uint32 = 0

// Stream is one logical message stream owned by a session.
type Stream interface {
	chunk.Stream
	ID() uint32
	Close() error
}

// StreamBuilder constructs the concrete stream for a freshly assigned id.
type StreamBuilder func(id uint32) Stream

// BaseStream is the minimal Stream: an id and a running timestamp clock.
type BaseStream struct {
	id        uint32
	timestamp uint32
}

func NewBaseStream(id uint32) *BaseStream {
	return &BaseStream{id: id}
}

func (s *BaseStream) ID() uint32 {
	return s.id
}

func (s *BaseStream) Timestamp() uint32 {
	return s.timestamp
}

func (s *BaseStream) AddTimestamp(delta uint32) {
	s.timestamp += delta
}

func (s *BaseStream) Close() error {
	return nil
}

// StreamManager owns every stream of one session. Deleted ids are recycled
// oldest-first before a fresh id is minted.
type StreamManager struct {
	build   StreamBuilder
	streams map[uint32]Stream
	deleted []uint32
	nextID  uint32
	log     zerolog.Logger
}

func NewStreamManager(control Stream, build StreamBuilder) *StreamManager {
	m := &StreamManager{
		build:   build,
		streams: map[uint32]Stream{ControlStreamID: control},
		nextID:  ControlStreamID + 1,
		log:     logging.New("core.streams"),
	}
	return m
}

// GetStream resolves a stream id. Repeated calls for the same id return the
// same stream.
func (m *StreamManager) GetStream(id uint32) (chunk.Stream, error) {
	s, ok := m.streams[id]
	if !ok {
		return nil, fmt.Errorf("core: unknown stream id %d", id)
	}
	return s, nil
}

// NextStreamID returns the id the next CreateStream call will assign.
func (m *StreamManager) NextStreamID() uint32 {
	if len(m.deleted) > 0 {
		return m.deleted[0]
	}
	return m.nextID
}

// CreateStream builds and registers a new stream, recycling the oldest
// deleted id when one exists.
func (m *StreamManager) CreateStream() Stream {
	var id uint32
	if len(m.deleted) > 0 {
		id = m.deleted[0]
		m.deleted = m.deleted[1:]
	} else {
		id = m.nextID
		m.nextID++
	}
	s := m.build(id)
	m.streams[id] = s
	m.log.Debug().Uint32("stream_id", id).Msg("stream created")
	return s
}

// DeleteStream closes and removes a stream, queueing its id for reuse.
// Deleting the control stream or an unknown id is a logged no-op.
func (m *StreamManager) DeleteStream(id uint32) {
	if id == ControlStreamID {
		m.log.Warn().Msg("refusing to delete control stream")
		return
	}
	s, ok := m.streams[id]
	if !ok {
		m.log.Warn().Uint32("stream_id", id).Msg("delete of unknown stream")
		return
	}
	if err := s.Close(); err != nil {
		m.log.Warn().Err(err).Uint32("stream_id", id).Msg("stream close failed")
	}
	delete(m.streams, id)
	m.deleted = append(m.deleted, id)
	m.log.Debug().Uint32("stream_id", id).Msg("stream deleted")
}

// CloseAllStreams tears down every stream, the control stream included, and
// resets id assignment.
func (m *StreamManager) CloseAllStreams() {
	for id, s := range m.streams {
		if err := s.Close(); err != nil {
			m.log.Warn().Err(err).Uint32("stream_id", id).Msg("stream close failed")
		}
		delete(m.streams, id)
	}
	m.deleted = nil
	m.nextID = ControlStreamID + 1
}

// StreamCount reports how many streams are registered, control included.
func (m *StreamManager) StreamCount() int {
	return len(m.streams)
}
