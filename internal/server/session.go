package server

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ternio/rtmpcore/internal/chunk"
	"github.com/ternio/rtmpcore/internal/core"
	"github.com/ternio/rtmpcore/internal/handshake"
	"github.com/ternio/rtmpcore/internal/logging"
	"github.com/ternio/rtmpcore/internal/message"
)

// session drives one connection: handshake first, then the decode pump.
// Everything runs on the connection's read goroutine.
type session struct {
	id   string
	cfg  Config
	conn net.Conn
	log  zerolog.Logger

	negotiator *handshake.ServerNegotiator
	decoder    *chunk.Decoder
	encoder    *chunk.Encoder
	streams    *core.StreamManager

	established  bool
	handshakeErr error
}

func newSession(conn net.Conn, cfg Config) *session {
	s := &session{
		id:   uuid.NewString(),
		cfg:  cfg,
		conn: conn,
	}
	s.log = logging.New("session").With().
		Str("session_id", s.id).
		Str("remote", conn.RemoteAddr().String()).
		Logger()

	s.negotiator = handshake.NewServerNegotiator(s, conn)
	s.streams = core.NewStreamManager(core.NewBaseStream(core.ControlStreamID), func(id uint32) core.Stream {
		return core.NewBaseStream(id)
	})
	s.decoder = chunk.NewDecoder(s, autoCreateFactory{s.streams})
	s.encoder = chunk.NewEncoder(conn)

	if cfg.FrameSize != 0 && cfg.FrameSize != chunk.DefaultFrameSize {
		s.decoder.SetFrameSize(cfg.FrameSize)
		s.encoder.SetFrameSize(cfg.FrameSize)
	}
	return s
}

func (s *session) run() {
	defer s.close()
	s.log.Info().Msg("session open")

	if err := s.negotiator.Start(s.cfg.HandshakeUptime, s.cfg.HandshakeVersion); err != nil {
		s.log.Error().Err(err).Msg("negotiator start")
		return
	}

	buf := make([]byte, s.cfg.ReadBufferBytes)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			if cerr := s.consume(buf[:n]); cerr != nil {
				s.log.Warn().Err(cerr).Msg("session aborted")
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				s.log.Warn().Err(err).Msg("read failed")
			}
			return
		}
	}
}

func (s *session) consume(p []byte) error {
	if !s.established {
		s.negotiator.DataReceived(p)
		if s.handshakeErr != nil {
			return s.handshakeErr
		}
		if !s.established {
			return nil
		}
		// handshake bytes and chunk stream can share a packet
		s.decoder.Feed(s.negotiator.Drain())
		return s.decoder.DecodeAll()
	}
	s.decoder.Feed(p)
	return s.decoder.DecodeAll()
}

func (s *session) close() {
	s.streams.CloseAllStreams()
	if err := s.conn.Close(); err != nil {
		s.log.Debug().Err(err).Msg("connection close")
	}
	s.log.Info().Msg("session closed")
}

// HandshakeSuccess implements handshake.Observer.
func (s *session) HandshakeSuccess() {
	s.established = true
	s.log.Info().Msg("handshake established")

	if s.cfg.FrameSize != 0 && s.cfg.FrameSize != chunk.DefaultFrameSize {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], s.cfg.FrameSize)
		if err := s.encoder.Send(b[:], message.FrameSize, 0, 0); err != nil {
			s.log.Warn().Err(err).Msg("frame size announce failed")
		}
	}
}

// HandshakeFailure implements handshake.Observer.
func (s *session) HandshakeFailure(err error) {
	s.handshakeErr = err
}

// DispatchMessage implements chunk.Dispatcher. Control transport is handled
// here; message-type semantics belong to the application layer, so payloads
// are routed, not interpreted.
func (s *session) DispatchMessage(_ chunk.Stream, datatype uint8, timestamp uint32, data []byte) error {
	switch datatype {
	case message.FrameSize:
		if len(data) < 4 {
			s.log.Warn().Int("bytes", len(data)).Msg("short frame size message")
			return nil
		}
		size := binary.BigEndian.Uint32(data[:4])
		s.decoder.SetFrameSize(size)
		s.encoder.SetFrameSize(size)
		s.log.Debug().Uint32("frame_size", size).Msg("peer frame size updated")
	case message.BytesRead:
		s.log.Trace().Msg("bytes read report")
	default:
		s.log.Debug().
			Uint8("datatype", datatype).
			Uint32("timestamp", timestamp).
			Int("bytes", len(data)).
			Msg("message routed")
	}
	return nil
}

// autoCreateFactory backfills stream objects for ids the peer references
// before any explicit stream setup reaches this layer.
type autoCreateFactory struct {
	manager *core.StreamManager
}

func (f autoCreateFactory) GetStream(id uint32) (chunk.Stream, error) {
	if s, err := f.manager.GetStream(id); err == nil {
		return s, nil
	}
	for f.manager.NextStreamID() <= id {
		if created := f.manager.CreateStream(); created.ID() == id {
			return created, nil
		}
	}
	return f.manager.GetStream(id)
}
