package chunk

import (
	"errors"
	"fmt"
	"io"

	"github.com/ternio/rtmpcore/internal/observability"
)

// Stream is the routing target for decoded messages. Implementations own a
// running timestamp clock that the decoder advances with wire deltas.
type Stream interface {
	Timestamp() uint32
	AddTimestamp(delta uint32)
}

// StreamFactory resolves stream ids to streams. It must be idempotent per
// id for the lifetime of the decoder.
type StreamFactory interface {
	GetStream(streamID uint32) (Stream, error)
}

// Dispatcher receives completed messages. Errors are the caller's problem:
// the decoder propagates them untouched.
type Dispatcher interface {
	DispatchMessage(stream Stream, datatype uint8, timestamp uint32, data []byte) error
}

// Decoder routes demuxed messages to application streams, converting wire
// timestamp deltas into per-stream absolute clocks.
type Decoder struct {
	demux      *ChannelDemuxer
	streams    StreamFactory
	dispatcher Dispatcher
}

func NewDecoder(dispatcher Dispatcher, streams StreamFactory) *Decoder {
	return &Decoder{
		demux:      NewChannelDemuxer(),
		streams:    streams,
		dispatcher: dispatcher,
	}
}

// Feed appends raw bytes from the transport.
func (d *Decoder) Feed(p []byte) {
	d.demux.Feed(p)
}

// SetFrameSize applies a peer-announced frame size to the framing layer.
func (d *Decoder) SetFrameSize(n uint32) {
	d.demux.SetFrameSize(n)
}

// Next decodes at most one message. A progress tick dispatches nothing and
// returns nil. Dispatcher errors propagate uninterrupted so a misbehaving
// handler surfaces immediately instead of corrupting decoder state.
func (d *Decoder) Next() error {
	data, meta, err := d.demux.Next()
	if err != nil {
		return err
	}
	if meta == nil {
		return nil
	}

	stream, err := d.streams.GetStream(meta.StreamID)
	if err != nil {
		return fmt.Errorf("%w: %d", ErrNoStream, meta.StreamID)
	}

	stream.AddTimestamp(meta.Timestamp)
	observability.RecordMessageDecoded(meta.Datatype, len(data))

	return d.dispatcher.DispatchMessage(stream, meta.Datatype, stream.Timestamp(), data)
}

// DecodeAll drains everything currently buffered. It stops cleanly on
// io.EOF or ErrNeedMore and reports any other error.
func (d *Decoder) DecodeAll() error {
	for {
		if err := d.Next(); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrNeedMore) {
				return nil
			}
			return err
		}
	}
}
