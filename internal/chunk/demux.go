package chunk

import "github.com/ternio/rtmpcore/internal/message"

// ChannelDemuxer reassembles FrameReader chunks into whole logical
// messages. Streamable datatypes (audio/video) bypass the bucket and are
// emitted chunk by chunk to keep end-to-end latency down.
type ChannelDemuxer struct {
	reader *FrameReader
	bucket map[uint32][]byte
}

func NewChannelDemuxer() *ChannelDemuxer {
	return &ChannelDemuxer{
		reader: NewFrameReader(),
		bucket: make(map[uint32][]byte),
	}
}

// Feed appends raw bytes from the transport.
func (d *ChannelDemuxer) Feed(p []byte) {
	d.reader.Feed(p)
}

// SetFrameSize forwards to the underlying frame reader.
func (d *ChannelDemuxer) SetFrameSize(n uint32) {
	d.reader.SetFrameSize(n)
}

// Next pulls one chunk and returns a whole message when one completes.
// A nil data with nil meta is a progress tick: a chunk was consumed into
// the bucket but its message is still in flight. Errors pass straight
// through from the frame reader (io.EOF, ErrNeedMore, parse failures).
func (d *ChannelDemuxer) Next() (data []byte, meta *Header, err error) {
	body, complete, h, err := d.reader.Next()
	if err != nil {
		return nil, nil, err
	}

	if message.IsStreamable(h.Datatype) {
		return body, &h, nil
	}

	if !complete {
		d.bucket[h.ChannelID] = append(d.bucket[h.ChannelID], body...)
		return nil, nil, nil
	}

	if pending, ok := d.bucket[h.ChannelID]; ok {
		delete(d.bucket, h.ChannelID)
		return append(pending, body...), &h, nil
	}
	return body, &h, nil
}
