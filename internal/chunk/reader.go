package chunk

import "io"

// DefaultFrameSize is the protocol default for body bytes per chunk.
const DefaultFrameSize uint32 = 128

// channel is per-channel framing state. A channel is created lazily on the
// first header naming its id and lives for the reader's lifetime; completing
// a message only resets the byte accumulator so a later relative header can
// reassign the channel to a new message.
type channel struct {
	header    *Header
	read      uint32
	frameSize uint32
	override  bool
}

// FrameReader splits a raw byte cursor into chunks. Feed it bytes as they
// arrive; Next yields one chunk per call until the cursor runs dry.
type FrameReader struct {
	frameSize uint32
	channels  map[uint32]*channel
	buf       Buffer
}

func NewFrameReader() *FrameReader {
	return &FrameReader{
		frameSize: DefaultFrameSize,
		channels:  make(map[uint32]*channel),
	}
}

// Feed appends raw bytes from the transport.
func (r *FrameReader) Feed(p []byte) {
	r.buf.Feed(p)
}

// FrameSize returns the reader's default frame size.
func (r *FrameReader) FrameSize() uint32 {
	return r.frameSize
}

// SetFrameSize updates the default frame size and every channel that has
// not been pinned with SetChannelFrameSize.
func (r *FrameReader) SetFrameSize(n uint32) {
	r.frameSize = n
	for _, c := range r.channels {
		if !c.override {
			c.frameSize = n
		}
	}
}

// SetChannelFrameSize pins one channel's frame size. The pin survives
// subsequent SetFrameSize calls.
func (r *FrameReader) SetChannelFrameSize(channelID, n uint32) {
	c := r.channels[channelID]
	if c == nil {
		c = &channel{}
		r.channels[channelID] = c
	}
	c.frameSize = n
	c.override = true
}

// Next reads one chunk: its body bytes, whether it completes a logical
// message, and the resolved header for the chunk just read.
//
// An exhausted cursor returns io.EOF. A cursor that stops mid-structure
// returns ErrNeedMore with the read position restored; feed more bytes and
// retry. Parse failures restore the position too but are not retryable.
func (r *FrameReader) Next() (data []byte, complete bool, hdr Header, err error) {
	if r.buf.Len() == 0 {
		r.buf.Compact()
		return nil, false, Header{}, io.EOF
	}

	mark := r.buf.Pos()

	format, channelID, err := decodeBasicHeader(&r.buf)
	if err != nil {
		r.buf.SetPos(mark)
		return nil, false, Header{}, err
	}

	c := r.channels[channelID]
	var prev *Header
	if c != nil {
		prev = c.header
	}

	h, err := decodeHeaderFields(&r.buf, format, channelID, prev)
	if err != nil {
		r.buf.SetPos(mark)
		return nil, false, Header{}, err
	}

	if c == nil {
		c = &channel{frameSize: r.frameSize}
		r.channels[channelID] = c
	} else if c.frameSize == 0 {
		c.frameSize = r.frameSize
	}
	hc := h
	c.header = &hc

	n := c.frameSize
	if remaining := h.Length - c.read; remaining < n {
		n = remaining
	}

	data, err = r.buf.Read(int(n))
	if err != nil {
		r.buf.SetPos(mark)
		return nil, false, Header{}, err
	}

	c.read += n
	complete = c.read == h.Length
	if complete {
		c.read = 0
	}
	if r.buf.Len() == 0 {
		r.buf.Compact()
	}
	return data, complete, h, nil
}
