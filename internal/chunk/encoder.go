package chunk

import (
	"io"

	"github.com/ternio/rtmpcore/internal/message"
)

const (
	// MaxChannels bounds how many producing channels may be in flight.
	MaxChannels = 0xffff

	// ControlChannelID carries protocol control messages, which bypass the
	// interleaving queue entirely.
	ControlChannelID uint32 = 2

	firstDataChannelID uint32 = 3
)

// ProducingChannel is one outbound multiplexing lane: the message currently
// being chunked onto it plus the last header written, so continuation
// frames shrink to a single byte.
type ProducingChannel struct {
	id     uint32
	prev   *Header
	header Header
	data   []byte
}

// ID returns the wire channel id.
func (c *ProducingChannel) ID() uint32 {
	return c.id
}

func (c *ProducingChannel) load(data []byte, datatype uint8, streamID, delta uint32) {
	c.header = Header{
		ChannelID: c.id,
		Timestamp: delta,
		Length:    uint32(len(data)),
		Datatype:  datatype,
		StreamID:  streamID,
	}
	c.data = data
}

type pendingMessage struct {
	data      []byte
	datatype  uint8
	streamID  uint32
	timestamp uint32
}

// Encoder turns whole messages into an interleaved chunk stream. Send
// queues a message onto an acquired channel; each Next pass writes one
// frame per busy channel so no single large message starves the rest.
type Encoder struct {
	w             io.Writer
	frameSize     uint32
	channelsInUse int
	active        map[uint32]*ProducingChannel
	order         []uint32
	free          []uint32
	nextID        uint32
	pending       []pendingMessage
	clocks        map[uint32]uint32
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:         w,
		frameSize: DefaultFrameSize,
		active:    make(map[uint32]*ProducingChannel),
		nextID:    firstDataChannelID,
		clocks:    make(map[uint32]uint32),
	}
}

// SetFrameSize updates the maximum body bytes per outbound frame.
func (e *Encoder) SetFrameSize(n uint32) {
	e.frameSize = n
}

// AcquireChannel reserves a producing channel, or nil when all channels
// are busy.
func (e *Encoder) AcquireChannel() *ProducingChannel {
	if e.channelsInUse >= MaxChannels {
		return nil
	}

	var id uint32
	if len(e.free) > 0 {
		id = e.free[0]
		e.free = e.free[1:]
	} else {
		id = e.nextID
		e.nextID++
	}

	c := &ProducingChannel{id: id}
	e.active[id] = c
	e.channelsInUse++
	return c
}

// ReleaseChannel returns a channel to the pool. Releasing a channel that
// was never acquired is ErrChannelNotAcquired.
func (e *Encoder) ReleaseChannel(id uint32) error {
	if _, ok := e.active[id]; !ok {
		return ErrChannelNotAcquired
	}
	delete(e.active, id)
	e.channelsInUse--
	e.free = append(e.free, id)
	for i, busy := range e.order {
		if busy == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Send queues one message for chunked delivery. Control datatypes skip the
// queue and are written immediately on the control channel with an
// absolute header. When every channel is busy the message waits in a
// pending list until one frees up.
func (e *Encoder) Send(data []byte, datatype uint8, streamID, timestamp uint32) error {
	if message.IsCommandType(datatype) {
		h := Header{
			ChannelID: ControlChannelID,
			Timestamp: timestamp,
			Length:    uint32(len(data)),
			Datatype:  datatype,
			StreamID:  streamID,
		}
		if err := EncodeHeader(e.w, h, nil); err != nil {
			return err
		}
		_, err := e.w.Write(data)
		return err
	}

	c := e.AcquireChannel()
	if c == nil {
		e.pending = append(e.pending, pendingMessage{data, datatype, streamID, timestamp})
		return nil
	}
	e.loadChannel(c, data, datatype, streamID, timestamp)
	return nil
}

func (e *Encoder) loadChannel(c *ProducingChannel, data []byte, datatype uint8, streamID, timestamp uint32) {
	delta := timestamp - e.clocks[streamID]
	e.clocks[streamID] = timestamp
	c.load(data, datatype, streamID, delta)
	e.order = append(e.order, c.id)
}

// Next writes one frame for every busy channel, in acquisition order.
// Channels whose message completes are released for reuse. Returns io.EOF
// when there is nothing left to write.
func (e *Encoder) Next() error {
	e.drainPending()
	if len(e.order) == 0 {
		return io.EOF
	}

	busy := e.order
	var still []uint32
	for _, id := range busy {
		c := e.active[id]

		n := int(e.frameSize)
		if n > len(c.data) {
			n = len(c.data)
		}

		if err := EncodeHeader(e.w, c.header, c.prev); err != nil {
			return err
		}
		if _, err := e.w.Write(c.data[:n]); err != nil {
			return err
		}

		written := c.header
		c.prev = &written
		c.data = c.data[n:]

		if len(c.data) == 0 {
			delete(e.active, id)
			e.channelsInUse--
			e.free = append(e.free, id)
		} else {
			still = append(still, id)
		}
	}
	e.order = still
	return nil
}

func (e *Encoder) drainPending() {
	for len(e.pending) > 0 {
		c := e.AcquireChannel()
		if c == nil {
			return
		}
		m := e.pending[0]
		e.pending = e.pending[1:]
		e.loadChannel(c, m.data, m.datatype, m.streamID, m.timestamp)
	}
}
