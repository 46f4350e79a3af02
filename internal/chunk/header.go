package chunk

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Header formats, largest to smallest. The format dictates which fields are
// carried on the wire; omitted fields repeat the channel's previous header.
const (
	FormatFull     byte = 0 // timestamp, length, datatype, stream id (12 bytes)
	FormatMessage  byte = 1 // timestamp, length, datatype (8 bytes)
	FormatTime     byte = 2 // timestamp (4 bytes)
	FormatContinue byte = 3 // nothing (1 byte)
)

const (
	// MinChannelID is the lowest encodable channel id; 0 and 1 are claimed
	// by the compact channel id escape scheme.
	MinChannelID uint32 = 2
	// MaxChannelID is the highest encodable channel id (3-byte escape).
	MaxChannelID uint32 = 0xffff + 64

	maxTimestamp = 0xffffff
)

// Header is one chunk's fully resolved header. Timestamps are deltas
// against the owning stream's clock, not absolute values.
type Header struct {
	ChannelID uint32
	Timestamp uint32
	Length    uint32
	Datatype  uint8
	StreamID  uint32
}

// headerFormat picks the minimal encoding for h relative to prev.
func headerFormat(h Header, prev *Header) byte {
	if prev == nil || h.StreamID != prev.StreamID {
		return FormatFull
	}
	if h.Datatype != prev.Datatype || h.Length != prev.Length {
		return FormatMessage
	}
	if h.Timestamp != prev.Timestamp {
		return FormatTime
	}
	return FormatContinue
}

// EncodeHeader writes h to w using the minimal format relative to prev.
// A nil prev always produces a full 12-byte header.
func EncodeHeader(w io.Writer, h Header, prev *Header) error {
	format := headerFormat(h, prev)

	buf := make([]byte, 0, 15)
	buf, err := appendBasicHeader(buf, format, h.ChannelID)
	if err != nil {
		return err
	}

	if format <= FormatTime {
		buf = appendUint24(buf, h.Timestamp&maxTimestamp)
	}
	if format <= FormatMessage {
		buf = appendUint24(buf, h.Length)
		buf = append(buf, h.Datatype)
	}
	if format == FormatFull {
		buf = binary.LittleEndian.AppendUint32(buf, h.StreamID)
	}

	_, err = w.Write(buf)
	return err
}

// DecodeHeader reads one header from b, resolving omitted fields from prev.
// A non-full header with nil prev fails with ErrNoPreviousHeader. On
// ErrNeedMore the cursor is restored to where it was before the attempt.
func DecodeHeader(b *Buffer, prev *Header) (Header, error) {
	mark := b.Pos()

	format, channelID, err := decodeBasicHeader(b)
	if err != nil {
		b.SetPos(mark)
		return Header{}, err
	}

	h, err := decodeHeaderFields(b, format, channelID, prev)
	if err != nil {
		b.SetPos(mark)
		return Header{}, err
	}
	return h, nil
}

func appendBasicHeader(buf []byte, format byte, channelID uint32) ([]byte, error) {
	switch {
	case channelID < MinChannelID || channelID > MaxChannelID:
		return nil, fmt.Errorf("%w: %d", ErrInvalidChannelID, channelID)
	case channelID < 64:
		return append(buf, format<<6|byte(channelID)), nil
	case channelID < 320:
		return append(buf, format<<6, byte(channelID-64)), nil
	default:
		id := channelID - 64
		return append(buf, format<<6|1, byte(id&0xff), byte(id>>8)), nil
	}
}

func decodeBasicHeader(b *Buffer) (format byte, channelID uint32, err error) {
	first, err := b.ReadByte()
	if err != nil {
		return 0, 0, err
	}
	format = first >> 6

	switch first & 0x3f {
	case 0:
		second, err := b.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		return format, uint32(second) + 64, nil
	case 1:
		ext, err := b.Read(2)
		if err != nil {
			return 0, 0, err
		}
		return format, uint32(ext[0]) + uint32(ext[1])<<8 + 64, nil
	default:
		return format, uint32(first & 0x3f), nil
	}
}

func decodeHeaderFields(b *Buffer, format byte, channelID uint32, prev *Header) (Header, error) {
	if format != FormatFull && prev == nil {
		return Header{}, fmt.Errorf("%w: channel %d", ErrNoPreviousHeader, channelID)
	}

	var h Header
	if prev != nil {
		h = *prev
	}
	h.ChannelID = channelID

	if format <= FormatTime {
		ts, err := b.Read(3)
		if err != nil {
			return Header{}, err
		}
		h.Timestamp = readUint24(ts)
	}
	if format <= FormatMessage {
		rest, err := b.Read(4)
		if err != nil {
			return Header{}, err
		}
		h.Length = readUint24(rest)
		h.Datatype = rest[3]
	}
	if format == FormatFull {
		sid, err := b.Read(4)
		if err != nil {
			return Header{}, err
		}
		h.StreamID = binary.LittleEndian.Uint32(sid)
	}
	return h, nil
}

func appendUint24(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>16), byte(v>>8), byte(v))
}

func readUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
