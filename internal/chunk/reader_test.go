package chunk

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ternio/rtmpcore/internal/testutil/testlog"
)

// chunkWire splits body into frame-sized chunks on one channel, full header
// first, single-byte continuations after.
func chunkWire(t *testing.T, h Header, body []byte, frameSize int) []byte {
	t.Helper()
	var out bytes.Buffer
	var prev *Header
	for off := 0; off < len(body); off += frameSize {
		end := off + frameSize
		if end > len(body) {
			end = len(body)
		}
		if err := EncodeHeader(&out, h, prev); err != nil {
			t.Fatalf("encode header: %v", err)
		}
		out.Write(body[off:end])
		hc := h
		prev = &hc
	}
	return out.Bytes()
}

func TestFrameReaderSplitsMessage(t *testing.T) {
	testlog.Start(t)

	body := bytes.Repeat([]byte{0xab}, 500)
	h := Header{ChannelID: 3, Timestamp: 0, Length: 500, Datatype: 0x12, StreamID: 1}

	r := NewFrameReader()
	r.Feed(chunkWire(t, h, body, 128))

	var sizes []int
	var flags []bool
	var got []byte
	for {
		data, complete, hdr, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if hdr != h {
			t.Fatalf("header = %+v, want %+v", hdr, h)
		}
		sizes = append(sizes, len(data))
		flags = append(flags, complete)
		got = append(got, data...)
	}

	wantSizes := []int{128, 128, 128, 116}
	wantFlags := []bool{false, false, false, true}
	if len(sizes) != len(wantSizes) {
		t.Fatalf("chunk count = %d, want %d", len(sizes), len(wantSizes))
	}
	for i := range wantSizes {
		if sizes[i] != wantSizes[i] || flags[i] != wantFlags[i] {
			t.Fatalf("chunk %d = (%d, %v), want (%d, %v)", i, sizes[i], flags[i], wantSizes[i], wantFlags[i])
		}
	}
	if !bytes.Equal(got, body) {
		t.Fatalf("reassembled body differs from original")
	}
}

func TestFrameReaderStarvationRestoresCursor(t *testing.T) {
	testlog.Start(t)

	body := bytes.Repeat([]byte{0x01}, 128)
	wire := chunkWire(t, Header{ChannelID: 3, Length: 128, Datatype: 0x12, StreamID: 1}, body, 128)

	r := NewFrameReader()
	r.Feed(wire[:20])

	if _, _, _, err := r.Next(); !errors.Is(err, ErrNeedMore) {
		t.Fatalf("err = %v, want ErrNeedMore", err)
	}

	r.Feed(wire[20:])
	data, complete, _, err := r.Next()
	if err != nil {
		t.Fatalf("next after feeding rest: %v", err)
	}
	if !complete || !bytes.Equal(data, body) {
		t.Fatalf("chunk after retry = (%d bytes, %v), want (128, true)", len(data), complete)
	}
}

func TestFrameReaderEmptyCursor(t *testing.T) {
	testlog.Start(t)

	r := NewFrameReader()
	if _, _, _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("err = %v, want io.EOF", err)
	}
}

func TestFrameReaderRelativeHeaderOnUnseenChannel(t *testing.T) {
	testlog.Start(t)

	r := NewFrameReader()
	r.Feed([]byte{0xc3})
	if _, _, _, err := r.Next(); !errors.Is(err, ErrNoPreviousHeader) {
		t.Fatalf("err = %v, want ErrNoPreviousHeader", err)
	}
}

func TestFrameReaderChannelReassignment(t *testing.T) {
	testlog.Start(t)

	h := Header{ChannelID: 3, Timestamp: 5, Length: 6, Datatype: 0x12, StreamID: 1}
	first := chunkWire(t, h, []byte("foobar"), 128)

	r := NewFrameReader()
	r.Feed(first)
	if _, complete, _, err := r.Next(); err != nil || !complete {
		t.Fatalf("first message = (complete=%v, err=%v)", complete, err)
	}

	// single-byte continuation header reassigns the channel to a new
	// message with every field repeated
	r.Feed(append([]byte{0xc3}, []byte("barfoo")...))
	data, complete, hdr, err := r.Next()
	if err != nil {
		t.Fatalf("reassigned next: %v", err)
	}
	if !complete || hdr != h || !bytes.Equal(data, []byte("barfoo")) {
		t.Fatalf("reassigned chunk = (%q, %v, %+v)", data, complete, hdr)
	}
}

func TestFrameReaderChannelFrameSizePin(t *testing.T) {
	testlog.Start(t)

	r := NewFrameReader()
	r.SetChannelFrameSize(3, 50)
	r.SetFrameSize(10)

	body := bytes.Repeat([]byte{0x02}, 100)
	r.Feed(chunkWire(t, Header{ChannelID: 3, Length: 100, Datatype: 0x12, StreamID: 1}, body, 50))

	data, complete, _, err := r.Next()
	if err != nil {
		t.Fatalf("pinned channel next: %v", err)
	}
	if len(data) != 50 || complete {
		t.Fatalf("pinned chunk = (%d bytes, %v), want (50, false)", len(data), complete)
	}

	r.Feed(chunkWire(t, Header{ChannelID: 4, Length: 30, Datatype: 0x12, StreamID: 1}, bytes.Repeat([]byte{0x03}, 30), 10))
	// finish the pinned channel's message first
	if _, complete, _, err = r.Next(); err != nil || !complete {
		t.Fatalf("pinned channel finish = (complete=%v, err=%v)", complete, err)
	}
	data, complete, _, err = r.Next()
	if err != nil {
		t.Fatalf("default channel next: %v", err)
	}
	if len(data) != 10 || complete {
		t.Fatalf("default chunk = (%d bytes, %v), want (10, false)", len(data), complete)
	}
}
