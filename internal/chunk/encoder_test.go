package chunk

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ternio/rtmpcore/internal/message"
	"github.com/ternio/rtmpcore/internal/testutil/testlog"
)

func drainEncoder(t *testing.T, e *Encoder) {
	t.Helper()
	for {
		err := e.Next()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			t.Fatalf("encoder next: %v", err)
		}
	}
}

func TestEncoderSingleFrameMessage(t *testing.T) {
	testlog.Start(t)

	var out bytes.Buffer
	e := NewEncoder(&out)
	if err := e.Send([]byte("foobar"), 0x0a, 1, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	drainEncoder(t, e)

	want := []byte("\x03\x00\x00\x00\x00\x00\x06\x0a\x01\x00\x00\x00foobar")
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("wire = %x, want %x", out.Bytes(), want)
	}
}

func TestEncoderControlBypassesQueue(t *testing.T) {
	testlog.Start(t)

	var out bytes.Buffer
	e := NewEncoder(&out)
	if err := e.Send([]byte("foo"), message.FrameSize, 0, 10); err != nil {
		t.Fatalf("send: %v", err)
	}

	// written during Send, no Next required
	want := []byte("\x02\x00\x00\x0a\x00\x00\x03\x01\x00\x00\x00\x00foo")
	if !bytes.Equal(out.Bytes(), want) {
		t.Fatalf("wire = %x, want %x", out.Bytes(), want)
	}
	if err := e.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("next after control = %v, want io.EOF", err)
	}
}

func TestEncoderContinuationFrames(t *testing.T) {
	testlog.Start(t)

	body := bytes.Repeat([]byte{0x11}, 300)

	var out bytes.Buffer
	e := NewEncoder(&out)
	if err := e.Send(body, 0x12, 1, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	drainEncoder(t, e)

	var want bytes.Buffer
	want.Write([]byte("\x03\x00\x00\x00\x00\x01\x2c\x12\x01\x00\x00\x00"))
	want.Write(body[:128])
	want.WriteByte(0xc3)
	want.Write(body[128:256])
	want.WriteByte(0xc3)
	want.Write(body[256:])
	if !bytes.Equal(out.Bytes(), want.Bytes()) {
		t.Fatalf("continuation wire differs:\n got %x\nwant %x", out.Bytes(), want.Bytes())
	}
}

func TestEncoderInterleavesChannels(t *testing.T) {
	testlog.Start(t)

	bodyA := bytes.Repeat([]byte{0xaa}, 300)
	bodyB := bytes.Repeat([]byte{0xbb}, 200)

	var out bytes.Buffer
	e := NewEncoder(&out)
	if err := e.Send(bodyA, 0x12, 1, 0); err != nil {
		t.Fatalf("send A: %v", err)
	}
	if err := e.Send(bodyB, 0x12, 2, 0); err != nil {
		t.Fatalf("send B: %v", err)
	}
	drainEncoder(t, e)

	var want bytes.Buffer
	// pass 1: one frame per channel
	want.Write([]byte("\x03\x00\x00\x00\x00\x01\x2c\x12\x01\x00\x00\x00"))
	want.Write(bodyA[:128])
	want.Write([]byte("\x04\x00\x00\x00\x00\x00\xc8\x12\x02\x00\x00\x00"))
	want.Write(bodyB[:128])
	// pass 2: continuations; channel 4 completes
	want.WriteByte(0xc3)
	want.Write(bodyA[128:256])
	want.WriteByte(0xc4)
	want.Write(bodyB[128:])
	// pass 3: channel 3 completes
	want.WriteByte(0xc3)
	want.Write(bodyA[256:])

	if !bytes.Equal(out.Bytes(), want.Bytes()) {
		t.Fatalf("interleaved wire differs:\n got %x\nwant %x", out.Bytes(), want.Bytes())
	}
}

func TestEncoderReusesReleasedChannel(t *testing.T) {
	testlog.Start(t)

	var out bytes.Buffer
	e := NewEncoder(&out)

	if err := e.Send([]byte("one"), 0x12, 1, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	drainEncoder(t, e)
	out.Reset()

	if err := e.Send([]byte("two"), 0x12, 1, 0); err != nil {
		t.Fatalf("send: %v", err)
	}
	drainEncoder(t, e)

	if out.Bytes()[0] != 0x03 {
		t.Fatalf("second message on channel %d, want reuse of channel 3", out.Bytes()[0]&0x3f)
	}
}

func TestEncoderEmitsTimestampDeltas(t *testing.T) {
	testlog.Start(t)

	var out bytes.Buffer
	e := NewEncoder(&out)

	sendAndDrain := func(timestamp uint32) []byte {
		out.Reset()
		if err := e.Send([]byte("xyz"), 0x12, 1, timestamp); err != nil {
			t.Fatalf("send: %v", err)
		}
		drainEncoder(t, e)
		return out.Bytes()
	}

	// absolute clock 0 -> 15 -> 15 puts deltas 0, 15, 0 on the wire
	for i, want := range []uint32{0, 15, 0} {
		wire := sendAndDrain([]uint32{0, 15, 15}[i])
		got := readUint24(wire[1:4])
		if got != want {
			t.Fatalf("message %d wire delta = %d, want %d", i, got, want)
		}
	}
}

func TestEncoderReleaseUnacquiredChannel(t *testing.T) {
	testlog.Start(t)

	e := NewEncoder(&bytes.Buffer{})
	if err := e.ReleaseChannel(99); !errors.Is(err, ErrChannelNotAcquired) {
		t.Fatalf("err = %v, want ErrChannelNotAcquired", err)
	}
}
