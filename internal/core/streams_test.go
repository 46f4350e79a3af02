package core

import (
	"testing"

	"github.com/ternio/rtmpcore/internal/testutil/testlog"
)

func newManager() *StreamManager {
	return NewStreamManager(NewBaseStream(ControlStreamID), func(id uint32) Stream {
		return NewBaseStream(id)
	})
}

func TestStreamManagerControlStream(t *testing.T) {
	testlog.Start(t)

	m := newManager()
	s, err := m.GetStream(ControlStreamID)
	if err != nil {
		t.Fatalf("control stream: %v", err)
	}
	if s == nil {
		t.Fatalf("control stream is nil")
	}

	if _, err := m.GetStream(42); err == nil {
		t.Fatalf("unknown stream id resolved")
	}
}

func TestStreamManagerGetStreamIdempotent(t *testing.T) {
	testlog.Start(t)

	m := newManager()
	created := m.CreateStream()

	a, err := m.GetStream(created.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, err := m.GetStream(created.ID())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if a != b {
		t.Fatalf("repeated GetStream returned different streams")
	}
}

func TestStreamManagerIDReuse(t *testing.T) {
	testlog.Start(t)

	m := newManager()
	s1 := m.CreateStream()
	s2 := m.CreateStream()
	if s1.ID() != 1 || s2.ID() != 2 {
		t.Fatalf("ids = %d,%d, want 1,2", s1.ID(), s2.ID())
	}

	m.DeleteStream(s1.ID())
	if got := m.NextStreamID(); got != 1 {
		t.Fatalf("next id = %d, want recycled 1", got)
	}
	if reused := m.CreateStream(); reused.ID() != 1 {
		t.Fatalf("recycled id = %d, want 1", reused.ID())
	}
	if fresh := m.CreateStream(); fresh.ID() != 3 {
		t.Fatalf("fresh id = %d, want 3", fresh.ID())
	}
}

func TestStreamManagerDeleteEdgeCases(t *testing.T) {
	testlog.Start(t)

	m := newManager()
	m.DeleteStream(ControlStreamID)
	m.DeleteStream(99)

	if _, err := m.GetStream(ControlStreamID); err != nil {
		t.Fatalf("control stream deleted: %v", err)
	}
}

func TestStreamManagerCloseAll(t *testing.T) {
	testlog.Start(t)

	m := newManager()
	m.CreateStream()
	m.CreateStream()
	m.CloseAllStreams()

	if m.StreamCount() != 0 {
		t.Fatalf("streams left after CloseAllStreams: %d", m.StreamCount())
	}
	if _, err := m.GetStream(ControlStreamID); err == nil {
		t.Fatalf("control stream survived CloseAllStreams")
	}
}

func TestBaseStreamClock(t *testing.T) {
	testlog.Start(t)

	s := NewBaseStream(1)
	s.AddTimestamp(2)
	s.AddTimestamp(3)
	if s.Timestamp() != 5 {
		t.Fatalf("clock = %d, want 5", s.Timestamp())
	}
}
