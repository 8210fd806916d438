package audit

import (
	"fmt"
	"testing"
)

func kindEvent(i int) Event {
	return Event{Kind: Kind(fmt.Sprintf("test.%d", i))}
}

func TestRingBufferFillAndWrap(t *testing.T) {
	r := NewRingBuffer(4)

	for i := 0; i < 3; i++ {
		r.Push(kindEvent(i))
	}
	if r.Len() != 3 {
		t.Errorf("len = %d, want 3", r.Len())
	}

	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Kind != "test.0" || snap[2].Kind != "test.2" {
		t.Errorf("snapshot = %v", snap)
	}

	// Overflow: oldest entries are overwritten.
	for i := 3; i < 6; i++ {
		r.Push(kindEvent(i))
	}
	if r.Len() != 4 {
		t.Errorf("len after wrap = %d, want 4", r.Len())
	}
	snap = r.Snapshot()
	if snap[0].Kind != "test.2" || snap[3].Kind != "test.5" {
		t.Errorf("wrapped snapshot = %v", snap)
	}
}

func TestRingBufferLast(t *testing.T) {
	r := NewRingBuffer(8)
	for i := 0; i < 5; i++ {
		r.Push(kindEvent(i))
	}

	tests := []struct {
		n         int
		wantLen   int
		wantFirst Kind
	}{
		{2, 2, "test.3"},
		{5, 5, "test.0"},
		{10, 5, "test.0"},
		{0, 0, ""},
		{-1, 0, ""},
	}

	for _, tt := range tests {
		got := r.Last(tt.n)
		if len(got) != tt.wantLen {
			t.Errorf("Last(%d) len = %d, want %d", tt.n, len(got), tt.wantLen)
			continue
		}
		if tt.wantLen > 0 && got[0].Kind != tt.wantFirst {
			t.Errorf("Last(%d)[0] = %s, want %s", tt.n, got[0].Kind, tt.wantFirst)
		}
	}
}

func TestRingBufferStats(t *testing.T) {
	r := NewRingBuffer(8)
	r.Push(Event{Kind: KindLinkDiscovered})
	r.Push(Event{Kind: KindLinkDiscovered})
	r.Push(Event{Kind: KindCycleCommit})

	stats := r.Stats()
	if stats[KindLinkDiscovered] != 2 || stats[KindCycleCommit] != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestRingBufferEmpty(t *testing.T) {
	r := NewRingBuffer(4)
	if r.Snapshot() != nil {
		t.Error("empty snapshot should be nil")
	}
	if r.Last(3) != nil {
		t.Error("empty Last should be nil")
	}
}

func TestRingBufferDefaultSize(t *testing.T) {
	r := NewRingBuffer(0)
	if cap(r.buf) != DefaultRingSize {
		t.Errorf("default size = %d, want %d", cap(r.buf), DefaultRingSize)
	}
}
