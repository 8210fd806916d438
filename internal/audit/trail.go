package audit

// Goroutine safety:
// The drain goroutine is the sole reader of t.ch and the sole writer to t.w.
// Trail.mu protects only the t.buf pointer; the ring buffer's own mutex
// handles concurrent Push/Snapshot calls. No nested lock acquisition.

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// writerChanSize caps the async write channel. A full cycle over a large
// corpus emits a few thousand events at most.
const writerChanSize = 4096

type trailEntry struct {
	data []byte
	ev   Event
}

// Trail writes audit events as JSONL via an async background writer.
// Goroutine-safe; emits never block the caller. Call Close to flush.
type Trail struct {
	mu        sync.Mutex
	buf       *RingBuffer // nil until SetRingBuffer
	sessionID string
	ch        chan trailEntry
	w         io.Writer
	dropped   atomic.Uint64
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewTrail creates a Trail writing JSONL to w asynchronously.
func NewTrail(w io.Writer) *Trail {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	t := &Trail{
		sessionID: fmt.Sprintf("%x", sid[:]),
		ch:        make(chan trailEntry, writerChanSize),
		w:         w,
		done:      make(chan struct{}),
	}
	go t.drain()
	return t
}

// NewNullTrail creates a Trail that discards output. Callers should
// still call Close to stop the drain goroutine.
func NewNullTrail() *Trail {
	return NewTrail(io.Discard)
}

// Open creates a Trail appending to the named file.
func Open(path string) (*Trail, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	return NewTrail(f), nil
}

func (t *Trail) drain() {
	defer close(t.done)
	for entry := range t.ch {
		if _, err := t.w.Write(entry.data); err != nil {
			t.dropped.Add(1)
		}

		t.mu.Lock()
		rb := t.buf
		t.mu.Unlock()

		if rb != nil {
			rb.Push(entry.ev)
		}
	}
	if c, ok := t.w.(io.Closer); ok && t.w != os.Stderr && t.w != os.Stdout {
		_ = c.Close()
	}
}

// Emit records an event. Sets Time (if zero) and SessionID.
// Non-blocking: if the channel is full or the trail is closed, the event
// is dropped and counted. Safe to call concurrently with Close; a racing
// send on the closed channel is recovered and counted as dropped.
func (t *Trail) Emit(e Event) {
	defer func() {
		if recover() != nil {
			t.dropped.Add(1)
		}
	}()

	if t.closed.Load() {
		t.dropped.Add(1)
		return
	}

	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = t.sessionID

	data, err := json.Marshal(e)
	if err != nil {
		t.dropped.Add(1)
		return
	}
	data = append(data, '\n')

	select {
	case t.ch <- trailEntry{data: data, ev: e}:
	default:
		t.dropped.Add(1)
	}
}

// SetRingBuffer attaches a ring buffer for live inspection.
func (t *Trail) SetRingBuffer(buf *RingBuffer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = buf
}

// Dropped returns the number of events dropped since creation.
func (t *Trail) Dropped() uint64 {
	return t.dropped.Load()
}

// Close flushes pending events and stops the drain goroutine. Emits
// racing with Close are dropped, not panicked.
func (t *Trail) Close() {
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.ch)
		<-t.done

		if d := t.dropped.Load(); d > 0 {
			fmt.Fprintf(os.Stderr, "loom: %d audit events dropped during session %s\n", d, t.sessionID)
		}
	})
}
