// Package audit records the engine's decisions as an append-only JSONL
// trail: every discovered link, tier change, vocabulary proposal, and
// discounted link gets one line. The trail is how an analyst answers
// "why is this channel realtime" or "when did this term enter the
// vocabulary" weeks after the fact.
//
// Events flow through a buffered channel to a background drain
// goroutine; an optional RingBuffer keeps recent events in memory for
// the CLI to display without re-reading the file.
package audit

import (
	"encoding/json"
	"time"
)

// Kind identifies the category of an audit event.
// Dot-delimited: "<subsystem>.<action>".
type Kind string

const (
	// Cycle lifecycle
	KindCycleStart  Kind = "cycle.start"
	KindCycleCommit Kind = "cycle.commit"
	KindCycleError  Kind = "cycle.error"

	// Link events
	KindLinkDiscovered    Kind = "link.discovered"
	KindLinkFalsePositive Kind = "link.false_positive"

	// Adaptive events
	KindChannelRetier  Kind = "channel.retier"
	KindVocabProposed  Kind = "vocab.proposed"
	KindVocabActivated Kind = "vocab.activated"

	// System events
	KindStartup    Kind = "sys.startup"
	KindShutdown   Kind = "sys.shutdown"
	KindStoreError Kind = "store.error"
)

// Event is one audit record, serialized as a single JSONL line. Every
// field except Kind and Time is optional; each kind fills the fields
// that make sense for it.
type Event struct {
	Time      time.Time `json:"t"`
	Kind      Kind      `json:"kind"`
	SessionID string    `json:"session_id,omitempty"` // random hex, same for entire run
	CycleID   string    `json:"cycle_id,omitempty"`
	CycleSeq  int64     `json:"cycle_seq,omitempty"`

	// Link fields
	LinkID     string  `json:"link_id,omitempty"`
	LinkType   string  `json:"link_type,omitempty"`
	Strength   float64 `json:"strength,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	// Adaptive fields
	Channel  string  `json:"channel,omitempty"`
	FromTier string  `json:"from_tier,omitempty"`
	ToTier   string  `json:"to_tier,omitempty"`
	Utility  float64 `json:"utility,omitempty"`
	Term     string  `json:"term,omitempty"`

	Count int    `json:"count,omitempty"`
	Err   string `json:"err,omitempty"`
	Msg   string `json:"msg,omitempty"`
}

// Line serializes the event as one JSONL line including the trailing
// newline.
func (e Event) Line() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
