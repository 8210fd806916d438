// Package model provides the data layer for loom.
//
// Model is the source of truth - SQLite persistence for observations,
// discovered links, channel profiles, vocabulary, and cycle cursors.
//
// # Thread Safety
//
// Store is safe for concurrent use. The underlying sql.DB handles connection
// pooling and serialization. Individual operations are atomic, but sequences
// of operations (read-modify-write) require external synchronization.
package model

import (
	"time"

	"golang.org/x/time/rate"
)

// Kind identifies which observation table an entity reference points into.
// References are polymorphic: there is no foreign-key constraint across
// kinds, so a link can join a message to an incident, a channel to a
// channel, or a message to a vocabulary set.
type Kind string

const (
	KindIncident   Kind = "incident"
	KindMessage    Kind = "message"
	KindChannel    Kind = "channel"
	KindVocabulary Kind = "vocabulary"
)

// EntityRef is a tagged (kind, id) reference to an observation.
type EntityRef struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

// Less orders references lexicographically by (kind, id). Used to
// canonicalize the unordered pair in a link so that uniqueness can be
// enforced with a single index.
func (r EntityRef) Less(other EntityRef) bool {
	if r.Kind != other.Kind {
		return r.Kind < other.Kind
	}
	return r.ID < other.ID
}

func (r EntityRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// LinkType categorizes discovered relationships.
type LinkType string

const (
	LinkTemporal LinkType = "temporal"
	LinkSpatial  LinkType = "spatial"
	LinkSocial   LinkType = "social"
	LinkContent  LinkType = "content"
)

// Evidence records the inputs that produced a link. Required for
// auditability and for later false-positive review. Fields are sparse;
// each correlator fills only what it measured.
type Evidence struct {
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	TimeDeltaHours  float64  `json:"time_delta_hours,omitempty"`
	DistanceKM      float64  `json:"distance_km,omitempty"`
	PlaceNames      []string `json:"place_names,omitempty"`
	ZScore          float64  `json:"z_score,omitempty"`
	WindowCount     int      `json:"window_count,omitempty"`
	BaselineMean    float64  `json:"baseline_mean,omitempty"`
	BaselineStdDev  float64  `json:"baseline_std_dev,omitempty"`
	Corroborations  int      `json:"corroborations,omitempty"`
	EdgeWeight      int      `json:"edge_weight,omitempty"`
	Density         float64  `json:"density,omitempty"`
	Note            string   `json:"note,omitempty"`
}

// Link is a typed, scored relationship between two entities - the primary
// output of the engine.
//
// The pair (A, B, Type) is unique with A and B in canonical order.
// Re-running a correlator over the same inputs updates the existing row
// rather than creating a duplicate. Links are never physically deleted;
// a discounted link is marked FalsePositive and retained as evidence.
type Link struct {
	ID            string
	A             EntityRef
	B             EntityRef
	Type          LinkType
	Strength      float64 // [0,1] proximity measure specific to the link type
	Confidence    float64 // [0,1] strength plus corroborating signals
	Evidence      Evidence
	DiscoveredBy  string
	DiscoveredAt  time.Time
	FalsePositive bool
	CycleID       string
}

// NewLink builds a link with the endpoint pair in canonical order.
func NewLink(a, b EntityRef, t LinkType, strength, confidence float64, ev Evidence, discoveredBy string) Link {
	if b.Less(a) {
		a, b = b, a
	}
	return Link{
		A:            a,
		B:            b,
		Type:         t,
		Strength:     clamp01(strength),
		Confidence:   clamp01(confidence),
		Evidence:     ev,
		DiscoveredBy: discoveredBy,
		DiscoveredAt: time.Now(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Incident is a geotagged field event reported by an external collector.
// Immutable once created; the engine only reads it.
type Incident struct {
	ID          string
	OccurredAt  time.Time
	Lat         float64
	Lon         float64
	HasCoords   bool
	Place       string
	Description string
}

// Message is a timestamped short post from a monitored channel.
type Message struct {
	ID         string
	ChannelID  string
	PostedAt   time.Time
	Text       string
	Engagement int
}

// Channel is a publishing source of messages.
type Channel struct {
	ID       string
	Name     string
	Platform string
	AddedAt  time.Time
}

// Tier is a channel's monitoring frequency class. The external collection
// scheduler reads the latest profile and polls each channel at the tier's
// interval.
type Tier string

const (
	TierRealtime Tier = "realtime" // breaking-event channels
	TierFast     Tier = "fast"
	TierNormal   Tier = "normal"
	TierSlow     Tier = "slow"
	TierDormant  Tier = "dormant" // near-zero observed value
)

// tierOrder lists tiers from highest to lowest monitoring frequency.
var tierOrder = []Tier{TierRealtime, TierFast, TierNormal, TierSlow, TierDormant}

// Poll interval presets per tier.
var tierIntervals = map[Tier]time.Duration{
	TierRealtime: 1 * time.Minute,
	TierFast:     5 * time.Minute,
	TierNormal:   15 * time.Minute,
	TierSlow:     60 * time.Minute,
	TierDormant:  6 * time.Hour,
}

// PollInterval returns the collection interval for the tier.
func (t Tier) PollInterval() time.Duration {
	if d, ok := tierIntervals[t]; ok {
		return d
	}
	return tierIntervals[TierNormal]
}

// RateLimit expresses the tier as a token rate for schedulers built on
// golang.org/x/time/rate.
func (t Tier) RateLimit() rate.Limit {
	return rate.Every(t.PollInterval())
}

// Promote returns the next-higher-frequency tier, or the same tier if
// already at the top.
func (t Tier) Promote() Tier {
	for i, tier := range tierOrder {
		if tier == t && i > 0 {
			return tierOrder[i-1]
		}
	}
	return t
}

// Demote returns the next-lower-frequency tier, or the same tier if
// already at the bottom.
func (t Tier) Demote() Tier {
	for i, tier := range tierOrder {
		if tier == t && i < len(tierOrder)-1 {
			return tierOrder[i+1]
		}
	}
	return t
}

// ChannelProfile is a channel's scored utility for one adaptive cycle.
//
// Profiles are versioned: one row per channel per cycle, published
// atomically at cycle end, so a scheduler reading the latest version
// never observes a half-updated state. Tier is derived solely from
// UtilityScore and HitRate by the controller; it is never hand-edited
// while the adaptive cycle is active.
type ChannelProfile struct {
	ChannelID           string
	Cycle               int64
	Tier                Tier
	UtilityScore        float64
	HitRate             float64
	IncidentsLinked     int
	HighConfidenceLinks int
	FalsePositiveCount  int
	TotalMessages       int
	CreatedAt           time.Time
}

// TermStatus tracks whether a mined vocabulary term is live or queued for
// manual review.
type TermStatus string

const (
	TermActive   TermStatus = "active"
	TermProposed TermStatus = "proposed"
	TermRejected TermStatus = "rejected"
)

// VocabTerm is one weighted entry in the evolving vocabulary.
type VocabTerm struct {
	Term    string
	Weight  float64
	Status  TermStatus
	Cycle   int64
	AddedAt time.Time
}

// CycleStatus tracks the lifecycle of one batch run.
type CycleStatus string

const (
	CycleRunning   CycleStatus = "running"
	CycleCommitted CycleStatus = "committed"
)

// Cycle is one batch run over a cursor window. The cursor only advances
// when a cycle commits; an interrupted cycle leaves its links in place
// (deduplication makes the resumed run a no-op for them) and the window
// is re-processed next schedule.
type Cycle struct {
	ID          string
	Seq         int64
	From        time.Time
	To          time.Time
	StartedAt   time.Time
	CommittedAt time.Time
	Status      CycleStatus
}
