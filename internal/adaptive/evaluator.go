// Package adaptive closes the feedback loop: it scores each channel's
// contribution to discovered links, retiers monitoring frequency from
// those scores, mines new vocabulary from linked messages, and discounts
// stale links whose statistical support has eroded.
package adaptive

import (
	"fmt"
	"time"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/model"
)

// Utility weights. An incident link is worth twice a high-confidence
// link because it represents a confirmed real-world correlation rather
// than a scoring threshold.
const (
	incidentWeight = 10.0
	highConfWeight = 5.0
)

// evalStore is the slice of the model store the evaluator reads.
type evalStore interface {
	Channels() ([]model.Channel, error)
	MessageCountByChannel(from, to time.Time) (map[string]int, error)
	MessagesByID(ids []string) ([]model.Message, error)
	LinksByType(relType model.LinkType, limit int) ([]model.Link, error)
}

// ChannelStats aggregates one channel's link outcomes over the
// evaluation horizon.
type ChannelStats struct {
	ChannelID           string
	IncidentsLinked     int
	HighConfidenceLinks int
	FalsePositives      int
	TotalMessages       int
}

// UtilityScore collapses the stats into a single comparable number.
// False positives subtract at the configured penalty rate, so a channel
// that generates noise scores below one that generates nothing.
func (cs ChannelStats) UtilityScore(fpPenalty float64) float64 {
	return incidentWeight*float64(cs.IncidentsLinked) +
		highConfWeight*float64(cs.HighConfidenceLinks) -
		fpPenalty*float64(cs.FalsePositives)
}

// HitRate is incidents linked per message observed. Zero when the
// channel produced no messages in the horizon.
func (cs ChannelStats) HitRate() float64 {
	if cs.TotalMessages == 0 {
		return 0
	}
	return float64(cs.IncidentsLinked) / float64(cs.TotalMessages)
}

// Evaluator attributes discovered links back to the channels whose
// messages produced them.
type Evaluator struct {
	cfg   config.AdaptiveConfig
	store evalStore
}

// NewEvaluator creates a channel outcome evaluator.
func NewEvaluator(cfg config.AdaptiveConfig, store evalStore) *Evaluator {
	return &Evaluator{cfg: cfg, store: store}
}

// Evaluate computes per-channel outcome stats over one horizon: link
// credit and message counts both come from [from, to], so hit rates are
// never an all-time numerator over a windowed denominator. Channels with
// no messages and no link activity still get a stats row so the
// controller can carry their tier forward.
func (e *Evaluator) Evaluate(from, to time.Time) ([]ChannelStats, error) {
	channels, err := e.store.Channels()
	if err != nil {
		return nil, fmt.Errorf("evaluate: load channels: %w", err)
	}

	counts, err := e.store.MessageCountByChannel(from, to)
	if err != nil {
		return nil, fmt.Errorf("evaluate: message counts: %w", err)
	}

	stats := make(map[string]*ChannelStats, len(channels))
	for _, ch := range channels {
		stats[ch.ID] = &ChannelStats{
			ChannelID:     ch.ID,
			TotalMessages: counts[ch.ID],
		}
	}

	for _, relType := range []model.LinkType{model.LinkTemporal, model.LinkSpatial} {
		links, err := e.store.LinksByType(relType, 0)
		if err != nil {
			return nil, fmt.Errorf("evaluate: load %s links: %w", relType, err)
		}
		if err := e.attribute(linksDiscoveredIn(links, from, to), stats); err != nil {
			return nil, err
		}
	}

	result := make([]ChannelStats, 0, len(channels))
	for _, ch := range channels {
		result = append(result, *stats[ch.ID])
	}
	return result, nil
}

// linksDiscoveredIn keeps links discovered inside [from, to]. Utility
// must reflect the same horizon as the message counts it is divided by;
// rediscovery refreshes discovered_at, so links that keep recurring
// stay in scope while stale ones age out.
func linksDiscoveredIn(links []model.Link, from, to time.Time) []model.Link {
	kept := make([]model.Link, 0, len(links))
	for _, l := range links {
		if l.DiscoveredAt.Before(from) || l.DiscoveredAt.After(to) {
			continue
		}
		kept = append(kept, l)
	}
	return kept
}

// attribute resolves each link's message endpoint to its channel and
// credits (or debits, for false positives) that channel's stats.
func (e *Evaluator) attribute(links []model.Link, stats map[string]*ChannelStats) error {
	msgIDs := make([]string, 0, len(links))
	for _, l := range links {
		if id, ok := messageEndpoint(l); ok {
			msgIDs = append(msgIDs, id)
		}
	}
	if len(msgIDs) == 0 {
		return nil
	}

	msgs, err := e.store.MessagesByID(msgIDs)
	if err != nil {
		return fmt.Errorf("evaluate: resolve link messages: %w", err)
	}
	channelOf := make(map[string]string, len(msgs))
	for _, m := range msgs {
		channelOf[m.ID] = m.ChannelID
	}

	// Distinct incidents per channel, so five links to the same incident
	// count once.
	incidentsSeen := make(map[string]map[string]bool)

	for _, l := range links {
		msgID, ok := messageEndpoint(l)
		if !ok {
			continue
		}
		cs, ok := stats[channelOf[msgID]]
		if !ok {
			continue
		}

		if l.FalsePositive {
			cs.FalsePositives++
			continue
		}
		if incID, ok := incidentEndpoint(l); ok {
			if incidentsSeen[cs.ChannelID] == nil {
				incidentsSeen[cs.ChannelID] = make(map[string]bool)
			}
			if !incidentsSeen[cs.ChannelID][incID] {
				incidentsSeen[cs.ChannelID][incID] = true
				cs.IncidentsLinked++
			}
		}
		if l.Confidence >= e.cfg.HighConfidence {
			cs.HighConfidenceLinks++
		}
	}
	return nil
}

func messageEndpoint(l model.Link) (string, bool) {
	if l.A.Kind == model.KindMessage {
		return l.A.ID, true
	}
	if l.B.Kind == model.KindMessage {
		return l.B.ID, true
	}
	return "", false
}

func incidentEndpoint(l model.Link) (string, bool) {
	if l.A.Kind == model.KindIncident {
		return l.A.ID, true
	}
	if l.B.Kind == model.KindIncident {
		return l.B.ID, true
	}
	return "", false
}
