package adaptive

import (
	"fmt"
	"time"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/correlate"
	"github.com/avandelay/loom/internal/logging"
	"github.com/avandelay/loom/internal/model"
)

// reviewStore is the slice of the model store the reviewer touches.
type reviewStore interface {
	LinksForReview(relType model.LinkType, minConfidence float64, discoveredBefore time.Time) ([]model.Link, error)
	MessagesByID(ids []string) ([]model.Message, error)
	MessagesBetween(from, to time.Time, channelID string) ([]model.Message, error)
	MarkFalsePositive(linkID string) error
}

// ReviewResult summarizes one review pass.
type ReviewResult struct {
	Examined   int
	Discounted int
}

// Reviewer re-tests aged temporal links against a longer baseline.
//
// A volume anomaly judged against two weeks of history can dissolve once
// more history accumulates: what looked like a spike was the start of a
// new normal. Links whose recomputed z-score falls below a fraction of
// the original trigger threshold are marked false positive. They are
// never deleted; the false-positive flag survives rediscovery and feeds
// the channel's utility penalty.
type Reviewer struct {
	temporal config.TemporalConfig
	cfg      config.AdaptiveConfig
	store    reviewStore
}

// NewReviewer creates a false-positive reviewer.
func NewReviewer(temporal config.TemporalConfig, cfg config.AdaptiveConfig, store reviewStore) *Reviewer {
	return &Reviewer{temporal: temporal, cfg: cfg, store: store}
}

// Review examines temporal links discovered more than ReviewHorizonDays
// before now and discounts the ones that no longer clear the bar.
func (r *Reviewer) Review(now time.Time) (ReviewResult, error) {
	var result ReviewResult

	cutoff := now.Add(-time.Duration(r.cfg.ReviewHorizonDays) * 24 * time.Hour)
	links, err := r.store.LinksForReview(model.LinkTemporal, 0, cutoff)
	if err != nil {
		return result, fmt.Errorf("review: load links: %w", err)
	}

	for _, l := range links {
		msgID, ok := messageEndpoint(l)
		if !ok {
			continue
		}
		result.Examined++

		stale, err := r.recheck(l, msgID)
		if err != nil {
			logging.Warn("link review failed", "link", l.ID, "error", err)
			continue
		}
		if !stale {
			continue
		}

		if err := r.store.MarkFalsePositive(l.ID); err != nil {
			return result, fmt.Errorf("review: mark false positive: %w", err)
		}
		result.Discounted++
		logging.Info("link discounted", "link", l.ID, "original_z", l.Evidence.ZScore)
	}

	return result, nil
}

// recheck recomputes the link's z-score over an extended baseline that
// includes the history accumulated since discovery.
func (r *Reviewer) recheck(l model.Link, msgID string) (bool, error) {
	msgs, err := r.store.MessagesByID([]string{msgID})
	if err != nil || len(msgs) == 0 {
		return false, fmt.Errorf("resolve message %s: %w", msgID, err)
	}
	anchor := msgs[0].PostedAt

	window := time.Duration(r.temporal.WindowHours) * time.Hour
	horizon := time.Duration(r.cfg.ReviewHorizonDays) * 24 * time.Hour
	from := anchor.Add(-time.Duration(r.temporal.BaselineDays) * 24 * time.Hour)
	to := anchor.Add(horizon)

	// The recorded window count spans every channel, so the baseline it
	// is compared against must too.
	history, err := r.store.MessagesBetween(from, to, "")
	if err != nil {
		return false, fmt.Errorf("load baseline: %w", err)
	}

	counts := bucketCountsExcluding(history, from, to, 2*window, anchor.Add(-window), anchor.Add(window))
	if len(counts) == 0 {
		return false, nil
	}
	mean, stddev := correlate.BaselineStats(counts)
	if stddev == 0 {
		// Flat extended baseline: the original absolute-count trigger
		// still stands, nothing to discount.
		return false, nil
	}

	z := (float64(l.Evidence.WindowCount) - mean) / stddev
	return z < r.temporal.ZScoreCutoff*r.cfg.ReviewZFraction, nil
}

// bucketCountsExcluding counts messages per fixed-size bucket over
// [from, to), skipping any bucket overlapping the excluded span so the
// spike under review does not inflate its own baseline.
func bucketCountsExcluding(msgs []model.Message, from, to time.Time, bucket time.Duration, exFrom, exTo time.Time) []int {
	var counts []int
	for start := from; start.Add(bucket).Before(to) || start.Add(bucket).Equal(to); start = start.Add(bucket) {
		end := start.Add(bucket)
		if start.Before(exTo) && end.After(exFrom) {
			continue
		}
		n := 0
		for _, m := range msgs {
			if !m.PostedAt.Before(start) && m.PostedAt.Before(end) {
				n++
			}
		}
		counts = append(counts, n)
	}
	return counts
}
