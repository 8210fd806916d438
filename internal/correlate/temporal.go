package correlate

import (
	"fmt"
	"math"
	"time"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/logging"
	"github.com/avandelay/loom/internal/model"
)

// MessageSource is the read-only slice of the observation store the
// correlators need. *model.Store satisfies it; tests inject fakes.
type MessageSource interface {
	MessagesBetween(from, to time.Time, channelID string) ([]model.Message, error)
}

// Temporal links messages to an incident when message volume around the
// incident's timestamp is statistically anomalous against the preceding
// baseline.
type Temporal struct {
	cfg    config.TemporalConfig
	source MessageSource
	vocab  map[string]float64
}

// NewTemporal creates a temporal correlator. The vocabulary is the cycle's
// active term set, used for the keyword confidence bonus.
func NewTemporal(cfg config.TemporalConfig, source MessageSource, vocab map[string]float64) *Temporal {
	return &Temporal{cfg: cfg, source: source, vocab: vocab}
}

// BaselineStats returns the mean and population standard deviation of
// per-bucket message counts.
func BaselineStats(counts []int) (mean, stddev float64) {
	if len(counts) == 0 {
		return 0, 0
	}
	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean = sum / float64(len(counts))

	var sq float64
	for _, c := range counts {
		d := float64(c) - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(counts)))
	return mean, stddev
}

// Correlate runs temporal correlation for one incident.
//
// The baseline is the BaselineDays window ending at the incident time
// minus WindowHours, bucketed into spans the same length as the
// observation window. A z-score of the observed window count against the
// baseline gates link creation; zero baseline variance falls back to an
// absolute count threshold, and insufficient baseline history skips the
// incident entirely (a scoped skip, not an error).
func (t *Temporal) Correlate(incident model.Incident) ([]model.Link, error) {
	window := time.Duration(t.cfg.WindowHours) * time.Hour
	bucket := 2 * window // observation window is [t-w, t+w]

	baselineEnd := incident.OccurredAt.Add(-window)
	baselineStart := baselineEnd.Add(-time.Duration(t.cfg.BaselineDays) * 24 * time.Hour)

	baseline, err := t.source.MessagesBetween(baselineStart, baselineEnd, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load baseline messages: %w", err)
	}
	if len(baseline) == 0 {
		logging.Debug("Temporal: no baseline data, skipping incident", "incident", incident.ID)
		return nil, nil
	}

	// Require enough observed history to trust the baseline. Messages
	// are returned in posted_at order, so the first is the earliest.
	observedSpan := baselineEnd.Sub(baseline[0].PostedAt)
	minSpan := time.Duration(t.cfg.MinBaselineDays) * 24 * time.Hour
	if observedSpan < minSpan {
		logging.Debug("Temporal: insufficient baseline history, skipping incident",
			"incident", incident.ID,
			"have_hours", observedSpan.Hours(),
			"need_hours", minSpan.Hours())
		return nil, nil
	}

	counts := bucketCounts(baseline, baselineStart, baselineEnd, bucket)
	mean, stddev := BaselineStats(counts)

	windowMsgs, err := t.source.MessagesBetween(incident.OccurredAt.Add(-window), incident.OccurredAt.Add(window), "")
	if err != nil {
		return nil, fmt.Errorf("failed to load window messages: %w", err)
	}
	observed := len(windowMsgs)
	if observed == 0 {
		return nil, nil
	}

	var z float64
	if stddev > 0 {
		z = (float64(observed) - mean) / stddev
		if z < t.cfg.ZScoreCutoff {
			return nil, nil
		}
	} else {
		// No baseline variance: a z-score is undefined, so gate on an
		// absolute window count instead.
		if observed < t.cfg.AbsoluteCountFallback {
			return nil, nil
		}
	}

	logging.Info("Temporal: volume anomaly detected",
		"incident", incident.ID,
		"observed", observed,
		"baseline_mean", mean,
		"baseline_stddev", stddev,
		"z", z)

	incidentRef := model.EntityRef{Kind: model.KindIncident, ID: incident.ID}
	links := make([]model.Link, 0, len(windowMsgs))
	for _, m := range windowMsgs {
		delta := m.PostedAt.Sub(incident.OccurredAt)
		if delta < 0 {
			delta = -delta
		}

		strength := 1 - float64(delta)/float64(window)
		if strength < 0 {
			strength = 0
		}

		matched := MatchTerms(Tokenize(m.Text), t.vocab)
		confidence := t.cfg.ConfidenceBase
		if len(matched) > 0 {
			confidence += t.cfg.KeywordBonus
		}
		if delta < window/4 {
			confidence += t.cfg.ProximityBonus
		}
		if m.Engagement > t.cfg.HighEngagement {
			confidence += t.cfg.VolumeBonus
		}

		ev := model.Evidence{
			MatchedKeywords: matched,
			TimeDeltaHours:  delta.Hours(),
			ZScore:          z,
			WindowCount:     observed,
			BaselineMean:    mean,
			BaselineStdDev:  stddev,
		}
		msgRef := model.EntityRef{Kind: model.KindMessage, ID: m.ID}
		links = append(links, model.NewLink(incidentRef, msgRef, model.LinkTemporal, strength, confidence, ev, "temporal_correlator"))
	}

	return links, nil
}

// bucketCounts slices [start, end) into consecutive spans of the given
// length and counts messages in each. A trailing partial span is dropped
// so its undercounting doesn't drag the mean down.
func bucketCounts(msgs []model.Message, start, end time.Time, span time.Duration) []int {
	n := int(end.Sub(start) / span)
	if n == 0 {
		return nil
	}
	counts := make([]int, n)
	for _, m := range msgs {
		idx := int(m.PostedAt.Sub(start) / span)
		if idx >= 0 && idx < n {
			counts[idx]++
		}
	}
	return counts
}
