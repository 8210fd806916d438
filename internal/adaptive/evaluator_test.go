package adaptive

import (
	"fmt"
	"testing"
	"time"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/model"
)

func adaptiveTestConfig() config.AdaptiveConfig {
	return config.AdaptiveConfig{
		PromoteUtility:       50,
		PromoteHitRate:       0.05,
		DemoteUtility:        5,
		DemoteMinMessages:    50,
		HighConfidence:       0.7,
		FalsePositivePenalty: 2,
		VocabTopN:            10,
		VocabMinCorpusFreq:   5,
		ReviewHorizonDays:    14,
		ReviewZFraction:      0.8,
	}
}

// fakeEvalStore is an in-memory evalStore.
type fakeEvalStore struct {
	channels []model.Channel
	counts   map[string]int
	messages map[string]model.Message
	links    map[model.LinkType][]model.Link
}

func (f *fakeEvalStore) Channels() ([]model.Channel, error) { return f.channels, nil }

func (f *fakeEvalStore) MessageCountByChannel(from, to time.Time) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeEvalStore) MessagesByID(ids []string) ([]model.Message, error) {
	var out []model.Message
	for _, id := range ids {
		if m, ok := f.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeEvalStore) LinksByType(relType model.LinkType, limit int) ([]model.Link, error) {
	return f.links[relType], nil
}

func incidentMessageLink(incidentID, msgID string, confidence float64, fp bool) model.Link {
	return model.Link{
		ID:            incidentID + "-" + msgID,
		A:             model.EntityRef{Kind: model.KindIncident, ID: incidentID},
		B:             model.EntityRef{Kind: model.KindMessage, ID: msgID},
		Type:          model.LinkTemporal,
		Strength:      0.8,
		Confidence:    confidence,
		FalsePositive: fp,
	}
}

func TestEvaluate(t *testing.T) {
	store := &fakeEvalStore{
		channels: []model.Channel{{ID: "productive"}, {ID: "noisy"}, {ID: "silent"}},
		counts:   map[string]int{"productive": 100, "noisy": 80},
		messages: map[string]model.Message{
			"p1": {ID: "p1", ChannelID: "productive"},
			"p2": {ID: "p2", ChannelID: "productive"},
			"n1": {ID: "n1", ChannelID: "noisy"},
		},
		links: map[model.LinkType][]model.Link{
			model.LinkTemporal: {
				incidentMessageLink("inc1", "p1", 0.9, false),
				incidentMessageLink("inc1", "p2", 0.75, false), // same incident, counted once
				incidentMessageLink("inc2", "p1", 0.5, false),
				incidentMessageLink("inc3", "n1", 0.6, true), // false positive
			},
		},
	}

	evaluator := NewEvaluator(adaptiveTestConfig(), store)
	stats, err := evaluator.Evaluate(time.Time{}, time.Now())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	byChannel := make(map[string]ChannelStats)
	for _, cs := range stats {
		byChannel[cs.ChannelID] = cs
	}

	p := byChannel["productive"]
	if p.IncidentsLinked != 2 {
		t.Errorf("productive incidents = %d, want 2 (inc1 deduped)", p.IncidentsLinked)
	}
	if p.HighConfidenceLinks != 2 {
		t.Errorf("productive high conf = %d, want 2", p.HighConfidenceLinks)
	}
	if p.TotalMessages != 100 {
		t.Errorf("productive messages = %d, want 100", p.TotalMessages)
	}
	// 10*2 + 5*2 = 30
	if got := p.UtilityScore(2); got != 30 {
		t.Errorf("productive utility = %v, want 30", got)
	}
	if got := p.HitRate(); got != 0.02 {
		t.Errorf("productive hit rate = %v, want 0.02", got)
	}

	n := byChannel["noisy"]
	if n.FalsePositives != 1 {
		t.Errorf("noisy false positives = %d, want 1", n.FalsePositives)
	}
	// 0 - 2*1 = -2
	if got := n.UtilityScore(2); got != -2 {
		t.Errorf("noisy utility = %v, want -2", got)
	}

	s := byChannel["silent"]
	if s.TotalMessages != 0 || s.IncidentsLinked != 0 {
		t.Errorf("silent channel stats = %+v, want zeros", s)
	}
	if got := s.HitRate(); got != 0 {
		t.Errorf("silent hit rate = %v, want 0", got)
	}
}

func TestEvaluateScopesLinksToWindow(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	from := now.Add(-14 * 24 * time.Hour)

	// Ten incidents linked years ago plus one inside the window. Only
	// the in-window link may earn credit: otherwise two messages this
	// window against ten old incidents yields a hit rate of 5.
	messages := map[string]model.Message{}
	var links []model.Link
	for i := 0; i < 10; i++ {
		msgID := fmt.Sprintf("old%d", i)
		messages[msgID] = model.Message{ID: msgID, ChannelID: "veteran"}
		l := incidentMessageLink(fmt.Sprintf("inc%d", i), msgID, 0.9, false)
		l.DiscoveredAt = now.AddDate(-2, 0, 0)
		links = append(links, l)
	}
	messages["fresh"] = model.Message{ID: "fresh", ChannelID: "veteran"}
	current := incidentMessageLink("inc-now", "fresh", 0.9, false)
	current.DiscoveredAt = now
	links = append(links, current)

	store := &fakeEvalStore{
		channels: []model.Channel{{ID: "veteran"}},
		counts:   map[string]int{"veteran": 2},
		messages: messages,
		links:    map[model.LinkType][]model.Link{model.LinkTemporal: links},
	}

	evaluator := NewEvaluator(adaptiveTestConfig(), store)
	stats, err := evaluator.Evaluate(from, now)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats = %d rows, want 1", len(stats))
	}

	v := stats[0]
	if v.IncidentsLinked != 1 {
		t.Errorf("incidents = %d, want 1 (stale links out of window)", v.IncidentsLinked)
	}
	if got := v.HitRate(); got != 0.5 {
		t.Errorf("hit rate = %v, want 0.5", got)
	}
	if got := v.HitRate(); got > 1 {
		t.Errorf("hit rate = %v, exceeds 1.0", got)
	}
}
