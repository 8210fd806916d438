package adaptive

import (
	"fmt"
	"testing"
	"time"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/model"
)

// fakeReviewStore is an in-memory reviewStore.
type fakeReviewStore struct {
	links    []model.Link
	messages map[string]model.Message
	history  []model.Message
	marked   []string
}

func (f *fakeReviewStore) LinksForReview(relType model.LinkType, minConfidence float64, discoveredBefore time.Time) ([]model.Link, error) {
	var out []model.Link
	for _, l := range f.links {
		if l.Type == relType && !l.FalsePositive && l.DiscoveredAt.Before(discoveredBefore) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeReviewStore) MessagesByID(ids []string) ([]model.Message, error) {
	var out []model.Message
	for _, id := range ids {
		if m, ok := f.messages[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeReviewStore) MessagesBetween(from, to time.Time, channelID string) ([]model.Message, error) {
	var out []model.Message
	for _, m := range f.history {
		if m.PostedAt.Before(from) || !m.PostedAt.Before(to) {
			continue
		}
		if channelID != "" && m.ChannelID != channelID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeReviewStore) MarkFalsePositive(linkID string) error {
	f.marked = append(f.marked, linkID)
	return nil
}

func reviewTemporalConfig() config.TemporalConfig {
	return config.TemporalConfig{
		WindowHours:  6,
		BaselineDays: 14,
		ZScoreCutoff: 2.5,
	}
}

// agedLink builds a temporal link discovered well past the review
// horizon, with the original window count in evidence.
func agedLink(id, msgID string, windowCount int, discoveredAt time.Time) model.Link {
	return model.Link{
		ID:           id,
		A:            model.EntityRef{Kind: model.KindIncident, ID: "inc1"},
		B:            model.EntityRef{Kind: model.KindMessage, ID: msgID},
		Type:         model.LinkTemporal,
		Evidence:     model.Evidence{ZScore: 2.5, WindowCount: windowCount},
		DiscoveredAt: discoveredAt,
	}
}

// flatHistory fills every 12h bucket around the anchor with alternating
// counts, giving a known mean and stddev.
func flatHistory(anchor time.Time, low, high int) []model.Message {
	start := anchor.Add(-14 * 24 * time.Hour)
	var msgs []model.Message
	for i := 0; i < 56; i++ {
		n := low
		if i%2 == 1 {
			n = high
		}
		bucketStart := start.Add(time.Duration(i) * 12 * time.Hour)
		for j := 0; j < n; j++ {
			msgs = append(msgs, model.Message{
				ID:        fmt.Sprintf("h-%d-%d", i, j),
				ChannelID: "ch1",
				PostedAt:  bucketStart.Add(time.Duration(j) * time.Minute),
			})
		}
	}
	return msgs
}

func TestReviewDiscountsErodedLink(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	anchor := now.Add(-20 * 24 * time.Hour)

	// The original spike was 15 against mean 10. The extended history
	// runs at mean 14 stddev 2: recomputed z = 0.5, below 2.5*0.8.
	store := &fakeReviewStore{
		links:    []model.Link{agedLink("lnk1", "m1", 15, anchor)},
		messages: map[string]model.Message{"m1": {ID: "m1", ChannelID: "ch1", PostedAt: anchor}},
		history:  flatHistory(anchor, 12, 16),
	}

	reviewer := NewReviewer(reviewTemporalConfig(), adaptiveTestConfig(), store)
	result, err := reviewer.Review(now)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}

	if result.Examined != 1 || result.Discounted != 1 {
		t.Errorf("result = %+v, want 1 examined 1 discounted", result)
	}
	if len(store.marked) != 1 || store.marked[0] != "lnk1" {
		t.Errorf("marked = %v, want [lnk1]", store.marked)
	}
}

func TestReviewKeepsSupportedLink(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	anchor := now.Add(-20 * 24 * time.Hour)

	// Extended history still runs at mean 10 stddev 2: recomputed
	// z = 2.5, above the 2.0 discount threshold.
	store := &fakeReviewStore{
		links:    []model.Link{agedLink("lnk1", "m1", 15, anchor)},
		messages: map[string]model.Message{"m1": {ID: "m1", ChannelID: "ch1", PostedAt: anchor}},
		history:  flatHistory(anchor, 8, 12),
	}

	reviewer := NewReviewer(reviewTemporalConfig(), adaptiveTestConfig(), store)
	result, err := reviewer.Review(now)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}

	if result.Examined != 1 || result.Discounted != 0 {
		t.Errorf("result = %+v, want 1 examined 0 discounted", result)
	}
	if len(store.marked) != 0 {
		t.Errorf("marked = %v, want none", store.marked)
	}
}

func TestReviewSkipsRecentLinks(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	recent := now.Add(-2 * 24 * time.Hour)

	store := &fakeReviewStore{
		links:    []model.Link{agedLink("lnk1", "m1", 15, recent)},
		messages: map[string]model.Message{"m1": {ID: "m1", ChannelID: "ch1", PostedAt: recent}},
		history:  flatHistory(recent, 12, 16),
	}

	reviewer := NewReviewer(reviewTemporalConfig(), adaptiveTestConfig(), store)
	result, err := reviewer.Review(now)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if result.Examined != 0 {
		t.Errorf("examined = %d, want 0 (link inside review horizon)", result.Examined)
	}
}

func TestReviewBaselineSpansAllChannels(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	anchor := now.Add(-20 * 24 * time.Hour)

	// The linked message sits on a quiet channel while a busy channel
	// carries most of the volume. The recorded window count of 15 was
	// taken across both; against the combined baseline (mean 15,
	// stddev 2) it is pure noise, z = 0. A recheck restricted to the
	// quiet channel would see a flat baseline and never discount it.
	busy := flatHistory(anchor, 12, 16)
	for i := range busy {
		busy[i].ID = "busy-" + busy[i].ID
		busy[i].ChannelID = "ch2"
	}
	quiet := flatHistory(anchor, 1, 1)
	history := append(quiet, busy...)

	store := &fakeReviewStore{
		links:    []model.Link{agedLink("lnk1", "m1", 15, anchor)},
		messages: map[string]model.Message{"m1": {ID: "m1", ChannelID: "ch1", PostedAt: anchor}},
		history:  history,
	}

	reviewer := NewReviewer(reviewTemporalConfig(), adaptiveTestConfig(), store)
	result, err := reviewer.Review(now)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}

	if result.Examined != 1 || result.Discounted != 1 {
		t.Errorf("result = %+v, want 1 examined 1 discounted", result)
	}
	if len(store.marked) != 1 || store.marked[0] != "lnk1" {
		t.Errorf("marked = %v, want [lnk1]", store.marked)
	}
}

func TestReviewFlatBaselineKeepsLink(t *testing.T) {
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	anchor := now.Add(-20 * 24 * time.Hour)

	// Zero variance: z is undefined, the original absolute trigger
	// stands and the link survives.
	store := &fakeReviewStore{
		links:    []model.Link{agedLink("lnk1", "m1", 15, anchor)},
		messages: map[string]model.Message{"m1": {ID: "m1", ChannelID: "ch1", PostedAt: anchor}},
		history:  flatHistory(anchor, 5, 5),
	}

	reviewer := NewReviewer(reviewTemporalConfig(), adaptiveTestConfig(), store)
	result, err := reviewer.Review(now)
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if result.Discounted != 0 {
		t.Errorf("discounted = %d, want 0", result.Discounted)
	}
}
