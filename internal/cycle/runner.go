// Package cycle orchestrates one pass of the discovery engine: advance
// the ingest cursor, fan out the correlators, persist links, rescore
// channels, mine vocabulary, and review aged links. The daemon mode
// repeats the pass at the configured interval until the context is
// cancelled.
package cycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/avandelay/loom/internal/adaptive"
	"github.com/avandelay/loom/internal/audit"
	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/correlate"
	"github.com/avandelay/loom/internal/geo"
	"github.com/avandelay/loom/internal/logging"
	"github.com/avandelay/loom/internal/model"
	"github.com/avandelay/loom/internal/socialgraph"
)

// Result summarizes one committed cycle.
type Result struct {
	CycleID         string
	Seq             int64
	From            time.Time
	To              time.Time
	LinksUpserted   int
	ProfilesWritten int
	TermsMined      int
	LinksDiscounted int
}

// Runner executes discovery cycles against the store.
//
// A cycle is restart-safe: the cursor only advances on commit, and link
// upserts are idempotent, so re-running an interrupted window discovers
// the same links without duplicating them.
type Runner struct {
	cfg   *config.Config
	store *model.Store
	trail *audit.Trail
	gaz   *geo.Gazetteer
	wg    sync.WaitGroup
}

// NewRunner creates a cycle runner. The trail may be a null trail but
// not nil.
func NewRunner(cfg *config.Config, store *model.Store, trail *audit.Trail) *Runner {
	return &Runner{
		cfg:   cfg,
		store: store,
		trail: trail,
		gaz:   geo.NewGazetteer(nil),
	}
}

// Run executes one full cycle ending at now. If the context is cancelled
// mid-cycle the cycle is left uncommitted and the cursor does not move.
func (r *Runner) Run(ctx context.Context, now time.Time) (Result, error) {
	from, err := r.store.LastCommittedCursor()
	if err != nil {
		return Result{}, fmt.Errorf("cycle: read cursor: %w", err)
	}
	if from.IsZero() {
		from = now.Add(-time.Duration(r.cfg.Temporal.BaselineDays) * 24 * time.Hour)
	}

	cyc, err := r.store.BeginCycle(from, now)
	if err != nil {
		return Result{}, fmt.Errorf("cycle: begin: %w", err)
	}
	result := Result{CycleID: cyc.ID, Seq: cyc.Seq, From: from, To: now}

	r.trail.Emit(audit.Event{Kind: audit.KindCycleStart, CycleID: cyc.ID, CycleSeq: cyc.Seq})
	logging.Info("cycle started", "cycle", cyc.Seq, "from", from.Format(time.RFC3339), "to", now.Format(time.RFC3339))

	if err := r.store.SeedVocabulary(r.cfg.DomainKeywords); err != nil {
		return result, fmt.Errorf("cycle: seed vocabulary: %w", err)
	}
	vocab, err := r.store.ActiveVocabulary()
	if err != nil {
		return result, fmt.Errorf("cycle: load vocabulary: %w", err)
	}

	incidents, err := r.store.IncidentsBetween(from, now)
	if err != nil {
		return result, fmt.Errorf("cycle: load incidents: %w", err)
	}
	msgs, err := r.store.MessagesBetween(from, now, "")
	if err != nil {
		return result, fmt.Errorf("cycle: load messages: %w", err)
	}

	links, err := r.correlateAll(ctx, incidents, msgs, vocab)
	if err != nil {
		return result, err
	}

	// Stamp with the cycle clock so evaluation windows line up with the
	// cursor, and so rediscovery refreshes a link's recency.
	for i := range links {
		links[i].DiscoveredAt = now
		links[i].CycleID = cyc.ID
	}

	upserted, err := r.store.UpsertLinks(links)
	if err != nil {
		return result, fmt.Errorf("cycle: save links: %w", err)
	}
	result.LinksUpserted = upserted
	for _, l := range links {
		r.trail.Emit(audit.Event{
			Kind:       audit.KindLinkDiscovered,
			CycleID:    cyc.ID,
			LinkType:   string(l.Type),
			Strength:   l.Strength,
			Confidence: l.Confidence,
		})
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	profiles, err := r.retier(cyc, now)
	if err != nil {
		return result, err
	}
	result.ProfilesWritten = profiles

	mined, err := r.mineVocabulary(cyc, from, now, vocab)
	if err != nil {
		return result, err
	}
	result.TermsMined = mined

	reviewer := adaptive.NewReviewer(r.cfg.Temporal, r.cfg.Adaptive, r.store)
	review, err := reviewer.Review(now)
	if err != nil {
		return result, fmt.Errorf("cycle: review links: %w", err)
	}
	result.LinksDiscounted = review.Discounted
	if review.Discounted > 0 {
		r.trail.Emit(audit.Event{Kind: audit.KindLinkFalsePositive, CycleID: cyc.ID, Count: review.Discounted})
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	if err := r.store.CommitCycle(cyc.ID); err != nil {
		return result, fmt.Errorf("cycle: commit: %w", err)
	}
	r.trail.Emit(audit.Event{Kind: audit.KindCycleCommit, CycleID: cyc.ID, CycleSeq: cyc.Seq, Count: result.LinksUpserted})
	logging.Info("cycle committed", "cycle", cyc.Seq, "links", result.LinksUpserted,
		"profiles", result.ProfilesWritten, "terms", result.TermsMined, "discounted", result.LinksDiscounted)

	return result, nil
}

// correlateAll fans the four correlators out in parallel and collects
// their links. Correlators only read, so they run concurrently; the
// single UpsertLinks call afterwards keeps all writes on one goroutine.
func (r *Runner) correlateAll(ctx context.Context, incidents []model.Incident, msgs []model.Message, vocab map[string]float64) ([]model.Link, error) {
	var (
		temporalLinks []model.Link
		spatialLinks  []model.Link
		contentLinks  []model.Link
		socialLinks   []model.Link
	)

	var g errgroup.Group

	g.Go(func() error {
		temporal := correlate.NewTemporal(r.cfg.Temporal, r.store, vocab)
		for _, inc := range incidents {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			links, err := temporal.Correlate(inc)
			if err != nil {
				logging.Warn("temporal correlation failed", "incident", inc.ID, "error", err)
				continue
			}
			temporalLinks = append(temporalLinks, links...)
		}
		return nil
	})

	g.Go(func() error {
		spatial := correlate.NewSpatial(r.cfg.Spatial, r.gaz, vocab)
		for _, inc := range incidents {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			spatialLinks = append(spatialLinks, spatial.Correlate(inc, msgs)...)
		}
		return nil
	})

	g.Go(func() error {
		scorer := correlate.NewContentScorer(r.cfg.Content, vocab)
		contentLinks = scorer.Correlate(msgs)
		return nil
	})

	g.Go(func() error {
		builder := socialgraph.NewBuilder(r.cfg.Social)
		graph := builder.Build(msgs)
		socialLinks = builder.Links(graph)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cycle: correlate: %w", err)
	}

	all := make([]model.Link, 0, len(temporalLinks)+len(spatialLinks)+len(contentLinks)+len(socialLinks))
	all = append(all, temporalLinks...)
	all = append(all, spatialLinks...)
	all = append(all, contentLinks...)
	all = append(all, socialLinks...)
	return all, nil
}

// retier scores every channel and publishes this cycle's profiles.
func (r *Runner) retier(cyc model.Cycle, now time.Time) (int, error) {
	evalFrom := now.Add(-time.Duration(r.cfg.Temporal.BaselineDays) * 24 * time.Hour)

	evaluator := adaptive.NewEvaluator(r.cfg.Adaptive, r.store)
	stats, err := evaluator.Evaluate(evalFrom, now)
	if err != nil {
		return 0, fmt.Errorf("cycle: evaluate channels: %w", err)
	}

	previous, err := r.store.LatestProfiles()
	if err != nil {
		return 0, fmt.Errorf("cycle: load profiles: %w", err)
	}
	prevTier := make(map[string]model.Tier, len(previous))
	for _, p := range previous {
		prevTier[p.ChannelID] = p.Tier
	}

	controller := adaptive.NewController(r.cfg.Adaptive)
	profiles := controller.Retier(stats, previous, cyc.Seq)

	if err := r.store.SaveProfiles(profiles); err != nil {
		return 0, fmt.Errorf("cycle: save profiles: %w", err)
	}

	for _, p := range profiles {
		if old, ok := prevTier[p.ChannelID]; ok && old != p.Tier {
			r.trail.Emit(audit.Event{
				Kind:     audit.KindChannelRetier,
				CycleID:  cyc.ID,
				Channel:  p.ChannelID,
				FromTier: string(old),
				ToTier:   string(p.Tier),
				Utility:  p.UtilityScore,
			})
		}
	}
	return len(profiles), nil
}

// mineVocabulary compares messages behind high-confidence links against
// the corpus and stores any newly discovered terms.
func (r *Runner) mineVocabulary(cyc model.Cycle, from, to time.Time, vocab map[string]float64) (int, error) {
	linked, err := r.linkedMessages()
	if err != nil {
		return 0, err
	}
	if len(linked) == 0 {
		return 0, nil
	}

	corpus, err := r.store.MessagesBetween(from, to, "")
	if err != nil {
		return 0, fmt.Errorf("cycle: load corpus: %w", err)
	}

	miner := adaptive.NewMiner(r.cfg.Adaptive)
	terms := miner.Mine(linked, corpus, vocab, cyc.Seq)
	if len(terms) == 0 {
		return 0, nil
	}

	if err := r.store.AddTerms(terms); err != nil {
		return 0, fmt.Errorf("cycle: save terms: %w", err)
	}
	for _, t := range terms {
		kind := audit.KindVocabProposed
		if t.Status == model.TermActive {
			kind = audit.KindVocabActivated
		}
		r.trail.Emit(audit.Event{Kind: kind, CycleID: cyc.ID, Term: t.Term})
	}
	return len(terms), nil
}

// linkedMessages resolves the message endpoints of all high-confidence
// links.
func (r *Runner) linkedMessages() ([]model.Message, error) {
	links, err := r.store.HighConfidenceLinks(r.cfg.Adaptive.HighConfidence)
	if err != nil {
		return nil, fmt.Errorf("cycle: load high-confidence links: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, l := range links {
		for _, ref := range []model.EntityRef{l.A, l.B} {
			if ref.Kind == model.KindMessage && !seen[ref.ID] {
				seen[ref.ID] = true
				ids = append(ids, ref.ID)
			}
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	msgs, err := r.store.MessagesByID(ids)
	if err != nil {
		return nil, fmt.Errorf("cycle: resolve linked messages: %w", err)
	}
	return msgs, nil
}

// Start begins periodic cycles. The limiter starts with a full token,
// so the first cycle runs immediately and the rest follow at the
// configured interval. Context cancellation is the only stop mechanism;
// call Wait after cancelling.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		interval := time.Duration(r.cfg.CycleIntervalMinutes) * time.Minute
		limiter := rate.NewLimiter(rate.Every(interval), 1)
		for {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			r.runOnce(ctx)
		}
	}()
}

func (r *Runner) runOnce(ctx context.Context) {
	if _, err := r.Run(ctx, time.Now()); err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.Error("cycle failed", "error", err)
		r.trail.Emit(audit.Event{Kind: audit.KindCycleError, Err: err.Error()})
	}
}

// Wait blocks until the background goroutine exits. Call after
// cancelling the context passed to Start.
func (r *Runner) Wait() {
	r.wg.Wait()
}
