package adaptive

import (
	"time"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/logging"
	"github.com/avandelay/loom/internal/model"
)

// Decision is a tier transition verdict for one channel.
type Decision string

const (
	DecisionPromote Decision = "promote"
	DecisionDemote  Decision = "demote"
	DecisionHold    Decision = "hold"
)

// Controller turns outcome stats into versioned channel profiles.
//
// Transitions move at most one tier per cycle, so a single good or bad
// cycle never swings a channel across the whole frequency range.
type Controller struct {
	cfg config.AdaptiveConfig
}

// NewController creates a tier controller.
func NewController(cfg config.AdaptiveConfig) *Controller {
	return &Controller{cfg: cfg}
}

// Decide applies the transition rules in order: promote, then demote,
// then hold. Values exactly at a threshold hold, favoring stability.
func (c *Controller) Decide(cs ChannelStats) Decision {
	utility := cs.UtilityScore(c.cfg.FalsePositivePenalty)

	if utility > c.cfg.PromoteUtility && cs.HitRate() > c.cfg.PromoteHitRate {
		return DecisionPromote
	}
	if utility < c.cfg.DemoteUtility && cs.TotalMessages > c.cfg.DemoteMinMessages {
		return DecisionDemote
	}
	return DecisionHold
}

// Retier produces the next cycle's profile for every channel. Previous
// tiers come from the latest published profiles; a channel seen for the
// first time starts at the normal tier. Channels with no messages and no
// link activity carry their tier unchanged rather than decaying on
// absent evidence.
func (c *Controller) Retier(stats []ChannelStats, previous []model.ChannelProfile, cycle int64) []model.ChannelProfile {
	prevTier := make(map[string]model.Tier, len(previous))
	for _, p := range previous {
		prevTier[p.ChannelID] = p.Tier
	}

	now := time.Now()
	profiles := make([]model.ChannelProfile, 0, len(stats))
	for _, cs := range stats {
		tier, ok := prevTier[cs.ChannelID]
		if !ok {
			tier = model.TierNormal
		}

		decision := DecisionHold
		if cs.TotalMessages > 0 || cs.IncidentsLinked > 0 || cs.FalsePositives > 0 {
			decision = c.Decide(cs)
		}

		next := tier
		switch decision {
		case DecisionPromote:
			next = tier.Promote()
		case DecisionDemote:
			next = tier.Demote()
		}
		if next != tier {
			logging.Info("channel retiered", "channel", cs.ChannelID, "from", tier, "to", next,
				"utility", cs.UtilityScore(c.cfg.FalsePositivePenalty), "hit_rate", cs.HitRate())
		}

		profiles = append(profiles, model.ChannelProfile{
			ChannelID:           cs.ChannelID,
			Cycle:               cycle,
			Tier:                next,
			UtilityScore:        cs.UtilityScore(c.cfg.FalsePositivePenalty),
			HitRate:             cs.HitRate(),
			IncidentsLinked:     cs.IncidentsLinked,
			HighConfidenceLinks: cs.HighConfidenceLinks,
			FalsePositiveCount:  cs.FalsePositives,
			TotalMessages:       cs.TotalMessages,
			CreatedAt:           now,
		})
	}
	return profiles
}
