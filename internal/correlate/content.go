package correlate

import (
	"sort"
	"strings"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/model"
)

// ContentScorer flags individual messages as high-intelligence-value from
// vocabulary density alone, independent of any incident. This is how a
// message becomes a candidate for later temporal/spatial correlation
// before any incident exists.
type ContentScorer struct {
	cfg   config.ContentConfig
	vocab map[string]float64
}

// NewContentScorer creates a content scorer over the cycle's active
// vocabulary.
func NewContentScorer(cfg config.ContentConfig, vocab map[string]float64) *ContentScorer {
	return &ContentScorer{cfg: cfg, vocab: vocab}
}

func (c *ContentScorer) Name() string { return "content_scorer" }

// Score computes vocabulary density for one message. A message is
// high-value when it contains at least MinDistinctHits distinct terms AND
// density exceeds the threshold.
func (c *ContentScorer) Score(m model.Message) (highValue bool, density float64, matched []string) {
	tokens := Tokenize(m.Text)
	if len(tokens) == 0 {
		return false, 0, nil
	}

	matched = MatchTerms(tokens, c.vocab)
	density = float64(len(matched)) / float64(len(tokens))

	highValue = len(matched) >= c.cfg.MinDistinctHits && density > c.cfg.DensityThreshold
	return highValue, density, matched
}

// Correlate emits content links for every high-value message in the
// batch. The link target is the keyword set that triggered the flag,
// identified by its sorted terms so reruns dedup onto the same row.
func (c *ContentScorer) Correlate(msgs []model.Message) []model.Link {
	var links []model.Link
	for _, m := range msgs {
		highValue, density, matched := c.Score(m)
		if !highValue {
			continue
		}

		sorted := append([]string(nil), matched...)
		sort.Strings(sorted)

		msgRef := model.EntityRef{Kind: model.KindMessage, ID: m.ID}
		setRef := model.EntityRef{Kind: model.KindVocabulary, ID: strings.Join(sorted, ",")}

		// Density runs well below 1.0 for natural text; scale it so the
		// threshold region maps into a useful strength range.
		strength := density * c.cfg.StrengthScale
		if strength > 1 {
			strength = 1
		}
		confidence := c.cfg.BaseConfidence + c.cfg.HitBonus*float64(len(matched))
		if confidence > c.cfg.MaxConfidence {
			confidence = c.cfg.MaxConfidence
		}

		ev := model.Evidence{
			MatchedKeywords: matched,
			Density:         density,
		}
		links = append(links, model.NewLink(msgRef, setRef, model.LinkContent, strength, confidence, ev, c.Name()))
	}
	return links
}
