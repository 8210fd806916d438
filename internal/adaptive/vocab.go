package adaptive

import (
	"sort"
	"time"

	"github.com/avandelay/loom/internal/config"
	"github.com/avandelay/loom/internal/correlate"
	"github.com/avandelay/loom/internal/model"
)

// stopwords are excluded from mining. Deliberately small; the corpus
// lift ratio already buries common words.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "was": true, "were": true, "are": true,
	"has": true, "have": true, "been": true, "will": true, "not": true,
	"but": true, "they": true, "their": true, "them": true, "its": true,
	"our": true, "your": true, "all": true, "can": true, "about": true,
	"after": true, "before": true, "into": true, "over": true, "near": true,
	"more": true, "than": true, "out": true, "now": true, "just": true,
	"also": true, "who": true, "what": true, "when": true, "where": true,
}

const minTermLength = 3

// Candidate is a mined term with its distributional evidence.
type Candidate struct {
	Term       string
	LinkedDocs int     // linked messages containing the term
	CorpusDocs int     // all messages containing the term
	Lift       float64 // linked doc rate / corpus doc rate
}

// Miner discovers vocabulary by comparing the term distribution of
// messages that produced high-confidence links against the distribution
// of the corpus as a whole. A term concentrated in linked messages is a
// signal term even if it was never seeded.
type Miner struct {
	cfg config.AdaptiveConfig
}

// NewMiner creates a vocabulary miner.
func NewMiner(cfg config.AdaptiveConfig) *Miner {
	return &Miner{cfg: cfg}
}

// Mine ranks terms by lift and returns the top candidates not already in
// the vocabulary. Terms with enough corpus support are returned active;
// rarer ones are proposed for manual review, since a high lift on a
// handful of documents is as likely noise as signal.
func (m *Miner) Mine(linked, corpus []model.Message, existing map[string]float64, cycle int64) []model.VocabTerm {
	if len(linked) == 0 || len(corpus) == 0 {
		return nil
	}

	linkedDocs := docFrequencies(linked)
	corpusDocs := docFrequencies(corpus)

	var candidates []Candidate
	for term, ld := range linkedDocs {
		if _, known := existing[term]; known {
			continue
		}
		if ld < 2 {
			continue
		}
		cd := corpusDocs[term]
		linkedRate := float64(ld) / float64(len(linked))
		corpusRate := float64(cd) / float64(len(corpus))
		if corpusRate == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Term:       term,
			LinkedDocs: ld,
			CorpusDocs: cd,
			Lift:       linkedRate / corpusRate,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Lift != candidates[j].Lift {
			return candidates[i].Lift > candidates[j].Lift
		}
		return candidates[i].Term < candidates[j].Term
	})
	if len(candidates) > m.cfg.VocabTopN {
		candidates = candidates[:m.cfg.VocabTopN]
	}

	now := time.Now()
	terms := make([]model.VocabTerm, 0, len(candidates))
	for _, c := range candidates {
		status := model.TermProposed
		if c.CorpusDocs >= m.cfg.VocabMinCorpusFreq {
			status = model.TermActive
		}
		terms = append(terms, model.VocabTerm{
			Term:    c.Term,
			Weight:  float64(c.LinkedDocs) / float64(len(linked)),
			Status:  status,
			Cycle:   cycle,
			AddedAt: now,
		})
	}
	return terms
}

// docFrequencies counts, per term, the number of messages containing it
// at least once.
func docFrequencies(msgs []model.Message) map[string]int {
	freq := make(map[string]int)
	for _, m := range msgs {
		seen := make(map[string]bool)
		for _, tok := range correlate.Tokenize(m.Text) {
			if len(tok) < minTermLength || stopwords[tok] || seen[tok] {
				continue
			}
			seen[tok] = true
			freq[tok]++
		}
	}
	return freq
}
