// Package correlate holds the correlators that turn raw observations
// into typed intelligence links: temporal volume anomalies, spatial
// co-location, and vocabulary-density content value.
package correlate

import (
	"sort"
	"strings"
	"unicode"
)

// Tokenize splits free text into lowercased word tokens. Punctuation is
// stripped; anything that isn't a letter or digit separates tokens.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// MatchTerms returns the distinct vocabulary terms present in the token
// stream, preserving first-hit order. Multi-word vocabulary entries are
// matched against the rejoined token text.
func MatchTerms(tokens []string, vocab map[string]float64) []string {
	if len(tokens) == 0 || len(vocab) == 0 {
		return nil
	}

	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	joined := " " + strings.Join(tokens, " ") + " "

	seen := make(map[string]bool)
	var matched []string
	for _, t := range tokens {
		if tokenSet[t] && !seen[t] {
			if _, ok := vocab[t]; ok {
				seen[t] = true
				matched = append(matched, t)
			}
		}
	}

	// Multi-word terms can't hit the token set; check the joined text.
	// Visit them in sorted order so the match list is stable across runs
	// and re-upserted evidence stays byte-identical.
	var multi []string
	for term := range vocab {
		if strings.Contains(term, " ") {
			multi = append(multi, term)
		}
	}
	sort.Strings(multi)
	for _, term := range multi {
		if seen[term] {
			continue
		}
		if strings.Contains(joined, " "+term+" ") {
			seen[term] = true
			matched = append(matched, term)
		}
	}

	return matched
}

// ContainsTerm reports whether the text contains at least one vocabulary
// term.
func ContainsTerm(text string, vocab map[string]float64) bool {
	return len(MatchTerms(Tokenize(text), vocab)) > 0
}
