package adaptive

import (
	"fmt"
	"testing"

	"github.com/avandelay/loom/internal/model"
)

func TestMine(t *testing.T) {
	// 10 linked messages: "archangel" in 8 of them, "saboteur" in 2.
	var linked []model.Message
	for i := 0; i < 8; i++ {
		text := "archangel convoy moving north"
		if i < 2 {
			text = "archangel saboteur convoy moving north"
		}
		linked = append(linked, model.Message{ID: fmt.Sprintf("l%d", i), Text: text})
	}
	linked = append(linked,
		model.Message{ID: "l8", Text: "convoy moving north quiet"},
		model.Message{ID: "l9", Text: "convoy moving north quiet"},
	)

	// Corpus: the linked messages plus 390 routine ones. "archangel"
	// appears in 2% of the corpus but 80% of linked messages.
	corpus := append([]model.Message(nil), linked...)
	for i := 0; i < 390; i++ {
		corpus = append(corpus, model.Message{ID: fmt.Sprintf("c%d", i), Text: "convoy moving north routine traffic"})
	}

	existing := map[string]float64{"convoy": 1.0}
	miner := NewMiner(adaptiveTestConfig())
	terms := miner.Mine(linked, corpus, existing, 7)

	if len(terms) == 0 {
		t.Fatal("expected mined terms")
	}

	byTerm := make(map[string]model.VocabTerm)
	for _, term := range terms {
		byTerm[term.Term] = term
	}

	// Highest lift with enough corpus support: auto-activated.
	arch, ok := byTerm["archangel"]
	if !ok {
		t.Fatal("archangel not mined")
	}
	if arch.Status != model.TermActive {
		t.Errorf("archangel status = %s, want active (8 corpus docs)", arch.Status)
	}
	if arch.Weight != 0.8 {
		t.Errorf("archangel weight = %v, want 0.8", arch.Weight)
	}
	if arch.Cycle != 7 {
		t.Errorf("archangel cycle = %d, want 7", arch.Cycle)
	}
	if terms[0].Term != "archangel" {
		t.Errorf("top term = %s, want archangel", terms[0].Term)
	}

	// Same lift but only 2 corpus docs: proposed for review.
	sab, ok := byTerm["saboteur"]
	if !ok {
		t.Fatal("saboteur not mined")
	}
	if sab.Status != model.TermProposed {
		t.Errorf("saboteur status = %s, want proposed (2 corpus docs)", sab.Status)
	}

	// Already-known terms are never re-proposed.
	if _, ok := byTerm["convoy"]; ok {
		t.Error("existing vocabulary term convoy was re-mined")
	}
}

func TestMineEmptyInputs(t *testing.T) {
	miner := NewMiner(adaptiveTestConfig())

	if terms := miner.Mine(nil, []model.Message{{ID: "c1", Text: "x"}}, nil, 1); terms != nil {
		t.Errorf("no linked messages should mine nothing, got %v", terms)
	}
	if terms := miner.Mine([]model.Message{{ID: "l1", Text: "x"}}, nil, nil, 1); terms != nil {
		t.Errorf("empty corpus should mine nothing, got %v", terms)
	}
}

func TestMineIgnoresStopwordsAndShortTokens(t *testing.T) {
	linked := []model.Message{
		{ID: "l1", Text: "the uav was at position"},
		{ID: "l2", Text: "the uav has left position"},
	}
	corpus := append([]model.Message(nil), linked...)
	for i := 0; i < 50; i++ {
		corpus = append(corpus, model.Message{ID: fmt.Sprintf("c%d", i), Text: "the weather was fine at noon"})
	}

	miner := NewMiner(adaptiveTestConfig())
	terms := miner.Mine(linked, corpus, nil, 1)

	for _, term := range terms {
		if stopwords[term.Term] {
			t.Errorf("stopword %q mined", term.Term)
		}
		if len(term.Term) < minTermLength {
			t.Errorf("short token %q mined", term.Term)
		}
	}
}
