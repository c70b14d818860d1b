package screening

import (
	"math"
	"testing"
)

func TestScoreExactMatchMinusIdentifier(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	candidate := Candidate{FirstName: "John", LastName: "Smith", Identifier: "654321"}
	existing := Record{ID: "p1", FirstName: "John", LastName: "Smith", Identifier: "123456"}

	score := scorer.Score(candidate, existing)
	if score <= 0.7 {
		t.Errorf("same name, different identifier scored %v, want > 0.7", score)
	}
	if score >= 1.0 {
		t.Errorf("score %v should stay below 1.0 with a divergent identifier", score)
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	scorer := NewScorer(DefaultConfig())

	upper := scorer.Score(
		Candidate{FirstName: "JOHN", LastName: "SMITH", Identifier: "ABC123"},
		Record{FirstName: "john", LastName: "smith", Identifier: "abc123"},
	)
	if math.Abs(upper-1.0) > 1e-12 {
		t.Errorf("case-folded identical fields scored %v, want 1.0", upper)
	}
}

func TestScoreWeightsApplied(t *testing.T) {
	// Identical first names only: composite should equal the first-name
	// weight exactly when the other fields share no characters.
	cfg := DefaultConfig()
	scorer := NewScorer(cfg)

	score := scorer.Score(
		Candidate{FirstName: "John", LastName: "qqqqq", Identifier: "aaaaaa"},
		Record{FirstName: "John", LastName: "zzzzz", Identifier: "bbbbbb"},
	)
	if math.Abs(score-cfg.FirstNameWeight) > 1e-12 {
		t.Errorf("first-name-only match scored %v, want %v", score, cfg.FirstNameWeight)
	}

	score = scorer.Score(
		Candidate{FirstName: "qqqqq", LastName: "Smith", Identifier: "aaaaaa"},
		Record{FirstName: "zzzzz", LastName: "Smith", Identifier: "bbbbbb"},
	)
	if math.Abs(score-cfg.LastNameWeight) > 1e-12 {
		t.Errorf("last-name-only match scored %v, want %v", score, cfg.LastNameWeight)
	}
}

func TestScoreIdentifierPrefixOnly(t *testing.T) {
	// Only the first six identifier characters participate; the scorer must
	// not be affected by anything past the record-number length.
	scorer := NewScorer(DefaultConfig())

	short := scorer.Score(
		Candidate{FirstName: "Ann", LastName: "Lee", Identifier: "123456"},
		Record{FirstName: "Ann", LastName: "Lee", Identifier: "123456"},
	)
	long := scorer.Score(
		Candidate{FirstName: "Ann", LastName: "Lee", Identifier: "123456zzz"},
		Record{FirstName: "Ann", LastName: "Lee", Identifier: "123456qqq"},
	)
	if math.Abs(short-long) > 1e-12 {
		t.Errorf("identifier suffix changed the score: %v vs %v", short, long)
	}
}

func TestDefaultConfigWeightsSum(t *testing.T) {
	cfg := DefaultConfig()
	sum := cfg.FirstNameWeight + cfg.LastNameWeight + cfg.IdentifierWeight
	if math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("default weights sum to %v, want 1.0", sum)
	}
}
