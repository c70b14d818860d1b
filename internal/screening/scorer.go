package screening

import "strings"

// identifierPrefixLen bounds how much of the record identifier participates
// in fuzzy scoring. Identifiers are 6-character record numbers; comparing the
// full prefix catches transcription typos without letting an assigned code
// dominate the composite.
const identifierPrefixLen = 6

// Config holds the screening tuning parameters. The defaults were calibrated
// empirically; treat them as deployment configuration rather than algorithm
// constants.
type Config struct {
	// SimilarityThreshold is the composite score at or above which a
	// non-identical record is flagged as similar.
	SimilarityThreshold float64 `json:"similarity_threshold"`
	// MaxRecordsToCheck bounds the candidate set to the most recently
	// created records. Duplicates cluster among recent entries; scanning the
	// whole store in a synchronous request path is not acceptable, so misses
	// outside this window are an accepted trade-off.
	MaxRecordsToCheck int `json:"max_records_to_check"`

	// Field weights, summing to 1.0. Last name is the most distinctive,
	// first name next, identifier prefix least.
	FirstNameWeight  float64 `json:"first_name_weight"`
	LastNameWeight   float64 `json:"last_name_weight"`
	IdentifierWeight float64 `json:"identifier_weight"`

	// OrderWindowDays is the lookback window for order collision checks.
	OrderWindowDays int `json:"order_window_days"`
}

// DefaultConfig returns the calibrated defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.7,
		MaxRecordsToCheck:   100,
		FirstNameWeight:     0.30,
		LastNameWeight:      0.50,
		IdentifierWeight:    0.20,
		OrderWindowDays:     30,
	}
}

// Candidate is an incoming submission being screened. It mirrors Record minus
// the ID, plus the medication being ordered alongside the patient (used only
// to annotate matched records that already carry the same medication).
type Candidate struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Identifier     string `json:"identifier"`
	MedicationName string `json:"medication_name,omitempty"`
}

// Record is a read-only snapshot of an existing identity record. The detector
// never mutates it.
type Record struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Identifier string `json:"identifier"`
}

// Scorer combines per-field similarity scores into one weighted composite.
type Scorer struct {
	config Config
}

// NewScorer creates a scorer with the given weights.
func NewScorer(cfg Config) *Scorer {
	return &Scorer{config: cfg}
}

// Score returns the weighted composite similarity between a candidate and an
// existing record, in [0, 1]. Case is normalized here so Similarity itself
// stays case-sensitive. Callers must short-circuit exact identifier matches
// before scoring; an exact duplicate should never be classified as merely
// similar.
func (s *Scorer) Score(candidate Candidate, existing Record) float64 {
	firstScore := Similarity(strings.ToLower(candidate.FirstName), strings.ToLower(existing.FirstName))
	lastScore := Similarity(strings.ToLower(candidate.LastName), strings.ToLower(existing.LastName))
	idScore := Similarity(identifierPrefix(candidate.Identifier), identifierPrefix(existing.Identifier))

	return firstScore*s.config.FirstNameWeight +
		lastScore*s.config.LastNameWeight +
		idScore*s.config.IdentifierWeight
}

func identifierPrefix(id string) string {
	id = strings.ToLower(id)
	if len(id) > identifierPrefixLen {
		return id[:identifierPrefixLen]
	}
	return id
}
