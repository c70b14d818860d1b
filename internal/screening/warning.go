package screening

import "time"

// WarningType discriminates the kinds of screening warnings.
type WarningType string

const (
	WarningDuplicatePatient WarningType = "DUPLICATE_PATIENT"
	WarningSimilarPatient   WarningType = "SIMILAR_PATIENT"
	WarningDuplicateOrder   WarningType = "DUPLICATE_ORDER"
)

// Severity indicates how strongly a warning suggests blocking the submission.
// Blocking is the caller's decision; the detector only reports.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
)

// Warning is one screening finding. Type determines which fields are set:
// patient warnings carry RecordID/Identifier/PatientName (and Score for
// SIMILAR_PATIENT), order warnings carry OrderID/Medication/OrderedAt.
type Warning struct {
	Type     WarningType `json:"type"`
	Severity Severity    `json:"severity"`
	Message  string      `json:"message"`

	RecordID          string  `json:"record_id,omitempty"`
	Identifier        string  `json:"identifier,omitempty"`
	PatientName       string  `json:"patient_name,omitempty"`
	Score             float64 `json:"score,omitempty"`
	HasSameMedication bool    `json:"has_same_medication,omitempty"`

	OrderID    string    `json:"order_id,omitempty"`
	Medication string    `json:"medication,omitempty"`
	OrderedAt  time.Time `json:"ordered_at,omitempty"`
}
