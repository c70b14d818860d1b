package screening

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RecordSource is the read-only view of the identity record store. Results
// are treated as an immutable snapshot for the duration of one detection
// call. RecentRecords returns up to limit records, most recent first.
type RecordSource interface {
	RecentRecords(ctx context.Context, limit int) ([]Record, error)
	MedicationsForRecord(ctx context.Context, recordID string) ([]string, error)
}

// Order is an existing order as reported by the order store.
type Order struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	MedicationName string    `json:"medication_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// OrderSource is the read-only view of order history. OrdersSince returns
// orders for the patient whose medication equals the given name
// case-insensitively (trimmed) and whose creation time is at or after since,
// newest first.
type OrderSource interface {
	OrdersSince(ctx context.Context, patientID, medicationName string, since time.Time) ([]Order, error)
}

// Detector screens incoming submissions against existing records. It holds
// no mutable state beyond configuration and injected dependencies, so one
// instance is safe for concurrent use across requests.
type Detector struct {
	config  Config
	scorer  *Scorer
	records RecordSource
	orders  OrderSource
	logger  *zap.Logger
	now     func() time.Time
}

// NewDetector creates a detector over the given sources.
func NewDetector(cfg Config, records RecordSource, orders OrderSource, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		config:  cfg,
		scorer:  NewScorer(cfg),
		records: records,
		orders:  orders,
		logger:  logger,
		now:     time.Now,
	}
}

// FindSimilarPatients checks the candidate against the most recent records.
// An exact identifier match produces a DUPLICATE_PATIENT warning and is
// never scored; otherwise the weighted composite is compared against the
// similarity threshold (inclusive). Warnings come back in store order,
// most recent record first, one per matching record.
//
// A record-store failure propagates as an error. Silently returning "no
// duplicates" on an infrastructure fault would give the caller false
// confidence, so the whole detection call fails instead.
func (d *Detector) FindSimilarPatients(ctx context.Context, candidate Candidate) ([]Warning, error) {
	existing, err := d.records.RecentRecords(ctx, d.config.MaxRecordsToCheck)
	if err != nil {
		return nil, fmt.Errorf("fetch recent records: %w", err)
	}

	warnings := make([]Warning, 0)
	for _, record := range existing {
		if record.Identifier == candidate.Identifier {
			sameMed, err := d.hasSameMedication(ctx, record.ID, candidate.MedicationName)
			if err != nil {
				return nil, err
			}
			warnings = append(warnings, Warning{
				Type:     WarningDuplicatePatient,
				Severity: SeverityHigh,
				Message: fmt.Sprintf("A patient with record number %s already exists: %s %s",
					record.Identifier, record.FirstName, record.LastName),
				RecordID:          record.ID,
				Identifier:        record.Identifier,
				PatientName:       record.FirstName + " " + record.LastName,
				HasSameMedication: sameMed,
			})
			continue
		}

		score := d.scorer.Score(candidate, record)
		if score < d.config.SimilarityThreshold {
			continue
		}

		sameMed, err := d.hasSameMedication(ctx, record.ID, candidate.MedicationName)
		if err != nil {
			return nil, err
		}
		warnings = append(warnings, Warning{
			Type:     WarningSimilarPatient,
			Severity: SeverityMedium,
			Message: fmt.Sprintf("Possible duplicate: %s %s (record %s) is a %d%% match",
				record.FirstName, record.LastName, record.Identifier, int(math.Round(score*100))),
			RecordID:          record.ID,
			Identifier:        record.Identifier,
			PatientName:       record.FirstName + " " + record.LastName,
			Score:             score,
			HasSameMedication: sameMed,
		})
	}

	if len(warnings) > 0 {
		d.logger.Info("patient screening flagged records",
			zap.String("identifier", candidate.Identifier),
			zap.Int("warnings", len(warnings)),
			zap.Int("candidates_checked", len(existing)))
	}

	return warnings, nil
}

// hasSameMedication reports whether the matched record already has an order
// for the submission's medication. Skipped entirely when the submission
// carries no medication.
func (d *Detector) hasSameMedication(ctx context.Context, recordID, medicationName string) (bool, error) {
	if strings.TrimSpace(medicationName) == "" {
		return false, nil
	}

	medications, err := d.records.MedicationsForRecord(ctx, recordID)
	if err != nil {
		return false, fmt.Errorf("fetch medications for record %s: %w", recordID, err)
	}

	want := normalizeMedication(medicationName)
	for _, med := range medications {
		if normalizeMedication(med) == want {
			return true, nil
		}
	}
	return false, nil
}

// FindDuplicateOrders flags existing orders for the same patient and
// medication inside the lookback window, newest first. Medication equality
// is exact modulo case and surrounding whitespace; medication names here are
// standardized rather than free-typed, so no fuzzy matching. An order created
// exactly at the window start is included.
func (d *Detector) FindDuplicateOrders(ctx context.Context, patientID, medicationName string) ([]Warning, error) {
	windowStart := d.now().AddDate(0, 0, -d.config.OrderWindowDays)

	matches, err := d.orders.OrdersSince(ctx, patientID, normalizeMedication(medicationName), windowStart)
	if err != nil {
		return nil, fmt.Errorf("fetch orders for patient %s: %w", patientID, err)
	}

	warnings := make([]Warning, 0, len(matches))
	for _, order := range matches {
		warnings = append(warnings, Warning{
			Type:     WarningDuplicateOrder,
			Severity: SeverityHigh,
			Message: fmt.Sprintf("An order for %s was already placed on %s",
				order.MedicationName, order.CreatedAt.Format("Jan 2, 2006")),
			OrderID:    order.ID,
			Medication: order.MedicationName,
			OrderedAt:  order.CreatedAt,
		})
	}

	return warnings, nil
}

func normalizeMedication(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
