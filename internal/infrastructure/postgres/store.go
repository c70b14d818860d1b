// Package postgres provides PostgreSQL infrastructure components: the
// patient/order store backing the screening sources and the transactional
// outbox used for event publishing.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/carebridge/intake-engine/internal/infrastructure/redpanda"
	"github.com/carebridge/intake-engine/internal/intake"
	"github.com/carebridge/intake-engine/internal/screening"
)

// Store persists patients and orders and serves the read-only queries the
// screening detector needs. Writes insert the row and its outbox entries in
// one transaction.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore creates a new store
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger}
}

// RecentRecords returns up to limit identity records, most recently created
// first. This is the bounded candidate set for duplicate screening.
func (s *Store) RecentRecords(ctx context.Context, limit int) ([]screening.Record, error) {
	query := `
		SELECT id, first_name, last_name, identifier
		FROM patients
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent patients: %w", err)
	}
	defer rows.Close()

	var records []screening.Record
	for rows.Next() {
		var r screening.Record
		if err := rows.Scan(&r.ID, &r.FirstName, &r.LastName, &r.Identifier); err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// MedicationsForRecord returns the medication names on the patient's orders.
func (s *Store) MedicationsForRecord(ctx context.Context, recordID string) ([]string, error) {
	query := `
		SELECT medication_name
		FROM orders
		WHERE patient_id = $1
	`

	rows, err := s.pool.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("query medications: %w", err)
	}
	defer rows.Close()

	var medications []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		medications = append(medications, name)
	}
	return medications, rows.Err()
}

// OrdersSince returns the patient's orders whose medication matches
// case-insensitively (trimmed) and which were created at or after since,
// newest first. medicationName arrives already lowercased and trimmed from
// the detector.
func (s *Store) OrdersSince(ctx context.Context, patientID, medicationName string, since time.Time) ([]screening.Order, error) {
	query := `
		SELECT id, patient_id, medication_name, created_at
		FROM orders
		WHERE patient_id = $1
		  AND LOWER(TRIM(medication_name)) = $2
		  AND created_at >= $3
		ORDER BY created_at DESC
	`

	rows, err := s.pool.Query(ctx, query, patientID, medicationName, since)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []screening.Order
	for rows.Next() {
		var o screening.Order
		if err := rows.Scan(&o.ID, &o.PatientID, &o.MedicationName, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateOrder inserts the order row and its outbox entries in one
// transaction.
func (s *Store) CreateOrder(ctx context.Context, order *intake.Order, events []*intake.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO orders (id, patient_id, medication_name, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := tx.Exec(ctx, insert,
		order.ID, order.PatientID, order.MedicationName, order.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, event := range events {
		if err := s.writeEventEntry(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("order persisted",
		zap.String("order_id", order.ID),
		zap.String("patient_id", order.PatientID))
	return nil
}

// CreatePatient inserts the patient row and its outbox entries in one
// transaction.
func (s *Store) CreatePatient(ctx context.Context, patient *intake.Patient, events []*intake.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO patients (id, first_name, last_name, identifier, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, insert,
		patient.ID, patient.FirstName, patient.LastName,
		patient.Identifier, patient.Notes, patient.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}

	for _, event := range events {
		if err := s.writeEventEntry(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.logger.Debug("patient persisted",
		zap.String("patient_id", patient.ID),
		zap.Int("events", len(events)))
	return nil
}

func (s *Store) writeEventEntry(ctx context.Context, tx pgx.Tx, event *intake.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.EventType, err)
	}

	entry := &OutboxEntry{
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     string(event.EventType),
		Payload:       payload,
		KafkaTopic:    topicForEvent(event.EventType),
		KafkaKey:      event.AggregateID,
	}
	return WriteEntry(ctx, tx, entry)
}

// topicForEvent routes each intake event to its topic. Care-plan requests go
// to their own topic so the worker's consumer group does not have to sift
// the full event stream.
func topicForEvent(t intake.EventType) string {
	switch t {
	case intake.EventCarePlanRequested:
		return redpanda.TopicCarePlanRequests
	case intake.EventScreeningFlagged:
		return redpanda.TopicAuditTrail
	default:
		return redpanda.TopicIntakeEvents
	}
}
