// Package intake implements the patient intake orchestrator and its domain
// events. Submissions are screened for duplicates before anything is
// persisted; accepted submissions produce events that flow out through the
// transactional outbox.
package intake

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/intake-engine/internal/screening"
)

// EventType represents the type of intake domain event
type EventType string

const (
	EventPatientRegistered EventType = "PatientRegistered"
	EventOrderCreated      EventType = "OrderCreated"
	EventScreeningFlagged  EventType = "ScreeningFlagged"
	EventCarePlanRequested EventType = "CarePlanRequested"
)

// Event represents a domain event
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Timestamp     time.Time       `json:"timestamp"`
	RecordHash    string          `json:"record_hash,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewEvent creates a new event
func NewEvent(aggregateID, aggregateType string, eventType EventType, data interface{}) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// WithAuditInfo sets the audit fields. The record hash lets downstream
// consumers correlate events per patient without carrying the identifier.
func (e *Event) WithAuditInfo(identifier, correlationID string) *Event {
	e.RecordHash = HashIdentifier(identifier)
	e.CorrelationID = correlationID
	return e
}

// HashIdentifier returns a stable hash of a record identifier for audit use.
func HashIdentifier(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])
}

// PatientRegisteredData contains patient registration details
type PatientRegisteredData struct {
	PatientID  string    `json:"patient_id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Identifier string    `json:"identifier"`
	CreatedAt  time.Time `json:"created_at"`
}

// OrderCreatedData contains order creation details
type OrderCreatedData struct {
	OrderID        string    `json:"order_id"`
	PatientID      string    `json:"patient_id"`
	MedicationName string    `json:"medication_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// ScreeningFlaggedData records the warnings a submission was accepted with
type ScreeningFlaggedData struct {
	SubmissionID string              `json:"submission_id"`
	Warnings     []screening.Warning `json:"warnings"`
	Forced       bool                `json:"forced"`
}

// CarePlanRequestedData asks the care-plan worker to generate a plan
type CarePlanRequestedData struct {
	PatientID      string `json:"patient_id"`
	PatientName    string `json:"patient_name"`
	MedicationName string `json:"medication_name,omitempty"`
	Notes          string `json:"notes"`
}
