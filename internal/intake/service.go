package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/carebridge/intake-engine/internal/screening"
)

// ErrBlocked indicates screening found a hard duplicate and the submission
// was not forced. The warnings returned alongside explain the block; the
// screening core itself never turns a finding into an error, escalation
// happens here.
var ErrBlocked = errors.New("submission blocked by duplicate warnings")

// Patient is a persisted patient record.
type Patient struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Identifier string    `json:"identifier"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Order is a persisted medication order.
type Order struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patient_id"`
	MedicationName string    `json:"medication_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// PatientSubmission is an incoming patient intake form.
type PatientSubmission struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Identifier     string `json:"identifier"`
	MedicationName string `json:"medication_name,omitempty"`
	Notes          string `json:"notes,omitempty"`
	// Force accepts the submission despite duplicate warnings. The warnings
	// are still recorded in a ScreeningFlagged event for audit.
	Force bool `json:"force,omitempty"`
}

// OrderSubmission is an incoming order form.
type OrderSubmission struct {
	PatientID      string `json:"patient_id"`
	MedicationName string `json:"medication_name"`
	Force          bool   `json:"force,omitempty"`
}

// Screener is the duplicate-detection dependency.
type Screener interface {
	FindSimilarPatients(ctx context.Context, candidate screening.Candidate) ([]screening.Warning, error)
	FindDuplicateOrders(ctx context.Context, patientID, medicationName string) ([]screening.Warning, error)
}

// Store persists accepted submissions together with their outbox events in
// one transaction.
type Store interface {
	CreatePatient(ctx context.Context, patient *Patient, events []*Event) error
	CreateOrder(ctx context.Context, order *Order, events []*Event) error
}

// Service orchestrates intake: screen, then persist, then let the outbox
// publish. It does not provide cross-request atomicity; two concurrent
// submissions can both pass screening, which is the write path's concern.
type Service struct {
	screener Screener
	store    Store
	logger   *zap.Logger
}

// NewService creates an intake service.
func NewService(screener Screener, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{screener: screener, store: store, logger: logger}
}

// ScreenPatient runs duplicate detection without persisting anything.
func (s *Service) ScreenPatient(ctx context.Context, sub PatientSubmission) ([]screening.Warning, error) {
	if err := validatePatient(sub); err != nil {
		return nil, err
	}
	return s.screener.FindSimilarPatients(ctx, candidateFrom(sub))
}

// RegisterPatient screens the submission and persists it when accepted.
// A DUPLICATE_PATIENT warning blocks unless the submission is forced; all
// other warnings are advisory and returned to the caller alongside the
// created record.
func (s *Service) RegisterPatient(ctx context.Context, sub PatientSubmission) (*Patient, []screening.Warning, error) {
	if err := validatePatient(sub); err != nil {
		return nil, nil, err
	}

	warnings, err := s.screener.FindSimilarPatients(ctx, candidateFrom(sub))
	if err != nil {
		return nil, nil, fmt.Errorf("patient screening: %w", err)
	}

	if !sub.Force && hasType(warnings, screening.WarningDuplicatePatient) {
		return nil, warnings, ErrBlocked
	}

	patient := &Patient{
		ID:         uuid.New().String(),
		FirstName:  strings.TrimSpace(sub.FirstName),
		LastName:   strings.TrimSpace(sub.LastName),
		Identifier: strings.TrimSpace(sub.Identifier),
		Notes:      sub.Notes,
		CreatedAt:  time.Now().UTC(),
	}

	events, err := s.patientEvents(patient, sub, warnings)
	if err != nil {
		return nil, nil, err
	}

	if err := s.store.CreatePatient(ctx, patient, events); err != nil {
		return nil, nil, fmt.Errorf("persist patient: %w", err)
	}

	s.logger.Info("patient registered",
		zap.String("patient_id", patient.ID),
		zap.Int("warnings", len(warnings)),
		zap.Bool("forced", sub.Force))

	return patient, warnings, nil
}

// PlaceOrder checks the order window and persists the order when accepted.
// Any DUPLICATE_ORDER warning blocks unless forced.
func (s *Service) PlaceOrder(ctx context.Context, sub OrderSubmission) (*Order, []screening.Warning, error) {
	if sub.PatientID == "" || strings.TrimSpace(sub.MedicationName) == "" {
		return nil, nil, errors.New("patient_id and medication_name are required")
	}

	warnings, err := s.screener.FindDuplicateOrders(ctx, sub.PatientID, sub.MedicationName)
	if err != nil {
		return nil, nil, fmt.Errorf("order screening: %w", err)
	}

	if !sub.Force && len(warnings) > 0 {
		return nil, warnings, ErrBlocked
	}

	order := &Order{
		ID:             uuid.New().String(),
		PatientID:      sub.PatientID,
		MedicationName: strings.TrimSpace(sub.MedicationName),
		CreatedAt:      time.Now().UTC(),
	}

	event, err := NewEvent(order.ID, "Order", EventOrderCreated, &OrderCreatedData{
		OrderID:        order.ID,
		PatientID:      order.PatientID,
		MedicationName: order.MedicationName,
		CreatedAt:      order.CreatedAt,
	})
	if err != nil {
		return nil, nil, err
	}

	events := []*Event{event}
	if len(warnings) > 0 {
		flagged, err := NewEvent(order.ID, "Order", EventScreeningFlagged, &ScreeningFlaggedData{
			SubmissionID: order.ID,
			Warnings:     warnings,
			Forced:       sub.Force,
		})
		if err != nil {
			return nil, nil, err
		}
		events = append(events, flagged)
	}

	if err := s.store.CreateOrder(ctx, order, events); err != nil {
		return nil, nil, fmt.Errorf("persist order: %w", err)
	}

	s.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("patient_id", order.PatientID),
		zap.Int("warnings", len(warnings)))

	return order, warnings, nil
}

func (s *Service) patientEvents(patient *Patient, sub PatientSubmission, warnings []screening.Warning) ([]*Event, error) {
	registered, err := NewEvent(patient.ID, "Patient", EventPatientRegistered, &PatientRegisteredData{
		PatientID:  patient.ID,
		FirstName:  patient.FirstName,
		LastName:   patient.LastName,
		Identifier: patient.Identifier,
		CreatedAt:  patient.CreatedAt,
	})
	if err != nil {
		return nil, err
	}
	registered.WithAuditInfo(patient.Identifier, "")

	events := []*Event{registered}

	if len(warnings) > 0 {
		flagged, err := NewEvent(patient.ID, "Patient", EventScreeningFlagged, &ScreeningFlaggedData{
			SubmissionID: patient.ID,
			Warnings:     warnings,
			Forced:       sub.Force,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, flagged.WithAuditInfo(patient.Identifier, ""))
	}

	if strings.TrimSpace(patient.Notes) != "" {
		requested, err := NewEvent(patient.ID, "Patient", EventCarePlanRequested, &CarePlanRequestedData{
			PatientID:      patient.ID,
			PatientName:    patient.FirstName + " " + patient.LastName,
			MedicationName: sub.MedicationName,
			Notes:          patient.Notes,
		})
		if err != nil {
			return nil, err
		}
		events = append(events, requested.WithAuditInfo(patient.Identifier, ""))
	}

	return events, nil
}

func candidateFrom(sub PatientSubmission) screening.Candidate {
	return screening.Candidate{
		FirstName:      strings.TrimSpace(sub.FirstName),
		LastName:       strings.TrimSpace(sub.LastName),
		Identifier:     strings.TrimSpace(sub.Identifier),
		MedicationName: sub.MedicationName,
	}
}

func validatePatient(sub PatientSubmission) error {
	if strings.TrimSpace(sub.FirstName) == "" || strings.TrimSpace(sub.LastName) == "" {
		return errors.New("first_name and last_name are required")
	}
	if len(strings.TrimSpace(sub.Identifier)) != 6 {
		return errors.New("identifier must be a 6-character record number")
	}
	return nil
}

func hasType(warnings []screening.Warning, t screening.WarningType) bool {
	for _, w := range warnings {
		if w.Type == t {
			return true
		}
	}
	return false
}
