package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/carebridge/intake-engine/internal/screening"
)

type fakeScreener struct {
	patientWarnings []screening.Warning
	orderWarnings   []screening.Warning
	err             error
}

func (f *fakeScreener) FindSimilarPatients(_ context.Context, _ screening.Candidate) ([]screening.Warning, error) {
	return f.patientWarnings, f.err
}

func (f *fakeScreener) FindDuplicateOrders(_ context.Context, _, _ string) ([]screening.Warning, error) {
	return f.orderWarnings, f.err
}

type fakeStore struct {
	patients []*Patient
	orders   []*Order
	events   []*Event
	err      error
}

func (f *fakeStore) CreatePatient(_ context.Context, p *Patient, events []*Event) error {
	if f.err != nil {
		return f.err
	}
	f.patients = append(f.patients, p)
	f.events = append(f.events, events...)
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o *Order, events []*Event) error {
	if f.err != nil {
		return f.err
	}
	f.orders = append(f.orders, o)
	f.events = append(f.events, events...)
	return nil
}

func validSubmission() PatientSubmission {
	return PatientSubmission{
		FirstName:  "John",
		LastName:   "Smith",
		Identifier: "123456",
		Notes:      "Recurrent infections, consider IVIG.",
	}
}

func TestRegisterPatientClean(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(&fakeScreener{}, store, nil)

	patient, warnings, err := svc.RegisterPatient(context.Background(), validSubmission())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("got %d warnings, want 0", len(warnings))
	}
	if len(store.patients) != 1 || store.patients[0].ID != patient.ID {
		t.Fatalf("patient not persisted")
	}

	// Notes present: a registration and a care-plan request event.
	types := eventTypes(store.events)
	if len(types) != 2 || types[0] != EventPatientRegistered || types[1] != EventCarePlanRequested {
		t.Errorf("event types = %v", types)
	}
}

func TestRegisterPatientBlockedOnDuplicate(t *testing.T) {
	store := &fakeStore{}
	screener := &fakeScreener{
		patientWarnings: []screening.Warning{{
			Type: screening.WarningDuplicatePatient, Severity: screening.SeverityHigh,
		}},
	}
	svc := NewService(screener, store, nil)

	_, warnings, err := svc.RegisterPatient(context.Background(), validSubmission())
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("blocked response should still carry the warnings, got %d", len(warnings))
	}
	if len(store.patients) != 0 {
		t.Errorf("blocked submission must not be persisted")
	}
}

func TestRegisterPatientForcedRecordsWarnings(t *testing.T) {
	store := &fakeStore{}
	screener := &fakeScreener{
		patientWarnings: []screening.Warning{{
			Type: screening.WarningDuplicatePatient, Severity: screening.SeverityHigh,
		}},
	}
	svc := NewService(screener, store, nil)

	sub := validSubmission()
	sub.Force = true
	_, warnings, err := svc.RegisterPatient(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Errorf("forced submission should return its warnings")
	}

	types := eventTypes(store.events)
	if !containsType(types, EventScreeningFlagged) {
		t.Errorf("forced acceptance must record a ScreeningFlagged event, got %v", types)
	}
}

func TestRegisterPatientSimilarIsAdvisory(t *testing.T) {
	store := &fakeStore{}
	screener := &fakeScreener{
		patientWarnings: []screening.Warning{{
			Type: screening.WarningSimilarPatient, Severity: screening.SeverityMedium, Score: 0.88,
		}},
	}
	svc := NewService(screener, store, nil)

	patient, warnings, err := svc.RegisterPatient(context.Background(), validSubmission())
	if err != nil {
		t.Fatalf("similar-patient warnings should not block: %v", err)
	}
	if patient == nil || len(store.patients) != 1 {
		t.Fatalf("patient not persisted")
	}
	if len(warnings) != 1 {
		t.Errorf("warnings should pass through to the caller")
	}
}

func TestRegisterPatientScreeningFailure(t *testing.T) {
	storeErr := errors.New("store down")
	svc := NewService(&fakeScreener{err: storeErr}, &fakeStore{}, nil)

	_, _, err := svc.RegisterPatient(context.Background(), validSubmission())
	if !errors.Is(err, storeErr) {
		t.Fatalf("screening failure must propagate, got %v", err)
	}
}

func TestRegisterPatientValidation(t *testing.T) {
	svc := NewService(&fakeScreener{}, &fakeStore{}, nil)

	bad := []PatientSubmission{
		{LastName: "Smith", Identifier: "123456"},
		{FirstName: "John", Identifier: "123456"},
		{FirstName: "John", LastName: "Smith", Identifier: "12345"},
		{FirstName: "John", LastName: "Smith", Identifier: "1234567"},
	}
	for i, sub := range bad {
		if _, _, err := svc.RegisterPatient(context.Background(), sub); err == nil {
			t.Errorf("case %d: expected validation error", i)
		}
	}
}

func TestPlaceOrderBlockedInWindow(t *testing.T) {
	store := &fakeStore{}
	screener := &fakeScreener{
		orderWarnings: []screening.Warning{{
			Type: screening.WarningDuplicateOrder, Severity: screening.SeverityHigh, OrderID: "o1",
		}},
	}
	svc := NewService(screener, store, nil)

	_, warnings, err := svc.PlaceOrder(context.Background(), OrderSubmission{
		PatientID: "p1", MedicationName: "IVIG",
	})
	if !errors.Is(err, ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if len(warnings) != 1 || len(store.orders) != 0 {
		t.Errorf("blocked order must return warnings and persist nothing")
	}
}

func TestPlaceOrderClean(t *testing.T) {
	store := &fakeStore{}
	svc := NewService(&fakeScreener{}, store, nil)

	order, warnings, err := svc.PlaceOrder(context.Background(), OrderSubmission{
		PatientID: "p1", MedicationName: " IVIG ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("got %d warnings, want 0", len(warnings))
	}
	if order.MedicationName != "IVIG" {
		t.Errorf("medication name should be trimmed, got %q", order.MedicationName)
	}
	if len(store.orders) != 1 {
		t.Fatalf("order not persisted")
	}
	types := eventTypes(store.events)
	if len(types) != 1 || types[0] != EventOrderCreated {
		t.Errorf("event types = %v", types)
	}
}

func eventTypes(events []*Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func containsType(types []EventType, t EventType) bool {
	for _, et := range types {
		if et == t {
			return true
		}
	}
	return false
}
