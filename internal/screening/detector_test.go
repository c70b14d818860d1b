package screening

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeRecordSource struct {
	records     []Record
	medications map[string][]string
	err         error
	medErr      error
}

func (f *fakeRecordSource) RecentRecords(_ context.Context, limit int) ([]Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeRecordSource) MedicationsForRecord(_ context.Context, recordID string) ([]string, error) {
	if f.medErr != nil {
		return nil, f.medErr
	}
	return f.medications[recordID], nil
}

type fakeOrderSource struct {
	orders []Order
	err    error
}

func (f *fakeOrderSource) OrdersSince(_ context.Context, patientID, medicationName string, since time.Time) ([]Order, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Order
	for _, o := range f.orders {
		if o.PatientID != patientID {
			continue
		}
		if strings.ToLower(strings.TrimSpace(o.MedicationName)) != medicationName {
			continue
		}
		if o.CreatedAt.Before(since) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func newTestDetector(cfg Config, records *fakeRecordSource, orders *fakeOrderSource) *Detector {
	return NewDetector(cfg, records, orders, nil)
}

func TestExactIdentifierShortCircuit(t *testing.T) {
	records := &fakeRecordSource{
		records: []Record{
			{ID: "p1", FirstName: "Maria", LastName: "Gonzalez", Identifier: "123456"},
		},
	}
	d := newTestDetector(DefaultConfig(), records, &fakeOrderSource{})

	// Completely different name, identical identifier: exactly one
	// DUPLICATE_PATIENT, never a SIMILAR_PATIENT for the same pair.
	warnings, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "Robert", LastName: "Chen", Identifier: "123456",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	w := warnings[0]
	if w.Type != WarningDuplicatePatient {
		t.Errorf("warning type = %s, want %s", w.Type, WarningDuplicatePatient)
	}
	if w.Severity != SeverityHigh {
		t.Errorf("severity = %s, want %s", w.Severity, SeverityHigh)
	}
	if w.RecordID != "p1" || w.Identifier != "123456" {
		t.Errorf("warning carries record %q identifier %q", w.RecordID, w.Identifier)
	}
	if w.PatientName != "Maria Gonzalez" {
		t.Errorf("patient name = %q", w.PatientName)
	}
}

func TestSimilarPatientSameName(t *testing.T) {
	// Scenario: same first and last name, fully different identifier.
	records := &fakeRecordSource{
		records: []Record{
			{ID: "p1", FirstName: "John", LastName: "Smith", Identifier: "123456"},
		},
	}
	d := newTestDetector(DefaultConfig(), records, &fakeOrderSource{})

	warnings, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "John", LastName: "Smith", Identifier: "654321",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	w := warnings[0]
	if w.Type != WarningSimilarPatient {
		t.Errorf("warning type = %s, want %s", w.Type, WarningSimilarPatient)
	}
	if w.Severity != SeverityMedium {
		t.Errorf("severity = %s, want %s", w.Severity, SeverityMedium)
	}
	if w.Score <= 0.7 || w.Score >= 1.0 {
		t.Errorf("score = %v, want in (0.7, 1.0)", w.Score)
	}
	if !strings.Contains(w.Message, "%") {
		t.Errorf("message should carry the rounded percentage: %q", w.Message)
	}
}

func TestSimilarPatientTypo(t *testing.T) {
	// Scenario: first-name typo plus near-identical identifier.
	records := &fakeRecordSource{
		records: []Record{
			{ID: "p1", FirstName: "John", LastName: "Smith", Identifier: "123456"},
		},
	}
	d := newTestDetector(DefaultConfig(), records, &fakeOrderSource{})

	warnings, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "Jon", LastName: "Smith", Identifier: "123457",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	if warnings[0].Type != WarningSimilarPatient {
		t.Errorf("warning type = %s, want %s", warnings[0].Type, WarningSimilarPatient)
	}
	if warnings[0].Score <= 0.7 || warnings[0].Score >= 1.0 {
		t.Errorf("score = %v, want in (0.7, 1.0)", warnings[0].Score)
	}
}

func TestDissimilarPatientNoWarnings(t *testing.T) {
	records := &fakeRecordSource{
		records: []Record{
			{ID: "p1", FirstName: "John", LastName: "Smith", Identifier: "123456"},
		},
	}
	d := newTestDetector(DefaultConfig(), records, &fakeOrderSource{})

	warnings, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "Jane", LastName: "Doe", Identifier: "654321",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("got %d warnings, want 0: %+v", len(warnings), warnings)
	}
}

func TestThresholdBoundaryInclusive(t *testing.T) {
	// Identical names with zero-overlap identifiers score exactly
	// FirstNameWeight + LastNameWeight = 0.8 under the defaults.
	records := &fakeRecordSource{
		records: []Record{
			{ID: "p1", FirstName: "Ann", LastName: "Lee", Identifier: "qqqqqq"},
		},
	}
	candidate := Candidate{FirstName: "Ann", LastName: "Lee", Identifier: "zzzzzz"}

	atThreshold := DefaultConfig()
	atThreshold.SimilarityThreshold = atThreshold.FirstNameWeight + atThreshold.LastNameWeight
	warnings, err := newTestDetector(atThreshold, records, &fakeOrderSource{}).
		FindSimilarPatients(context.Background(), candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("score at threshold: got %d warnings, want 1", len(warnings))
	}

	aboveScore := DefaultConfig()
	aboveScore.SimilarityThreshold = aboveScore.FirstNameWeight + aboveScore.LastNameWeight + 1e-9
	warnings, err = newTestDetector(aboveScore, records, &fakeOrderSource{}).
		FindSimilarPatients(context.Background(), candidate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("score below threshold: got %d warnings, want 0", len(warnings))
	}
}

func TestWarningsPreserveStoreOrder(t *testing.T) {
	records := &fakeRecordSource{
		records: []Record{
			{ID: "newest", FirstName: "John", LastName: "Smith", Identifier: "111111"},
			{ID: "middle", FirstName: "John", LastName: "Smith", Identifier: "222222"},
			{ID: "oldest", FirstName: "John", LastName: "Smith", Identifier: "333333"},
		},
	}
	d := newTestDetector(DefaultConfig(), records, &fakeOrderSource{})

	warnings, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "John", LastName: "Smith", Identifier: "999999",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 3 {
		t.Fatalf("got %d warnings, want one per similar record", len(warnings))
	}
	for i, want := range []string{"newest", "middle", "oldest"} {
		if warnings[i].RecordID != want {
			t.Errorf("warnings[%d].RecordID = %q, want %q", i, warnings[i].RecordID, want)
		}
	}
}

func TestCandidateSetBounded(t *testing.T) {
	var all []Record
	for i := 0; i < 150; i++ {
		all = append(all, Record{
			ID: "p", FirstName: "John", LastName: "Smith", Identifier: "abydef",
		})
	}
	records := &fakeRecordSource{records: all}

	cfg := DefaultConfig()
	d := newTestDetector(cfg, records, &fakeOrderSource{})

	warnings, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "John", LastName: "Smith", Identifier: "999999",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != cfg.MaxRecordsToCheck {
		t.Errorf("got %d warnings, want the %d-record cap applied", len(warnings), cfg.MaxRecordsToCheck)
	}
}

func TestSameMedicationAnnotation(t *testing.T) {
	records := &fakeRecordSource{
		records: []Record{
			{ID: "p1", FirstName: "John", LastName: "Smith", Identifier: "123456"},
		},
		medications: map[string][]string{
			"p1": {"Metformin", " IVIG "},
		},
	}
	d := newTestDetector(DefaultConfig(), records, &fakeOrderSource{})

	warnings, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "Pat", LastName: "Else", Identifier: "123456", MedicationName: "ivig",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 || !warnings[0].HasSameMedication {
		t.Fatalf("expected duplicate warning annotated with same medication, got %+v", warnings)
	}

	warnings, err = d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "Pat", LastName: "Else", Identifier: "123456", MedicationName: "Rituximab",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 || warnings[0].HasSameMedication {
		t.Fatalf("expected duplicate warning without medication annotation, got %+v", warnings)
	}
}

func TestRecordFetchFailurePropagates(t *testing.T) {
	storeErr := errors.New("connection refused")
	records := &fakeRecordSource{err: storeErr}
	d := newTestDetector(DefaultConfig(), records, &fakeOrderSource{})

	_, err := d.FindSimilarPatients(context.Background(), Candidate{
		FirstName: "John", LastName: "Smith", Identifier: "123456",
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestDuplicateOrderCaseInsensitive(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	orders := &fakeOrderSource{
		orders: []Order{
			{ID: "o1", PatientID: "p1", MedicationName: "IVIG", CreatedAt: now.Add(-2 * time.Hour)},
		},
	}
	d := newTestDetector(DefaultConfig(), &fakeRecordSource{}, orders)
	d.now = func() time.Time { return now }

	warnings, err := d.FindDuplicateOrders(context.Background(), "p1", "ivig")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	w := warnings[0]
	if w.Type != WarningDuplicateOrder {
		t.Errorf("warning type = %s, want %s", w.Type, WarningDuplicateOrder)
	}
	if w.OrderID != "o1" || w.Medication != "IVIG" {
		t.Errorf("warning carries order %q medication %q", w.OrderID, w.Medication)
	}
	if !strings.Contains(w.Message, "Aug 31, 2026") {
		t.Errorf("message should carry a display date: %q", w.Message)
	}
}

func TestDuplicateOrderWindowBoundary(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	cutoff := now.AddDate(0, 0, -30)
	orders := &fakeOrderSource{
		orders: []Order{
			{ID: "at-cutoff", PatientID: "p1", MedicationName: "IVIG", CreatedAt: cutoff},
			{ID: "just-before", PatientID: "p1", MedicationName: "IVIG", CreatedAt: cutoff.Add(-time.Second)},
		},
	}
	d := newTestDetector(DefaultConfig(), &fakeRecordSource{}, orders)
	d.now = func() time.Time { return now }

	warnings, err := d.FindDuplicateOrders(context.Background(), "p1", "IVIG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1 (boundary inclusive)", len(warnings))
	}
	if warnings[0].OrderID != "at-cutoff" {
		t.Errorf("warning for order %q, want the order at the cutoff", warnings[0].OrderID)
	}
}

func TestDuplicateOrderOutsideWindow(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	orders := &fakeOrderSource{
		orders: []Order{
			{ID: "o1", PatientID: "p1", MedicationName: "IVIG", CreatedAt: now.AddDate(0, 0, -31)},
		},
	}
	d := newTestDetector(DefaultConfig(), &fakeRecordSource{}, orders)
	d.now = func() time.Time { return now }

	warnings, err := d.FindDuplicateOrders(context.Background(), "p1", "IVIG")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("got %d warnings, want 0 for a 31-day-old order", len(warnings))
	}
}

func TestOrderFetchFailurePropagates(t *testing.T) {
	storeErr := errors.New("timeout")
	d := newTestDetector(DefaultConfig(), &fakeRecordSource{}, &fakeOrderSource{err: storeErr})

	_, err := d.FindDuplicateOrders(context.Background(), "p1", "IVIG")
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
