package medication

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	meds      map[string]Medication
	schedules map[string][]DoseSchedule
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		meds:      make(map[string]Medication),
		schedules: make(map[string][]DoseSchedule),
	}
}

func (r *fakeRepo) Create(ctx context.Context, m Medication, schedules []DoseSchedule) error {
	r.meds[m.ID] = m
	r.schedules[m.ID] = schedules
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, id string) (Medication, error) {
	m, ok := r.meds[id]
	if !ok {
		return Medication{}, errs.ErrNotFound
	}
	return m, nil
}

func (r *fakeRepo) ListByPatient(ctx context.Context, patientID string, activeOnly bool) ([]Medication, error) {
	var out []Medication
	for _, m := range r.meds {
		if m.PatientID != patientID {
			continue
		}
		if activeOnly && !m.IsActive {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *fakeRepo) ListActive(ctx context.Context) ([]Medication, error) {
	var out []Medication
	for _, m := range r.meds {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeRepo) SchedulesFor(ctx context.Context, medicationID string) ([]DoseSchedule, error) {
	return r.schedules[medicationID], nil
}

func (r *fakeRepo) Deactivate(ctx context.Context, id string) error {
	m, ok := r.meds[id]
	if !ok {
		return errs.ErrNotFound
	}
	m.IsActive = false
	r.meds[id] = m
	return nil
}

func (r *fakeRepo) CountActiveByPatient(ctx context.Context, patientID string) (int, error) {
	n := 0
	for _, m := range r.meds {
		if m.PatientID == patientID && m.IsActive {
			n++
		}
	}
	return n, nil
}

func validInput() PrescribeInput {
	return PrescribeInput{
		PatientID: "patient-1",
		Name:      "Lisinopril",
		Dosage:    "10mg",
		Form:      FormTablet,
		Frequency: "once daily",
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPrescribeValidation(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*PrescribeInput)
		field  string
	}{
		{"missing patient", func(in *PrescribeInput) { in.PatientID = "" }, "patient_id"},
		{"missing name", func(in *PrescribeInput) { in.Name = "" }, "name"},
		{"missing dosage", func(in *PrescribeInput) { in.Dosage = "" }, "dosage"},
		{"bad form", func(in *PrescribeInput) { in.Form = "pill" }, "form"},
		{"missing frequency", func(in *PrescribeInput) { in.Frequency = "" }, "frequency"},
		{"missing start", func(in *PrescribeInput) { in.StartDate = time.Time{} }, "start_date"},
		{"end before start", func(in *PrescribeInput) {
			end := in.StartDate.AddDate(0, 0, -1)
			in.EndDate = &end
		}, "end_date"},
	}

	for _, tt := range tests {
		in := validInput()
		tt.mutate(&in)
		_, err := svc.Prescribe(ctx, in)
		var verr *errs.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: expected validation error, got %v", tt.name, err)
			continue
		}
		if verr.Field != tt.field {
			t.Errorf("%s: field = %s, want %s", tt.name, verr.Field, tt.field)
		}
	}
}

func TestPrescribeDerivesSchedulesFromFrequency(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	in := validInput()
	in.Frequency = "twice daily"
	out, err := svc.Prescribe(context.Background(), in)
	if err != nil {
		t.Fatalf("prescribe failed: %v", err)
	}

	if len(out.Schedules) != 2 {
		t.Fatalf("expected 2 derived schedules, got %d", len(out.Schedules))
	}
	for _, sch := range out.Schedules {
		if sch.Days != AllDays {
			t.Errorf("derived schedule days = %v, want all days", sch.Days)
		}
		if !sch.IsActive {
			t.Error("derived schedule should be active")
		}
	}
	if out.Schedules[0].TimeOfDay != "08:00" || out.Schedules[1].TimeOfDay != "20:00" {
		t.Errorf("derived times = %s, %s", out.Schedules[0].TimeOfDay, out.Schedules[1].TimeOfDay)
	}
}

func TestPrescribeExplicitSchedules(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)

	in := validInput()
	in.Schedules = []ScheduleInput{{TimeOfDay: "9:15", Days: 0}}
	out, err := svc.Prescribe(context.Background(), in)
	if err != nil {
		t.Fatalf("prescribe failed: %v", err)
	}
	if out.Schedules[0].TimeOfDay != "09:15" {
		t.Errorf("time normalized to %s, want 09:15", out.Schedules[0].TimeOfDay)
	}
	if out.Schedules[0].Days != AllDays {
		t.Error("zero day mask should default to all days")
	}

	in.Schedules = []ScheduleInput{{TimeOfDay: "25:00"}}
	if _, err := svc.Prescribe(context.Background(), in); err == nil {
		t.Error("expected error for malformed schedule time")
	}
}

func TestDeactivateMissing(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil)
	if err := svc.Deactivate(context.Background(), "nope"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDueIncludesOverdueWithoutDuplicating(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	// Wednesday noon
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	in := validInput()
	in.Frequency = "twice daily" // 08:00, 20:00
	out, err := svc.Prescribe(context.Background(), in)
	if err != nil {
		t.Fatalf("prescribe failed: %v", err)
	}
	_ = out

	due, err := svc.Due(context.Background(), "patient-1", 24)
	if err != nil {
		t.Fatalf("due failed: %v", err)
	}

	// Expect today 08:00 overdue, today 20:00, tomorrow 08:00. The
	// elapsed 08:00 dose must not also appear for tomorrow twice.
	if len(due) != 3 {
		t.Fatalf("expected 3 due doses, got %d: %+v", len(due), due)
	}

	first := due[0]
	if !first.IsOverdue {
		t.Error("earliest dose should be overdue")
	}
	if got := first.ScheduledAt; got.Hour() != 8 || got.Day() != 12 {
		t.Errorf("overdue dose at %v, want today 08:00", got)
	}
	if due[1].IsOverdue || due[2].IsOverdue {
		t.Error("future doses must not be overdue")
	}
	if !due[1].ScheduledAt.Before(due[2].ScheduledAt) {
		t.Error("due doses must be sorted ascending")
	}
}

func TestDueRespectsDayMask(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	// Wednesday morning
	now := time.Date(2025, 3, 12, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	in := validInput()
	in.Schedules = []ScheduleInput{{
		TimeOfDay: "08:00",
		Days:      DayMask(0).With(time.Thursday),
	}}
	if _, err := svc.Prescribe(context.Background(), in); err != nil {
		t.Fatalf("prescribe failed: %v", err)
	}

	due, err := svc.Due(context.Background(), "patient-1", 48)
	if err != nil {
		t.Fatalf("due failed: %v", err)
	}
	for _, d := range due {
		if d.ScheduledAt.Weekday() != time.Thursday {
			t.Errorf("dose on %s, schedule only permits Thursday", d.ScheduledAt.Weekday())
		}
	}
	if len(due) == 0 {
		t.Error("expected Thursday dose inside 48h window")
	}
}

func TestDueRespectsEndDate(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)

	now := time.Date(2025, 3, 12, 6, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	in := validInput()
	end := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC)
	in.EndDate = &end
	if _, err := svc.Prescribe(context.Background(), in); err != nil {
		t.Fatalf("prescribe failed: %v", err)
	}

	due, err := svc.Due(context.Background(), "patient-1", 72)
	if err != nil {
		t.Fatalf("due failed: %v", err)
	}
	for _, d := range due {
		if d.ScheduledAt.Day() != 12 {
			t.Errorf("dose at %v past the end date", d.ScheduledAt)
		}
	}
}
