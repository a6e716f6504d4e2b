package intake

import (
	"context"
	"testing"
	"time"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
	"github.com/caretrack/go-caretrack/internal/domain/medication"
)

// fakeLedger is an in-memory Repository that dedups on the generation
// key the way the Postgres implementation does.
type fakeLedger struct {
	events map[string]Event
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{events: make(map[string]Event)}
}

func dedupKey(e Event) string {
	sched := ""
	if e.ScheduleID != nil {
		sched = *e.ScheduleID
	}
	return e.MedicationID + "|" + sched + "|" + e.ScheduledTime.UTC().Format(time.RFC3339)
}

func (r *fakeLedger) InsertPending(ctx context.Context, events []Event) (int, error) {
	inserted := 0
	for _, e := range events {
		k := dedupKey(e)
		if _, exists := r.events[k]; exists {
			continue
		}
		r.events[k] = e
		inserted++
	}
	return inserted, nil
}

func (r *fakeLedger) GetByID(ctx context.Context, id string) (Event, error) {
	for _, e := range r.events {
		if e.ID == id {
			return e, nil
		}
	}
	return Event{}, errs.ErrNotFound
}

func (r *fakeLedger) Create(ctx context.Context, e Event) error {
	r.events[dedupKey(e)] = e
	return nil
}

func (r *fakeLedger) Update(ctx context.Context, e Event) error {
	for k, existing := range r.events {
		if existing.ID == e.ID {
			r.events[k] = e
			return nil
		}
	}
	return errs.ErrNotFound
}

func (r *fakeLedger) Delete(ctx context.Context, id string) error {
	for k, e := range r.events {
		if e.ID == id {
			delete(r.events, k)
			return nil
		}
	}
	return errs.ErrNotFound
}

func (r *fakeLedger) List(ctx context.Context, f Filter, page, limit int) ([]Event, int, error) {
	var out []Event
	for _, e := range r.events {
		if f.PatientID != "" && e.PatientID != f.PatientID {
			continue
		}
		if f.MedicationID != "" && e.MedicationID != f.MedicationID {
			continue
		}
		if f.Status != "" && e.Status != f.Status {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

func (r *fakeLedger) CountByStatus(ctx context.Context, patientID, medicationID string, from, to time.Time) ([]StatusCount, error) {
	counts := make(map[string]map[Status]int)
	for _, e := range r.events {
		if e.PatientID != patientID {
			continue
		}
		if medicationID != "" && e.MedicationID != medicationID {
			continue
		}
		if e.ScheduledTime.Before(from) || e.ScheduledTime.After(to) {
			continue
		}
		if counts[e.MedicationID] == nil {
			counts[e.MedicationID] = make(map[Status]int)
		}
		counts[e.MedicationID][e.Status]++
	}
	var out []StatusCount
	for med, byStatus := range counts {
		for st, n := range byStatus {
			out = append(out, StatusCount{MedicationID: med, Status: st, Count: n})
		}
	}
	return out, nil
}

func (r *fakeLedger) PendingWindow(ctx context.Context, patientID string, from, to time.Time) ([]DueEvent, error) {
	var out []DueEvent
	for _, e := range r.events {
		if e.PatientID != patientID || e.Status != StatusPending {
			continue
		}
		if e.ScheduledTime.Before(from) || e.ScheduledTime.After(to) {
			continue
		}
		out = append(out, DueEvent{Event: e})
	}
	return out, nil
}

func (r *fakeLedger) PendingWindowAll(ctx context.Context, from, to time.Time) ([]DueEvent, error) {
	var out []DueEvent
	for _, e := range r.events {
		if e.Status != StatusPending {
			continue
		}
		if e.ScheduledTime.Before(from) || e.ScheduledTime.After(to) {
			continue
		}
		out = append(out, DueEvent{Event: e})
	}
	return out, nil
}

func testMedication() medication.Medication {
	return medication.Medication{
		ID:        "med-1",
		PatientID: "patient-1",
		Name:      "Metformin",
		Dosage:    "500mg",
		Form:      medication.FormTablet,
		Frequency: "twice daily",
		StartDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		IsActive:  true,
	}
}

func dailySchedule(id, tod string) medication.DoseSchedule {
	return medication.DoseSchedule{
		ID:           id,
		MedicationID: "med-1",
		TimeOfDay:    medication.TimeOfDay(tod),
		Days:         medication.AllDays,
		IsActive:     true,
	}
}

func TestGenerateForMedication(t *testing.T) {
	repo := newFakeLedger()
	g := NewGenerator(repo, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC) }

	schedules := []medication.DoseSchedule{
		dailySchedule("sch-1", "08:00"),
		dailySchedule("sch-2", "20:00"),
	}

	inserted, err := g.GenerateForMedication(context.Background(), testMedication(), schedules, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	// Window runs from start of March 10 to March 17 10:00. That is
	// both slots on March 10 through 16, plus only 08:00 on the 17th.
	if inserted != 15 {
		t.Errorf("inserted = %d, want 15", inserted)
	}

	for _, e := range repo.events {
		if e.Status != StatusPending {
			t.Errorf("generated event status = %s, want pending", e.Status)
		}
		if e.PatientID != "patient-1" {
			t.Errorf("event patient = %s", e.PatientID)
		}
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	repo := newFakeLedger()
	g := NewGenerator(repo, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC) }

	schedules := []medication.DoseSchedule{dailySchedule("sch-1", "08:00")}

	first, err := g.GenerateForMedication(context.Background(), testMedication(), schedules, 3*24*time.Hour)
	if err != nil {
		t.Fatalf("first generate failed: %v", err)
	}
	if first == 0 {
		t.Fatal("first run inserted nothing")
	}

	second, err := g.GenerateForMedication(context.Background(), testMedication(), schedules, 3*24*time.Hour)
	if err != nil {
		t.Fatalf("second generate failed: %v", err)
	}
	if second != 0 {
		t.Errorf("second run inserted %d events, want 0", second)
	}
	if len(repo.events) != first {
		t.Errorf("ledger has %d events after rerun, want %d", len(repo.events), first)
	}
}

func TestGenerateSkipsInactiveSchedules(t *testing.T) {
	repo := newFakeLedger()
	g := NewGenerator(repo, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC) }

	sch := dailySchedule("sch-1", "08:00")
	sch.IsActive = false

	inserted, err := g.GenerateForMedication(context.Background(), testMedication(), []medication.DoseSchedule{sch}, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("inserted = %d for inactive schedule, want 0", inserted)
	}
}

func TestGenerateFallsBackToFrequency(t *testing.T) {
	repo := newFakeLedger()
	g := NewGenerator(repo, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC) }

	inserted, err := g.GenerateForMedication(context.Background(), testMedication(), nil, 24*time.Hour)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	// "twice daily" derives 08:00 and 20:00. The 24h window ends at
	// 05:00 next day, so only today's two slots qualify.
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2 derived slots", inserted)
	}
}

func TestGenerateClampsToEndDate(t *testing.T) {
	repo := newFakeLedger()
	g := NewGenerator(repo, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 10, 5, 0, 0, 0, time.UTC) }

	med := testMedication()
	end := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	med.EndDate = &end

	if _, err := g.GenerateForMedication(context.Background(), med, []medication.DoseSchedule{dailySchedule("sch-1", "08:00")}, 7*24*time.Hour); err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	for _, e := range repo.events {
		if e.ScheduledTime.After(time.Date(2025, 3, 11, 23, 59, 59, 0, time.UTC)) {
			t.Errorf("event at %v past the end date", e.ScheduledTime)
		}
	}
	if len(repo.events) != 2 {
		t.Errorf("got %d events, want 2 (March 10 and 11)", len(repo.events))
	}
}
