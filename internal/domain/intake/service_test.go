package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

func seedPending(t *testing.T, repo *fakeLedger, id string, scheduled time.Time) {
	t.Helper()
	e := Event{
		ID:            id,
		MedicationID:  "med-1",
		PatientID:     "patient-1",
		ScheduledTime: scheduled,
		Status:        StatusPending,
	}
	if err := repo.Create(context.Background(), e); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
}

func TestRecordRequiresTerminalStatus(t *testing.T) {
	svc := NewService(newFakeLedger(), nil)

	_, err := svc.Record(context.Background(), RecordInput{EventID: "e1", Status: StatusPending})
	if _, ok := errs.AsValidation(err); !ok {
		t.Errorf("expected validation error for pending status, got %v", err)
	}

	_, err = svc.Record(context.Background(), RecordInput{EventID: "e1", Status: "swallowed"})
	if _, ok := errs.AsValidation(err); !ok {
		t.Errorf("expected validation error for unknown status, got %v", err)
	}
}

func TestRecordTaken(t *testing.T) {
	repo := newFakeLedger()
	svc := NewService(repo, nil)
	now := time.Date(2025, 3, 10, 8, 5, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	seedPending(t, repo, "e1", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))

	e, err := svc.Record(context.Background(), RecordInput{
		EventID:    "e1",
		Status:     StatusTaken,
		RecordedBy: "user-1",
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if e.Status != StatusTaken {
		t.Errorf("status = %s, want taken", e.Status)
	}
	if e.TakenAt == nil || !e.TakenAt.Equal(now) {
		t.Errorf("taken_at should default to now, got %v", e.TakenAt)
	}
	if e.RecordedAt == nil {
		t.Error("recorded_at should be set")
	}
}

func TestRecordLastWriteWins(t *testing.T) {
	repo := newFakeLedger()
	svc := NewService(repo, nil)

	seedPending(t, repo, "e1", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))

	if _, err := svc.Record(context.Background(), RecordInput{EventID: "e1", Status: StatusTaken}); err != nil {
		t.Fatalf("first record failed: %v", err)
	}
	e, err := svc.Record(context.Background(), RecordInput{EventID: "e1", Status: StatusSkipped, Notes: "felt nauseous"})
	if err != nil {
		t.Fatalf("re-record failed: %v", err)
	}
	if e.Status != StatusSkipped {
		t.Errorf("status = %s, want skipped after re-record", e.Status)
	}
	if e.Notes != "felt nauseous" {
		t.Errorf("notes = %q", e.Notes)
	}
}

func TestUpdateNeverRegressesToPending(t *testing.T) {
	repo := newFakeLedger()
	svc := NewService(repo, nil)

	seedPending(t, repo, "e1", time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC))
	if _, err := svc.Record(context.Background(), RecordInput{EventID: "e1", Status: StatusTaken}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	pending := StatusPending
	_, err := svc.Update(context.Background(), "e1", UpdateInput{Status: &pending})
	if _, ok := errs.AsValidation(err); !ok {
		t.Errorf("expected validation error reverting to pending, got %v", err)
	}
}

func TestLogDirectValidation(t *testing.T) {
	svc := NewService(newFakeLedger(), nil)
	ctx := context.Background()
	taken := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	valid := LogDirectInput{
		MedicationID: "med-1",
		PatientID:    "patient-1",
		Status:       StatusTaken,
		TakenAt:      taken,
	}

	e, err := svc.LogDirect(ctx, valid)
	if err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if !e.ScheduledTime.Equal(taken) {
		t.Error("direct log should anchor scheduled time to taken time")
	}

	for name, mutate := range map[string]func(*LogDirectInput){
		"missing medication": func(in *LogDirectInput) { in.MedicationID = "" },
		"missing patient":    func(in *LogDirectInput) { in.PatientID = "" },
		"pending status":     func(in *LogDirectInput) { in.Status = StatusPending },
		"zero taken_at":      func(in *LogDirectInput) { in.TakenAt = time.Time{} },
	} {
		in := valid
		mutate(&in)
		if _, err := svc.LogDirect(ctx, in); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestDeleteMissing(t *testing.T) {
	svc := NewService(newFakeLedger(), nil)
	if err := svc.Delete(context.Background(), "nope"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAdherence(t *testing.T) {
	repo := newFakeLedger()
	svc := NewService(repo, nil)
	now := time.Date(2025, 3, 20, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	// 7 taken, 3 missed inside the window
	for i := 0; i < 10; i++ {
		st := StatusTaken
		if i >= 7 {
			st = StatusMissed
		}
		e := Event{
			ID:            "e" + string(rune('a'+i)),
			MedicationID:  "med-1",
			PatientID:     "patient-1",
			ScheduledTime: now.Add(-time.Duration(i+1) * 24 * time.Hour),
			Status:        st,
		}
		if err := repo.Create(context.Background(), e); err != nil {
			t.Fatal(err)
		}
	}

	reports, err := svc.Adherence(context.Background(), "patient-1", "", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("adherence failed: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("got %d reports, want 1", len(reports))
	}
	rep := reports[0]
	if rep.TotalDoses != 10 || rep.TakenDoses != 7 {
		t.Errorf("counts = %d/%d, want 7/10", rep.TakenDoses, rep.TotalDoses)
	}
	if rep.Ratio != 0.7 {
		t.Errorf("ratio = %g, want 0.7", rep.Ratio)
	}
}

func TestAdherenceEmptyWindow(t *testing.T) {
	svc := NewService(newFakeLedger(), nil)
	reports, err := svc.Adherence(context.Background(), "patient-1", "", 30*24*time.Hour)
	if err != nil {
		t.Fatalf("adherence failed: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("expected no reports for empty ledger, got %d", len(reports))
	}

	if _, err := svc.Adherence(context.Background(), "", "", 0); err == nil {
		t.Error("expected error for missing patient id")
	}
}

func TestListValidatesStatus(t *testing.T) {
	svc := NewService(newFakeLedger(), nil)
	_, _, err := svc.List(context.Background(), Filter{Status: "bogus"}, 1, 20)
	if _, ok := errs.AsValidation(err); !ok {
		t.Errorf("expected validation error, got %v", err)
	}
}
