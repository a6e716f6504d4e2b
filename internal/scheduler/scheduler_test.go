package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/medication"
	"github.com/caretrack/go-caretrack/internal/domain/notification"
	"github.com/caretrack/go-caretrack/pkg/idempotency"
	"github.com/caretrack/go-caretrack/pkg/workerpool"
)

type fakeScanner struct {
	due []intake.DueEvent
	err error
}

func (f *fakeScanner) PendingWindowAll(context.Context, time.Time, time.Time) ([]intake.DueEvent, error) {
	return f.due, f.err
}

type fakeSink struct {
	created []notification.ReminderInput
	failFor string
}

func (f *fakeSink) CreateMedicationReminder(_ context.Context, in notification.ReminderInput) (*notification.Notification, error) {
	if in.EventID == f.failFor {
		return nil, errors.New("notification store unavailable")
	}
	f.created = append(f.created, in)
	return &notification.Notification{ID: "n-" + in.EventID}, nil
}

// fakeDedup runs the handler straight through, recording keys. Keys
// already seen skip the handler, and inProgress mimics a concurrent
// holder of the inbox row.
type fakeDedup struct {
	keys       []string
	seen       map[string]bool
	inProgress bool
}

func (f *fakeDedup) Process(ctx context.Context, key, _ string, payload json.RawMessage, fn idempotency.ProcessFunc) (*idempotency.ProcessResult, error) {
	if f.inProgress {
		return nil, idempotency.ErrMessageInProgress
	}
	f.keys = append(f.keys, key)
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	if f.seen[key] {
		return &idempotency.ProcessResult{IsNew: false}, nil
	}
	f.seen[key] = true
	res, err := fn(ctx, payload)
	if err != nil {
		return nil, err
	}
	return &idempotency.ProcessResult{IsNew: true, Result: res}, nil
}

type fakeMeds struct {
	active    []medication.Medication
	schedules map[string][]medication.DoseSchedule
	err       error
}

func (f *fakeMeds) ListActive(context.Context) ([]medication.Medication, error) {
	return f.active, f.err
}

func (f *fakeMeds) SchedulesFor(_ context.Context, medicationID string) ([]medication.DoseSchedule, error) {
	return f.schedules[medicationID], nil
}

type fakePool struct {
	tasks   []*workerpool.Task
	failFor string
}

func (f *fakePool) Submit(task *workerpool.Task) error {
	if task.ID == f.failFor {
		return errors.New("pool full")
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func dueAt(id string, scheduled time.Time) intake.DueEvent {
	return intake.DueEvent{
		Event: intake.Event{
			ID:            id,
			MedicationID:  "med-1",
			PatientID:     "patient-1",
			ScheduledTime: scheduled,
			Status:        intake.StatusPending,
		},
		MedicationName: "Metformin",
		Dosage:         "500mg",
	}
}

func newTestScheduler(scanner DueScanner, sink ReminderSink, meds MedicationSource,
	dedup Deduper, pool Submitter) *Scheduler {
	return New(DefaultConfig(), scanner, sink, meds, dedup, pool, nil, zap.NewNop())
}

func TestRunDueScanDispatches(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	scanner := &fakeScanner{due: []intake.DueEvent{
		dueAt("e1", now.Add(-30*time.Second)),
		dueAt("e2", now.Add(-40*time.Second)),
	}}
	sink := &fakeSink{}
	dedup := &fakeDedup{}
	s := newTestScheduler(scanner, sink, &fakeMeds{}, dedup, &fakePool{})

	if err := s.RunDueScan(context.Background()); err != nil {
		t.Fatalf("RunDueScan: %v", err)
	}
	if len(sink.created) != 2 {
		t.Fatalf("created %d reminders, want 2", len(sink.created))
	}
	if len(dedup.keys) != 2 || dedup.keys[0] == dedup.keys[1] {
		t.Errorf("expected two distinct idempotency keys, got %v", dedup.keys)
	}
}

func TestRunDueScanDeduplicates(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	// The same event twice, as an overlapping scan would see it.
	scanner := &fakeScanner{due: []intake.DueEvent{
		dueAt("e1", now),
		dueAt("e1", now),
	}}
	sink := &fakeSink{}
	s := newTestScheduler(scanner, sink, &fakeMeds{}, &fakeDedup{}, &fakePool{})

	if err := s.RunDueScan(context.Background()); err != nil {
		t.Fatalf("RunDueScan: %v", err)
	}
	if len(sink.created) != 1 {
		t.Fatalf("created %d reminders, want 1", len(sink.created))
	}
}

func TestRunDueScanInProgressIsNotAnError(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	scanner := &fakeScanner{due: []intake.DueEvent{dueAt("e1", now)}}
	sink := &fakeSink{}
	s := newTestScheduler(scanner, sink, &fakeMeds{}, &fakeDedup{inProgress: true}, &fakePool{})

	if err := s.RunDueScan(context.Background()); err != nil {
		t.Fatalf("a dispatch held by a concurrent scan should not fail the pass: %v", err)
	}
	if len(sink.created) != 0 {
		t.Errorf("reminder was created despite the inbox holding the key")
	}
}

func TestRunDueScanToleratesDispatchFailure(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	scanner := &fakeScanner{due: []intake.DueEvent{
		dueAt("bad", now),
		dueAt("good", now),
	}}
	sink := &fakeSink{failFor: "bad"}
	s := newTestScheduler(scanner, sink, &fakeMeds{}, &fakeDedup{}, &fakePool{})

	if err := s.RunDueScan(context.Background()); err != nil {
		t.Fatalf("one failed dispatch should not fail the pass: %v", err)
	}
	if len(sink.created) != 1 || sink.created[0].EventID != "good" {
		t.Errorf("remaining doses should still dispatch, got %+v", sink.created)
	}
}

func TestRunDueScanSingleFlight(t *testing.T) {
	s := newTestScheduler(&fakeScanner{}, &fakeSink{}, &fakeMeds{}, &fakeDedup{}, &fakePool{})
	atomic.StoreInt32(&s.scanRunning, 1)

	err := s.RunDueScan(context.Background())
	if !errors.Is(err, errSkipped) {
		t.Fatalf("expected errSkipped while a pass is running, got %v", err)
	}
}

func TestRunDueScanScannerError(t *testing.T) {
	s := newTestScheduler(&fakeScanner{err: errors.New("db down")}, &fakeSink{}, &fakeMeds{}, &fakeDedup{}, &fakePool{})
	if err := s.RunDueScan(context.Background()); err == nil {
		t.Fatal("expected scan error to propagate")
	}
}

func TestRunRegenSubmitsPerMedication(t *testing.T) {
	meds := &fakeMeds{active: []medication.Medication{
		{ID: "med-1", PatientID: "p1"},
		{ID: "med-2", PatientID: "p1"},
		{ID: "med-3", PatientID: "p2"},
	}}
	pool := &fakePool{}
	s := newTestScheduler(&fakeScanner{}, &fakeSink{}, meds, &fakeDedup{}, pool)

	if err := s.RunRegen(context.Background()); err != nil {
		t.Fatalf("RunRegen: %v", err)
	}
	if len(pool.tasks) != 3 {
		t.Fatalf("submitted %d tasks, want 3", len(pool.tasks))
	}
	if pool.tasks[0].ID != "regen-med-1" {
		t.Errorf("task id = %s, want regen-med-1", pool.tasks[0].ID)
	}
	if _, ok := pool.tasks[0].Payload.(medication.Medication); !ok {
		t.Errorf("task payload is %T, want medication.Medication", pool.tasks[0].Payload)
	}
}

func TestRunRegenToleratesRejectedTask(t *testing.T) {
	meds := &fakeMeds{active: []medication.Medication{
		{ID: "med-1"}, {ID: "med-2"},
	}}
	pool := &fakePool{failFor: "regen-med-1"}
	s := newTestScheduler(&fakeScanner{}, &fakeSink{}, meds, &fakeDedup{}, pool)

	if err := s.RunRegen(context.Background()); err != nil {
		t.Fatalf("a rejected task should not fail the pass: %v", err)
	}
	if len(pool.tasks) != 1 || pool.tasks[0].ID != "regen-med-2" {
		t.Errorf("remaining tasks should still submit, got %+v", pool.tasks)
	}
}

func TestRunRegenSingleFlight(t *testing.T) {
	s := newTestScheduler(&fakeScanner{}, &fakeSink{}, &fakeMeds{}, &fakeDedup{}, &fakePool{})
	atomic.StoreInt32(&s.regenRunning, 1)

	if err := s.RunRegen(context.Background()); !errors.Is(err, errSkipped) {
		t.Fatalf("expected errSkipped while a pass is running, got %v", err)
	}
}

type fakeGenerator struct {
	inserted int
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateForMedication(context.Context, medication.Medication, []medication.DoseSchedule, time.Duration) (int, error) {
	f.calls++
	return f.inserted, f.err
}

func TestRegenWorker(t *testing.T) {
	meds := &fakeMeds{schedules: map[string][]medication.DoseSchedule{
		"med-1": {{ID: "sch-1", MedicationID: "med-1", TimeOfDay: "08:00", Days: medication.AllDays, IsActive: true}},
	}}
	gen := &fakeGenerator{inserted: 14}
	worker := RegenWorker(meds, gen, 7*24*time.Hour, nil, zap.NewNop())

	res := worker(context.Background(), &workerpool.Task{
		ID:      "regen-med-1",
		Payload: medication.Medication{ID: "med-1", PatientID: "p1"},
	})
	if !res.Success {
		t.Fatalf("worker failed: %v", res.Error)
	}
	if res.Data != 14 {
		t.Errorf("result data = %v, want 14", res.Data)
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls)
	}
}

func TestRegenWorkerWrongPayload(t *testing.T) {
	worker := RegenWorker(&fakeMeds{}, &fakeGenerator{}, time.Hour, nil, zap.NewNop())

	res := worker(context.Background(), &workerpool.Task{ID: "t1", Payload: "not a medication"})
	if res.Success || res.Error == nil {
		t.Fatalf("expected failure for unexpected payload, got %+v", res)
	}
}

func TestRegenWorkerGeneratorError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("insert failed")}
	worker := RegenWorker(&fakeMeds{}, gen, time.Hour, nil, zap.NewNop())

	res := worker(context.Background(), &workerpool.Task{
		ID:      "regen-med-1",
		Payload: medication.Medication{ID: "med-1"},
	})
	if res.Success || res.Error == nil {
		t.Fatalf("expected generator error to surface, got %+v", res)
	}
}
