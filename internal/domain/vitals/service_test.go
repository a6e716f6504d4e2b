package vitals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

type fakeVitalsRepo struct {
	readings   map[string]*Reading
	thresholds map[Parameter]Threshold
}

func newFakeVitalsRepo() *fakeVitalsRepo {
	return &fakeVitalsRepo{
		readings:   make(map[string]*Reading),
		thresholds: make(map[Parameter]Threshold),
	}
}

func (r *fakeVitalsRepo) CreateReading(ctx context.Context, reading *Reading) error {
	r.readings[reading.ID] = reading
	return nil
}

func (r *fakeVitalsRepo) GetReading(ctx context.Context, id string) (*Reading, error) {
	reading, ok := r.readings[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return reading, nil
}

func (r *fakeVitalsRepo) ListReadings(ctx context.Context, patientID string, from, to *time.Time, page, limit int) ([]Reading, int, error) {
	var out []Reading
	for _, reading := range r.readings {
		if reading.PatientID == patientID {
			out = append(out, *reading)
		}
	}
	return out, len(out), nil
}

func (r *fakeVitalsRepo) Trends(ctx context.Context, patientID string, param Parameter, from, to time.Time) ([]TrendPoint, error) {
	return nil, nil
}

func (r *fakeVitalsRepo) UpsertThreshold(ctx context.Context, t *Threshold) error {
	r.thresholds[t.Parameter] = *t
	return nil
}

func (r *fakeVitalsRepo) ListThresholds(ctx context.Context, patientID string) ([]Threshold, error) {
	var out []Threshold
	for _, t := range r.thresholds {
		out = append(out, t)
	}
	return out, nil
}

func (r *fakeVitalsRepo) DeleteThreshold(ctx context.Context, patientID string, param Parameter) error {
	if _, ok := r.thresholds[param]; !ok {
		return errs.ErrNotFound
	}
	delete(r.thresholds, param)
	return nil
}

// chanSink captures alert deliveries for assertions.
type chanSink struct {
	ch chan []Alert
}

func (s *chanSink) VitalAlerts(ctx context.Context, patientID string, alerts []Alert) {
	s.ch <- alerts
}

func TestRecordReadingValidation(t *testing.T) {
	svc := NewService(newFakeVitalsRepo(), nil, nil)
	ctx := context.Background()

	if _, err := svc.RecordReading(ctx, RecordInput{}); err == nil {
		t.Error("expected error for missing patient id")
	}

	if _, err := svc.RecordReading(ctx, RecordInput{PatientID: "p1"}); err == nil {
		t.Error("expected error for reading with no parameters")
	}

	_, err := svc.RecordReading(ctx, RecordInput{PatientID: "p1", Temperature: fp(50)})
	var verr *errs.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error for impossible temperature, got %v", err)
	}
	if verr.Field != "temperature" {
		t.Errorf("field = %s, want temperature", verr.Field)
	}

	if _, err := svc.RecordReading(ctx, RecordInput{PatientID: "p1", PainLevel: fp(11)}); err == nil {
		t.Error("expected error for pain level above 10")
	}
}

func TestRecordReadingPersistsAndEvaluates(t *testing.T) {
	repo := newFakeVitalsRepo()
	sink := &chanSink{ch: make(chan []Alert, 1)}
	svc := NewService(repo, sink, nil)

	repo.thresholds[ParamSystolicBP] = Threshold{
		PatientID: "p1",
		Parameter: ParamSystolicBP,
		Max:       fp(140),
	}

	r, err := svc.RecordReading(context.Background(), RecordInput{
		PatientID:  "p1",
		SystolicBP: fp(155),
	})
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if _, ok := repo.readings[r.ID]; !ok {
		t.Fatal("reading not persisted")
	}

	select {
	case alerts := <-sink.ch:
		if len(alerts) != 1 || alerts[0].Parameter != ParamSystolicBP {
			t.Errorf("alerts = %+v", alerts)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("threshold evaluation never reached the sink")
	}
}

func TestRecordReadingInRangeProducesNoAlerts(t *testing.T) {
	repo := newFakeVitalsRepo()
	sink := &chanSink{ch: make(chan []Alert, 1)}
	svc := NewService(repo, sink, nil)

	repo.thresholds[ParamSystolicBP] = Threshold{
		PatientID: "p1",
		Parameter: ParamSystolicBP,
		Min:       fp(90),
		Max:       fp(140),
	}

	if _, err := svc.RecordReading(context.Background(), RecordInput{
		PatientID:  "p1",
		SystolicBP: fp(120),
	}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	select {
	case alerts := <-sink.ch:
		t.Errorf("in-range reading produced alerts %+v", alerts)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCurrentAlertsRecomputesFromReadings(t *testing.T) {
	repo := newFakeVitalsRepo()
	svc := NewService(repo, nil, nil)
	since := time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)

	repo.thresholds[ParamSystolicBP] = Threshold{
		PatientID: "p1",
		Parameter: ParamSystolicBP,
		Max:       fp(140),
	}
	repo.readings["r1"] = &Reading{
		ID: "r1", PatientID: "p1",
		SystolicBP: fp(155),
		RecordedAt: since.Add(2 * time.Hour),
	}
	repo.readings["r2"] = &Reading{
		ID: "r2", PatientID: "p1",
		SystolicBP: fp(120),
		RecordedAt: since.Add(3 * time.Hour),
	}

	alerts, err := svc.CurrentAlerts(context.Background(), "p1", since)
	if err != nil {
		t.Fatalf("CurrentAlerts: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	if alerts[0].ReadingID != "r1" || alerts[0].Parameter != ParamSystolicBP {
		t.Errorf("alert = %+v", alerts[0])
	}

	// A second call derives the same single alert; nothing accumulates.
	again, err := svc.CurrentAlerts(context.Background(), "p1", since)
	if err != nil {
		t.Fatalf("CurrentAlerts: %v", err)
	}
	if len(again) != 1 || again[0].Key() != alerts[0].Key() {
		t.Errorf("recomputed alerts = %+v, want the same single key", again)
	}
}

func TestCurrentAlertsNoThresholds(t *testing.T) {
	repo := newFakeVitalsRepo()
	repo.readings["r1"] = &Reading{
		ID: "r1", PatientID: "p1", SystolicBP: fp(250),
		RecordedAt: time.Now().UTC(),
	}
	svc := NewService(repo, nil, nil)

	alerts, err := svc.CurrentAlerts(context.Background(), "p1", time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CurrentAlerts: %v", err)
	}
	if len(alerts) != 0 {
		t.Errorf("no thresholds should mean no alerts, got %+v", alerts)
	}
}

func TestUpsertThresholdValidation(t *testing.T) {
	svc := NewService(newFakeVitalsRepo(), nil, nil)
	ctx := context.Background()

	// No bounds at all
	_, err := svc.UpsertThreshold(ctx, ThresholdInput{
		PatientID: "p1",
		Parameter: ParamHeartRate,
	})
	if _, ok := errs.AsValidation(err); !ok {
		t.Errorf("expected validation error for boundless threshold, got %v", err)
	}

	// Min above max
	_, err = svc.UpsertThreshold(ctx, ThresholdInput{
		PatientID: "p1",
		Parameter: ParamHeartRate,
		Min:       fp(100),
		Max:       fp(60),
	})
	if _, ok := errs.AsValidation(err); !ok {
		t.Errorf("expected validation error for inverted bounds, got %v", err)
	}

	// Unknown parameter
	_, err = svc.UpsertThreshold(ctx, ThresholdInput{
		PatientID: "p1",
		Parameter: "mood",
		Max:       fp(10),
	})
	if _, ok := errs.AsValidation(err); !ok {
		t.Errorf("expected validation error for unknown parameter, got %v", err)
	}

	// One-sided is allowed
	th, err := svc.UpsertThreshold(ctx, ThresholdInput{
		PatientID: "p1",
		Parameter: ParamOxygenSaturation,
		Min:       fp(92),
	})
	if err != nil {
		t.Fatalf("one-sided threshold rejected: %v", err)
	}
	if th.Min == nil || *th.Min != 92 {
		t.Errorf("threshold = %+v", th)
	}
}
