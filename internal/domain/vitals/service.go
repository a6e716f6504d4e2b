package vitals

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
	"github.com/caretrack/go-caretrack/internal/observability/metrics"
)

// AlertSink receives out-of-range findings for a freshly recorded
// reading. Implementations must tolerate duplicate delivery; alerts are
// keyed by (reading_id, parameter).
type AlertSink interface {
	VitalAlerts(ctx context.Context, patientID string, alerts []Alert)
}

// Service coordinates reading writes, threshold management, and trend
// queries.
type Service struct {
	repo    Repository
	sink    AlertSink
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// evalTimeout bounds the detached evaluation goroutine.
	evalTimeout time.Duration
}

func NewService(repo Repository, sink AlertSink, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		sink:        sink,
		logger:      logger,
		now:         time.Now,
		evalTimeout: 10 * time.Second,
	}
}

// WithMetrics attaches Prometheus metrics.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// RecordInput carries a new reading. All parameters are optional but at
// least one must be present.
type RecordInput struct {
	PatientID        string
	RecordedBy       string
	RecordedByRole   string
	SystolicBP       *float64
	DiastolicBP      *float64
	HeartRate        *float64
	RespiratoryRate  *float64
	Temperature      *float64
	OxygenSaturation *float64
	BloodGlucose     *float64
	WeightKg         *float64
	PainLevel        *float64
	Notes            string
	RecordedAt       *time.Time
}

func (in *RecordInput) value(p Parameter) *float64 {
	r := Reading{
		SystolicBP: in.SystolicBP, DiastolicBP: in.DiastolicBP,
		HeartRate: in.HeartRate, RespiratoryRate: in.RespiratoryRate,
		Temperature: in.Temperature, OxygenSaturation: in.OxygenSaturation,
		BloodGlucose: in.BloodGlucose, WeightKg: in.WeightKg, PainLevel: in.PainLevel,
	}
	return r.Value(p)
}

// RecordReading validates and stores a reading, then evaluates it
// against the patient's thresholds in the background. Evaluation
// failures are logged and never surface to the caller; the reading is
// committed either way.
func (s *Service) RecordReading(ctx context.Context, in RecordInput) (*Reading, error) {
	if in.PatientID == "" {
		return nil, errs.Validation("patient_id", "is required")
	}
	now := s.now().UTC()
	r := &Reading{
		ID:             uuid.NewString(),
		PatientID:      in.PatientID,
		RecordedBy:     in.RecordedBy,
		RecordedByRole: in.RecordedByRole,
		Notes:          in.Notes,
		RecordedAt:     now,
		CreatedAt:      now,
	}
	if in.RecordedAt != nil {
		r.RecordedAt = in.RecordedAt.UTC()
	}
	for _, p := range Parameters {
		v := in.value(p)
		if v == nil {
			continue
		}
		b := inputBounds[p]
		if *v < b.min || (b.max != nil && *v > *b.max) {
			return nil, errs.Validationf(string(p), "value %g is outside the accepted range", *v)
		}
		r.setValue(p, v)
	}
	if !r.HasAnyValue() {
		return nil, errs.Validation("reading", "at least one vital parameter is required")
	}

	if err := s.repo.CreateReading(ctx, r); err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ReadingsRecorded.Inc()
	}

	if s.sink != nil {
		go s.evaluate(r)
	}
	return r, nil
}

// evaluate runs threshold evaluation detached from the request that
// created the reading.
func (s *Service) evaluate(r *Reading) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("threshold evaluation panicked",
				zap.String("reading_id", r.ID), zap.Any("panic", rec))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), s.evalTimeout)
	defer cancel()

	thresholds, err := s.repo.ListThresholds(ctx, r.PatientID)
	if err != nil {
		s.logger.Warn("threshold lookup failed, skipping evaluation",
			zap.String("reading_id", r.ID), zap.Error(err))
		return
	}
	alerts := Evaluate(r, thresholds)
	if len(alerts) == 0 {
		return
	}
	s.logger.Info("vital reading out of range",
		zap.String("reading_id", r.ID),
		zap.String("patient_id", r.PatientID),
		zap.Int("alerts", len(alerts)))
	s.sink.VitalAlerts(ctx, r.PatientID, alerts)
}

// CurrentAlerts re-evaluates readings recorded since the cutoff against
// the patient's thresholds. Alerts are never stored; each call derives
// them from the raw data, deduplicated by (reading_id, parameter).
func (s *Service) CurrentAlerts(ctx context.Context, patientID string, since time.Time) ([]Alert, error) {
	thresholds, err := s.repo.ListThresholds(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(thresholds) == 0 {
		return nil, nil
	}
	readings, _, err := s.repo.ListReadings(ctx, patientID, &since, nil, 1, 100)
	if err != nil {
		return nil, err
	}
	var alerts []Alert
	seen := make(map[string]bool)
	for i := range readings {
		for _, a := range Evaluate(&readings[i], thresholds) {
			if seen[a.Key()] {
				continue
			}
			seen[a.Key()] = true
			alerts = append(alerts, a)
		}
	}
	return alerts, nil
}

func (s *Service) GetReading(ctx context.Context, id string) (*Reading, error) {
	return s.repo.GetReading(ctx, id)
}

// ListReadings returns a page of readings newest first, optionally
// bounded by recorded_at.
func (s *Service) ListReadings(ctx context.Context, patientID string, from, to *time.Time, page, limit int) ([]Reading, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListReadings(ctx, patientID, from, to, page, limit)
}

// Trends aggregates one parameter per day over a trailing window.
// days defaults to 30 and is capped at 365.
func (s *Service) Trends(ctx context.Context, patientID string, param Parameter, days int) ([]TrendPoint, error) {
	if !param.Valid() {
		return nil, errs.Validationf("parameter", "unknown parameter %q", param)
	}
	if days <= 0 {
		days = 30
	}
	if days > 365 {
		days = 365
	}
	to := s.now().UTC()
	from := to.AddDate(0, 0, -days)
	return s.repo.Trends(ctx, patientID, param, from, to)
}

// ThresholdInput carries a threshold upsert.
type ThresholdInput struct {
	PatientID  string
	SetBy      string
	Parameter  Parameter
	Min        *float64
	Max        *float64
	IsCritical bool
}

// UpsertThreshold creates or replaces the threshold for one parameter.
// At least one bound is required and Min must not exceed Max.
func (s *Service) UpsertThreshold(ctx context.Context, in ThresholdInput) (*Threshold, error) {
	if in.PatientID == "" {
		return nil, errs.Validation("patient_id", "is required")
	}
	if !in.Parameter.Valid() {
		return nil, errs.Validationf("parameter", "unknown parameter %q", in.Parameter)
	}
	if in.Min == nil && in.Max == nil {
		return nil, errs.Validation("threshold", "at least one of min and max is required")
	}
	if in.Min != nil && in.Max != nil && *in.Min > *in.Max {
		return nil, errs.Validation("threshold", "min must not exceed max")
	}
	now := s.now().UTC()
	t := &Threshold{
		ID:         uuid.NewString(),
		PatientID:  in.PatientID,
		SetBy:      in.SetBy,
		Parameter:  in.Parameter,
		Min:        in.Min,
		Max:        in.Max,
		IsCritical: in.IsCritical,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.UpsertThreshold(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) ListThresholds(ctx context.Context, patientID string) ([]Threshold, error) {
	return s.repo.ListThresholds(ctx, patientID)
}

func (s *Service) DeleteThreshold(ctx context.Context, patientID string, param Parameter) error {
	if !param.Valid() {
		return errs.Validationf("parameter", "unknown parameter %q", param)
	}
	return s.repo.DeleteThreshold(ctx, patientID, param)
}
