package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/medication"
	"github.com/caretrack/go-caretrack/internal/domain/vitals"
	"github.com/caretrack/go-caretrack/internal/observability/metrics"
)

// DueLister supplies pending dose events for feed assembly.
type DueLister interface {
	PendingWindow(ctx context.Context, patientID string, from, to time.Time) ([]intake.DueEvent, error)
}

// AlertSource recomputes current vital alerts from raw readings and
// thresholds. Implemented by the vitals service.
type AlertSource interface {
	CurrentAlerts(ctx context.Context, patientID string, since time.Time) ([]vitals.Alert, error)
}

// Service assembles the reminder feed and manages the persisted
// notification inbox.
type Service struct {
	repo      Repository
	due       DueLister
	alerts    AlertSource
	logger    *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
	lookahead time.Duration
}

func NewService(repo Repository, due DueLister, lookahead time.Duration, logger *zap.Logger) *Service {
	if lookahead <= 0 {
		lookahead = 30 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		due:       due,
		logger:    logger,
		now:       time.Now,
		lookahead: lookahead,
	}
}

// WithMetrics attaches Prometheus metrics.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithAlertSource attaches the vital alert source. Set after
// construction because the vitals service also sinks its alerts here.
func (s *Service) WithAlertSource(src AlertSource) *Service {
	s.alerts = src
	return s
}

// Feed computes the ranked feed for a patient: pending dose reminders
// merged with re-evaluated vital alerts. It looks back one day for
// overdue doses and out-of-range readings, and ahead hoursAhead
// (default 24) for upcoming doses.
func (s *Service) Feed(ctx context.Context, patientID string, hoursAhead int) ([]FeedItem, error) {
	if hoursAhead <= 0 {
		hoursAhead = 24
	}
	now := s.now().UTC()
	events, err := s.due.PendingWindow(ctx, patientID, now.Add(-24*time.Hour), now.Add(time.Duration(hoursAhead)*time.Hour))
	if err != nil {
		return nil, err
	}
	var alerts []vitals.Alert
	if s.alerts != nil {
		alerts, err = s.alerts.CurrentAlerts(ctx, patientID, now.Add(-24*time.Hour))
		if err != nil {
			return nil, err
		}
	}
	return BuildFeed(events, alerts, now, s.lookahead), nil
}

func (s *Service) List(ctx context.Context, userID string, unreadOnly bool, page, limit int) ([]Notification, int, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	items, total, err := s.repo.List(ctx, userID, unreadOnly, page, limit)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.UnreadCount(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, id, userID string) error {
	return s.repo.MarkRead(ctx, id, userID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.repo.Delete(ctx, id, userID)
}

func (s *Service) ClearAll(ctx context.Context, userID string) (int, error) {
	return s.repo.ClearAll(ctx, userID)
}

// Snooze marks a reminder notification read and returns when it should
// resurface. Nothing is scheduled server side; the wake time is advice
// for the client, which re-requests the feed.
func (s *Service) Snooze(ctx context.Context, id, userID string, minutes int) (time.Time, error) {
	if minutes < 5 || minutes > 1440 {
		return time.Time{}, errs.Validation("minutes", "must be between 5 and 1440")
	}
	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		return time.Time{}, err
	}
	return s.now().UTC().Add(time.Duration(minutes) * time.Minute), nil
}

// Preferences returns the user's delivery preferences, falling back to
// defaults when none are stored.
func (s *Service) Preferences(ctx context.Context, userID string) (*Preferences, error) {
	p, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return DefaultPreferences(userID), nil
		}
		return nil, err
	}
	return p, nil
}

// PreferencesInput carries a preference update.
type PreferencesInput struct {
	MedicationReminders *bool
	VitalAlerts         *bool
	SystemNotices       *bool
	QuietHoursStart     *string
	QuietHoursEnd       *string
}

// UpdatePreferences applies a partial update over the current (or
// default) preferences.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, in PreferencesInput) (*Preferences, error) {
	p, err := s.Preferences(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.MedicationReminders != nil {
		p.MedicationReminders = *in.MedicationReminders
	}
	if in.VitalAlerts != nil {
		p.VitalAlerts = *in.VitalAlerts
	}
	if in.SystemNotices != nil {
		p.SystemNotices = *in.SystemNotices
	}
	if in.QuietHoursStart != nil {
		if *in.QuietHoursStart == "" {
			p.QuietHoursStart = nil
		} else {
			t, err := medication.ParseTimeOfDay(*in.QuietHoursStart)
			if err != nil {
				return nil, errs.Validation("quiet_hours_start", "must be HH:MM")
			}
			v := string(t)
			p.QuietHoursStart = &v
		}
	}
	if in.QuietHoursEnd != nil {
		if *in.QuietHoursEnd == "" {
			p.QuietHoursEnd = nil
		} else {
			t, err := medication.ParseTimeOfDay(*in.QuietHoursEnd)
			if err != nil {
				return nil, errs.Validation("quiet_hours_end", "must be HH:MM")
			}
			v := string(t)
			p.QuietHoursEnd = &v
		}
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.SavePreferences(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ReminderInput identifies one due dose to notify about.
type ReminderInput struct {
	PatientID      string
	EventID        string
	MedicationID   string
	MedicationName string
	Dosage         string
	ScheduledTime  time.Time
}

// CreateMedicationReminder persists a reminder notification unless the
// patient has reminders disabled. Returns the created notification,
// nil when suppressed.
func (s *Service) CreateMedicationReminder(ctx context.Context, in ReminderInput) (*Notification, error) {
	p, err := s.Preferences(ctx, in.PatientID)
	if err != nil {
		return nil, err
	}
	if !p.Allows(TypeMedicationReminder) {
		return nil, nil
	}
	data, _ := json.Marshal(map[string]interface{}{
		"event_id":       in.EventID,
		"medication_id":  in.MedicationID,
		"scheduled_time": in.ScheduledTime,
	})
	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    in.PatientID,
		Type:      TypeMedicationReminder,
		Title:     "Time to take " + in.MedicationName,
		Message:   fmt.Sprintf("%s (%s) is due at %s.", in.MedicationName, in.Dosage, in.ScheduledTime.Format("15:04")),
		Data:      data,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// VitalAlerts persists one alert notification per out-of-range finding.
// It implements the sink the vitals service reports into; failures are
// logged, never returned, so the reading write path stays unaffected.
func (s *Service) VitalAlerts(ctx context.Context, patientID string, alerts []vitals.Alert) {
	p, err := s.Preferences(ctx, patientID)
	if err != nil {
		s.logger.Warn("preference lookup failed, delivering alerts anyway",
			zap.String("patient_id", patientID), zap.Error(err))
		p = DefaultPreferences(patientID)
	}
	if !p.Allows(TypeVitalAlert) {
		return
	}
	for _, a := range alerts {
		data, _ := json.Marshal(a)
		severity := "Warning"
		if a.IsCritical {
			severity = "Critical"
		}
		n := &Notification{
			ID:        uuid.NewString(),
			UserID:    patientID,
			Type:      TypeVitalAlert,
			Title:     fmt.Sprintf("%s: %s out of range", severity, a.Parameter),
			Message:   alertMessage(a),
			Data:      data,
			CreatedAt: s.now().UTC(),
		}
		if err := s.repo.Create(ctx, n); err != nil {
			s.logger.Error("vital alert notification failed",
				zap.String("patient_id", patientID),
				zap.String("alert_key", a.Key()),
				zap.Error(err))
			continue
		}
		if s.metrics != nil {
			s.metrics.VitalAlertsEmitted.Inc()
		}
	}
}

func alertMessage(a vitals.Alert) string {
	switch {
	case a.Min != nil && a.Value < *a.Min:
		return fmt.Sprintf("Recorded %s of %g is below the threshold of %g.", a.Parameter, a.Value, *a.Min)
	case a.Max != nil && a.Value > *a.Max:
		return fmt.Sprintf("Recorded %s of %g is above the threshold of %g.", a.Parameter, a.Value, *a.Max)
	}
	return fmt.Sprintf("Recorded %s of %g is outside the configured range.", a.Parameter, a.Value)
}
