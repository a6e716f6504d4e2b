package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/medication"
)

// Generator expands medications into pending intake events over a horizon
// window. Generation is idempotent: the ledger dedups on the
// (medication, schedule, scheduled_time) key, so a retried or overlapping
// run never duplicates events.
type Generator struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewGenerator creates a generator.
func NewGenerator(repo Repository, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{repo: repo, logger: logger, now: time.Now}
}

// GenerateForMedication emits pending events for every schedule slot
// falling inside the horizon window intersected with the medication's
// date range. A medication whose schedules are all inactive yields zero
// events; one with no schedules at all falls back to times derived from
// its frequency text, applied every day.
func (g *Generator) GenerateForMedication(ctx context.Context, med medication.Medication, schedules []medication.DoseSchedule, horizon time.Duration) (int, error) {
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}

	if len(schedules) == 0 {
		for _, t := range medication.ParseFrequency(med.Frequency) {
			schedules = append(schedules, medication.DoseSchedule{
				MedicationID: med.ID,
				TimeOfDay:    t,
				Days:         medication.AllDays,
				IsActive:     true,
			})
		}
	}

	now := g.now()
	windowStart := startOfDay(now)
	if s := startOfDay(med.StartDate); s.After(windowStart) {
		windowStart = s
	}
	windowEnd := now.Add(horizon)
	if med.EndDate != nil {
		if e := endOfDay(*med.EndDate); e.Before(windowEnd) {
			windowEnd = e
		}
	}
	if windowEnd.Before(windowStart) {
		return 0, nil
	}

	var events []Event
	for _, sch := range schedules {
		if !sch.IsActive {
			continue
		}
		for day := windowStart; !day.After(windowEnd); day = day.AddDate(0, 0, 1) {
			if !sch.Days.Has(day.Weekday()) {
				continue
			}
			ts := sch.TimeOfDay.On(day)
			if ts.Before(windowStart) || ts.After(windowEnd) {
				continue
			}
			var schedID *string
			if sch.ID != "" {
				id := sch.ID
				schedID = &id
			}
			events = append(events, Event{
				ID:            uuid.New().String(),
				MedicationID:  med.ID,
				ScheduleID:    schedID,
				PatientID:     med.PatientID,
				ScheduledTime: ts,
				Status:        StatusPending,
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
	}

	if len(events) == 0 {
		return 0, nil
	}

	inserted, err := g.repo.InsertPending(ctx, events)
	if err != nil {
		return 0, fmt.Errorf("insert pending events: %w", err)
	}
	if inserted > 0 {
		g.logger.Debug("intake events generated",
			zap.String("medication_id", med.ID),
			zap.Int("inserted", inserted),
			zap.Int("candidates", len(events)))
	}
	return inserted, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
