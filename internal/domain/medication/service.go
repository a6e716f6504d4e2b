package medication

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// DoseGenerator expands a medication's schedules into pending intake
// events for a horizon window. Implemented by the intake package.
type DoseGenerator interface {
	GenerateForMedication(ctx context.Context, m Medication, schedules []DoseSchedule, horizon time.Duration) (int, error)
}

// Service implements medication operations.
type Service struct {
	repo      Repository
	generator DoseGenerator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the medication service. generator may be nil when
// event generation is handled elsewhere (e.g. in tests).
func NewService(repo Repository, generator DoseGenerator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, generator: generator, logger: logger, now: time.Now}
}

// ScheduleInput is a caller-supplied explicit dose schedule.
type ScheduleInput struct {
	TimeOfDay string
	Days      DayMask
}

// PrescribeInput holds the fields for creating a medication.
type PrescribeInput struct {
	PatientID    string
	PrescribedBy *string
	Name         string
	Dosage       string
	Form         Form
	Frequency    string
	Instructions string
	StartDate    time.Time
	EndDate      *time.Time
	Schedules    []ScheduleInput
	HorizonDays  int
}

// Prescribed is the result of a successful prescription.
type Prescribed struct {
	Medication      Medication
	Schedules       []DoseSchedule
	GeneratedEvents int
}

// Prescribe validates and persists a medication with its schedules, then
// generates the first horizon of pending intake events. Generation is
// idempotent and re-runnable, so a failure after the medication is
// persisted is tolerated and logged rather than rolled back.
func (s *Service) Prescribe(ctx context.Context, in PrescribeInput) (Prescribed, error) {
	if in.PatientID == "" {
		return Prescribed{}, errs.Validation("patient_id", "required")
	}
	if in.Name == "" {
		return Prescribed{}, errs.Validation("name", "required")
	}
	if in.Dosage == "" {
		return Prescribed{}, errs.Validation("dosage", "required")
	}
	if !in.Form.Valid() {
		return Prescribed{}, errs.Validationf("form", "must be one of tablet, capsule, liquid, injection, cream, inhaler")
	}
	if in.Frequency == "" {
		return Prescribed{}, errs.Validation("frequency", "required")
	}
	if in.StartDate.IsZero() {
		return Prescribed{}, errs.Validation("start_date", "required")
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return Prescribed{}, errs.Validation("end_date", "must not precede start_date")
	}

	now := s.now().UTC()
	med := Medication{
		ID:           uuid.New().String(),
		PatientID:    in.PatientID,
		PrescribedBy: in.PrescribedBy,
		Name:         in.Name,
		Dosage:       in.Dosage,
		Form:         in.Form,
		Frequency:    in.Frequency,
		Instructions: in.Instructions,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	schedules, err := s.buildSchedules(med.ID, in.Schedules, in.Frequency, now)
	if err != nil {
		return Prescribed{}, err
	}

	if err := s.repo.Create(ctx, med, schedules); err != nil {
		return Prescribed{}, fmt.Errorf("create medication: %w", err)
	}

	generated := 0
	if s.generator != nil {
		horizonDays := in.HorizonDays
		if horizonDays <= 0 {
			horizonDays = 7
		}
		generated, err = s.generator.GenerateForMedication(ctx, med, schedules, time.Duration(horizonDays)*24*time.Hour)
		if err != nil {
			// The daily scan will regenerate; the prescription stands.
			s.logger.Warn("intake event generation failed",
				zap.String("medication_id", med.ID),
				zap.Error(err))
		}
	}

	return Prescribed{Medication: med, Schedules: schedules, GeneratedEvents: generated}, nil
}

// buildSchedules uses explicit schedules when given, otherwise derives an
// all-days schedule set from the frequency text.
func (s *Service) buildSchedules(medicationID string, explicit []ScheduleInput, frequency string, now time.Time) ([]DoseSchedule, error) {
	if len(explicit) == 0 {
		times := ParseFrequency(frequency)
		schedules := make([]DoseSchedule, 0, len(times))
		for _, t := range times {
			schedules = append(schedules, DoseSchedule{
				ID:           uuid.New().String(),
				MedicationID: medicationID,
				TimeOfDay:    t,
				Days:         AllDays,
				IsActive:     true,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
		return schedules, nil
	}

	schedules := make([]DoseSchedule, 0, len(explicit))
	for _, in := range explicit {
		tod, err := ParseTimeOfDay(in.TimeOfDay)
		if err != nil {
			return nil, errs.Validationf("schedules.scheduled_time", "%v", err)
		}
		days := in.Days
		if days == 0 {
			days = AllDays
		}
		if days.Empty() {
			return nil, errs.Validation("schedules.days", "at least one day must be enabled")
		}
		schedules = append(schedules, DoseSchedule{
			ID:           uuid.New().String(),
			MedicationID: medicationID,
			TimeOfDay:    tod,
			Days:         days,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	}
	return schedules, nil
}

// Get returns a medication by id.
func (s *Service) Get(ctx context.Context, id string) (Medication, error) {
	m, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return Medication{}, errs.ErrNotFound
		}
		return Medication{}, fmt.Errorf("get medication: %w", err)
	}
	return m, nil
}

// ListByPatient returns a patient's medications.
func (s *Service) ListByPatient(ctx context.Context, patientID string, activeOnly bool) ([]Medication, error) {
	return s.repo.ListByPatient(ctx, patientID, activeOnly)
}

// Schedules returns the dose schedules for a medication.
func (s *Service) Schedules(ctx context.Context, medicationID string) ([]DoseSchedule, error) {
	return s.repo.SchedulesFor(ctx, medicationID)
}

// CountActive returns the number of active medications for a patient.
func (s *Service) CountActive(ctx context.Context, patientID string) (int, error) {
	return s.repo.CountActiveByPatient(ctx, patientID)
}

// Deactivate discontinues a medication. The record is kept.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Deactivate(ctx, id)
}

// DueDose is one upcoming (or elapsed-today) dose for a medication,
// computed statelessly from schedules without consulting the ledger.
type DueDose struct {
	Medication  Medication `json:"medication"`
	ScheduleID  *string    `json:"schedule_id,omitempty"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	IsOverdue   bool       `json:"is_overdue"`
}

// Due computes dose times for a patient within hoursAhead of now. A dose
// time already elapsed today is included flagged overdue; it is never
// duplicated onto the next day's occurrence.
func (s *Service) Due(ctx context.Context, patientID string, hoursAhead int) ([]DueDose, error) {
	if hoursAhead <= 0 {
		hoursAhead = 24
	}
	meds, err := s.repo.ListByPatient(ctx, patientID, true)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}

	now := s.now()
	windowEnd := now.Add(time.Duration(hoursAhead) * time.Hour)
	var due []DueDose

	for _, med := range meds {
		if med.StartDate.After(windowEnd) {
			continue
		}
		schedules, err := s.schedulesOrDerived(ctx, med)
		if err != nil {
			return nil, err
		}
		for _, sch := range schedules {
			due = append(due, occurrences(med, sch, now, windowEnd)...)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	return due, nil
}

// schedulesOrDerived returns persisted active schedules, falling back to
// the frequency parser when none exist.
func (s *Service) schedulesOrDerived(ctx context.Context, med Medication) ([]DoseSchedule, error) {
	schedules, err := s.repo.SchedulesFor(ctx, med.ID)
	if err != nil {
		return nil, fmt.Errorf("schedules for %s: %w", med.ID, err)
	}
	active := schedules[:0]
	for _, sch := range schedules {
		if sch.IsActive {
			active = append(active, sch)
		}
	}
	if len(active) > 0 {
		return active, nil
	}

	derived := make([]DoseSchedule, 0)
	for _, t := range ParseFrequency(med.Frequency) {
		derived = append(derived, DoseSchedule{MedicationID: med.ID, TimeOfDay: t, Days: AllDays, IsActive: true})
	}
	return derived, nil
}

// occurrences expands one schedule into concrete dose times inside
// [startOfToday, windowEnd], clamped to the medication's date range.
func occurrences(med Medication, sch DoseSchedule, now, windowEnd time.Time) []DueDose {
	var out []DueDose

	var schedID *string
	if sch.ID != "" {
		id := sch.ID
		schedID = &id
	}

	for day := startOfDay(now); !day.After(windowEnd); day = day.AddDate(0, 0, 1) {
		if !sch.Days.Has(day.Weekday()) {
			continue
		}
		ts := sch.TimeOfDay.On(day)
		if ts.Before(startOfDay(med.StartDate)) {
			continue
		}
		if med.EndDate != nil && ts.After(endOfDay(*med.EndDate)) {
			continue
		}
		if ts.After(windowEnd) {
			continue
		}
		if ts.Before(now) {
			// Elapsed doses only count for today's window.
			if !sameDay(ts, now) {
				continue
			}
			out = append(out, DueDose{Medication: med, ScheduleID: schedID, ScheduledAt: ts, IsOverdue: true})
			continue
		}
		out = append(out, DueDose{Medication: med, ScheduleID: schedID, ScheduledAt: ts})
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
