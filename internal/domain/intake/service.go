package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// Service implements the intake ledger operations.
type Service struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates the ledger service.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// RecordInput holds the fields for recording a dose outcome against an
// existing generated event.
type RecordInput struct {
	EventID     string
	Status      Status
	TakenAt     *time.Time
	DosageTaken string
	Notes       string
	SideEffects []string
	RecordedBy  string
}

// Record transitions an event to a terminal status. Re-recording an
// already-terminal event is accepted and resolved last-write-wins; a
// terminal event never regresses to pending.
func (s *Service) Record(ctx context.Context, in RecordInput) (Event, error) {
	if !in.Status.Terminal() {
		return Event{}, errs.Validationf("status", "must be one of taken, missed, skipped, partial")
	}

	e, err := s.repo.GetByID(ctx, in.EventID)
	if err != nil {
		return Event{}, err
	}

	now := s.now()
	e.Status = in.Status
	e.TakenAt = in.TakenAt
	if e.TakenAt == nil && in.Status == StatusTaken {
		e.TakenAt = &now
	}
	if in.DosageTaken != "" {
		e.DosageTaken = in.DosageTaken
	}
	e.Notes = in.Notes
	if in.SideEffects != nil {
		e.SideEffects = in.SideEffects
	}
	e.RecordedBy = in.RecordedBy
	e.RecordedAt = &now
	e.UpdatedAt = now

	if err := s.repo.Update(ctx, e); err != nil {
		return Event{}, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

// LogDirectInput holds the fields for a fresh log entry keyed directly to
// a medication rather than a pre-generated schedule slot.
type LogDirectInput struct {
	MedicationID string
	PatientID    string
	Status       Status
	TakenAt      time.Time
	DosageTaken  string
	Notes        string
	SideEffects  []string
	RecordedBy   string
}

// LogDirect appends a new ledger entry for an ad-hoc intake.
func (s *Service) LogDirect(ctx context.Context, in LogDirectInput) (Event, error) {
	if in.MedicationID == "" {
		return Event{}, errs.Validation("medication_id", "required")
	}
	if in.PatientID == "" {
		return Event{}, errs.Validation("patient_id", "required")
	}
	if !in.Status.Terminal() {
		return Event{}, errs.Validationf("status", "must be one of taken, missed, skipped, partial")
	}
	if in.TakenAt.IsZero() {
		return Event{}, errs.Validation("taken_at", "required")
	}

	now := s.now()
	e := Event{
		ID:            uuid.New().String(),
		MedicationID:  in.MedicationID,
		PatientID:     in.PatientID,
		ScheduledTime: in.TakenAt,
		TakenAt:       &in.TakenAt,
		Status:        in.Status,
		DosageTaken:   in.DosageTaken,
		Notes:         in.Notes,
		SideEffects:   in.SideEffects,
		RecordedBy:    in.RecordedBy,
		RecordedAt:    &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return Event{}, fmt.Errorf("create log entry: %w", err)
	}
	return e, nil
}

// UpdateInput holds the mutable fields of a ledger entry. Nil fields are
// left unchanged.
type UpdateInput struct {
	Status      *Status
	TakenAt     *time.Time
	DosageTaken *string
	Notes       *string
	SideEffects []string
}

// Update applies a partial mutation to a recorded entry.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Event{}, err
	}

	if in.Status != nil {
		if !in.Status.Valid() {
			return Event{}, errs.Validationf("status", "unknown status %q", *in.Status)
		}
		// A terminal entry never regresses to pending.
		if *in.Status == StatusPending && e.Status.Terminal() {
			return Event{}, errs.Validation("status", "cannot revert a recorded dose to pending")
		}
		e.Status = *in.Status
	}
	if in.TakenAt != nil {
		e.TakenAt = in.TakenAt
	}
	if in.DosageTaken != nil {
		e.DosageTaken = *in.DosageTaken
	}
	if in.Notes != nil {
		e.Notes = *in.Notes
	}
	if in.SideEffects != nil {
		e.SideEffects = in.SideEffects
	}
	e.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, e); err != nil {
		return Event{}, fmt.Errorf("update event: %w", err)
	}
	return e, nil
}

// Delete removes a ledger entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// List returns a page of ledger entries plus the total match count.
func (s *Service) List(ctx context.Context, f Filter, page, limit int) ([]Event, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, errs.Validationf("status", "unknown status %q", f.Status)
	}
	return s.repo.List(ctx, f, page, limit)
}

// AdherenceReport is the per-medication adherence summary for a window.
type AdherenceReport struct {
	MedicationID string  `json:"medication_id"`
	TotalDoses   int     `json:"total_doses"`
	TakenDoses   int     `json:"taken_doses"`
	Ratio        float64 `json:"adherence_ratio"`
}

// Adherence aggregates the ledger for a patient over the trailing window.
// medicationID narrows to one medication when non-empty. A medication
// with zero events reports a ratio of zero, never a division by zero.
func (s *Service) Adherence(ctx context.Context, patientID, medicationID string, window time.Duration) ([]AdherenceReport, error) {
	if patientID == "" {
		return nil, errs.Validation("patient_id", "required")
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}

	now := s.now()
	counts, err := s.repo.CountByStatus(ctx, patientID, medicationID, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}

	byMed := make(map[string]*AdherenceReport)
	var order []string
	for _, c := range counts {
		rep, ok := byMed[c.MedicationID]
		if !ok {
			rep = &AdherenceReport{MedicationID: c.MedicationID}
			byMed[c.MedicationID] = rep
			order = append(order, c.MedicationID)
		}
		rep.TotalDoses += c.Count
		if c.Status == StatusTaken {
			rep.TakenDoses += c.Count
		}
	}

	reports := make([]AdherenceReport, 0, len(order))
	for _, id := range order {
		rep := byMed[id]
		if rep.TotalDoses > 0 {
			rep.Ratio = float64(rep.TakenDoses) / float64(rep.TotalDoses)
		}
		reports = append(reports, *rep)
	}
	return reports, nil
}

// PendingWindow exposes the pending-dose window for one patient.
func (s *Service) PendingWindow(ctx context.Context, patientID string, from, to time.Time) ([]DueEvent, error) {
	return s.repo.PendingWindow(ctx, patientID, from, to)
}

// PendingWindowAll exposes the pending-dose window across patients for
// the recurring scan.
func (s *Service) PendingWindowAll(ctx context.Context, from, to time.Time) ([]DueEvent, error) {
	return s.repo.PendingWindowAll(ctx, from, to)
}

// Get returns one ledger entry.
func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	return s.repo.GetByID(ctx, id)
}
