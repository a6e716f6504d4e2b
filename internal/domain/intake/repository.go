package intake

import (
	"context"
	"time"
)

// Filter narrows ledger listings.
type Filter struct {
	PatientID    string
	MedicationID string
	Status       Status
	From         *time.Time
	To           *time.Time
}

// Repository persists intake events.
type Repository interface {
	// InsertPending inserts generated events, silently skipping any whose
	// (medication, schedule, scheduled_time) key already exists. Returns
	// the number actually inserted.
	InsertPending(ctx context.Context, events []Event) (int, error)
	GetByID(ctx context.Context, id string) (Event, error)
	Create(ctx context.Context, e Event) error
	Update(ctx context.Context, e Event) error
	Delete(ctx context.Context, id string) error
	// List returns a page of events matching the filter, sorted by
	// scheduled time (falling back to taken_at) descending, plus the
	// total match count.
	List(ctx context.Context, f Filter, page, limit int) ([]Event, int, error)
	// CountByStatus groups a patient's events by (medication, status)
	// within a window.
	CountByStatus(ctx context.Context, patientID string, medicationID string, from, to time.Time) ([]StatusCount, error)
	// PendingWindow returns pending events for one patient inside
	// [from, to], joined with medication details, soonest first.
	PendingWindow(ctx context.Context, patientID string, from, to time.Time) ([]DueEvent, error)
	// PendingWindowAll is PendingWindow across all patients; used by the
	// recurring reminder scan.
	PendingWindowAll(ctx context.Context, from, to time.Time) ([]DueEvent, error)
}
