package medication

import "context"

// Repository persists medications and their dose schedules.
type Repository interface {
	Create(ctx context.Context, m Medication, schedules []DoseSchedule) error
	GetByID(ctx context.Context, id string) (Medication, error)
	ListByPatient(ctx context.Context, patientID string, activeOnly bool) ([]Medication, error)
	// ListActive returns every active medication across patients. Used by
	// the daily horizon regeneration scan.
	ListActive(ctx context.Context) ([]Medication, error)
	SchedulesFor(ctx context.Context, medicationID string) ([]DoseSchedule, error)
	Deactivate(ctx context.Context, id string) error
	CountActiveByPatient(ctx context.Context, patientID string) (int, error)
}
