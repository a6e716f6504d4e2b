package patient

import (
	"context"
	"time"
)

// Activity is raw recency data for one patient on a doctor's roster.
type Activity struct {
	LastReadingAt *time.Time
	LastIntakeAt  *time.Time
	RecentAlert   bool
}

// Repository is the storage contract for profiles and links.
type Repository interface {
	CreatePatient(ctx context.Context, p *Patient) error
	GetPatient(ctx context.Context, id string) (*Patient, error)
	GetPatientByUserID(ctx context.Context, userID string) (*Patient, error)
	UpdatePatient(ctx context.Context, p *Patient) error

	CreateDoctor(ctx context.Context, d *Doctor) error
	GetDoctor(ctx context.Context, id string) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID string) (*Doctor, error)
	UpdateDoctor(ctx context.Context, d *Doctor) error
	SearchDoctors(ctx context.Context, query, specialty string, page, limit int) ([]Doctor, int, error)

	UpsertLink(ctx context.Context, doctorID, patientID string) (*Link, error)
	DeactivateLink(ctx context.Context, doctorID, patientID string) error
	HasActiveLink(ctx context.Context, doctorID, patientID string) (bool, error)
	ListPatientsByDoctor(ctx context.Context, doctorID string) ([]Patient, error)
	ListDoctorsByPatient(ctx context.Context, patientID string) ([]Doctor, error)
	CountActiveDoctors(ctx context.Context, patientID string) (int, error)

	PatientActivity(ctx context.Context, patientID string, since time.Time) (*Activity, error)
}
