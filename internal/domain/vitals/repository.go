package vitals

import (
	"context"
	"time"
)

// Repository is the storage contract for readings and thresholds.
type Repository interface {
	CreateReading(ctx context.Context, r *Reading) error
	GetReading(ctx context.Context, id string) (*Reading, error)
	ListReadings(ctx context.Context, patientID string, from, to *time.Time, page, limit int) ([]Reading, int, error)
	Trends(ctx context.Context, patientID string, param Parameter, from, to time.Time) ([]TrendPoint, error)

	UpsertThreshold(ctx context.Context, t *Threshold) error
	ListThresholds(ctx context.Context, patientID string) ([]Threshold, error)
	DeleteThreshold(ctx context.Context, patientID string, param Parameter) error
}
