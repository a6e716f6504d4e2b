package vitals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// PgRepository persists readings and thresholds in PostgreSQL.
type PgRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgRepository {
	return &PgRepository{pool: pool, logger: logger}
}

const readingColumns = `id, patient_id, recorded_by, recorded_by_role,
	systolic_bp, diastolic_bp, heart_rate, respiratory_rate, temperature,
	oxygen_saturation, blood_glucose, weight_kg, pain_level,
	notes, recorded_at, created_at`

func (r *PgRepository) CreateReading(ctx context.Context, reading *Reading) error {
	query := `
		INSERT INTO vital_readings (` + readingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.pool.Exec(ctx, query,
		reading.ID, reading.PatientID, reading.RecordedBy, reading.RecordedByRole,
		reading.SystolicBP, reading.DiastolicBP, reading.HeartRate, reading.RespiratoryRate,
		reading.Temperature, reading.OxygenSaturation, reading.BloodGlucose,
		reading.WeightKg, reading.PainLevel,
		reading.Notes, reading.RecordedAt, reading.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting vital reading: %w", err)
	}
	return nil
}

func (r *PgRepository) GetReading(ctx context.Context, id string) (*Reading, error) {
	query := `SELECT ` + readingColumns + ` FROM vital_readings WHERE id = $1`
	reading, err := scanReading(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("querying vital reading: %w", err)
	}
	return reading, nil
}

func (r *PgRepository) ListReadings(ctx context.Context, patientID string, from, to *time.Time, page, limit int) ([]Reading, int, error) {
	where := `WHERE patient_id = $1`
	args := []interface{}{patientID}
	if from != nil {
		args = append(args, *from)
		where += fmt.Sprintf(` AND recorded_at >= $%d`, len(args))
	}
	if to != nil {
		args = append(args, *to)
		where += fmt.Sprintf(` AND recorded_at <= $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vital_readings `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting vital readings: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT `+readingColumns+` FROM vital_readings %s
		ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying vital readings: %w", err)
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		reading, err := scanReading(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning vital reading: %w", err)
		}
		readings = append(readings, *reading)
	}
	return readings, total, rows.Err()
}

// Trends aggregates one parameter per calendar day. The parameter has
// been validated by the service, so interpolating the column name is
// safe against the fixed Parameters set.
func (r *PgRepository) Trends(ctx context.Context, patientID string, param Parameter, from, to time.Time) ([]TrendPoint, error) {
	col := string(param)
	query := fmt.Sprintf(`
		SELECT to_char(recorded_at::date, 'YYYY-MM-DD') AS day,
		       AVG(%s), MIN(%s), MAX(%s), COUNT(*)
		FROM vital_readings
		WHERE patient_id = $1 AND %s IS NOT NULL
		  AND recorded_at >= $2 AND recorded_at <= $3
		GROUP BY day
		ORDER BY day ASC`, col, col, col, col)
	rows, err := r.pool.Query(ctx, query, patientID, from, to)
	if err != nil {
		return nil, fmt.Errorf("querying vital trends: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Date, &p.Average, &p.Min, &p.Max, &p.Count); err != nil {
			return nil, fmt.Errorf("scanning trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (r *PgRepository) UpsertThreshold(ctx context.Context, t *Threshold) error {
	query := `
		INSERT INTO vital_thresholds (id, patient_id, set_by, parameter, min_value, max_value, is_critical, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (patient_id, parameter) DO UPDATE SET
			set_by = EXCLUDED.set_by,
			min_value = EXCLUDED.min_value,
			max_value = EXCLUDED.max_value,
			is_critical = EXCLUDED.is_critical,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query,
		t.ID, t.PatientID, t.SetBy, string(t.Parameter),
		t.Min, t.Max, t.IsCritical, t.CreatedAt, t.UpdatedAt).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting vital threshold: %w", err)
	}
	return nil
}

func (r *PgRepository) ListThresholds(ctx context.Context, patientID string) ([]Threshold, error) {
	query := `
		SELECT id, patient_id, set_by, parameter, min_value, max_value, is_critical, created_at, updated_at
		FROM vital_thresholds
		WHERE patient_id = $1
		ORDER BY parameter ASC`
	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("querying vital thresholds: %w", err)
	}
	defer rows.Close()

	var thresholds []Threshold
	for rows.Next() {
		var t Threshold
		var param string
		if err := rows.Scan(&t.ID, &t.PatientID, &t.SetBy, &param,
			&t.Min, &t.Max, &t.IsCritical, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning vital threshold: %w", err)
		}
		t.Parameter = Parameter(param)
		thresholds = append(thresholds, t)
	}
	return thresholds, rows.Err()
}

func (r *PgRepository) DeleteThreshold(ctx context.Context, patientID string, param Parameter) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM vital_thresholds WHERE patient_id = $1 AND parameter = $2`,
		patientID, string(param))
	if err != nil {
		return fmt.Errorf("deleting vital threshold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReading(row rowScanner) (*Reading, error) {
	var reading Reading
	err := row.Scan(
		&reading.ID, &reading.PatientID, &reading.RecordedBy, &reading.RecordedByRole,
		&reading.SystolicBP, &reading.DiastolicBP, &reading.HeartRate, &reading.RespiratoryRate,
		&reading.Temperature, &reading.OxygenSaturation, &reading.BloodGlucose,
		&reading.WeightKg, &reading.PainLevel,
		&reading.Notes, &reading.RecordedAt, &reading.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &reading, nil
}
