package medication

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// PgRepository is the PostgreSQL implementation of Repository.
type PgRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgRepository creates the repository.
func NewPgRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PgRepository{pool: pool, logger: logger}
}

// Create persists the medication and its schedules in one transaction.
func (r *PgRepository) Create(ctx context.Context, m Medication, schedules []DoseSchedule) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO medications
		(id, patient_id, prescribed_by, name, dosage, form, frequency, instructions, start_date, end_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, m.ID, m.PatientID, m.PrescribedBy, m.Name, m.Dosage, m.Form, m.Frequency,
		m.Instructions, m.StartDate, m.EndDate, m.IsActive, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert medication: %w", err)
	}

	for _, sch := range schedules {
		_, err = tx.Exec(ctx, `
			INSERT INTO dose_schedules
			(id, medication_id, time_of_day, day_mask, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, sch.ID, sch.MedicationID, string(sch.TimeOfDay), int(sch.Days), sch.IsActive, sch.CreatedAt, sch.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert dose schedule: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const medicationColumns = `id, patient_id, prescribed_by, name, dosage, form, frequency, instructions, start_date, end_date, is_active, created_at, updated_at`

// GetByID returns one medication.
func (r *PgRepository) GetByID(ctx context.Context, id string) (Medication, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+medicationColumns+` FROM medications WHERE id = $1`, id)
	m, err := scanMedication(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Medication{}, errs.ErrNotFound
	}
	if err != nil {
		return Medication{}, fmt.Errorf("get medication: %w", err)
	}
	return m, nil
}

// ListByPatient returns a patient's medications, newest start first.
func (r *PgRepository) ListByPatient(ctx context.Context, patientID string, activeOnly bool) ([]Medication, error) {
	query := `SELECT ` + medicationColumns + ` FROM medications WHERE patient_id = $1`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY start_date DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("list medications: %w", err)
	}
	defer rows.Close()
	return collectMedications(rows)
}

// ListActive returns every active medication.
func (r *PgRepository) ListActive(ctx context.Context) ([]Medication, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+medicationColumns+` FROM medications WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active medications: %w", err)
	}
	defer rows.Close()
	return collectMedications(rows)
}

// SchedulesFor returns all dose schedules of a medication.
func (r *PgRepository) SchedulesFor(ctx context.Context, medicationID string) ([]DoseSchedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, medication_id, time_of_day, day_mask, is_active, created_at, updated_at
		FROM dose_schedules
		WHERE medication_id = $1
		ORDER BY time_of_day
	`, medicationID)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []DoseSchedule
	for rows.Next() {
		var sch DoseSchedule
		var tod string
		var mask int
		if err := rows.Scan(&sch.ID, &sch.MedicationID, &tod, &mask, &sch.IsActive, &sch.CreatedAt, &sch.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		sch.TimeOfDay = TimeOfDay(tod)
		sch.Days = DayMask(mask)
		schedules = append(schedules, sch)
	}
	return schedules, rows.Err()
}

// Deactivate soft-deletes a medication and its schedules.
func (r *PgRepository) Deactivate(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE medications SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate medication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	if _, err := tx.Exec(ctx, `UPDATE dose_schedules SET is_active = FALSE, updated_at = NOW() WHERE medication_id = $1`, id); err != nil {
		return fmt.Errorf("deactivate schedules: %w", err)
	}
	return tx.Commit(ctx)
}

// CountActiveByPatient counts a patient's active medications.
func (r *PgRepository) CountActiveByPatient(ctx context.Context, patientID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM medications WHERE patient_id = $1 AND is_active`, patientID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count medications: %w", err)
	}
	return n, nil
}

func scanMedication(row pgx.Row) (Medication, error) {
	var m Medication
	var form string
	err := row.Scan(&m.ID, &m.PatientID, &m.PrescribedBy, &m.Name, &m.Dosage, &form,
		&m.Frequency, &m.Instructions, &m.StartDate, &m.EndDate, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return Medication{}, err
	}
	m.Form = Form(form)
	return m, nil
}

func collectMedications(rows pgx.Rows) ([]Medication, error) {
	var meds []Medication
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		meds = append(meds, m)
	}
	return meds, rows.Err()
}
