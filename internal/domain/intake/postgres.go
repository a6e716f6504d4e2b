package intake

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// PgRepository is the PostgreSQL implementation of Repository. The
// intake_events table carries a unique index on
// (medication_id, COALESCE(schedule_id, ''), scheduled_time) backing the
// idempotent-generation guarantee.
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

// InsertPending bulk-inserts generated events, skipping duplicates.
func (r *PgRepository) InsertPending(ctx context.Context, events []Event) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, e := range events {
		tag, err := tx.Exec(ctx, `
			INSERT INTO intake_events
			(id, medication_id, schedule_id, patient_id, scheduled_time, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (medication_id, (COALESCE(schedule_id, '')), scheduled_time) DO NOTHING
		`, e.ID, e.MedicationID, e.ScheduleID, e.PatientID, e.ScheduledTime, e.Status, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return 0, fmt.Errorf("insert event: %w", err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return inserted, nil
}

const eventColumns = `id, medication_id, schedule_id, patient_id, scheduled_time, taken_at, status, dosage_taken, notes, side_effects, recorded_by, recorded_at, created_at, updated_at`

// GetByID returns one event.
func (r *PgRepository) GetByID(ctx context.Context, id string) (Event, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM intake_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, errs.ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// Create inserts a directly logged entry.
func (r *PgRepository) Create(ctx context.Context, e Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO intake_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, e.ID, e.MedicationID, e.ScheduleID, e.PatientID, e.ScheduledTime, e.TakenAt, e.Status,
		e.DosageTaken, e.Notes, e.SideEffects, nullable(e.RecordedBy), e.RecordedAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert log entry: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of an event.
func (r *PgRepository) Update(ctx context.Context, e Event) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE intake_events
		SET taken_at = $1, status = $2, dosage_taken = $3, notes = $4, side_effects = $5,
		    recorded_by = $6, recorded_at = $7, updated_at = $8
		WHERE id = $9
	`, e.TakenAt, e.Status, e.DosageTaken, e.Notes, e.SideEffects, nullable(e.RecordedBy), e.RecordedAt, e.UpdatedAt, e.ID)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Delete removes an event.
func (r *PgRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM intake_events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// List returns a filtered page plus the total match count.
func (r *PgRepository) List(ctx context.Context, f Filter, page, limit int) ([]Event, int, error) {
	where, args := buildFilter(f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM intake_events`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	query := `SELECT ` + eventColumns + ` FROM intake_events` + where +
		` ORDER BY COALESCE(taken_at, scheduled_time) DESC` +
		` LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, total, rows.Err()
}

// CountByStatus groups events by medication and status within the window.
func (r *PgRepository) CountByStatus(ctx context.Context, patientID, medicationID string, from, to time.Time) ([]StatusCount, error) {
	query := `
		SELECT medication_id, status, COUNT(*)
		FROM intake_events
		WHERE patient_id = $1 AND scheduled_time BETWEEN $2 AND $3
	`
	args := []interface{}{patientID, from, to}
	if medicationID != "" {
		query += ` AND medication_id = $4`
		args = append(args, medicationID)
	}
	query += ` GROUP BY medication_id, status ORDER BY medication_id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	var counts []StatusCount
	for rows.Next() {
		var c StatusCount
		if err := rows.Scan(&c.MedicationID, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// PendingWindow returns one patient's pending doses in the window.
func (r *PgRepository) PendingWindow(ctx context.Context, patientID string, from, to time.Time) ([]DueEvent, error) {
	return r.pendingWindow(ctx, `AND e.patient_id = $3`, from, to, patientID)
}

// PendingWindowAll returns pending doses in the window across patients.
func (r *PgRepository) PendingWindowAll(ctx context.Context, from, to time.Time) ([]DueEvent, error) {
	return r.pendingWindow(ctx, ``, from, to)
}

func (r *PgRepository) pendingWindow(ctx context.Context, extra string, from, to time.Time, extraArgs ...interface{}) ([]DueEvent, error) {
	query := `
		SELECT e.` + strings.ReplaceAll(eventColumns, ", ", ", e.") + `,
		       m.name, m.dosage, m.form, m.instructions
		FROM intake_events e
		JOIN medications m ON m.id = e.medication_id
		WHERE e.status = 'pending'
		  AND e.scheduled_time BETWEEN $1 AND $2
		  ` + extra + `
		ORDER BY e.scheduled_time ASC
	`
	args := append([]interface{}{from, to}, extraArgs...)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pending window: %w", err)
	}
	defer rows.Close()

	var due []DueEvent
	for rows.Next() {
		var d DueEvent
		err := rows.Scan(&d.ID, &d.MedicationID, &d.ScheduleID, &d.PatientID, &d.ScheduledTime,
			&d.TakenAt, &d.Status, &d.DosageTaken, &d.Notes, &d.SideEffects,
			&d.RecordedBy, &d.RecordedAt, &d.CreatedAt, &d.UpdatedAt,
			&d.MedicationName, &d.Dosage, &d.Form, &d.Instructions)
		if err != nil {
			return nil, fmt.Errorf("scan due event: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func buildFilter(f Filter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	add := func(clause string, arg interface{}) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.PatientID != "" {
		add("patient_id = $%d", f.PatientID)
	}
	if f.MedicationID != "" {
		add("medication_id = $%d", f.MedicationID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("COALESCE(taken_at, scheduled_time) >= $%d", *f.From)
	}
	if f.To != nil {
		add("COALESCE(taken_at, scheduled_time) <= $%d", *f.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (Event, error) {
	var e Event
	var recordedBy *string
	err := row.Scan(&e.ID, &e.MedicationID, &e.ScheduleID, &e.PatientID, &e.ScheduledTime,
		&e.TakenAt, &e.Status, &e.DosageTaken, &e.Notes, &e.SideEffects,
		&recordedBy, &e.RecordedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return Event{}, err
	}
	if recordedBy != nil {
		e.RecordedBy = *recordedBy
	}
	return e, nil
}
