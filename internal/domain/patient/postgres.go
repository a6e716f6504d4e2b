package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// PgRepository persists profiles and links in PostgreSQL.
type PgRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPgRepository(pool *pgxpool.Pool, logger *zap.Logger) *PgRepository {
	return &PgRepository{pool: pool, logger: logger}
}

const patientColumns = `id, user_id, first_name, last_name, date_of_birth, gender,
	phone, address, emergency_contact_name, emergency_contact_phone,
	blood_type, height_cm, allergies, medical_conditions, created_at, updated_at`

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.UserID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Address, p.EmergencyContactName, p.EmergencyContactPhone,
		p.BloodType, p.HeightCm, p.Allergies, p.MedicalConditions, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting patient: %w", err)
	}
	return nil
}

func (r *PgRepository) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return r.getPatient(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
}

func (r *PgRepository) GetPatientByUserID(ctx context.Context, userID string) (*Patient, error) {
	return r.getPatient(ctx, `SELECT `+patientColumns+` FROM patients WHERE user_id = $1`, userID)
}

func (r *PgRepository) getPatient(ctx context.Context, query, arg string) (*Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("querying patient: %w", err)
	}
	return p, nil
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p *Patient) error {
	query := `
		UPDATE patients SET
			first_name = $2, last_name = $3, date_of_birth = $4, gender = $5,
			phone = $6, address = $7, emergency_contact_name = $8,
			emergency_contact_phone = $9, blood_type = $10, height_cm = $11,
			allergies = $12, medical_conditions = $13, updated_at = $14
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		p.ID, p.FirstName, p.LastName, p.DateOfBirth, p.Gender,
		p.Phone, p.Address, p.EmergencyContactName, p.EmergencyContactPhone,
		p.BloodType, p.HeightCm, p.Allergies, p.MedicalConditions, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

const doctorColumns = `id, user_id, first_name, last_name, specialty, license_number, phone, created_at, updated_at`

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) error {
	query := `
		INSERT INTO doctors (` + doctorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		d.ID, d.UserID, d.FirstName, d.LastName, d.Specialty, d.LicenseNumber,
		d.Phone, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting doctor: %w", err)
	}
	return nil
}

func (r *PgRepository) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	return r.getDoctor(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID string) (*Doctor, error) {
	return r.getDoctor(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE user_id = $1`, userID)
}

func (r *PgRepository) getDoctor(ctx context.Context, query, arg string) (*Doctor, error) {
	d, err := scanDoctor(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("querying doctor: %w", err)
	}
	return d, nil
}

func (r *PgRepository) UpdateDoctor(ctx context.Context, d *Doctor) error {
	query := `
		UPDATE doctors SET
			first_name = $2, last_name = $3, specialty = $4,
			license_number = $5, phone = $6, updated_at = $7
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		d.ID, d.FirstName, d.LastName, d.Specialty, d.LicenseNumber, d.Phone, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating doctor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PgRepository) SearchDoctors(ctx context.Context, query, specialty string, page, limit int) ([]Doctor, int, error) {
	where := `WHERE TRUE`
	args := []interface{}{}
	if query != "" {
		args = append(args, "%"+query+"%")
		where += fmt.Sprintf(` AND (first_name ILIKE $%d OR last_name ILIKE $%d)`, len(args), len(args))
	}
	if specialty != "" {
		args = append(args, "%"+specialty+"%")
		where += fmt.Sprintf(` AND specialty ILIKE $%d`, len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM doctors `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting doctors: %w", err)
	}

	args = append(args, limit, (page-1)*limit)
	sql := fmt.Sprintf(`SELECT `+doctorColumns+` FROM doctors %s
		ORDER BY last_name ASC, first_name ASC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning doctor: %w", err)
		}
		doctors = append(doctors, *d)
	}
	return doctors, total, rows.Err()
}

// UpsertLink creates the link or flips an inactive one back to active.
func (r *PgRepository) UpsertLink(ctx context.Context, doctorID, patientID string) (*Link, error) {
	query := `
		INSERT INTO doctor_patient_links (doctor_id, patient_id, status)
		VALUES ($1, $2, 'active')
		ON CONFLICT (doctor_id, patient_id) DO UPDATE SET
			status = 'active', updated_at = NOW()
		RETURNING id, doctor_id, patient_id, status, created_at, updated_at`
	var l Link
	var status string
	err := r.pool.QueryRow(ctx, query, doctorID, patientID).Scan(
		&l.ID, &l.DoctorID, &l.PatientID, &status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("upserting doctor-patient link: %w", err)
	}
	l.Status = LinkStatus(status)
	return &l, nil
}

func (r *PgRepository) DeactivateLink(ctx context.Context, doctorID, patientID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE doctor_patient_links SET status = 'inactive', updated_at = NOW()
		WHERE doctor_id = $1 AND patient_id = $2 AND status = 'active'`,
		doctorID, patientID)
	if err != nil {
		return fmt.Errorf("deactivating doctor-patient link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *PgRepository) HasActiveLink(ctx context.Context, doctorID, patientID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM doctor_patient_links
			WHERE doctor_id = $1 AND patient_id = $2 AND status = 'active'
		)`, doctorID, patientID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking doctor-patient link: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) ListPatientsByDoctor(ctx context.Context, doctorID string) ([]Patient, error) {
	query := `
		SELECT ` + prefixed(patientColumns, "p.") + `
		FROM patients p
		JOIN doctor_patient_links l ON l.patient_id = p.id
		WHERE l.doctor_id = $1 AND l.status = 'active'
		ORDER BY p.last_name ASC, p.first_name ASC`
	rows, err := r.pool.Query(ctx, query, doctorID)
	if err != nil {
		return nil, fmt.Errorf("querying doctor's patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

func (r *PgRepository) ListDoctorsByPatient(ctx context.Context, patientID string) ([]Doctor, error) {
	query := `
		SELECT ` + prefixed(doctorColumns, "d.") + `
		FROM doctors d
		JOIN doctor_patient_links l ON l.doctor_id = d.id
		WHERE l.patient_id = $1 AND l.status = 'active'
		ORDER BY d.last_name ASC, d.first_name ASC`
	rows, err := r.pool.Query(ctx, query, patientID)
	if err != nil {
		return nil, fmt.Errorf("querying patient's doctors: %w", err)
	}
	defer rows.Close()

	var doctors []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning doctor: %w", err)
		}
		doctors = append(doctors, *d)
	}
	return doctors, rows.Err()
}

func (r *PgRepository) CountActiveDoctors(ctx context.Context, patientID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM doctor_patient_links
		WHERE patient_id = $1 AND status = 'active'`, patientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting patient's doctors: %w", err)
	}
	return count, nil
}

// PatientActivity pulls recency signals from the reading, dose, and
// notification tables in one round trip.
func (r *PgRepository) PatientActivity(ctx context.Context, patientID string, since time.Time) (*Activity, error) {
	query := `
		SELECT
			(SELECT MAX(recorded_at) FROM vital_readings WHERE patient_id = $1),
			(SELECT MAX(taken_at) FROM intake_events WHERE patient_id = $1 AND taken_at IS NOT NULL),
			EXISTS (
				SELECT 1 FROM notifications
				WHERE user_id = $1 AND type = 'vital_alert' AND NOT is_read AND created_at >= $2
			)`
	var a Activity
	err := r.pool.QueryRow(ctx, query, patientID, since).Scan(
		&a.LastReadingAt, &a.LastIntakeAt, &a.RecentAlert)
	if err != nil {
		return nil, fmt.Errorf("querying patient activity: %w", err)
	}
	return &a, nil
}

// prefixed qualifies every column in a comma separated list.
func prefixed(columns, prefix string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	err := row.Scan(
		&p.ID, &p.UserID, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender,
		&p.Phone, &p.Address, &p.EmergencyContactName, &p.EmergencyContactPhone,
		&p.BloodType, &p.HeightCm, &p.Allergies, &p.MedicalConditions,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row rowScanner) (*Doctor, error) {
	var d Doctor
	err := row.Scan(
		&d.ID, &d.UserID, &d.FirstName, &d.LastName, &d.Specialty,
		&d.LicenseNumber, &d.Phone, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
