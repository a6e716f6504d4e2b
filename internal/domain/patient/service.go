package patient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/vitals"
)

// MedicationCounter reports how many active medications a patient has.
type MedicationCounter interface {
	CountActive(ctx context.Context, patientID string) (int, error)
}

// IntakeStats supplies adherence and pending-dose data.
type IntakeStats interface {
	Adherence(ctx context.Context, patientID, medicationID string, window time.Duration) ([]intake.AdherenceReport, error)
	PendingWindow(ctx context.Context, patientID string, from, to time.Time) ([]intake.DueEvent, error)
}

// VitalStats supplies recent readings.
type VitalStats interface {
	ListReadings(ctx context.Context, patientID string, from, to *time.Time, page, limit int) ([]vitals.Reading, int, error)
}

// Service manages profiles, doctor-patient links, and the aggregate
// views built on top of them.
type Service struct {
	repo   Repository
	meds   MedicationCounter
	doses  IntakeStats
	vitals VitalStats
	logger *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, meds MedicationCounter, doses IntakeStats, vs VitalStats, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		meds:   meds,
		doses:  doses,
		vitals: vs,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) GetPatient(ctx context.Context, id string) (*Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) GetPatientByUserID(ctx context.Context, userID string) (*Patient, error) {
	return s.repo.GetPatientByUserID(ctx, userID)
}

// PatientInput carries a profile update. Nil fields stay unchanged.
type PatientInput struct {
	FirstName             *string
	LastName              *string
	DateOfBirth           *time.Time
	Gender                *string
	Phone                 *string
	Address               *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
	BloodType             *string
	HeightCm              *float64
	Allergies             []string
	MedicalConditions     []string
}

func (s *Service) UpdatePatient(ctx context.Context, id string, in PatientInput) (*Patient, error) {
	p, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		if *in.FirstName == "" {
			return nil, errs.Validation("first_name", "must not be empty")
		}
		p.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		if *in.LastName == "" {
			return nil, errs.Validation("last_name", "must not be empty")
		}
		p.LastName = *in.LastName
	}
	if in.DateOfBirth != nil {
		if in.DateOfBirth.After(s.now()) {
			return nil, errs.Validation("date_of_birth", "must not be in the future")
		}
		p.DateOfBirth = in.DateOfBirth
	}
	if in.Gender != nil {
		p.Gender = *in.Gender
	}
	if in.Phone != nil {
		p.Phone = *in.Phone
	}
	if in.Address != nil {
		p.Address = *in.Address
	}
	if in.EmergencyContactName != nil {
		p.EmergencyContactName = *in.EmergencyContactName
	}
	if in.EmergencyContactPhone != nil {
		p.EmergencyContactPhone = *in.EmergencyContactPhone
	}
	if in.BloodType != nil {
		p.BloodType = *in.BloodType
	}
	if in.HeightCm != nil {
		if *in.HeightCm <= 0 || *in.HeightCm > 300 {
			return nil, errs.Validation("height_cm", "must be between 0 and 300")
		}
		p.HeightCm = in.HeightCm
	}
	if in.Allergies != nil {
		p.Allergies = in.Allergies
	}
	if in.MedicalConditions != nil {
		p.MedicalConditions = in.MedicalConditions
	}
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdatePatient(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetDoctor(ctx context.Context, id string) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

func (s *Service) GetDoctorByUserID(ctx context.Context, userID string) (*Doctor, error) {
	return s.repo.GetDoctorByUserID(ctx, userID)
}

// DoctorInput carries a doctor profile update.
type DoctorInput struct {
	FirstName     *string
	LastName      *string
	Specialty     *string
	LicenseNumber *string
	Phone         *string
}

func (s *Service) UpdateDoctor(ctx context.Context, id string, in DoctorInput) (*Doctor, error) {
	d, err := s.repo.GetDoctor(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.FirstName != nil {
		if *in.FirstName == "" {
			return nil, errs.Validation("first_name", "must not be empty")
		}
		d.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		if *in.LastName == "" {
			return nil, errs.Validation("last_name", "must not be empty")
		}
		d.LastName = *in.LastName
	}
	if in.Specialty != nil {
		d.Specialty = *in.Specialty
	}
	if in.LicenseNumber != nil {
		d.LicenseNumber = *in.LicenseNumber
	}
	if in.Phone != nil {
		d.Phone = *in.Phone
	}
	d.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateDoctor(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// SearchDoctors finds doctors by name or specialty.
func (s *Service) SearchDoctors(ctx context.Context, query, specialty string, page, limit int) ([]Doctor, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.SearchDoctors(ctx, query, specialty, page, limit)
}

// LinkDoctor establishes (or re-activates) a doctor-patient link.
func (s *Service) LinkDoctor(ctx context.Context, doctorID, patientID string) (*Link, error) {
	if _, err := s.repo.GetDoctor(ctx, doctorID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	return s.repo.UpsertLink(ctx, doctorID, patientID)
}

// UnlinkDoctor deactivates the link; access stops immediately.
func (s *Service) UnlinkDoctor(ctx context.Context, doctorID, patientID string) error {
	return s.repo.DeactivateLink(ctx, doctorID, patientID)
}

func (s *Service) DoctorsForPatient(ctx context.Context, patientID string) ([]Doctor, error) {
	return s.repo.ListDoctorsByPatient(ctx, patientID)
}

// MyPatients returns a doctor's roster with recent-activity
// annotations. Activity lookups that fail degrade to plain rows.
func (s *Service) MyPatients(ctx context.Context, doctorID string) ([]PatientOverview, error) {
	patients, err := s.repo.ListPatientsByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	since := s.now().UTC().Add(-7 * 24 * time.Hour)
	overviews := make([]PatientOverview, 0, len(patients))
	for _, p := range patients {
		ov := PatientOverview{Patient: p}
		if n, err := s.meds.CountActive(ctx, p.ID); err == nil {
			ov.ActiveMeds = n
		}
		act, err := s.repo.PatientActivity(ctx, p.ID, since)
		if err != nil {
			s.logger.Warn("patient activity lookup failed",
				zap.String("patient_id", p.ID), zap.Error(err))
		} else {
			ov.LastReadingAt = act.LastReadingAt
			ov.LastIntakeAt = act.LastIntakeAt
			ov.UnresolvedAlert = act.RecentAlert
		}
		overviews = append(overviews, ov)
	}
	return overviews, nil
}

// Summary builds the health summary for one patient.
func (s *Service) Summary(ctx context.Context, patientID string) (*HealthSummary, error) {
	p, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sum := &HealthSummary{PatientID: patientID}

	if n, err := s.meds.CountActive(ctx, patientID); err == nil {
		sum.ActiveMeds = n
	}
	if n, err := s.repo.CountActiveDoctors(ctx, patientID); err == nil {
		sum.LinkedDoctors = n
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	if readings, total, err := s.vitals.ListReadings(ctx, patientID, &weekAgo, nil, 1, 100); err == nil {
		sum.ReadingsLast7d = total
		for _, r := range readings {
			if r.WeightKg != nil {
				sum.LatestWeightKg = r.WeightKg
				break
			}
		}
	}
	sum.BMI = ComputeBMI(sum.LatestWeightKg, p.HeightCm)

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if pending, err := s.doses.PendingWindow(ctx, patientID, startOfDay, startOfDay.Add(24*time.Hour)); err == nil {
		sum.PendingDoses = len(pending)
	}

	if reports, err := s.doses.Adherence(ctx, patientID, "", 30*24*time.Hour); err == nil {
		var total, taken int
		for _, rep := range reports {
			total += rep.TotalDoses
			taken += rep.TakenDoses
		}
		if total > 0 {
			sum.AdherenceRatio = float64(taken) / float64(total)
		}
	}
	return sum, nil
}
