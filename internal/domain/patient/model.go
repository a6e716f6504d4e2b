// Package patient implements patient and doctor profiles, the
// doctor-patient relationship, and record access control.
package patient

import "time"

// Patient is a patient profile. UserID links it to the login account.
type Patient struct {
	ID                    string     `json:"id"`
	UserID                string     `json:"user_id"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	DateOfBirth           *time.Time `json:"date_of_birth,omitempty"`
	Gender                string     `json:"gender,omitempty"`
	Phone                 string     `json:"phone,omitempty"`
	Address               string     `json:"address,omitempty"`
	EmergencyContactName  string     `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string     `json:"emergency_contact_phone,omitempty"`
	BloodType             string     `json:"blood_type,omitempty"`
	HeightCm              *float64   `json:"height_cm,omitempty"`
	Allergies             []string   `json:"allergies,omitempty"`
	MedicalConditions     []string   `json:"medical_conditions,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// FullName joins first and last names for display.
func (p *Patient) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Doctor is a practitioner profile.
type Doctor struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Specialty     string    `json:"specialty,omitempty"`
	LicenseNumber string    `json:"license_number,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LinkStatus is the state of a doctor-patient relationship. Only
// active links grant record access; links are deactivated, not
// deleted, so the care history keeps its audit trail.
type LinkStatus string

const (
	LinkActive   LinkStatus = "active"
	LinkInactive LinkStatus = "inactive"
)

// Link ties a doctor to a patient.
type Link struct {
	ID        string     `json:"id"`
	DoctorID  string     `json:"doctor_id"`
	PatientID string     `json:"patient_id"`
	Status    LinkStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// PatientOverview is one row of a doctor's patient roster, annotated
// with recent activity.
type PatientOverview struct {
	Patient         Patient    `json:"patient"`
	ActiveMeds      int        `json:"active_medications"`
	LastReadingAt   *time.Time `json:"last_reading_at,omitempty"`
	LastIntakeAt    *time.Time `json:"last_intake_at,omitempty"`
	UnresolvedAlert bool       `json:"has_recent_alert"`
}

// HealthSummary condenses a patient's current state for dashboards.
type HealthSummary struct {
	PatientID        string   `json:"patient_id"`
	ActiveMeds       int      `json:"active_medications"`
	ReadingsLast7d   int      `json:"readings_last_7_days"`
	PendingDoses     int      `json:"pending_doses_today"`
	AdherenceRatio   float64  `json:"adherence_ratio_30d"`
	LatestWeightKg   *float64 `json:"latest_weight_kg,omitempty"`
	BMI              *float64 `json:"bmi,omitempty"`
	LinkedDoctors    int      `json:"linked_doctors"`
}

// ComputeBMI returns weight in kg over squared height in meters, nil
// when either input is missing or non-positive.
func ComputeBMI(weightKg, heightCm *float64) *float64 {
	if weightKg == nil || heightCm == nil || *weightKg <= 0 || *heightCm <= 0 {
		return nil
	}
	m := *heightCm / 100
	bmi := *weightKg / (m * m)
	return &bmi
}
