// Package medication implements prescriptions and their dosing schedules.
package medication

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Form is the physical form of a medication.
type Form string

const (
	FormTablet    Form = "tablet"
	FormCapsule   Form = "capsule"
	FormLiquid    Form = "liquid"
	FormInjection Form = "injection"
	FormCream     Form = "cream"
	FormInhaler   Form = "inhaler"
)

// Valid reports whether the form is a known enum value.
func (f Form) Valid() bool {
	switch f {
	case FormTablet, FormCapsule, FormLiquid, FormInjection, FormCream, FormInhaler:
		return true
	}
	return false
}

// Medication is a prescribed (or self-entered) drug for a patient.
// Medications are deactivated, never hard-deleted.
type Medication struct {
	ID           string     `json:"id"`
	PatientID    string     `json:"patient_id"`
	PrescribedBy *string    `json:"prescribed_by,omitempty"`
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Form         Form       `json:"form"`
	Frequency    string     `json:"frequency"`
	Instructions string     `json:"instructions,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// DayMask is a 7-bit day-of-week set. Bit n corresponds to time.Weekday n,
// so Sunday is bit 0.
type DayMask uint8

// AllDays permits every weekday.
const AllDays DayMask = 0x7F

// Has reports whether the weekday is permitted.
func (m DayMask) Has(d time.Weekday) bool {
	return m&(1<<uint(d)) != 0
}

// With returns the mask with the weekday added.
func (m DayMask) With(d time.Weekday) DayMask {
	return m | (1 << uint(d))
}

// Empty reports whether no day is permitted.
func (m DayMask) Empty() bool {
	return m&AllDays == 0
}

var timeOfDayRe = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// TimeOfDay is a clock time in "HH:MM" 24h form.
type TimeOfDay string

// ParseTimeOfDay validates and normalizes an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if !timeOfDayRe.MatchString(s) {
		return "", fmt.Errorf("malformed time of day %q", s)
	}
	h, m := splitClock(s)
	return TimeOfDay(fmt.Sprintf("%02d:%02d", h, m)), nil
}

// On places the clock time on the given calendar day.
func (t TimeOfDay) On(day time.Time) time.Time {
	h, m := splitClock(string(t))
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}

func splitClock(s string) (hour, min int) {
	parts := strings.SplitN(s, ":", 2)
	hour, _ = strconv.Atoi(parts[0])
	if len(parts) == 2 {
		min, _ = strconv.Atoi(parts[1])
	}
	return hour, min
}

// DoseSchedule is one clock time plus a day-of-week pattern for a
// medication. Immutable once created except for the active flag.
type DoseSchedule struct {
	ID           string    `json:"id"`
	MedicationID string    `json:"medication_id"`
	TimeOfDay    TimeOfDay `json:"time_of_day"`
	Days         DayMask   `json:"days"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
