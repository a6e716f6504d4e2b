// Package intake implements the dose-event ledger: generation of expected
// doses, status transitions, and adherence statistics.
package intake

import "time"

// Status is the lifecycle state of an intake event.
type Status string

const (
	StatusPending Status = "pending"
	StatusTaken   Status = "taken"
	StatusMissed  Status = "missed"
	StatusSkipped Status = "skipped"
	StatusPartial Status = "partial"
)

// Valid reports whether the status is a known enum value.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusTaken, StatusMissed, StatusSkipped, StatusPartial:
		return true
	}
	return false
}

// Terminal reports whether the status is a recordable outcome. Pending is
// the generated initial state and never a valid recording input.
func (s Status) Terminal() bool {
	return s.Valid() && s != StatusPending
}

// Event is one concrete expected dose. Generated events reference the
// schedule slot they came from; directly logged entries carry only the
// medication reference.
type Event struct {
	ID            string     `json:"id"`
	MedicationID  string     `json:"medication_id"`
	ScheduleID    *string    `json:"schedule_id,omitempty"`
	PatientID     string     `json:"patient_id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	TakenAt       *time.Time `json:"taken_at,omitempty"`
	Status        Status     `json:"status"`
	DosageTaken   string     `json:"dosage_taken,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	SideEffects   []string   `json:"side_effects,omitempty"`
	RecordedBy    string     `json:"recorded_by,omitempty"`
	RecordedAt    *time.Time `json:"recorded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DueEvent is a pending event joined with the medication details needed
// to present a reminder.
type DueEvent struct {
	Event
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Form           string `json:"form"`
	Instructions   string `json:"instructions,omitempty"`
}

// StatusCount is the number of a medication's events in one status.
type StatusCount struct {
	MedicationID string
	Status       Status
	Count        int
}
