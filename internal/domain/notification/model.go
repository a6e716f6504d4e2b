// Package notification implements the reminder feed, persisted
// notifications, and per-user delivery preferences.
package notification

import (
	"encoding/json"
	"time"
)

// Type classifies a persisted notification.
type Type string

const (
	TypeMedicationReminder Type = "medication_reminder"
	TypeVitalAlert         Type = "vital_alert"
	TypeSystem             Type = "system"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMedicationReminder, TypeVitalAlert, TypeSystem:
		return true
	}
	return false
}

// Urgency ranks a feed item. Ordering is high > medium > low.
type Urgency string

const (
	UrgencyHigh   Urgency = "high"
	UrgencyMedium Urgency = "medium"
	UrgencyLow    Urgency = "low"
)

// rank maps urgency to a sortable weight; higher is more urgent.
func (u Urgency) rank() int {
	switch u {
	case UrgencyHigh:
		return 2
	case UrgencyMedium:
		return 1
	}
	return 0
}

// Notification is one persisted inbox entry for a user.
type Notification struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Type      Type            `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data,omitempty"`
	IsRead    bool            `json:"is_read"`
	ReadAt    *time.Time      `json:"read_at,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// marshalEvent encodes the notification as an outbox payload for
// downstream delivery channels.
func (n *Notification) marshalEvent() (json.RawMessage, error) {
	return json.Marshal(struct {
		ID        string          `json:"notification_id"`
		UserID    string          `json:"user_id"`
		Type      Type            `json:"type"`
		Title     string          `json:"title"`
		Message   string          `json:"message"`
		Data      json.RawMessage `json:"data,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
	}{n.ID, n.UserID, n.Type, n.Title, n.Message, n.Data, n.CreatedAt})
}

// FeedKind distinguishes the two entry shapes of the computed feed.
type FeedKind string

const (
	KindReminder   FeedKind = "medication_reminder"
	KindVitalAlert FeedKind = "vital_alert"
)

// FeedItem is one entry of the computed feed: a dose reminder or a
// vital alert. The feed is derived on demand from pending dose events
// plus re-evaluated readings and is never stored. Reminder entries
// carry the medication fields; alert entries carry the reading fields.
type FeedItem struct {
	Kind           FeedKind  `json:"kind"`
	Urgency        Urgency   `json:"urgency"`
	EventID        string    `json:"event_id,omitempty"`
	MedicationID   string    `json:"medication_id,omitempty"`
	MedicationName string    `json:"medication_name,omitempty"`
	Dosage         string    `json:"dosage,omitempty"`
	Instructions   string    `json:"instructions,omitempty"`
	ScheduledTime  time.Time `json:"scheduled_time,omitzero"`
	IsOverdue      bool      `json:"is_overdue,omitempty"`
	MinutesUntil   int       `json:"minutes_until_due,omitempty"`
	ReadingID      string    `json:"reading_id,omitempty"`
	Parameter      string    `json:"parameter,omitempty"`
	Value          *float64  `json:"value,omitempty"`
	IsCritical     bool      `json:"is_critical,omitempty"`
	RecordedAt     time.Time `json:"recorded_at,omitzero"`
}

// Preferences controls which notification types reach a user.
type Preferences struct {
	UserID              string     `json:"user_id"`
	MedicationReminders bool       `json:"medication_reminders"`
	VitalAlerts         bool       `json:"vital_alerts"`
	SystemNotices       bool       `json:"system_notices"`
	QuietHoursStart     *string    `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd       *string    `json:"quiet_hours_end,omitempty"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DefaultPreferences is what a user gets before an explicit update.
func DefaultPreferences(userID string) *Preferences {
	return &Preferences{
		UserID:              userID,
		MedicationReminders: true,
		VitalAlerts:         true,
		SystemNotices:       true,
	}
}

// Allows reports whether a notification type passes the preferences.
func (p *Preferences) Allows(t Type) bool {
	switch t {
	case TypeMedicationReminder:
		return p.MedicationReminders
	case TypeVitalAlert:
		return p.VitalAlerts
	case TypeSystem:
		return p.SystemNotices
	}
	return false
}
