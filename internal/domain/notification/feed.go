package notification

import (
	"sort"
	"time"

	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/vitals"
)

// BuildFeed merges pending dose events and current vital alerts into
// one ranked feed. Reminder urgency derives from time-to-due: past due
// is high, due within lookahead is medium, everything later is low.
// Alert urgency is high when the threshold is critical, else medium.
// Items sort by urgency first; within equal urgency alerts come before
// reminders, alerts ordered most recent reading first and reminders
// soonest due first. Ranking depends only on now and the item
// timestamps, never on input order.
func BuildFeed(events []intake.DueEvent, alerts []vitals.Alert, now time.Time, lookahead time.Duration) []FeedItem {
	items := make([]FeedItem, 0, len(events)+len(alerts))
	for _, e := range events {
		until := e.ScheduledTime.Sub(now)
		item := FeedItem{
			Kind:           KindReminder,
			EventID:        e.ID,
			MedicationID:   e.MedicationID,
			MedicationName: e.MedicationName,
			Dosage:         e.Dosage,
			Instructions:   e.Instructions,
			ScheduledTime:  e.ScheduledTime,
			MinutesUntil:   int(until.Minutes()),
		}
		switch {
		case until < 0:
			item.Urgency = UrgencyHigh
			item.IsOverdue = true
		case until <= lookahead:
			item.Urgency = UrgencyMedium
		default:
			item.Urgency = UrgencyLow
		}
		items = append(items, item)
	}

	for _, a := range alerts {
		v := a.Value
		item := FeedItem{
			Kind:       KindVitalAlert,
			ReadingID:  a.ReadingID,
			Parameter:  string(a.Parameter),
			Value:      &v,
			IsCritical: a.IsCritical,
			RecordedAt: a.RecordedAt,
			Urgency:    UrgencyMedium,
		}
		if a.IsCritical {
			item.Urgency = UrgencyHigh
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Urgency != items[j].Urgency {
			return items[i].Urgency.rank() > items[j].Urgency.rank()
		}
		if items[i].Kind != items[j].Kind {
			return items[i].Kind == KindVitalAlert
		}
		if items[i].Kind == KindVitalAlert {
			return items[i].RecordedAt.After(items[j].RecordedAt)
		}
		return items[i].ScheduledTime.Before(items[j].ScheduledTime)
	})
	return items
}
