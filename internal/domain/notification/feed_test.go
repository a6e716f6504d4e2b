package notification

import (
	"context"
	"testing"
	"time"

	"github.com/caretrack/go-caretrack/internal/domain/intake"
	"github.com/caretrack/go-caretrack/internal/domain/vitals"
)

func dueEvent(id string, scheduled time.Time) intake.DueEvent {
	return intake.DueEvent{
		Event: intake.Event{
			ID:            id,
			MedicationID:  "med-1",
			PatientID:     "patient-1",
			ScheduledTime: scheduled,
			Status:        intake.StatusPending,
		},
		MedicationName: "Lisinopril",
		Dosage:         "10mg",
	}
}

func vitalAlert(readingID string, critical bool, recorded time.Time) vitals.Alert {
	max := 140.0
	return vitals.Alert{
		ReadingID:  readingID,
		Parameter:  vitals.ParamSystolicBP,
		Value:      155,
		Max:        &max,
		IsCritical: critical,
		RecordedAt: recorded,
	}
}

func TestBuildFeedUrgency(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	lookahead := 30 * time.Minute

	events := []intake.DueEvent{
		dueEvent("overdue", now.Add(-2*time.Hour)),
		dueEvent("soon", now.Add(15*time.Minute)),
		dueEvent("later", now.Add(4*time.Hour)),
	}

	items := BuildFeed(events, nil, now, lookahead)
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3", len(items))
	}

	if items[0].EventID != "overdue" || items[0].Urgency != UrgencyHigh || !items[0].IsOverdue {
		t.Errorf("first item = %+v, want overdue/high", items[0])
	}
	if items[1].EventID != "soon" || items[1].Urgency != UrgencyMedium {
		t.Errorf("second item = %+v, want soon/medium", items[1])
	}
	if items[2].EventID != "later" || items[2].Urgency != UrgencyLow {
		t.Errorf("third item = %+v, want later/low", items[2])
	}

	if items[0].MinutesUntil != -120 {
		t.Errorf("overdue minutes_until = %d, want -120", items[0].MinutesUntil)
	}
	for _, it := range items {
		if it.Kind != KindReminder {
			t.Errorf("item %s kind = %s, want %s", it.EventID, it.Kind, KindReminder)
		}
	}
}

func TestBuildFeedMergesVitalAlerts(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	events := []intake.DueEvent{
		dueEvent("overdue", now.Add(-1*time.Hour)),
		dueEvent("soon", now.Add(20*time.Minute)),
	}
	alerts := []vitals.Alert{
		vitalAlert("r-critical", true, now.Add(-10*time.Minute)),
		vitalAlert("r-warning", false, now.Add(-5*time.Minute)),
	}

	items := BuildFeed(events, alerts, now, 30*time.Minute)
	if len(items) != 4 {
		t.Fatalf("got %d items, want 4", len(items))
	}

	// High tier: the critical alert leads, then the overdue dose.
	// Medium tier: the warning alert, then the upcoming dose.
	want := []struct {
		kind    FeedKind
		id      string
		urgency Urgency
	}{
		{KindVitalAlert, "r-critical", UrgencyHigh},
		{KindReminder, "overdue", UrgencyHigh},
		{KindVitalAlert, "r-warning", UrgencyMedium},
		{KindReminder, "soon", UrgencyMedium},
	}
	for i, w := range want {
		got := items[i]
		id := got.EventID
		if w.kind == KindVitalAlert {
			id = got.ReadingID
		}
		if got.Kind != w.kind || id != w.id || got.Urgency != w.urgency {
			t.Errorf("item %d = kind %s id %s urgency %s, want %s/%s/%s",
				i, got.Kind, id, got.Urgency, w.kind, w.id, w.urgency)
		}
	}

	if items[0].Value == nil || *items[0].Value != 155 {
		t.Errorf("alert value not carried: %+v", items[0])
	}
	if !items[0].IsCritical {
		t.Error("critical flag not carried")
	}
}

func TestBuildFeedAlertsMostRecentReadingFirst(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	items := BuildFeed(nil, []vitals.Alert{
		vitalAlert("old", true, now.Add(-3*time.Hour)),
		vitalAlert("fresh", true, now.Add(-10*time.Minute)),
	}, now, 30*time.Minute)

	if items[0].ReadingID != "fresh" {
		t.Errorf("most recent reading should lead, got %s", items[0].ReadingID)
	}
}

func TestBuildFeedOrderIndependentOfInput(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	lookahead := 30 * time.Minute

	forward := []intake.DueEvent{
		dueEvent("a", now.Add(-3*time.Hour)),
		dueEvent("b", now.Add(-1*time.Hour)),
		dueEvent("c", now.Add(10*time.Minute)),
		dueEvent("d", now.Add(20*time.Minute)),
		dueEvent("e", now.Add(2*time.Hour)),
	}
	reversed := make([]intake.DueEvent, len(forward))
	for i, e := range forward {
		reversed[len(forward)-1-i] = e
	}

	got1 := BuildFeed(forward, nil, now, lookahead)
	got2 := BuildFeed(reversed, nil, now, lookahead)

	for i := range got1 {
		if got1[i].EventID != got2[i].EventID {
			t.Fatalf("order depends on input: %s vs %s at %d", got1[i].EventID, got2[i].EventID, i)
		}
	}
}

func TestBuildFeedRemindersSoonestDueFirst(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

	// Soonest due time first within each urgency tier, overdue included.
	items := BuildFeed([]intake.DueEvent{
		dueEvent("missed-later", now.Add(-10*time.Minute)),
		dueEvent("missed-first", now.Add(-5*time.Hour)),
		dueEvent("far", now.Add(6*time.Hour)),
		dueEvent("near", now.Add(2*time.Hour)),
	}, nil, now, 30*time.Minute)

	order := []string{"missed-first", "missed-later", "near", "far"}
	for i, want := range order {
		if items[i].EventID != want {
			t.Errorf("position %d = %s, want %s", i, items[i].EventID, want)
		}
	}
}

func TestBuildFeedBoundary(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	lookahead := 30 * time.Minute

	// Exactly at the lookahead boundary counts as medium; exactly now
	// is not yet overdue.
	items := BuildFeed([]intake.DueEvent{
		dueEvent("at-lookahead", now.Add(lookahead)),
		dueEvent("right-now", now),
	}, nil, now, lookahead)

	for _, it := range items {
		switch it.EventID {
		case "at-lookahead", "right-now":
			if it.Urgency != UrgencyMedium {
				t.Errorf("%s urgency = %s, want medium", it.EventID, it.Urgency)
			}
			if it.IsOverdue {
				t.Errorf("%s should not be overdue", it.EventID)
			}
		}
	}
}

type fakeDue struct {
	events []intake.DueEvent
}

func (f *fakeDue) PendingWindow(_ context.Context, _ string, _, _ time.Time) ([]intake.DueEvent, error) {
	return f.events, nil
}

type fakeAlerts struct {
	alerts []vitals.Alert
}

func (f *fakeAlerts) CurrentAlerts(_ context.Context, _ string, _ time.Time) ([]vitals.Alert, error) {
	return f.alerts, nil
}

func TestFeedIncludesVitalAlerts(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	due := &fakeDue{events: []intake.DueEvent{dueEvent("e1", now.Add(2 * time.Hour))}}
	src := &fakeAlerts{alerts: []vitals.Alert{vitalAlert("r1", true, now.Add(-1 * time.Hour))}}

	svc := NewService(nil, due, 30*time.Minute, nil).WithAlertSource(src)
	svc.now = func() time.Time { return now }

	items, err := svc.Feed(context.Background(), "patient-1", 24)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].Kind != KindVitalAlert || items[0].ReadingID != "r1" || items[0].Urgency != UrgencyHigh {
		t.Errorf("first item = %+v, want the critical alert", items[0])
	}
	if items[1].Kind != KindReminder || items[1].EventID != "e1" {
		t.Errorf("second item = %+v, want the dose reminder", items[1])
	}
}

func TestBuildFeedEmpty(t *testing.T) {
	items := BuildFeed(nil, nil, time.Now(), 30*time.Minute)
	if items == nil || len(items) != 0 {
		t.Errorf("empty input should yield empty non-nil slice, got %v", items)
	}
}
