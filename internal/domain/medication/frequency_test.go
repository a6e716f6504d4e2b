package medication

import (
	"testing"
	"time"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input string
		want  []TimeOfDay
	}{
		{"once daily", []TimeOfDay{"08:00"}},
		{"Once a day", []TimeOfDay{"08:00"}},
		{"twice daily", []TimeOfDay{"08:00", "20:00"}},
		{"Two times a day", []TimeOfDay{"08:00", "20:00"}},
		{"three times daily", []TimeOfDay{"08:00", "14:00", "20:00"}},
		{"four times a day", []TimeOfDay{"06:00", "12:00", "18:00", "22:00"}},
		{"every 6 hours", []TimeOfDay{"00:00", "06:00", "12:00", "18:00"}},
		{"every 8 hours", []TimeOfDay{"00:00", "08:00", "16:00"}},
		{"every 12 hours", []TimeOfDay{"00:00", "12:00"}},
		{"every 5 hours", []TimeOfDay{"00:00", "05:00", "10:00", "15:00"}},
		{"every 7 hours", []TimeOfDay{"00:00", "07:00", "14:00"}},
		{"every 18 hours", []TimeOfDay{"00:00"}},
		{"as needed", []TimeOfDay{"08:00"}},
		{"", []TimeOfDay{"08:00"}},
	}

	for _, tt := range tests {
		got := ParseFrequency(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("ParseFrequency(%q) = %v, want %v", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ParseFrequency(%q)[%d] = %s, want %s", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestParseFrequencyNeverEmpty(t *testing.T) {
	for _, input := range []string{"every 0 hours", "every 25 hours", "gibberish", "every hours"} {
		if got := ParseFrequency(input); len(got) == 0 {
			t.Errorf("ParseFrequency(%q) returned no times", input)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	valid := map[string]TimeOfDay{
		"08:00": "08:00",
		"8:05":  "08:05",
		"23:59": "23:59",
		"0:00":  "00:00",
	}
	for input, want := range valid {
		got, err := ParseTimeOfDay(input)
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q) error: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("ParseTimeOfDay(%q) = %s, want %s", input, got, want)
		}
	}

	for _, input := range []string{"24:00", "12:60", "noon", "12", "12:5", ""} {
		if _, err := ParseTimeOfDay(input); err == nil {
			t.Errorf("ParseTimeOfDay(%q) expected error", input)
		}
	}
}

func TestDayMask(t *testing.T) {
	var m DayMask
	if !m.Empty() {
		t.Error("zero mask should be empty")
	}

	m = m.With(time.Monday).With(time.Wednesday)
	if !m.Has(time.Monday) || !m.Has(time.Wednesday) {
		t.Error("expected monday and wednesday set")
	}
	if m.Has(time.Sunday) || m.Has(time.Tuesday) {
		t.Error("unexpected days set")
	}

	for d := time.Sunday; d <= time.Saturday; d++ {
		if !AllDays.Has(d) {
			t.Errorf("AllDays missing %s", d)
		}
	}
}

func TestTimeOfDayOn(t *testing.T) {
	day := time.Date(2025, 3, 10, 15, 30, 45, 0, time.UTC)
	got := TimeOfDay("08:30").On(day)
	want := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("On = %v, want %v", got, want)
	}
}
