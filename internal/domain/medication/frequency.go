package medication

import (
	"regexp"
	"strconv"
	"strings"
)

// everyNHoursRe matches phrases like "every 6 hours" or "every 8 hour".
var everyNHoursRe = regexp.MustCompile(`every\s+(\d+)\s*hours?`)

// ParseFrequency turns a free-text frequency string into an ordered list
// of daily clock times. The mapping is heuristic and fail-soft: text that
// matches none of the known categories falls back to a single morning
// dose. It never returns an empty list and never errors.
func ParseFrequency(frequency string) []TimeOfDay {
	f := strings.ToLower(strings.TrimSpace(frequency))

	switch {
	case strings.Contains(f, "once"):
		return []TimeOfDay{"08:00"}
	case strings.Contains(f, "twice"), strings.Contains(f, "two times"):
		return []TimeOfDay{"08:00", "20:00"}
	case strings.Contains(f, "three times"):
		return []TimeOfDay{"08:00", "14:00", "20:00"}
	case strings.Contains(f, "four times"):
		return []TimeOfDay{"06:00", "12:00", "18:00", "22:00"}
	}

	if m := everyNHoursRe.FindStringSubmatch(f); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= 24 {
			// floor(24/n) doses per day, spaced n hours from midnight.
			count := 24 / n
			times := make([]TimeOfDay, 0, count)
			for i := 0; i < count; i++ {
				h := i * n
				hh := strconv.Itoa(h)
				if h < 10 {
					hh = "0" + hh
				}
				times = append(times, TimeOfDay(hh+":00"))
			}
			return times
		}
	}

	return []TimeOfDay{"08:00"}
}
