package vitals

// Evaluate compares one reading against a set of thresholds and returns
// an alert for every parameter that is present on the reading, has a
// threshold, and falls outside [Min, Max]. Bounds are inclusive: a value
// equal to Min or Max is in range. Parameters without a threshold, and
// thresholds for parameters the reading omits, produce nothing.
//
// Evaluate is pure; it never touches storage and never fails.
func Evaluate(r *Reading, thresholds []Threshold) []Alert {
	var alerts []Alert
	for _, t := range thresholds {
		v := r.Value(t.Parameter)
		if v == nil {
			continue
		}
		below := t.Min != nil && *v < *t.Min
		above := t.Max != nil && *v > *t.Max
		if !below && !above {
			continue
		}
		alerts = append(alerts, Alert{
			ReadingID:  r.ID,
			Parameter:  t.Parameter,
			Value:      *v,
			Min:        t.Min,
			Max:        t.Max,
			IsCritical: t.IsCritical,
			RecordedAt: r.RecordedAt,
		})
	}
	return alerts
}
