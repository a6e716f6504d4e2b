// Package vitals implements vital-sign readings, per-patient thresholds,
// and threshold evaluation.
package vitals

import "time"

// Parameter identifies a numeric vital-sign parameter.
type Parameter string

const (
	ParamSystolicBP       Parameter = "systolic_bp"
	ParamDiastolicBP      Parameter = "diastolic_bp"
	ParamHeartRate        Parameter = "heart_rate"
	ParamRespiratoryRate  Parameter = "respiratory_rate"
	ParamTemperature      Parameter = "temperature"
	ParamOxygenSaturation Parameter = "oxygen_saturation"
	ParamBloodGlucose     Parameter = "blood_glucose"
	ParamWeightKg         Parameter = "weight_kg"
	ParamPainLevel        Parameter = "pain_level"
)

// Parameters lists every known parameter in presentation order.
var Parameters = []Parameter{
	ParamSystolicBP, ParamDiastolicBP, ParamHeartRate, ParamRespiratoryRate,
	ParamTemperature, ParamOxygenSaturation, ParamBloodGlucose, ParamWeightKg, ParamPainLevel,
}

// Valid reports whether the parameter is known.
func (p Parameter) Valid() bool {
	for _, known := range Parameters {
		if p == known {
			return true
		}
	}
	return false
}

// bounds are the physiologically plausible input ranges enforced at
// recording time. A nil max means unbounded above.
type bound struct {
	min float64
	max *float64
}

func f(v float64) *float64 { return &v }

var inputBounds = map[Parameter]bound{
	ParamSystolicBP:       {0, f(300)},
	ParamDiastolicBP:      {0, f(200)},
	ParamHeartRate:        {0, f(300)},
	ParamRespiratoryRate:  {0, f(100)},
	ParamTemperature:      {30, f(45)},
	ParamOxygenSaturation: {0, f(100)},
	ParamBloodGlucose:     {0, nil},
	ParamWeightKg:         {0, nil},
	ParamPainLevel:        {0, f(10)},
}

// Reading is one immutable vital-signs record. Corrections are new
// readings, never updates.
type Reading struct {
	ID               string
	PatientID        string
	RecordedBy       string
	RecordedByRole   string
	SystolicBP       *float64
	DiastolicBP      *float64
	HeartRate        *float64
	RespiratoryRate  *float64
	Temperature      *float64
	OxygenSaturation *float64
	BloodGlucose     *float64
	WeightKg         *float64
	PainLevel        *float64
	Notes            string
	RecordedAt       time.Time
	CreatedAt        time.Time
}

// Value returns the reading's value for a parameter, nil when absent.
func (r *Reading) Value(p Parameter) *float64 {
	switch p {
	case ParamSystolicBP:
		return r.SystolicBP
	case ParamDiastolicBP:
		return r.DiastolicBP
	case ParamHeartRate:
		return r.HeartRate
	case ParamRespiratoryRate:
		return r.RespiratoryRate
	case ParamTemperature:
		return r.Temperature
	case ParamOxygenSaturation:
		return r.OxygenSaturation
	case ParamBloodGlucose:
		return r.BloodGlucose
	case ParamWeightKg:
		return r.WeightKg
	case ParamPainLevel:
		return r.PainLevel
	}
	return nil
}

// setValue assigns a parameter value; used when building a reading.
func (r *Reading) setValue(p Parameter, v *float64) {
	switch p {
	case ParamSystolicBP:
		r.SystolicBP = v
	case ParamDiastolicBP:
		r.DiastolicBP = v
	case ParamHeartRate:
		r.HeartRate = v
	case ParamRespiratoryRate:
		r.RespiratoryRate = v
	case ParamTemperature:
		r.Temperature = v
	case ParamOxygenSaturation:
		r.OxygenSaturation = v
	case ParamBloodGlucose:
		r.BloodGlucose = v
	case ParamWeightKg:
		r.WeightKg = v
	case ParamPainLevel:
		r.PainLevel = v
	}
}

// HasAnyValue reports whether at least one parameter is present.
func (r *Reading) HasAnyValue() bool {
	for _, p := range Parameters {
		if r.Value(p) != nil {
			return true
		}
	}
	return false
}

// Threshold is the acceptable range for one parameter of one patient.
// Exactly one row exists per (patient, parameter); writes are upserts.
type Threshold struct {
	ID         string
	PatientID  string
	SetBy      string
	Parameter  Parameter
	Min        *float64
	Max        *float64
	IsCritical bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Alert is one out-of-range finding. Its identity key is
// (ReadingID, Parameter), so re-evaluating the same reading can never
// produce a differently keyed duplicate.
type Alert struct {
	ReadingID  string     `json:"reading_id"`
	Parameter  Parameter  `json:"parameter"`
	Value      float64    `json:"value"`
	Min        *float64   `json:"min_threshold"`
	Max        *float64   `json:"max_threshold"`
	IsCritical bool       `json:"is_critical"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Key returns the alert's dedup identity.
func (a Alert) Key() string {
	return a.ReadingID + "_" + string(a.Parameter)
}

// TrendPoint is one day's aggregate for a parameter.
type TrendPoint struct {
	Date    string  `json:"date"`
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Count   int     `json:"reading_count"`
}
