package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/vitals"
)

// VitalsHandler handles vital-sign endpoints, mounted under
// /patients/{patientID}/vitals.
type VitalsHandler struct {
	vitals *vitals.Service
	guard  AccessGuard
	logger *zap.Logger
}

func NewVitalsHandler(svc *vitals.Service, guard AccessGuard, logger *zap.Logger) *VitalsHandler {
	return &VitalsHandler{vitals: svc, guard: guard, logger: logger}
}

// Routes returns the handler routes
func (h *VitalsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Record)
	r.Get("/", h.List)
	r.Get("/trends", h.Trends)
	r.Get("/thresholds", h.ListThresholds)
	r.Put("/thresholds", h.UpsertThreshold)
	r.Delete("/thresholds/{parameter}", h.DeleteThreshold)
	r.Get("/{id}", h.Get)
	return r
}

type recordReadingRequest struct {
	SystolicBP       *float64   `json:"systolic_bp,omitempty"`
	DiastolicBP      *float64   `json:"diastolic_bp,omitempty"`
	HeartRate        *float64   `json:"heart_rate,omitempty"`
	RespiratoryRate  *float64   `json:"respiratory_rate,omitempty"`
	Temperature      *float64   `json:"temperature,omitempty"`
	OxygenSaturation *float64   `json:"oxygen_saturation,omitempty"`
	BloodGlucose     *float64   `json:"blood_glucose,omitempty"`
	WeightKg         *float64   `json:"weight_kg,omitempty"`
	PainLevel        *float64   `json:"pain_level,omitempty"`
	Notes            string     `json:"notes,omitempty"`
	RecordedAt       *time.Time `json:"recorded_at,omitempty"`
}

// Record handles POST /patients/{patientID}/vitals
func (h *VitalsHandler) Record(w http.ResponseWriter, r *http.Request) {
	patientID, actor, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	var req recordReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	reading, err := h.vitals.RecordReading(r.Context(), vitals.RecordInput{
		PatientID:        patientID,
		RecordedBy:       actor.UserID,
		RecordedByRole:   string(actor.Role),
		SystolicBP:       req.SystolicBP,
		DiastolicBP:      req.DiastolicBP,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		Temperature:      req.Temperature,
		OxygenSaturation: req.OxygenSaturation,
		BloodGlucose:     req.BloodGlucose,
		WeightKg:         req.WeightKg,
		PainLevel:        req.PainLevel,
		Notes:            req.Notes,
		RecordedAt:       req.RecordedAt,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, readingResponse(reading))
}

// List handles GET /patients/{patientID}/vitals
func (h *VitalsHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	var from, to *time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			from = &t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			to = &t
		}
	}

	readings, total, err := h.vitals.ListReadings(r.Context(), patientID, from, to, page, limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(readings))
	for i := range readings {
		out = append(out, readingResponse(&readings[i]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"readings":   out,
		"pagination": paginate(page, limit, total),
	})
}

// Get handles GET /patients/{patientID}/vitals/{id}
func (h *VitalsHandler) Get(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	reading, err := h.vitals.GetReading(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if reading.PatientID != patientID {
		jsonError(w, "not found or access denied", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, readingResponse(reading))
}

// Trends handles GET /patients/{patientID}/vitals/trends
func (h *VitalsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	param := vitals.Parameter(r.URL.Query().Get("parameter"))
	days := queryInt(r, "days", 30)
	points, err := h.vitals.Trends(r.Context(), patientID, param, days)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"parameter": param,
		"days":      days,
		"trends":    points,
	})
}

type thresholdRequest struct {
	Parameter  string   `json:"parameter"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	IsCritical bool     `json:"is_critical,omitempty"`
}

// UpsertThreshold handles PUT /patients/{patientID}/vitals/thresholds
func (h *VitalsHandler) UpsertThreshold(w http.ResponseWriter, r *http.Request) {
	patientID, actor, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	t, err := h.vitals.UpsertThreshold(r.Context(), vitals.ThresholdInput{
		PatientID:  patientID,
		SetBy:      actor.UserID,
		Parameter:  vitals.Parameter(req.Parameter),
		Min:        req.Min,
		Max:        req.Max,
		IsCritical: req.IsCritical,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, thresholdResponse(t))
}

// ListThresholds handles GET /patients/{patientID}/vitals/thresholds
func (h *VitalsHandler) ListThresholds(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	thresholds, err := h.vitals.ListThresholds(r.Context(), patientID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	out := make([]map[string]interface{}, 0, len(thresholds))
	for i := range thresholds {
		out = append(out, thresholdResponse(&thresholds[i]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"thresholds": out})
}

// DeleteThreshold handles DELETE /patients/{patientID}/vitals/thresholds/{parameter}
func (h *VitalsHandler) DeleteThreshold(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	param := vitals.Parameter(chi.URLParam(r, "parameter"))
	if err := h.vitals.DeleteThreshold(r.Context(), patientID, param); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func readingResponse(r *vitals.Reading) map[string]interface{} {
	out := map[string]interface{}{
		"id":               r.ID,
		"patient_id":       r.PatientID,
		"recorded_by":      r.RecordedBy,
		"recorded_by_role": r.RecordedByRole,
		"recorded_at":      r.RecordedAt,
		"created_at":       r.CreatedAt,
	}
	if r.Notes != "" {
		out["notes"] = r.Notes
	}
	for _, p := range vitals.Parameters {
		if v := r.Value(p); v != nil {
			out[string(p)] = *v
		}
	}
	return out
}

func thresholdResponse(t *vitals.Threshold) map[string]interface{} {
	return map[string]interface{}{
		"id":          t.ID,
		"patient_id":  t.PatientID,
		"set_by":      t.SetBy,
		"parameter":   t.Parameter,
		"min":         t.Min,
		"max":         t.Max,
		"is_critical": t.IsCritical,
		"updated_at":  t.UpdatedAt,
	}
}
