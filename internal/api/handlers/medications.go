package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/medication"
)

// MedicationHandler handles medication endpoints, mounted under
// /patients/{patientID}/medications.
type MedicationHandler struct {
	meds   *medication.Service
	guard  AccessGuard
	logger *zap.Logger
}

func NewMedicationHandler(meds *medication.Service, guard AccessGuard, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{meds: meds, guard: guard, logger: logger}
}

// Routes returns the handler routes
func (h *MedicationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Prescribe)
	r.Get("/", h.List)
	r.Get("/due", h.Due)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/schedules", h.Schedules)
	r.Delete("/{id}", h.Deactivate)
	return r
}

type scheduleRequest struct {
	TimeOfDay string `json:"time_of_day"`
	Days      []int  `json:"days,omitempty"`
}

type prescribeRequest struct {
	Name         string            `json:"name"`
	Dosage       string            `json:"dosage"`
	Form         string            `json:"form"`
	Frequency    string            `json:"frequency"`
	Instructions string            `json:"instructions,omitempty"`
	StartDate    time.Time         `json:"start_date"`
	EndDate      *time.Time        `json:"end_date,omitempty"`
	Schedules    []scheduleRequest `json:"schedules,omitempty"`
}

// Prescribe handles POST /patients/{patientID}/medications
func (h *MedicationHandler) Prescribe(w http.ResponseWriter, r *http.Request) {
	patientID, actor, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	var req prescribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	in := medication.PrescribeInput{
		PatientID:    patientID,
		Name:         req.Name,
		Dosage:       req.Dosage,
		Form:         medication.Form(req.Form),
		Frequency:    req.Frequency,
		Instructions: req.Instructions,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	}
	if actor.ProfileID != patientID {
		prescriber := actor.ProfileID
		in.PrescribedBy = &prescriber
	}
	for _, s := range req.Schedules {
		var mask medication.DayMask
		for _, d := range s.Days {
			if d >= 0 && d <= 6 {
				mask = mask.With(time.Weekday(d))
			}
		}
		in.Schedules = append(in.Schedules, medication.ScheduleInput{
			TimeOfDay: s.TimeOfDay,
			Days:      mask,
		})
	}

	result, err := h.meds.Prescribe(r.Context(), in)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("medication prescribed",
		zap.String("medication_id", result.Medication.ID),
		zap.String("patient_id", patientID),
		zap.Int("generated_events", result.GeneratedEvents))

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"medication":       result.Medication,
		"schedules":        result.Schedules,
		"generated_events": result.GeneratedEvents,
	})
}

// List handles GET /patients/{patientID}/medications
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	activeOnly := r.URL.Query().Get("active") != "false"
	meds, err := h.meds.ListByPatient(r.Context(), patientID, activeOnly)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"medications": meds})
}

// Due handles GET /patients/{patientID}/medications/due
func (h *MedicationHandler) Due(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	hours := queryInt(r, "hours", 24)
	doses, err := h.meds.Due(r.Context(), patientID, hours)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"due_doses": doses})
}

// Get handles GET /patients/{patientID}/medications/{id}
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	med, err := h.meds.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if med.PatientID != patientID {
		jsonError(w, "not found or access denied", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, med)
}

// Schedules handles GET /patients/{patientID}/medications/{id}/schedules
func (h *MedicationHandler) Schedules(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	med, err := h.meds.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if med.PatientID != patientID {
		jsonError(w, "not found or access denied", http.StatusNotFound)
		return
	}

	schedules, err := h.meds.Schedules(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"schedules": schedules})
}

// Deactivate handles DELETE /patients/{patientID}/medications/{id}
func (h *MedicationHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	med, err := h.meds.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	if med.PatientID != patientID {
		jsonError(w, "not found or access denied", http.StatusNotFound)
		return
	}

	if err := h.meds.Deactivate(r.Context(), id); err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("medication deactivated",
		zap.String("medication_id", id), zap.String("patient_id", patientID))
	respondJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}
