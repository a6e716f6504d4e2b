package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/intake"
)

// IntakeHandler handles the dose ledger endpoints, mounted under
// /patients/{patientID}/intake.
type IntakeHandler struct {
	intake *intake.Service
	guard  AccessGuard
	logger *zap.Logger
}

func NewIntakeHandler(svc *intake.Service, guard AccessGuard, logger *zap.Logger) *IntakeHandler {
	return &IntakeHandler{intake: svc, guard: guard, logger: logger}
}

// Routes returns the handler routes
func (h *IntakeHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.LogDirect)
	r.Get("/adherence", h.Adherence)
	r.Post("/{id}/record", h.Record)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	return r
}

// ownedEvent loads the event and confirms it belongs to the patient in
// the URL.
func (h *IntakeHandler) ownedEvent(w http.ResponseWriter, r *http.Request, patientID string) (intake.Event, bool) {
	e, err := h.intake.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return intake.Event{}, false
	}
	if e.PatientID != patientID {
		jsonError(w, "not found or access denied", http.StatusNotFound)
		return intake.Event{}, false
	}
	return e, true
}

// List handles GET /patients/{patientID}/intake
func (h *IntakeHandler) List(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	f := intake.Filter{
		PatientID:    patientID,
		MedicationID: r.URL.Query().Get("medication_id"),
		Status:       intake.Status(r.URL.Query().Get("status")),
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.From = &t
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.To = &t
		}
	}

	events, total, err := h.intake.List(r.Context(), f, page, limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"events":     events,
		"pagination": paginate(page, limit, total),
	})
}

type recordRequest struct {
	Status      string     `json:"status"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	DosageTaken string     `json:"dosage_taken,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	SideEffects []string   `json:"side_effects,omitempty"`
}

// Record handles POST /patients/{patientID}/intake/{id}/record
func (h *IntakeHandler) Record(w http.ResponseWriter, r *http.Request) {
	patientID, actor, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}
	if _, ok := h.ownedEvent(w, r, patientID); !ok {
		return
	}

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	e, err := h.intake.Record(r.Context(), intake.RecordInput{
		EventID:     chi.URLParam(r, "id"),
		Status:      intake.Status(req.Status),
		TakenAt:     req.TakenAt,
		DosageTaken: req.DosageTaken,
		Notes:       req.Notes,
		SideEffects: req.SideEffects,
		RecordedBy:  actor.UserID,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

type logDirectRequest struct {
	MedicationID string     `json:"medication_id"`
	Status       string     `json:"status"`
	TakenAt      *time.Time `json:"taken_at,omitempty"`
	DosageTaken  string     `json:"dosage_taken,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	SideEffects  []string   `json:"side_effects,omitempty"`
}

// LogDirect handles POST /patients/{patientID}/intake
func (h *IntakeHandler) LogDirect(w http.ResponseWriter, r *http.Request) {
	patientID, actor, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	var req logDirectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	takenAt := time.Now().UTC()
	if req.TakenAt != nil {
		takenAt = req.TakenAt.UTC()
	}
	e, err := h.intake.LogDirect(r.Context(), intake.LogDirectInput{
		MedicationID: req.MedicationID,
		PatientID:    patientID,
		Status:       intake.Status(req.Status),
		TakenAt:      takenAt,
		DosageTaken:  req.DosageTaken,
		Notes:        req.Notes,
		SideEffects:  req.SideEffects,
		RecordedBy:   actor.UserID,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, e)
}

type updateEventRequest struct {
	Status      *string    `json:"status,omitempty"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	DosageTaken *string    `json:"dosage_taken,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	SideEffects []string   `json:"side_effects,omitempty"`
}

// Update handles PATCH /patients/{patientID}/intake/{id}
func (h *IntakeHandler) Update(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}
	if _, ok := h.ownedEvent(w, r, patientID); !ok {
		return
	}

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	in := intake.UpdateInput{
		TakenAt:     req.TakenAt,
		DosageTaken: req.DosageTaken,
		Notes:       req.Notes,
		SideEffects: req.SideEffects,
	}
	if req.Status != nil {
		st := intake.Status(*req.Status)
		in.Status = &st
	}

	e, err := h.intake.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, e)
}

// Delete handles DELETE /patients/{patientID}/intake/{id}
func (h *IntakeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}
	if _, ok := h.ownedEvent(w, r, patientID); !ok {
		return
	}

	if err := h.intake.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Adherence handles GET /patients/{patientID}/intake/adherence
func (h *IntakeHandler) Adherence(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	days := queryInt(r, "days", 30)
	if days < 1 || days > 365 {
		days = 30
	}
	reports, err := h.intake.Adherence(r.Context(), patientID,
		r.URL.Query().Get("medication_id"), time.Duration(days)*24*time.Hour)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"window_days": days,
		"reports":     reports,
	})
}
