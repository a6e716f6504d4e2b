package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/patient"
)

// PatientHandler handles patient profile endpoints, mounted under
// /patients/{patientID}.
type PatientHandler struct {
	patients *patient.Service
	guard    AccessGuard
	logger   *zap.Logger
}

func NewPatientHandler(svc *patient.Service, guard AccessGuard, logger *zap.Logger) *PatientHandler {
	return &PatientHandler{patients: svc, guard: guard, logger: logger}
}

// Routes returns the handler routes
func (h *PatientHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Get)
	r.Patch("/", h.Update)
	r.Get("/summary", h.Summary)
	r.Get("/doctors", h.Doctors)
	r.Post("/doctors/{doctorID}", h.LinkDoctor)
	r.Delete("/doctors/{doctorID}", h.UnlinkDoctor)
	return r
}

// Get handles GET /patients/{patientID}
func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	p, err := h.patients.GetPatient(r.Context(), patientID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

type updatePatientRequest struct {
	FirstName             *string    `json:"first_name,omitempty"`
	LastName              *string    `json:"last_name,omitempty"`
	DateOfBirth           *time.Time `json:"date_of_birth,omitempty"`
	Gender                *string    `json:"gender,omitempty"`
	Phone                 *string    `json:"phone,omitempty"`
	Address               *string    `json:"address,omitempty"`
	EmergencyContactName  *string    `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `json:"emergency_contact_phone,omitempty"`
	BloodType             *string    `json:"blood_type,omitempty"`
	HeightCm              *float64   `json:"height_cm,omitempty"`
	Allergies             []string   `json:"allergies,omitempty"`
	MedicalConditions     []string   `json:"medical_conditions,omitempty"`
}

// Update handles PATCH /patients/{patientID}
func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	var req updatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	p, err := h.patients.UpdatePatient(r.Context(), patientID, patient.PatientInput{
		FirstName:             req.FirstName,
		LastName:              req.LastName,
		DateOfBirth:           req.DateOfBirth,
		Gender:                req.Gender,
		Phone:                 req.Phone,
		Address:               req.Address,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
		BloodType:             req.BloodType,
		HeightCm:              req.HeightCm,
		Allergies:             req.Allergies,
		MedicalConditions:     req.MedicalConditions,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Summary handles GET /patients/{patientID}/summary
func (h *PatientHandler) Summary(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	sum, err := h.patients.Summary(r.Context(), patientID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, sum)
}

// Doctors handles GET /patients/{patientID}/doctors
func (h *PatientHandler) Doctors(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	doctors, err := h.patients.DoctorsForPatient(r.Context(), patientID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"doctors": doctors})
}

// LinkDoctor handles POST /patients/{patientID}/doctors/{doctorID}
func (h *PatientHandler) LinkDoctor(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	doctorID := chi.URLParam(r, "doctorID")
	link, err := h.patients.LinkDoctor(r.Context(), doctorID, patientID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("doctor linked",
		zap.String("doctor_id", doctorID), zap.String("patient_id", patientID))
	respondJSON(w, http.StatusCreated, link)
}

// UnlinkDoctor handles DELETE /patients/{patientID}/doctors/{doctorID}
func (h *PatientHandler) UnlinkDoctor(w http.ResponseWriter, r *http.Request) {
	patientID, _, ok := requirePatientAccess(w, r, h.guard, h.logger)
	if !ok {
		return
	}

	doctorID := chi.URLParam(r, "doctorID")
	if err := h.patients.UnlinkDoctor(r.Context(), doctorID, patientID); err != nil {
		respondError(w, h.logger, err)
		return
	}

	h.logger.Info("doctor unlinked",
		zap.String("doctor_id", doctorID), zap.String("patient_id", patientID))
	respondJSON(w, http.StatusOK, map[string]string{"status": "unlinked"})
}
