package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/auth"
	"github.com/caretrack/go-caretrack/internal/domain/patient"
)

// DoctorHandler handles doctor search, the doctor's own profile, and
// the patient roster.
type DoctorHandler struct {
	patients *patient.Service
	logger   *zap.Logger
}

func NewDoctorHandler(svc *patient.Service, logger *zap.Logger) *DoctorHandler {
	return &DoctorHandler{patients: svc, logger: logger}
}

// Routes returns the handler routes
func (h *DoctorHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Search)
	r.Get("/my-patients", h.MyPatients)
	r.Patch("/me", h.UpdateProfile)
	r.Get("/{id}", h.Get)
	return r
}

// Search handles GET /doctors
func (h *DoctorHandler) Search(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	doctors, total, err := h.patients.SearchDoctors(r.Context(),
		r.URL.Query().Get("q"), r.URL.Query().Get("specialty"), page, limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"doctors":    doctors,
		"pagination": paginate(page, limit, total),
	})
}

// Get handles GET /doctors/{id}
func (h *DoctorHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.patients.GetDoctor(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// requireDoctor resolves the acting doctor profile.
func requireDoctor(w http.ResponseWriter, r *http.Request) (auth.Actor, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return auth.Actor{}, false
	}
	if actor.Role != auth.RoleDoctor {
		jsonError(w, "doctor role required", http.StatusForbidden)
		return auth.Actor{}, false
	}
	return actor, true
}

// MyPatients handles GET /doctors/my-patients
func (h *DoctorHandler) MyPatients(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireDoctor(w, r)
	if !ok {
		return
	}

	patients, err := h.patients.MyPatients(r.Context(), actor.ProfileID)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"patients": patients})
}

type updateDoctorRequest struct {
	FirstName     *string `json:"first_name,omitempty"`
	LastName      *string `json:"last_name,omitempty"`
	Specialty     *string `json:"specialty,omitempty"`
	LicenseNumber *string `json:"license_number,omitempty"`
	Phone         *string `json:"phone,omitempty"`
}

// UpdateProfile handles PATCH /doctors/me
func (h *DoctorHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireDoctor(w, r)
	if !ok {
		return
	}

	var req updateDoctorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	d, err := h.patients.UpdateDoctor(r.Context(), actor.ProfileID, patient.DoctorInput{
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Specialty:     req.Specialty,
		LicenseNumber: req.LicenseNumber,
		Phone:         req.Phone,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
