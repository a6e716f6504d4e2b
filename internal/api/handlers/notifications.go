package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/auth"
	"github.com/caretrack/go-caretrack/internal/domain/notification"
)

// NotificationHandler handles the notification inbox, the reminder
// feed, and delivery preferences. Notifications are keyed by profile
// id, so every route resolves the acting profile from the token.
type NotificationHandler struct {
	notifications *notification.Service
	logger        *zap.Logger
}

func NewNotificationHandler(svc *notification.Service, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: svc, logger: logger}
}

// Routes returns the handler routes
func (h *NotificationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Delete("/", h.ClearAll)
	r.Get("/feed", h.Feed)
	r.Get("/unread-count", h.UnreadCount)
	r.Post("/read-all", h.MarkAllRead)
	r.Get("/preferences", h.Preferences)
	r.Patch("/preferences", h.UpdatePreferences)
	r.Post("/{id}/read", h.MarkRead)
	r.Post("/{id}/snooze", h.Snooze)
	r.Delete("/{id}", h.Delete)
	return r
}

func profileID(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok || actor.ProfileID == "" {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return "", false
	}
	return actor.ProfileID, true
}

// Feed handles GET /notifications/feed
func (h *NotificationHandler) Feed(w http.ResponseWriter, r *http.Request) {
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if actor.Role != auth.RolePatient {
		jsonError(w, "the reminder feed is only available to patients", http.StatusForbidden)
		return
	}

	hours := queryInt(r, "hours", 24)
	items, err := h.notifications.Feed(r.Context(), actor.ProfileID, hours)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

// List handles GET /notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	page, limit := pageParams(r)
	unreadOnly := r.URL.Query().Get("unread") == "true"
	items, total, unread, err := h.notifications.List(r.Context(), id, unreadOnly, page, limit)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": items,
		"unread_count":  unread,
		"pagination":    paginate(page, limit, total),
	})
}

// UnreadCount handles GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

// MarkRead handles POST /notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	updated, err := h.notifications.MarkAllRead(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

// Snooze handles POST /notifications/{id}/snooze
func (h *NotificationHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	var req snoozeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	until, err := h.notifications.Snooze(r.Context(), chi.URLParam(r, "id"), id, req.Minutes)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"snoozed_until": until})
}

// Delete handles DELETE /notifications/{id}
func (h *NotificationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	if err := h.notifications.Delete(r.Context(), chi.URLParam(r, "id"), id); err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ClearAll handles DELETE /notifications
func (h *NotificationHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	deleted, err := h.notifications.ClearAll(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// Preferences handles GET /notifications/preferences
func (h *NotificationHandler) Preferences(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	prefs, err := h.notifications.Preferences(r.Context(), id)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}

type preferencesRequest struct {
	MedicationReminders *bool   `json:"medication_reminders,omitempty"`
	VitalAlerts         *bool   `json:"vital_alerts,omitempty"`
	SystemNotices       *bool   `json:"system_notices,omitempty"`
	QuietHoursStart     *string `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd       *string `json:"quiet_hours_end,omitempty"`
}

// UpdatePreferences handles PATCH /notifications/preferences
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	id, ok := profileID(w, r)
	if !ok {
		return
	}

	var req preferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	prefs, err := h.notifications.UpdatePreferences(r.Context(), id, notification.PreferencesInput{
		MedicationReminders: req.MedicationReminders,
		VitalAlerts:         req.VitalAlerts,
		SystemNotices:       req.SystemNotices,
		QuietHoursStart:     req.QuietHoursStart,
		QuietHoursEnd:       req.QuietHoursEnd,
	})
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, prefs)
}
