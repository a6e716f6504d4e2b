package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/auth"
)

// AccessGuard decides whether an actor may touch a patient's records.
type AccessGuard interface {
	CanAccess(ctx context.Context, actor auth.Actor, patientID string) (bool, error)
}

// requirePatientAccess resolves the {patientID} route param and checks
// the guard. A refusal renders the same 404 as a missing record.
func requirePatientAccess(w http.ResponseWriter, r *http.Request, guard AccessGuard, logger *zap.Logger) (string, auth.Actor, bool) {
	patientID := chi.URLParam(r, "patientID")
	actor, ok := auth.ActorFromContext(r.Context())
	if !ok {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return "", auth.Actor{}, false
	}

	allowed, err := guard.CanAccess(r.Context(), actor, patientID)
	if err != nil {
		respondError(w, logger, err)
		return "", auth.Actor{}, false
	}
	if !allowed {
		jsonError(w, "not found or access denied", http.StatusNotFound)
		return "", auth.Actor{}, false
	}
	return patientID, actor, true
}
