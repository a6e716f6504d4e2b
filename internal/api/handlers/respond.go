// Package handlers provides HTTP handlers for the health API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/caretrack/go-caretrack/internal/domain/errs"
)

// Pagination is the page envelope attached to list responses.
type Pagination struct {
	Current int `json:"current_page"`
	Pages   int `json:"total_pages"`
	Total   int `json:"total_items"`
	PerPage int `json:"per_page"`
}

func paginate(page, limit, total int) Pagination {
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	if pages == 0 {
		pages = 1
	}
	return Pagination{Current: page, Pages: pages, Total: total, PerPage: limit}
}

func respondJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// respondError maps domain errors onto the HTTP taxonomy. Access
// refusals are reported as not-found, so callers cannot probe for
// existing patient ids.
func respondError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if v, ok := errs.AsValidation(err); ok {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"error": v.Error(),
			"field": v.Field,
		})
		return
	}
	switch {
	case errors.Is(err, errs.ErrNotFound), errors.Is(err, errs.ErrAccessDenied):
		respondJSON(w, http.StatusNotFound, map[string]string{"error": "not found or access denied"})
	case errors.Is(err, errs.ErrConflict):
		respondJSON(w, http.StatusConflict, map[string]string{"error": "resource already exists"})
	default:
		logger.Error("request failed", zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func jsonError(w http.ResponseWriter, message string, code int) {
	respondJSON(w, code, map[string]string{"error": message})
}

// queryInt reads an integer query parameter, returning def when absent
// or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// pageParams reads page and limit with the standard clamps.
func pageParams(r *http.Request) (page, limit int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = queryInt(r, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
