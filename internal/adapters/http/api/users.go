// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strconv"
)

// UsersHandler handles owner-scoped data and leaderboard requests.
type UsersHandler struct {
	deps     Dependencies
	maxLimit int
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps Dependencies, maxLimit int) *UsersHandler {
	return &UsersHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleData handles GET /users/data requests. It returns every
// telemetry record across all devices owned by the caller.
func (h *UsersHandler) HandleData(w http.ResponseWriter, r *http.Request) {
	const op = "api.user_data"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	user, ok := userFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	records, err := h.deps.OwnerTelemetry(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleLeaderboard handles GET /users/leaderboard?limit=N requests.
// limit is optional; when absent the service default applies.
func (h *UsersHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.leaderboard"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	entries, err := h.deps.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
