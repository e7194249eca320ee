package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ayusman/flowcog/internal/store"
)

// SessionHandler serves recorded sessions and their centroid events.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type listSessionsResponse struct {
	Sessions []*store.Session `json:"sessions"`
}

type listEventsResponse struct {
	SessionID string                `json:"session_id"`
	Total     int                   `json:"total"`
	Events    []store.CentroidEvent `json:"events"`
}

// ServeHTTP routes /api/sessions, /api/sessions/{id} and
// /api/sessions/{id}/events.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/sessions")

	switch {
	case len(parts) == 0 && r.Method == http.MethodGet:
		h.list(w)
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.get(w, parts[0])
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.delete(w, parts[0])
	case len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet:
		h.events(w, r, parts[0])
	case len(parts) > 2 || (len(parts) == 2 && parts[1] != "events"):
		writeError(w, http.StatusNotFound, "Not found")
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SessionHandler) list(w http.ResponseWriter) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	writeJSON(w, http.StatusOK, listSessionsResponse{Sessions: sessions})
}

func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// events handles GET /api/sessions/{id}/events?limit=N. The limit keeps the
// most recent events.
func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.store.Events().ListBySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}
	total, err := h.store.Events().CountBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count events")
		return
	}
	if events == nil {
		events = []store.CentroidEvent{}
	}

	writeJSON(w, http.StatusOK, listEventsResponse{SessionID: id, Total: total, Events: events})
}
