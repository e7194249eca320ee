package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayusman/flowcog/internal/flow"
)

// Tuner reads and applies live tracker tuning.
type Tuner interface {
	TrackerConfig() flow.Config
	SetTrackerConfig(cfg flow.Config) error
}

// TrackerSettingsHandler serves GET and PUT /api/settings/tracker.
type TrackerSettingsHandler struct {
	tuner Tuner
}

// NewTrackerSettingsHandler creates a handler backed by t.
func NewTrackerSettingsHandler(t Tuner) *TrackerSettingsHandler {
	return &TrackerSettingsHandler{tuner: t}
}

// ServeHTTP implements the http.Handler interface. A PUT body may carry any
// subset of the tuning fields; the rest keep their current values.
func (h *TrackerSettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.tuner.TrackerConfig())
	case http.MethodPut:
		cfg := h.tuner.TrackerConfig()
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		if err := h.tuner.SetTrackerConfig(cfg); err != nil {
			if errors.Is(err, flow.ErrInvalidConfig) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to apply tracker settings")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
