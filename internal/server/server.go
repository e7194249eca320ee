// Package server provides the HTTP API and live views of the tracker.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/flowcog/internal/app"
	"github.com/ayusman/flowcog/internal/flow"
	"github.com/ayusman/flowcog/internal/server/api"
	"github.com/ayusman/flowcog/internal/store"
)

// Pipeline is the part of the running app the server exposes.
type Pipeline interface {
	Status() app.Status
	LatestJPEG() []byte
	Subscribe() (<-chan app.Update, func())
	TrackerConfig() flow.Config
	SetTrackerConfig(cfg flow.Config) error
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Pipeline  Pipeline
	Plugins   api.ActionResolver
}

// Server represents the HTTP server.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server. Routes whose
// backing component is not configured are left out.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)

		bindings := api.NewBindingHandler(s.config.Store, s.config.Plugins)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)
	}

	if s.config.Pipeline != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.Handle("/api/settings/tracker", api.NewTrackerSettingsHandler(s.config.Pipeline))
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pipeline))
		s.mux.Handle("/api/centroid", NewCentroidHandler(s.config.Pipeline))
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	})
}

// handleStatus handles GET requests to /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, s.config.Pipeline.Status())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// NewHTTPServer wraps handler in an http.Server with conservative timeouts.
// Streaming routes are not bounded by a write timeout.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
