// Package preview provides the HTTP preview and telemetry server for the
// Porter robot.
package preview

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/porter/internal/capture"
	"github.com/ayusman/porter/internal/pilot"
	"github.com/ayusman/porter/internal/preview/api"
	"github.com/ayusman/porter/internal/store"
)

// Telemetry is the slice of the pilot the server reads from.
type Telemetry interface {
	Snapshot() pilot.Snapshot
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Camera    capture.Camera
	Arbiter   *capture.Arbiter
	Telemetry Telemetry
}

// Server represents the HTTP server for the Porter robot.
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

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Telemetry != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
	}

	// Register marker and scan API handlers if Store is configured
	if s.config.Store != nil {
		markerHandler := api.NewMarkerHandler(s.config.Store)
		s.mux.Handle("/api/markers", markerHandler)
		s.mux.Handle("/api/markers/", markerHandler)

		scanHandler := api.NewScanHandler(s.config.Store)
		s.mux.Handle("/api/scans", scanHandler)
		s.mux.Handle("/api/scans/", scanHandler)
	}

	// Register camera stream endpoint if Camera is configured
	if s.config.Camera != nil && s.config.Arbiter != nil {
		streamHandler := NewStreamHandler(s.config.Camera, s.config.Arbiter)
		s.mux.Handle("/stream", streamHandler)
	}

	// Register telemetry WebSocket endpoint
	if s.config.Telemetry != nil {
		wsHandler := NewTelemetryHandler(s.config.Telemetry)
		s.mux.Handle("/ws", wsHandler)
	}

	// Serve static files if StaticDir is configured
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

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleStatus handles GET requests to /api/status and returns the
// latest pilot snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.config.Telemetry.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}
