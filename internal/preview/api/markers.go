// Package api provides HTTP API handlers for the Porter preview server.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/porter/internal/store"
)

// MarkerHandler handles HTTP requests for marker registry resources.
type MarkerHandler struct {
	store *store.Store
}

// NewMarkerHandler creates a new MarkerHandler with the given store.
func NewMarkerHandler(s *store.Store) *MarkerHandler {
	return &MarkerHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *MarkerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Parse the path to determine if this is a collection or item request
	// Expected paths: /api/markers or /api/markers/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/markers")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		// Collection endpoint: /api/markers
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	// Item endpoint: /api/markers/{id}
	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Request and response types

type createMarkerRequest struct {
	Payload string  `json:"payload"`
	Label   string  `json:"label"`
	SizeCM  float64 `json:"size_cm"`
}

type updateMarkerRequest struct {
	Label   *string  `json:"label"`
	SizeCM  *float64 `json:"size_cm"`
	Enabled *bool    `json:"enabled"`
}

type markerResponse struct {
	ID        string  `json:"id"`
	Payload   string  `json:"payload"`
	Label     string  `json:"label"`
	SizeCM    float64 `json:"size_cm"`
	Enabled   bool    `json:"enabled"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type listMarkersResponse struct {
	Markers []markerResponse `json:"markers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// toResponse converts a store.Marker to a markerResponse.
func toResponse(m *store.Marker) markerResponse {
	return markerResponse{
		ID:        m.ID,
		Payload:   m.Payload,
		Label:     m.Label,
		SizeCM:    m.SizeCM,
		Enabled:   m.Enabled,
		CreatedAt: m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt: m.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// list handles GET /api/markers and returns all registered markers.
func (h *MarkerHandler) list(w http.ResponseWriter, r *http.Request) {
	markers, err := h.store.Markers().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list markers")
		return
	}

	response := listMarkersResponse{
		Markers: make([]markerResponse, 0, len(markers)),
	}

	for _, m := range markers {
		response.Markers = append(response.Markers, toResponse(m))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/markers/{id} and returns a single marker.
func (h *MarkerHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	marker, err := h.store.Markers().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Marker not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get marker")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(marker))
}

// create handles POST /api/markers and registers a new marker.
func (h *MarkerHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createMarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Validate required fields
	if req.Payload == "" {
		writeError(w, http.StatusBadRequest, "Payload is required")
		return
	}
	if req.SizeCM < 0 {
		writeError(w, http.StatusBadRequest, "Size must not be negative")
		return
	}

	marker := &store.Marker{
		ID:      uuid.New().String(),
		Payload: req.Payload,
		Label:   req.Label,
		SizeCM:  req.SizeCM,
		Enabled: true,
	}

	if err := h.store.Markers().Create(marker); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create marker")
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(marker))
}

// update handles PUT /api/markers/{id} and updates an existing marker.
func (h *MarkerHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	// First, get the existing marker
	marker, err := h.store.Markers().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Marker not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get marker")
		return
	}

	var req updateMarkerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	// Update fields if provided
	if req.Label != nil {
		marker.Label = *req.Label
	}
	if req.SizeCM != nil {
		if *req.SizeCM < 0 {
			writeError(w, http.StatusBadRequest, "Size must not be negative")
			return
		}
		marker.SizeCM = *req.SizeCM
	}
	if req.Enabled != nil {
		marker.Enabled = *req.Enabled
	}

	if err := h.store.Markers().Update(marker); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update marker")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(marker))
}

// delete handles DELETE /api/markers/{id} and removes a marker.
func (h *MarkerHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Markers().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Marker not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete marker")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
