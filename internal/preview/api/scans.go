package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/porter/internal/store"
)

// ScanHandler handles HTTP requests for scan history resources.
type ScanHandler struct {
	store *store.Store
}

// NewScanHandler creates a new ScanHandler with the given store.
func NewScanHandler(s *store.Store) *ScanHandler {
	return &ScanHandler{store: s}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ScanHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/scans or /api/scans/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/scans")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		// Collection endpoint: /api/scans
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	// Item endpoint: /api/scans/{id}
	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type scanResponse struct {
	ID         string       `json:"id"`
	Payload    string       `json:"payload"`
	DistanceCM float64      `json:"distance_cm"`
	CenterX    float64      `json:"center_x"`
	CenterY    float64      `json:"center_y"`
	EdgePx     float64      `json:"edge_px"`
	Corners    [][2]float64 `json:"corners"`
	Source     string       `json:"source"`
	CreatedAt  string       `json:"created_at"`
}

type listScansResponse struct {
	Scans []scanResponse `json:"scans"`
}

// toScanResponse converts a store.Scan to a scanResponse.
func toScanResponse(sc *store.Scan) scanResponse {
	return scanResponse{
		ID:         sc.ID,
		Payload:    sc.Payload,
		DistanceCM: sc.DistanceCM,
		CenterX:    sc.CenterX,
		CenterY:    sc.CenterY,
		EdgePx:     sc.EdgePx,
		Corners:    sc.Corners,
		Source:     sc.Source,
		CreatedAt:  sc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// list handles GET /api/scans with optional payload and limit query
// parameters.
func (h *ScanHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	var scans []*store.Scan
	var err error
	if payload := r.URL.Query().Get("payload"); payload != "" {
		scans, err = h.store.Scans().ListByPayload(payload, limit)
	} else {
		scans, err = h.store.Scans().List(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list scans")
		return
	}

	response := listScansResponse{
		Scans: make([]scanResponse, 0, len(scans)),
	}
	for _, sc := range scans {
		response.Scans = append(response.Scans, toScanResponse(sc))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/scans/{id} and returns a single scan.
func (h *ScanHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	scan, err := h.store.Scans().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get scan")
		return
	}

	writeJSON(w, http.StatusOK, toScanResponse(scan))
}

// delete handles DELETE /api/scans/{id} and removes a scan record.
func (h *ScanHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Scans().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Scan not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete scan")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
