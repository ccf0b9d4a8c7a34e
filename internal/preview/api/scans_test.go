package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/porter/internal/store"
)

// seedScans inserts n scan records for the given payload.
func seedScans(t *testing.T, s *store.Store, payload string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		scan := &store.Scan{
			ID:         fmt.Sprintf("%s-scan-%d", payload, i),
			Payload:    payload,
			DistanceCM: 50,
			EdgePx:     30,
			Source:     "scan",
		}
		if err := s.Scans().Create(scan); err != nil {
			t.Fatalf("failed to create scan: %v", err)
		}
	}
}

func TestScanHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	seedScans(t, s, "dock-1", 3)

	req := httptest.NewRequest(http.MethodGet, "/api/scans", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listScansResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Scans) != 3 {
		t.Errorf("expected 3 scans, got %d", len(response.Scans))
	}
}

func TestScanHandler_List_Limit(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	seedScans(t, s, "dock-1", 5)

	req := httptest.NewRequest(http.MethodGet, "/api/scans?limit=2", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listScansResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Scans) != 2 {
		t.Errorf("expected 2 scans, got %d", len(response.Scans))
	}
}

func TestScanHandler_List_ByPayload(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	seedScans(t, s, "dock-1", 2)
	seedScans(t, s, "dock-2", 3)

	req := httptest.NewRequest(http.MethodGet, "/api/scans?payload=dock-2", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listScansResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Scans) != 3 {
		t.Errorf("expected 3 scans for dock-2, got %d", len(response.Scans))
	}

	for _, sc := range response.Scans {
		if sc.Payload != "dock-2" {
			t.Errorf("unexpected payload %q in filtered list", sc.Payload)
		}
	}
}

func TestScanHandler_List_InvalidLimit(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	req := httptest.NewRequest(http.MethodGet, "/api/scans?limit=abc", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestScanHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	scan := &store.Scan{
		ID:         "scan-1",
		Payload:    "dock-1",
		DistanceCM: 42.5,
		Corners:    [][2]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}},
		Source:     "arrival",
	}
	if err := s.Scans().Create(scan); err != nil {
		t.Fatalf("failed to create scan: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/scans/scan-1", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response scanResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.DistanceCM != 42.5 {
		t.Errorf("expected distance 42.5, got %f", response.DistanceCM)
	}

	if response.Source != "arrival" {
		t.Errorf("expected source 'arrival', got %q", response.Source)
	}

	if len(response.Corners) != 4 {
		t.Errorf("expected 4 corners, got %d", len(response.Corners))
	}
}

func TestScanHandler_Get_NotFound(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	req := httptest.NewRequest(http.MethodGet, "/api/scans/non-existent", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestScanHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	seedScans(t, s, "dock-1", 1)

	req := httptest.NewRequest(http.MethodDelete, "/api/scans/dock-1-scan-0", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/scans/dock-1-scan-0", nil)
	rec = httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d after delete, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestScanHandler_MethodNotAllowed(t *testing.T) {
	s := newTestStore(t)
	handler := NewScanHandler(s)

	req := httptest.NewRequest(http.MethodPost, "/api/scans", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
