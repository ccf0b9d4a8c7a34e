package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/porter/internal/capture"
	"github.com/ayusman/porter/internal/config"
	"github.com/ayusman/porter/internal/drive"
	"github.com/ayusman/porter/internal/motion"
	"github.com/ayusman/porter/internal/pilot"
	"github.com/ayusman/porter/internal/preview"
	"github.com/ayusman/porter/internal/sonar"
	"github.com/ayusman/porter/internal/store"
	"github.com/ayusman/porter/internal/target"
	"github.com/ayusman/porter/internal/vision"
)

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "data.db")

	s, err := store.New(dbPath)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	// Full robot stack over mocks.
	frame := gocv.NewMat()
	defer frame.Close()

	cam := capture.NewMockCamera([]*gocv.Mat{&frame}, true)
	det := vision.NewMockDetector()
	ranger := sonar.NewMockRanger(200)
	monitor := sonar.NewMonitor(ranger, sonar.MonitorConfig{
		SafeCM:        30,
		StopCM:        12,
		ReleaseFactor: 1.8,
		RightTurn:     time.Millisecond,
		Forward1:      time.Millisecond,
		LeftTurn:      time.Millisecond,
		Forward2:      time.Millisecond,
	})

	cfg := config.Default()
	localizer := target.New(target.Config{
		Fx: 530, Fy: 530, Cx: 320, Cy: 240,
		SizeCM:    cfg.Marker.SizeCM,
		MinEdgePx: cfg.Marker.MinEdgePx,
		Lookup:    s.Markers(),
	})
	synth := motion.NewSynthesizer(cfg.Tracking, cfg.Search, cfg.Obstacle)
	motors := drive.NewMockMotors()
	arbiter := capture.NewArbiter()

	p := pilot.New(pilot.Deps{
		Camera:    cam,
		Arbiter:   arbiter,
		Detector:  det,
		Localizer: localizer,
		Monitor:   monitor,
		Synth:     synth,
		Motors:    motors,
		Scans:     s.Scans(),
	}, config.PilotConfig{
		TickMs:         1,
		MaxLost:        3,
		SearchAttempts: 2,
		AvoidAttempts:  5,
		ArrivalTicks:   3,
	}, cfg.Tracking)
	defer p.Close()

	srv := preview.New(preview.Config{
		Store:     s,
		Camera:    cam,
		Arbiter:   arbiter,
		Telemetry: p,
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()

	client := ts.Client()

	t.Run("RegisterMarker", func(t *testing.T) {
		resp, err := client.Post(
			ts.URL+"/api/markers",
			"application/json",
			strings.NewReader(`{"payload": "dock-1", "label": "loading dock", "size_cm": 2.5}`),
		)
		if err != nil {
			t.Fatalf("create marker error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}
	})

	t.Run("TrackRegisteredMarker", func(t *testing.T) {
		det.SetCandidates([]vision.Candidate{
			{Payload: "dock-1", Corners: vision.CenteredCorners(26.5)},
		})

		if err := p.EngageAuto(); err != nil {
			t.Fatalf("EngageAuto() error = %v", err)
		}

		deadline := time.Now().Add(2 * time.Second)
		for {
			last := motors.Last()
			if last.Left > 0 && last.Left == last.Right {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("no forward command arrived while tracking")
			}
			time.Sleep(2 * time.Millisecond)
		}
	})

	t.Run("StatusReflectsTracking", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("status request error = %v", err)
		}
		defer resp.Body.Close()

		var snap pilot.Snapshot
		if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
			t.Fatalf("decode status error = %v", err)
		}

		if snap.Mode != "auto" {
			t.Errorf("status mode = %q, want auto", snap.Mode)
		}
	})

	t.Run("StreamBusyWhileTracking", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/stream")
		if err != nil {
			t.Fatalf("stream request error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("stream status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
		}
	})

	t.Run("ArrivalRecordsScan", func(t *testing.T) {
		// Marker fills the view: the robot is at the target.
		det.SetCandidates([]vision.Candidate{
			{Payload: "dock-1", Corners: vision.CenteredCorners(70)},
		})

		deadline := time.Now().Add(2 * time.Second)
		for {
			scans, err := s.Scans().ListByPayload("dock-1", 0)
			if err != nil {
				t.Fatalf("list scans error = %v", err)
			}
			if len(scans) > 0 {
				if scans[0].Source != "arrival" {
					t.Errorf("scan source = %q, want arrival", scans[0].Source)
				}
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("no arrival scan recorded")
			}
			time.Sleep(5 * time.Millisecond)
		}
	})

	t.Run("ReturnToManual", func(t *testing.T) {
		if err := p.SetManual(); err != nil {
			t.Fatalf("SetManual() error = %v", err)
		}

		if motors.Stops() == 0 {
			t.Error("motors were not halted")
		}

		if arbiter.Holder() != capture.OwnerNone {
			t.Errorf("camera holder = %v, want released", arbiter.Holder())
		}
	})

	t.Run("ScanHistoryAPI", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/scans?payload=dock-1")
		if err != nil {
			t.Fatalf("scans request error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("scans status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var listResp struct {
			Scans []struct {
				Payload string `json:"payload"`
				Source  string `json:"source"`
			} `json:"scans"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
			t.Fatalf("decode scans error = %v", err)
		}

		if len(listResp.Scans) == 0 {
			t.Fatal("expected at least one recorded scan")
		}
	})
}
