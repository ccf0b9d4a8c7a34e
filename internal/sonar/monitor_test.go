package sonar

import (
	"testing"
	"time"
)

func testMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SafeCM:        30,
		StopCM:        12,
		ReleaseFactor: 1.8,
		RightTurn:     100 * time.Millisecond,
		Forward1:      100 * time.Millisecond,
		LeftTurn:      100 * time.Millisecond,
		Forward2:      100 * time.Millisecond,
	}
}

// fakeClock advances only when the test says so.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestMonitor_PhaseOrder(t *testing.T) {
	cfg := testMonitorConfig()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewMonitor(NewMockRanger(20), cfg)
	m.now = clock.now

	st := m.Update()
	if !st.AvoidMode {
		t.Fatal("obstacle at 20cm should enter avoid mode")
	}
	if st.Phase != PhaseTurnRight {
		t.Fatalf("first phase = %v, want turn_right", st.Phase)
	}

	want := []Phase{PhaseForward1, PhaseTurnLeft, PhaseForward2, PhaseNone}
	for _, w := range want {
		clock.advance(cfg.RightTurn)
		st = m.Update()
		if st.Phase != w {
			t.Fatalf("after dwell, phase = %v, want %v", st.Phase, w)
		}
	}

	// Still near: a fresh maneuver restarts from turn_right.
	clock.advance(cfg.RightTurn)
	st = m.Update()
	if st.Phase != PhaseTurnRight {
		t.Fatalf("restart phase = %v, want turn_right", st.Phase)
	}
	if got := m.Maneuvers(); got != 2 {
		t.Errorf("Maneuvers() = %d, want 2", got)
	}
}

func TestMonitor_DwellHoldsPhase(t *testing.T) {
	cfg := testMonitorConfig()
	clock := &fakeClock{t: time.Unix(0, 0)}
	m := NewMonitor(NewMockRanger(20), cfg)
	m.now = clock.now

	m.Update() // enters TurnRight

	clock.advance(50 * time.Millisecond)
	st := m.Update()
	if st.Phase != PhaseTurnRight {
		t.Errorf("phase advanced before dwell expiry: %v", st.Phase)
	}

	clock.advance(50 * time.Millisecond)
	st = m.Update()
	if st.Phase != PhaseForward1 {
		t.Errorf("phase = %v after dwell expiry, want forward_1", st.Phase)
	}
}

func TestMonitor_StopCloseFromEveryPhase(t *testing.T) {
	phases := []Phase{PhaseNone, PhaseTurnRight, PhaseForward1, PhaseTurnLeft, PhaseForward2}

	for _, p := range phases {
		t.Run(p.String(), func(t *testing.T) {
			m := NewMonitor(NewMockRanger(8), testMonitorConfig())
			m.now = (&fakeClock{t: time.Unix(0, 0)}).now
			m.phase = p
			m.avoidMode = p != PhaseNone

			st := m.Update()
			if st.Phase != PhaseStopClose {
				t.Fatalf("phase = %v, want stop_close", st.Phase)
			}
			if !st.NeedStop {
				t.Error("NeedStop should be true below the stop distance")
			}
			if st.Action != ActionStop {
				t.Errorf("Action = %v, want stop", st.Action)
			}
			if !st.AvoidMode {
				t.Error("stop_close implies avoid mode")
			}
		})
	}
}

func TestMonitor_StopCloseRecoveryRestartsManeuver(t *testing.T) {
	m := NewMonitor(NewMockRanger(8, 8, 20, 20, 20), testMonitorConfig())
	clock := &fakeClock{t: time.Unix(0, 0)}
	m.now = clock.now

	m.Update()
	st := m.Update()
	if st.Phase != PhaseStopClose {
		t.Fatalf("setup: phase = %v, want stop_close", st.Phase)
	}

	// Distance rises above stop only once the 20s dominate the window.
	for i := 0; i < 3; i++ {
		clock.advance(10 * time.Millisecond)
		st = m.Update()
	}
	if st.Phase != PhaseTurnRight {
		t.Fatalf("post-recovery phase = %v, want turn_right", st.Phase)
	}
	if st.NeedStop {
		t.Error("NeedStop should clear once the maneuver restarts")
	}
}

func TestMonitor_ReleaseHysteresis(t *testing.T) {
	cfg := testMonitorConfig()
	m := NewMonitor(nil, cfg)
	clock := &fakeClock{t: time.Unix(0, 0)}
	m.now = clock.now
	m.avoidMode = true
	m.phase = PhaseNone

	// Past safe but inside the release band: avoid mode holds.
	m.ranger = NewMockRanger(40)
	m.window = []float64{40, 40, 41, 40, 41}
	st := m.Update()
	if !st.AvoidMode {
		t.Fatal("avoid mode released inside the hysteresis band")
	}
	if st.Phase != PhaseNone {
		t.Fatalf("phase = %v, want none while clearing", st.Phase)
	}

	// Beyond dynamicSafe x release_factor: released.
	m.ranger = NewMockRanger(80)
	m.window = []float64{80, 80, 81, 80, 81}
	st = m.Update()
	if st.AvoidMode {
		t.Error("avoid mode should release beyond the release distance")
	}
}

func TestMonitor_MedianRejectsSpike(t *testing.T) {
	m := NewMonitor(NewMockRanger(100, 100, 400, 100, 100), testMonitorConfig())
	m.now = (&fakeClock{t: time.Unix(0, 0)}).now

	var st State
	for i := 0; i < 5; i++ {
		st = m.Update()
	}
	if st.DistanceCM != 100 {
		t.Errorf("filtered distance = %v, want 100 (spike rejected)", st.DistanceCM)
	}
	if st.AvoidMode {
		t.Error("a single spike should not trigger avoidance")
	}
}

func TestMonitor_DynamicSafeWidening(t *testing.T) {
	cfg := testMonitorConfig()

	tests := []struct {
		name     string
		readings []float64
		wantSafe float64
	}{
		{
			name:     "steady window widens",
			readings: []float64{40, 41, 40, 41, 40},
			wantSafe: 33,
		},
		{
			name:     "jittery window keeps configured safe",
			readings: []float64{40, 60, 80, 100, 120},
			wantSafe: 30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(NewMockRanger(tt.readings...), cfg)
			m.now = (&fakeClock{t: time.Unix(0, 0)}).now

			var st State
			for range tt.readings {
				st = m.Update()
			}
			if st.SafeDistanceCM != tt.wantSafe {
				t.Errorf("SafeDistanceCM = %v, want %v", st.SafeDistanceCM, tt.wantSafe)
			}
		})
	}
}

func TestMonitor_NoEchoPassesThrough(t *testing.T) {
	m := NewMonitor(NewMockRanger(20, NoEcho), testMonitorConfig())
	clock := &fakeClock{t: time.Unix(0, 0)}
	m.now = clock.now

	m.Update()
	clock.advance(10 * time.Millisecond)
	st := m.Update()

	if st.DistanceCM != NoEcho {
		t.Errorf("DistanceCM = %v, want sentinel passthrough", st.DistanceCM)
	}
	if st.ObstacleNear {
		t.Error("sentinel reading should not report an obstacle")
	}
}

func TestMonitor_NonPositiveReusesLastFiltered(t *testing.T) {
	m := NewMonitor(NewMockRanger(25, 0), testMonitorConfig())
	clock := &fakeClock{t: time.Unix(0, 0)}
	m.now = clock.now

	first := m.Update()
	clock.advance(10 * time.Millisecond)
	second := m.Update()

	if second.DistanceCM != first.DistanceCM {
		t.Errorf("DistanceCM = %v, want %v (reuse last filtered)", second.DistanceCM, first.DistanceCM)
	}
}
