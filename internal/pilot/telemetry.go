package pilot

import (
	"sync"
	"time"
)

// Snapshot is one observable instant of the whole pilot, pushed to
// subscribers and served over the status API.
type Snapshot struct {
	Mode             string    `json:"mode"`
	Left             float64   `json:"left"`
	Right            float64   `json:"right"`
	Tag              string    `json:"tag"`
	TargetPayload    string    `json:"target_payload,omitempty"`
	TargetDistanceCM float64   `json:"target_distance_cm"`
	ObstacleCM       float64   `json:"obstacle_cm"`
	ObstaclePhase    string    `json:"obstacle_phase"`
	RotationDeg      float64   `json:"rotation_deg"`
	LostFrames       int       `json:"lost_frames"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// telemetry fans snapshots out to subscribers. Slow subscribers drop
// updates instead of stalling the control loop.
type telemetry struct {
	mu      sync.Mutex
	current Snapshot
	subs    map[int]chan Snapshot
	nextID  int
}

func (t *telemetry) update(mutate func(*Snapshot)) {
	t.mu.Lock()
	mutate(&t.current)
	t.current.UpdatedAt = time.Now()
	snap := t.current
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
		}
	}
	t.mu.Unlock()
}

func (t *telemetry) snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *telemetry) subscribe() (<-chan Snapshot, func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subs == nil {
		t.subs = make(map[int]chan Snapshot)
	}
	id := t.nextID
	t.nextID++
	ch := make(chan Snapshot, 8)
	t.subs[id] = ch

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.subs, id)
	}
}

// Snapshot returns the most recent telemetry snapshot.
func (p *Pilot) Snapshot() Snapshot {
	snap := p.telemetry.snapshot()
	// Mode is authoritative even if no loop has published yet.
	snap.Mode = p.Mode().String()
	return snap
}

// Subscribe registers a telemetry listener. The returned cancel
// function must be called to release it.
func (p *Pilot) Subscribe() (<-chan Snapshot, func()) {
	return p.telemetry.subscribe()
}

// publishState pushes a snapshot reflecting the current mode with the
// motors stopped.
func (p *Pilot) publishState() {
	mode := p.Mode()
	p.telemetry.update(func(s *Snapshot) {
		s.Mode = mode.String()
		s.Left, s.Right = 0, 0
		s.Tag = mode.String()
	})
}
