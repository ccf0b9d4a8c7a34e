package sonar

import (
	"log"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Phase is the current step of the avoidance maneuver.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseTurnRight
	PhaseForward1
	PhaseTurnLeft
	PhaseForward2
	PhaseStopClose
)

func (p Phase) String() string {
	switch p {
	case PhaseTurnRight:
		return "turn_right"
	case PhaseForward1:
		return "forward_1"
	case PhaseTurnLeft:
		return "turn_left"
	case PhaseForward2:
		return "forward_2"
	case PhaseStopClose:
		return "stop_close"
	default:
		return "none"
	}
}

// Action is the motion request derived from the current phase.
type Action int

const (
	ActionNone Action = iota
	ActionTurnRight
	ActionForward1
	ActionTurnLeft
	ActionForward2
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionTurnRight:
		return "turn_right"
	case ActionForward1:
		return "forward_1"
	case ActionTurnLeft:
		return "turn_left"
	case ActionForward2:
		return "forward_2"
	case ActionStop:
		return "stop"
	default:
		return "none"
	}
}

func (p Phase) action() Action {
	switch p {
	case PhaseTurnRight:
		return ActionTurnRight
	case PhaseForward1:
		return ActionForward1
	case PhaseTurnLeft:
		return ActionTurnLeft
	case PhaseForward2:
		return ActionForward2
	case PhaseStopClose:
		return ActionStop
	default:
		return ActionNone
	}
}

// State is a snapshot of the obstacle machine after one poll.
type State struct {
	ObstacleNear   bool
	NeedStop       bool
	AvoidMode      bool
	Phase          Phase
	Action         Action
	DistanceCM     float64
	SafeDistanceCM float64
}

// MonitorConfig tunes the obstacle avoidance state machine.
type MonitorConfig struct {
	SafeCM        float64
	StopCM        float64
	ReleaseFactor float64

	RightTurn time.Duration
	Forward1  time.Duration
	LeftTurn  time.Duration
	Forward2  time.Duration
}

const (
	// filterWindow is the number of readings the median filter keeps.
	filterWindow = 5

	// jitterRangeCM: a window tighter than this means the reading is
	// steady, so the safe distance widens to react a little earlier.
	jitterRangeCM = 5.0

	// widenFactor is applied to the safe distance on steady readings.
	widenFactor = 1.1
)

// Monitor polls a Ranger and runs the time-boxed avoidance maneuver
// state machine. It is safe for concurrent use.
type Monitor struct {
	ranger Ranger
	cfg    MonitorConfig

	mu         sync.Mutex
	window     []float64
	filtered   float64
	phase      Phase
	phaseStart time.Time
	avoidMode  bool
	maneuvers  int
	last       State

	now func() time.Time
}

// NewMonitor creates a Monitor over the given ranger.
func NewMonitor(r Ranger, cfg MonitorConfig) *Monitor {
	if cfg.ReleaseFactor <= 0 {
		cfg.ReleaseFactor = 1.8
	}
	return &Monitor{
		ranger:   r,
		cfg:      cfg,
		filtered: NoEcho,
		now:      time.Now,
	}
}

// Update performs one poll of the ranger and advances the state
// machine, returning the resulting state.
func (m *Monitor) Update() State {
	raw, err := m.ranger.Distance()
	if err != nil && err != ErrNoEcho {
		log.Printf("Sonar read failed: %v", err)
		raw = NoEcho
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d := m.filter(raw)
	safe := m.dynamicSafe()
	now := m.now()

	switch {
	case d <= m.cfg.StopCM:
		// Too close to maneuver. Reasserted every poll while close.
		m.phase = PhaseStopClose
		m.avoidMode = true

	case m.phase == PhaseStopClose:
		// Cleared the stop band, restart the maneuver from the top.
		m.startManeuver(now)

	case m.phase != PhaseNone:
		if now.Sub(m.phaseStart) >= m.dwell(m.phase) {
			m.phase++
			m.phaseStart = now
			if m.phase > PhaseForward2 {
				m.phase = PhaseNone
			}
		}

	case m.avoidMode:
		if d > safe*m.cfg.ReleaseFactor {
			m.avoidMode = false
		} else if d <= safe {
			m.startManeuver(now)
		}

	default:
		if d <= safe {
			m.avoidMode = true
			m.startManeuver(now)
		}
	}

	m.last = State{
		ObstacleNear:   d <= safe,
		NeedStop:       m.phase == PhaseStopClose,
		AvoidMode:      m.avoidMode,
		Phase:          m.phase,
		Action:         m.phase.action(),
		DistanceCM:     d,
		SafeDistanceCM: safe,
	}
	return m.last
}

// State returns the result of the most recent Update without polling.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Maneuvers returns how many avoidance maneuvers have been started.
func (m *Monitor) Maneuvers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maneuvers
}

// ResetManeuvers clears the maneuver counter for a new avoidance episode.
func (m *Monitor) ResetManeuvers() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maneuvers = 0
}

func (m *Monitor) startManeuver(now time.Time) {
	m.phase = PhaseTurnRight
	m.phaseStart = now
	m.maneuvers++
}

// filter applies the median window to valid readings. Non-positive raw
// values reuse the last filtered distance; sentinel readings pass
// through so a lost echo is never smoothed into a phantom obstacle.
func (m *Monitor) filter(raw float64) float64 {
	if raw <= 0 {
		return m.filtered
	}
	if raw >= NoEcho {
		return raw
	}

	m.window = append(m.window, raw)
	if len(m.window) > filterWindow {
		m.window = m.window[1:]
	}

	sorted := make([]float64, len(m.window))
	copy(sorted, m.window)
	sort.Float64s(sorted)

	m.filtered = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	return m.filtered
}

// dynamicSafe widens the safe distance when the window is steady, so a
// wall approached head-on triggers avoidance slightly earlier.
func (m *Monitor) dynamicSafe() float64 {
	if len(m.window) < filterWindow {
		return m.cfg.SafeCM
	}
	if floats.Max(m.window)-floats.Min(m.window) < jitterRangeCM {
		return m.cfg.SafeCM * widenFactor
	}
	return m.cfg.SafeCM
}

func (m *Monitor) dwell(p Phase) time.Duration {
	switch p {
	case PhaseTurnRight:
		return m.cfg.RightTurn
	case PhaseForward1:
		return m.cfg.Forward1
	case PhaseTurnLeft:
		return m.cfg.LeftTurn
	case PhaseForward2:
		return m.cfg.Forward2
	default:
		return 0
	}
}
