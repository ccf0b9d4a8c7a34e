// Package teleop provides keyboard-driven manual control of the robot.
package teleop

import (
	"sync"

	"github.com/ayusman/porter/internal/config"
)

// Direction of travel for the base speed component.
const (
	dirStop    = 0
	dirForward = 1
	dirReverse = -1
)

// Turn bias applied on top of the base speed.
const (
	turnNone  = 0
	turnLeft  = -1
	turnRight = 1
)

// Manual converts discrete key presses into differential wheel speeds.
// Motion is a base speed plus an optional turn bias of half the current
// speed; pressing the active turn key again cancels the bias.
type Manual struct {
	mu    sync.Mutex
	step  float64
	limit float64
	speed float64
	dir   int
	turn  int
}

// NewManual creates a Manual controller from the teleop configuration.
func NewManual(cfg config.TeleopConfig) *Manual {
	limit := cfg.AutoLimit
	if limit <= 0 || limit > 1 {
		limit = 1.0
	}
	speed := cfg.StartSpeed
	if speed > limit {
		speed = limit
	}
	step := cfg.Step
	if step <= 0 {
		step = 0.1
	}
	return &Manual{step: step, limit: limit, speed: speed}
}

// Forward selects forward travel.
func (m *Manual) Forward() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dir = dirForward
}

// Reverse selects reverse travel.
func (m *Manual) Reverse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dir = dirReverse
}

// TurnLeft toggles a left turn bias. Pressing left while already turning
// left straightens out; pressing it while turning right switches sides.
func (m *Manual) TurnLeft() {
	m.toggleTurn(turnLeft)
}

// TurnRight toggles a right turn bias.
func (m *Manual) TurnRight() {
	m.toggleTurn(turnRight)
}

func (m *Manual) toggleTurn(t int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.turn == t {
		m.turn = turnNone
	} else {
		m.turn = t
	}
}

// Stop halts all motion and clears the turn bias.
func (m *Manual) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dir = dirStop
	m.turn = turnNone
}

// SpeedUp raises the base speed by one step, up to the limit.
func (m *Manual) SpeedUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = m.clampSpeed(m.speed + m.step)
}

// SpeedDown lowers the base speed by one step, down to zero.
func (m *Manual) SpeedDown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = m.clampSpeed(m.speed - m.step)
}

// SetSpeedLevel sets the base speed from a digit key: 0 is stopped,
// 9 is nine tenths of full scale. Values outside 0-9 are ignored.
func (m *Manual) SetSpeedLevel(digit int) {
	if digit < 0 || digit > 9 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = m.clampSpeed(float64(digit) / 10)
}

// Speed reports the current base speed.
func (m *Manual) Speed() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Command emits the wheel-speed pair for the current key state. A turn
// with no travel direction pivots in place.
func (m *Manual) Command() (left, right float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	base := m.speed * float64(m.dir)
	bias := m.speed / 2

	switch m.turn {
	case turnLeft:
		left = base - bias
		right = base + bias
	case turnRight:
		left = base + bias
		right = base - bias
	default:
		left = base
		right = base
	}

	return m.clamp(left), m.clamp(right)
}

func (m *Manual) clampSpeed(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > m.limit {
		return m.limit
	}
	return v
}

func (m *Manual) clamp(v float64) float64 {
	if v < -m.limit {
		return -m.limit
	}
	if v > m.limit {
		return m.limit
	}
	return v
}
