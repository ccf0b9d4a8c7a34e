// Package sonar provides ultrasonic distance ranging and the obstacle
// avoidance state machine built on top of it.
package sonar

import (
	"errors"
	"sync"
)

// NoEcho is the sentinel distance reported when the sensor times out
// or no valid reading is available.
const NoEcho = 9999.0

// ErrNoEcho is returned when the sensor produced no echo within the
// measurement deadline. The accompanying distance is NoEcho.
var ErrNoEcho = errors.New("sonar: no echo")

// Ranger measures the distance to the nearest obstacle in centimeters.
type Ranger interface {
	// Distance returns the measured distance in cm, or NoEcho with
	// ErrNoEcho when no echo was received.
	Distance() (float64, error)
	Close() error
}

// Disabled is a Ranger that never reports an obstacle. Used when the
// sonar backend is configured off.
type Disabled struct{}

func (Disabled) Distance() (float64, error) { return NoEcho, nil }
func (Disabled) Close() error               { return nil }

// MockRanger serves a scripted sequence of readings for tests. When
// the script is exhausted the last entry repeats.
type MockRanger struct {
	mu       sync.Mutex
	readings []float64
	errs     []error
	idx      int
}

// NewMockRanger creates a MockRanger returning the given readings in order.
func NewMockRanger(readings ...float64) *MockRanger {
	return &MockRanger{readings: readings}
}

// Script replaces the reading sequence and rewinds.
func (m *MockRanger) Script(readings ...float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = readings
	m.errs = nil
	m.idx = 0
}

// FailWith makes every subsequent Distance call return NoEcho and err.
func (m *MockRanger) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readings = nil
	m.errs = []error{err}
	m.idx = 0
}

func (m *MockRanger) Distance() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.errs) > 0 {
		return NoEcho, m.errs[0]
	}
	if len(m.readings) == 0 {
		return NoEcho, ErrNoEcho
	}
	d := m.readings[m.idx]
	if m.idx < len(m.readings)-1 {
		m.idx++
	}
	return d, nil
}

func (m *MockRanger) Close() error { return nil }
