// Package drive controls the differential drive motors.
package drive

import (
	"fmt"
	"math"
	"sync"

	"github.com/ayusman/porter/internal/hw/gpio"
)

// Motors commands the left and right wheel speeds.
type Motors interface {
	// Set drives both wheels. Speeds are signed fractions in [-1, 1];
	// negative values reverse the wheel.
	Set(left, right float64) error
	// Stop halts both wheels.
	Stop() error
	Close() error
}

// Side names one motor channel of the H-bridge.
type Side struct {
	Fwd int
	Rev int
}

// HBridge drives a dual H-bridge motor board over GPIO. Each side uses
// two pins: PWM on the forward pin with the reverse pin low drives
// forward, the mirror drives reverse.
type HBridge struct {
	drv   gpio.Driver
	left  Side
	right Side

	mu sync.Mutex
}

// NewHBridge configures the four motor pins and returns the bridge
// with both motors stopped.
func NewHBridge(drv gpio.Driver, left, right Side) (*HBridge, error) {
	for _, pin := range []int{left.Fwd, left.Rev, right.Fwd, right.Rev} {
		if err := drv.SetupPin(pin, gpio.PWM); err != nil {
			return nil, fmt.Errorf("setup motor pin %d: %w", pin, err)
		}
	}

	h := &HBridge{drv: drv, left: left, right: right}
	if err := h.Stop(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HBridge) Set(left, right float64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.setSide(h.left, left); err != nil {
		return fmt.Errorf("left motor: %w", err)
	}
	if err := h.setSide(h.right, right); err != nil {
		return fmt.Errorf("right motor: %w", err)
	}
	return nil
}

func (h *HBridge) setSide(s Side, speed float64) error {
	duty := math.Abs(speed) * 100
	if duty > 100 {
		duty = 100
	}

	fwd, rev := s.Fwd, s.Rev
	if speed < 0 {
		fwd, rev = rev, fwd
	}

	if err := h.drv.SetPWM(rev, 0); err != nil {
		return err
	}
	return h.drv.SetPWM(fwd, duty)
}

func (h *HBridge) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, pin := range []int{h.left.Fwd, h.left.Rev, h.right.Fwd, h.right.Rev} {
		if err := h.drv.SetPWM(pin, 0); err != nil {
			return fmt.Errorf("stop motor pin %d: %w", pin, err)
		}
	}
	return nil
}

func (h *HBridge) Close() error {
	return h.Stop()
}

// Command is one recorded motor command.
type Command struct {
	Left  float64
	Right float64
}

// MockMotors records every command for test inspection.
type MockMotors struct {
	mu       sync.Mutex
	commands []Command
	stops    int
	err      error
}

func NewMockMotors() *MockMotors {
	return &MockMotors{}
}

// FailWith makes subsequent calls return err.
func (m *MockMotors) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockMotors) Set(left, right float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.commands = append(m.commands, Command{Left: left, Right: right})
	return nil
}

func (m *MockMotors) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.stops++
	m.commands = append(m.commands, Command{})
	return nil
}

func (m *MockMotors) Close() error { return nil }

// Commands returns a copy of everything issued so far.
func (m *MockMotors) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Last returns the most recent command, or a zero command.
func (m *MockMotors) Last() Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.commands) == 0 {
		return Command{}
	}
	return m.commands[len(m.commands)-1]
}

// Stops returns how many explicit Stop calls were made.
func (m *MockMotors) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}
