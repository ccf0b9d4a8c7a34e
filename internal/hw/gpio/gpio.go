// Package gpio abstracts the Raspberry Pi GPIO pins used by the
// ultrasonic sensor and the motor H-bridges.
package gpio

import (
	"fmt"
	"sync"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
	PWM
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in the real Raspberry Pi implementation
// or a mock for development and tests off-device.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// SetPWM drives a PWM pin at the given duty cycle, 0-100 percent.
	SetPWM(pin int, dutyPercent float64) error
	Close() error
}

// NewDriver creates a GPIO driver. If mock is true a MockDriver is
// returned, otherwise the real go-rpio backed driver.
func NewDriver(mock bool, pwmHz int) (Driver, error) {
	if mock {
		return NewMockDriver(), nil
	}
	return NewRPiDriver(pwmHz)
}

// WriteOp records a single pin write for test inspection.
type WriteOp struct {
	Pin   int
	Level Level
}

// MockDriver is a test implementation recording writes and serving
// scripted reads.
type MockDriver struct {
	mu     sync.Mutex
	writes []WriteOp
	duty   map[int]float64
	levels map[int]Level

	// ReadFunc, when set, overrides ReadPin. Tests use it to simulate
	// the ultrasonic echo edges.
	ReadFunc func(pin int) (Level, error)
}

// NewMockDriver creates an empty MockDriver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		duty:   make(map[int]float64),
		levels: make(map[int]Level),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, WriteOp{Pin: pin, Level: level})
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(pin)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

func (m *MockDriver) SetPWM(pin int, dutyPercent float64) error {
	if dutyPercent < 0 || dutyPercent > 100 {
		return fmt.Errorf("duty cycle %.1f out of range [0, 100]", dutyPercent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duty[pin] = dutyPercent
	return nil
}

func (m *MockDriver) Close() error {
	return nil
}

// Writes returns a copy of the recorded pin writes.
func (m *MockDriver) Writes() []WriteOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteOp, len(m.writes))
	copy(out, m.writes)
	return out
}

// Duty returns the last duty cycle set on a pin.
func (m *MockDriver) Duty(pin int) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duty[pin]
}
