package sonar

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/porter/internal/hw/gpio"
)

const (
	// triggerPulse is the length of the trigger pulse the HC-SR04
	// datasheet requires to start a measurement.
	triggerPulse = 10 * time.Microsecond

	// edgeDeadline bounds the wait for each echo edge. The sensor's
	// maximum range corresponds to ~23 ms of pulse; anything past
	// 100 ms means the echo was lost.
	edgeDeadline = 100 * time.Millisecond

	// cmPerSecond converts echo pulse duration to one-way distance:
	// speed of sound / 2 in cm/s.
	cmPerSecond = 17150.0

	// MinRangeCM and MaxRangeCM clamp readings to the sensor's
	// usable range.
	MinRangeCM = 2.0
	MaxRangeCM = 400.0
)

// HCSR04 drives an HC-SR04 ultrasonic module over two GPIO pins.
type HCSR04 struct {
	drv  gpio.Driver
	trig int
	echo int

	mu sync.Mutex

	// now and sleep are injectable for tests.
	now   func() time.Time
	sleep func(time.Duration)
}

// NewHCSR04 configures the trigger and echo pins and returns the sensor.
func NewHCSR04(drv gpio.Driver, trigPin, echoPin int) (*HCSR04, error) {
	if err := drv.SetupPin(trigPin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup trigger pin %d: %w", trigPin, err)
	}
	if err := drv.SetupPin(echoPin, gpio.Input); err != nil {
		return nil, fmt.Errorf("setup echo pin %d: %w", echoPin, err)
	}
	if err := drv.WritePin(trigPin, gpio.Low); err != nil {
		return nil, fmt.Errorf("settle trigger pin %d: %w", trigPin, err)
	}

	return &HCSR04{
		drv:   drv,
		trig:  trigPin,
		echo:  echoPin,
		now:   time.Now,
		sleep: time.Sleep,
	}, nil
}

// Distance performs one measurement cycle. Returns the distance in cm
// clamped to [MinRangeCM, MaxRangeCM], or NoEcho with ErrNoEcho when
// either echo edge fails to arrive in time.
func (h *HCSR04) Distance() (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.drv.WritePin(h.trig, gpio.High); err != nil {
		return NoEcho, fmt.Errorf("trigger high: %w", err)
	}
	h.sleep(triggerPulse)
	if err := h.drv.WritePin(h.trig, gpio.Low); err != nil {
		return NoEcho, fmt.Errorf("trigger low: %w", err)
	}

	start, err := h.waitEdge(gpio.High)
	if err != nil {
		return NoEcho, err
	}
	end, err := h.waitEdge(gpio.Low)
	if err != nil {
		return NoEcho, err
	}

	d := end.Sub(start).Seconds() * cmPerSecond
	if d < MinRangeCM {
		d = MinRangeCM
	}
	if d > MaxRangeCM {
		d = MaxRangeCM
	}
	return d, nil
}

// waitEdge busy-waits until the echo pin reaches the wanted level and
// returns the time it did.
func (h *HCSR04) waitEdge(want gpio.Level) (time.Time, error) {
	deadline := h.now().Add(edgeDeadline)
	for {
		lvl, err := h.drv.ReadPin(h.echo)
		if err != nil {
			return time.Time{}, fmt.Errorf("read echo pin %d: %w", h.echo, err)
		}
		now := h.now()
		if lvl == want {
			return now, nil
		}
		if now.After(deadline) {
			return time.Time{}, ErrNoEcho
		}
	}
}

func (h *HCSR04) Close() error {
	return h.drv.WritePin(h.trig, gpio.Low)
}
