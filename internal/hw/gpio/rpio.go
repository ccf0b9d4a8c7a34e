package gpio

import (
	"fmt"
	"log"

	"github.com/stianeikeland/go-rpio/v4"
)

// pwmCycle is the PWM cycle length in clock ticks; duty cycles map
// directly to percent.
const pwmCycle = 100

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	pins  map[int]rpio.Pin
	pwmHz int
}

// NewRPiDriver creates a real GPIO driver. Requires running on a
// Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiDriver(pwmHz int) (*RPiDriver, error) {
	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	if pwmHz <= 0 {
		pwmHz = 1000
	}

	return &RPiDriver{
		pins:  make(map[int]rpio.Pin),
		pwmHz: pwmHz,
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	case PWM:
		p.Pwm()
		p.Freq(r.pwmHz * pwmCycle)
		p.DutyCycle(0, pwmCycle)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	p, ok := r.pins[pin]
	if !ok {
		if err := r.SetupPin(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	p, ok := r.pins[pin]
	if !ok {
		if err := r.SetupPin(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) SetPWM(pin int, dutyPercent float64) error {
	if dutyPercent < 0 || dutyPercent > 100 {
		return fmt.Errorf("duty cycle %.1f out of range [0, 100]", dutyPercent)
	}

	p, ok := r.pins[pin]
	if !ok {
		if err := r.SetupPin(pin, PWM); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	p.DutyCycle(uint32(dutyPercent), pwmCycle)
	return nil
}

func (r *RPiDriver) Close() error {
	// Reset all pins to input (safe state) before unmapping.
	for pin, p := range r.pins {
		log.Printf("Resetting pin %d to input", pin)
		p.Input()
	}
	return rpio.Close()
}
