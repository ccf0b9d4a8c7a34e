package sonar

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"go.bug.st/serial"
)

// frameHeader starts every measurement frame on UART-mode ultrasonic
// modules (A02YYUW, JSN-SR04T in mode 2): 0xFF, distance high byte,
// distance low byte, checksum.
const frameHeader = 0xFF

// staleAfter is how old the latest parsed reading may be before the
// sensor is treated as silent.
const staleAfter = 300 * time.Millisecond

// SerialRanger reads distance frames from a UART ultrasonic module.
// A background goroutine parses the stream and Distance serves the
// most recent value.
type SerialRanger struct {
	port io.ReadCloser

	mu     sync.Mutex
	lastCM float64
	lastAt time.Time
	closed bool

	now  func() time.Time
	done chan struct{}
}

// NewSerialRanger opens the named serial port and starts the read loop.
func NewSerialRanger(portName string, baud int) (*SerialRanger, error) {
	if baud <= 0 {
		baud = 9600
	}
	port, err := serial.Open(portName, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	return NewSerialRangerFromPort(port), nil
}

// NewSerialRangerFromPort wraps an already-open stream. Used by tests
// to feed synthetic frames.
func NewSerialRangerFromPort(port io.ReadCloser) *SerialRanger {
	r := &SerialRanger{
		port: port,
		now:  time.Now,
		done: make(chan struct{}),
	}
	go r.readLoop()
	return r
}

func (r *SerialRanger) readLoop() {
	defer close(r.done)

	buf := make([]byte, 64)
	var frame []byte
	for {
		n, err := r.port.Read(buf)
		if err != nil {
			r.mu.Lock()
			closed := r.closed
			r.mu.Unlock()
			if !closed {
				log.Printf("Sonar serial read failed: %v", err)
			}
			return
		}

		for _, b := range buf[:n] {
			if len(frame) == 0 && b != frameHeader {
				continue
			}
			frame = append(frame, b)
			if len(frame) < 4 {
				continue
			}

			sum := byte(frame[0] + frame[1] + frame[2])
			if sum == frame[3] {
				mm := int(frame[1])<<8 | int(frame[2])
				r.mu.Lock()
				r.lastCM = float64(mm) / 10.0
				r.lastAt = r.now()
				r.mu.Unlock()
				frame = frame[:0]
			} else {
				// Resync on the next header byte.
				frame = frame[1:]
				for len(frame) > 0 && frame[0] != frameHeader {
					frame = frame[1:]
				}
			}
		}
	}
}

// Distance returns the latest parsed reading, or NoEcho with ErrNoEcho
// when nothing fresh has been seen within the staleness window.
func (r *SerialRanger) Distance() (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastAt.IsZero() || r.now().Sub(r.lastAt) > staleAfter {
		return NoEcho, ErrNoEcho
	}
	return r.lastCM, nil
}

func (r *SerialRanger) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	err := r.port.Close()
	<-r.done
	return err
}
