package vision

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the TargetDetector
// interface. It allows tests to control the detection results, also
// while a control loop is calling Detect from another goroutine.
type MockDetector struct {
	mu         sync.Mutex
	candidates []Candidate
	err        error
	calls      int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetCandidates sets the candidates that will be returned by Detect.
func (m *MockDetector) SetCandidates(candidates []Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = candidates
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the pre-configured candidates or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.candidates, nil
}

// Calls returns how many times Detect has been invoked.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Fixture geometry below assumes the default 640x480 frame with the
// principal point at (320, 240).

// CenteredCorners returns a square marker of the given pixel edge
// length centered on the principal point.
func CenteredCorners(edge float64) [4]Point {
	return ShiftedCorners(edge, 0)
}

// ShiftedCorners returns a square marker displaced horizontally from
// the principal point by dx pixels.
func ShiftedCorners(edge, dx float64) [4]Point {
	cx, cy := 320.0+dx, 240.0
	h := edge / 2
	return [4]Point{
		{X: cx - h, Y: cy - h}, // top-left
		{X: cx + h, Y: cy - h}, // top-right
		{X: cx + h, Y: cy + h}, // bottom-right
		{X: cx - h, Y: cy + h}, // bottom-left
	}
}

// TiltedCorners returns a centered marker whose left edge is stretched
// vertically by yawSkew pixels and whose bottom edge is pushed down by
// pitchSkew pixels, simulating a marker seen at an angle.
func TiltedCorners(edge, yawSkew, pitchSkew float64) [4]Point {
	c := CenteredCorners(edge)
	c[0].Y -= yawSkew / 2
	c[3].Y += yawSkew / 2
	c[2].Y += pitchSkew
	c[3].Y += pitchSkew
	return c
}
