package vision

import "gocv.io/x/gocv"

// Disabled is a TargetDetector that never reports candidates. It is
// selected when marker detection is toggled off, so callers never need
// a nil check.
type Disabled struct{}

// Detect always reports no candidates.
func (Disabled) Detect(frame *gocv.Mat) ([]Candidate, error) {
	return nil, nil
}

// Close is a no-op.
func (Disabled) Close() error {
	return nil
}
