// Package vision provides fiducial marker detection on camera frames.
package vision

import "gocv.io/x/gocv"

// Point is a 2D pixel coordinate.
type Point struct {
	X float64
	Y float64
}

// Candidate is one structurally detected marker in a frame. Corners are
// ordered top-left, top-right, bottom-right, bottom-left. Payload may be
// empty when the marker geometry was found but the content could not be
// decoded; such candidates are still valid navigation targets.
type Candidate struct {
	Payload string
	Corners [4]Point
}

// TargetDetector defines the interface for marker detection
// implementations.
type TargetDetector interface {
	// Detect scans a frame and returns all marker candidates found.
	// Returns an empty slice when no markers are visible.
	Detect(frame *gocv.Mat) ([]Candidate, error)

	// Close releases any resources held by the detector.
	Close() error
}
