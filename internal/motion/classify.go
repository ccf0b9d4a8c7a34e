// Package motion turns target observations and obstacle state into
// wheel speed commands.
package motion

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Class is the verdict of comparing the marker's visual distance with
// the ultrasonic distance.
type Class int

const (
	// ClassUnknown means not enough information to compare.
	ClassUnknown Class = iota
	// ClassWallMarker: both sensors agree, the echo is the marker's
	// own mounting surface, not something blocking the path.
	ClassWallMarker
	// ClassGroundObstacle: the echo is much closer than the marker,
	// something sits between the robot and the target.
	ClassGroundObstacle
	// ClassRangeMismatch: the echo is well past the marker, likely a
	// wall behind a marker on a stand.
	ClassRangeMismatch
)

func (c Class) String() string {
	switch c {
	case ClassWallMarker:
		return "wall_marker"
	case ClassGroundObstacle:
		return "ground_obstacle"
	case ClassRangeMismatch:
		return "range_mismatch"
	default:
		return "unknown"
	}
}

const (
	// Agreement band for the ultrasonic/marker distance ratio.
	wallRatioLo = 0.8
	wallRatioHi = 1.2

	// Ultrasonic readings past this are out of comparison range.
	classifyMaxCM = 300.0

	// historySize is how many paired distances the history keeps.
	historySize = 10

	// minSamples before the history commits to a verdict.
	minSamples = 3

	// groundConfirmCM: a confirmed ground obstacle also requires the
	// echo this close before tracking leans around it.
	groundConfirmCM = 30.0
)

// Classify compares one marker distance against one ultrasonic reading.
func Classify(markerCM, ultrasonicCM float64) Class {
	if markerCM <= 0 || ultrasonicCM <= 0 || ultrasonicCM > classifyMaxCM {
		return ClassUnknown
	}

	ratio := ultrasonicCM / markerCM
	switch {
	case ratio < wallRatioLo:
		return ClassGroundObstacle
	case ratio > wallRatioHi:
		return ClassRangeMismatch
	default:
		return ClassWallMarker
	}
}

// History smooths classification over the last few paired readings so
// a single noisy echo cannot flip the verdict.
type History struct {
	marker     []float64
	ultrasonic []float64
}

// Add records one paired reading, discarding the oldest past capacity.
func (h *History) Add(markerCM, ultrasonicCM float64) {
	h.marker = append(h.marker, markerCM)
	h.ultrasonic = append(h.ultrasonic, ultrasonicCM)
	if len(h.marker) > historySize {
		h.marker = h.marker[1:]
		h.ultrasonic = h.ultrasonic[1:]
	}
}

// Reset clears the history, for use when the target is lost.
func (h *History) Reset() {
	h.marker = h.marker[:0]
	h.ultrasonic = h.ultrasonic[:0]
}

// Classify returns the verdict on the median paired distances, or
// ClassUnknown until enough samples have accumulated.
func (h *History) Classify() Class {
	if len(h.marker) < minSamples {
		return ClassUnknown
	}
	return Classify(median(h.marker), median(h.ultrasonic))
}

// GroundConfirmed reports a confirmed ground obstacle close enough to
// require steering around.
func (h *History) GroundConfirmed() bool {
	return h.Classify() == ClassGroundObstacle && median(h.ultrasonic) < groundConfirmCM
}

// WallConfirmed reports that the echo is the marker's own wall.
func (h *History) WallConfirmed() bool {
	return h.Classify() == ClassWallMarker
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}
