package motion

import (
	"math"
	"time"
)

// Reckoner estimates the robot's accumulated rotation from the wheel
// commands it has issued, so a search can undo its own spinning even
// with no encoders on the motors.
//
// The estimate is in degrees: positive means net rotation to the left
// (right wheel has run faster), negative to the right. It is a dead
// reckoning guess, good enough to bound a search sweep, no more.
type Reckoner struct {
	// Gain scales the integration, a single symmetric tunable for
	// calibrating against the actual chassis.
	Gain float64
	// MaxSpeedDiff is the wheel speed difference that produces
	// MaxRateDeg of rotation per second.
	MaxSpeedDiff float64
	MaxRateDeg   float64

	rotation  float64
	prevLeft  float64
	prevRight float64
	prevAt    time.Time

	now func() time.Time
}

// NewReckoner creates a Reckoner with the given calibration.
func NewReckoner(gain, maxSpeedDiff, maxRateDeg float64) *Reckoner {
	if gain <= 0 {
		gain = 1.0
	}
	if maxSpeedDiff <= 0 {
		maxSpeedDiff = 0.5
	}
	if maxRateDeg <= 0 {
		maxRateDeg = 180
	}
	return &Reckoner{
		Gain:         gain,
		MaxSpeedDiff: maxSpeedDiff,
		MaxRateDeg:   maxRateDeg,
		now:          time.Now,
	}
}

// Advance integrates the previously observed command over the time
// since it was issued. Call once at the top of each control tick,
// before computing the next command. Degenerate intervals (clock going
// backwards, or a stall longer than a second) are skipped.
func (r *Reckoner) Advance() {
	now := r.now()
	if !r.prevAt.IsZero() {
		dt := now.Sub(r.prevAt).Seconds()
		if dt > 0 && dt <= 1 {
			rate := (r.prevRight - r.prevLeft) / r.MaxSpeedDiff * r.MaxRateDeg
			r.rotation = wrapDeg(r.rotation + r.Gain*rate*dt)
		}
	}
	r.prevAt = now
}

// Observe records the command actually issued this tick. Reissued
// coast commands count the same as fresh ones.
func (r *Reckoner) Observe(left, right float64) {
	r.prevLeft = left
	r.prevRight = right
	r.prevAt = r.now()
}

// Rotation returns the current estimate in degrees.
func (r *Reckoner) Rotation() float64 {
	return r.rotation
}

// Reset zeroes the estimate, for when the target is reacquired.
func (r *Reckoner) Reset() {
	r.rotation = 0
	r.prevLeft = 0
	r.prevRight = 0
	r.prevAt = time.Time{}
}

// wrapDeg folds an angle into (-360, 360). A full turn in either
// direction reads as zero again.
func wrapDeg(deg float64) float64 {
	return math.Mod(deg, 360)
}
