package motion

import (
	"math"
	"sync"

	"github.com/ayusman/porter/internal/config"
	"github.com/ayusman/porter/internal/sonar"
	"github.com/ayusman/porter/internal/target"
)

// Command is one resolved wheel command.
type Command struct {
	Left  float64
	Right float64
	// Tag names the branch that produced the command, for telemetry
	// and logs.
	Tag string
	// RotationEstimate is the dead reckoning rotation in degrees at
	// the time the command was issued.
	RotationEstimate float64
}

// Moving reports whether the command drives either wheel.
func (c Command) Moving() bool {
	return c.Left != 0 || c.Right != 0
}

// Hint carries what little is known about the target while it is not
// in frame.
type Hint struct {
	// TargetDirection is the last seen horizontal center offset in
	// pixels, negative left.
	TargetDirection float64
	// LostFrames counts consecutive frames without a detection.
	LostFrames int
}

const (
	// pitchTrendDeadPx: pitch trends within this band need no
	// compensation.
	pitchTrendDeadPx = 5.0

	// pitchCompCap bounds pitch compensation to +-10 percent.
	pitchCompCap = 0.10

	// offsetFullTurnPx is the center offset at which the turn
	// strength saturates.
	offsetFullTurnPx = 100.0

	// leanOuter and leanInner shape the arc around a ground obstacle.
	leanOuter = 0.9
	leanInner = 0.7

	// emergencyBand widens the stop distance for the minimal
	// corrective turn while an obstacle is nearly touching.
	emergencyBand = 1.5
	// emergencyTurn scales the base turn speed for that turn.
	emergencyTurn = 0.3

	// softenFactor reduces a maneuver turn that would swing away
	// from the remembered target side.
	softenFactor = 0.6

	// groundCreepBonus adds forward drive when pushing past a
	// confirmed ground obstacle.
	groundCreepBonus = 0.2

	// correctionSpeed scales the search speed while unwinding
	// accumulated rotation.
	correctionSpeed = 0.8

	// straightBias: direction factors below this just drive straight.
	straightBias = 0.1
)

// Synthesizer merges the target observation, the obstacle state and
// the loss hint into a single wheel command per control tick.
type Synthesizer struct {
	track    config.TrackingConfig
	search   config.SearchConfig
	stopCM   float64
	reckoner *Reckoner
	history  *History

	mu sync.Mutex
}

// NewSynthesizer creates a Synthesizer with the given tuning.
func NewSynthesizer(track config.TrackingConfig, search config.SearchConfig, obstacle config.ObstacleConfig) *Synthesizer {
	return &Synthesizer{
		track:    track,
		search:   search,
		stopCM:   obstacle.StopCM,
		reckoner: NewReckoner(search.ReckonGain, search.MaxSpeedDiff, search.MaxRateDeg),
		history:  &History{},
	}
}

// Compute produces the command for one control tick.
func (s *Synthesizer) Compute(obs target.Observation, obst sonar.State, hint Hint) Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reckoner.Advance()

	var it intent
	if !obs.Lost {
		s.reckoner.Reset()
		if obst.DistanceCM > 0 && obst.DistanceCM < sonar.NoEcho {
			s.history.Add(obs.DistanceCM, obst.DistanceCM)
		}
		it = s.follow(obs, obst)
	} else if obst.ObstacleNear || obst.AvoidMode {
		it = s.avoid(obst, hint)
	} else {
		it = s.searchFor(hint)
	}

	cmd := s.resolve(it)
	s.reckoner.Observe(cmd.Left, cmd.Right)
	return cmd
}

// ObserveIssued records a command issued outside Compute, such as a
// reissued coast command, so dead reckoning stays honest.
func (s *Synthesizer) ObserveIssued(left, right float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reckoner.Observe(left, right)
}

// Classification returns the smoothed marker-vs-echo verdict.
func (s *Synthesizer) Classification() Class {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.Classify()
}

// WallConfirmed reports that the current echo is attributed to the
// marker's own mounting surface.
func (s *Synthesizer) WallConfirmed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.WallConfirmed()
}

// Rotation returns the current dead reckoning estimate in degrees.
func (s *Synthesizer) Rotation() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reckoner.Rotation()
}

// ResetHistory clears the classification history, for a new approach.
func (s *Synthesizer) ResetHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset()
}

// follow is the tracking branch: the target is in frame.
func (s *Synthesizer) follow(obs target.Observation, obst sonar.State) intent {
	// A confirmed ground obstacle between us and the marker: arc
	// around it, away from the marker's side of the frame.
	if s.history.GroundConfirmed() &&
		obst.DistanceCM < obst.SafeDistanceCM &&
		obst.DistanceCM < wallRatioLo*obs.DistanceCM {
		pitch := s.pitchComp(obs.PitchTrend)
		outer := s.track.BaseForward * leanOuter * pitch
		inner := s.track.BaseForward * leanInner * pitch
		if obs.CenterOffsetX >= 0 {
			// Marker to the right: arc left around the obstacle.
			return track(inner, outer, "track_lean_left")
		}
		return track(outer, inner, "track_lean_right")
	}

	if obs.DistanceCM <= s.track.StopNearCM {
		return stopIntent("track_arrived")
	}

	forward := s.forwardSpeed(obs.DistanceCM) * s.pitchComp(obs.PitchTrend)
	if forward > s.track.MaxSpeed {
		forward = s.track.MaxSpeed
	}

	cx := obs.CenterOffsetX
	if math.Abs(cx) <= s.track.DeadZonePx {
		return track(forward, forward, "track_follow")
	}

	// Slow the inner wheel in proportion to how far off-center the
	// target sits, and ease the pace while turning.
	forward *= s.track.ForwardComp
	strength := math.Min(math.Abs(cx)/offsetFullTurnPx, 1) * s.track.TurnComp
	inner := forward * (1 - strength)
	if inner < 0 {
		inner = 0
	}
	if cx > 0 {
		return track(forward, inner, "track_turn_right")
	}
	return track(inner, forward, "track_turn_left")
}

// forwardSpeed maps target distance onto [base, max].
func (s *Synthesizer) forwardSpeed(d float64) float64 {
	span := s.track.TrackFarCM - s.track.StopNearCM
	var factor float64
	if span > 0 {
		factor = (d - s.track.StopNearCM) / span
	} else {
		// Degenerate tuning: fall back to the proportional gain.
		factor = (d - s.track.StopNearCM) * s.track.KpDist
	}
	factor = clamp(factor, 0, 1)
	return s.track.BaseForward + factor*(s.track.MaxSpeed-s.track.BaseForward)
}

// pitchComp scales speed by the marker's vertical size trend. A tall
// trend means the marker sits above the camera axis and the approach
// can run slightly hotter, a short one the opposite. Capped at +-10%.
func (s *Synthesizer) pitchComp(trend float64) float64 {
	switch {
	case trend > pitchTrendDeadPx:
		return 1 + math.Min(s.track.KpPitch*(trend-pitchTrendDeadPx), pitchCompCap)
	case trend < -pitchTrendDeadPx:
		return 1 - math.Min(s.track.KpPitch*(-trend-pitchTrendDeadPx), pitchCompCap)
	default:
		return 1
	}
}

// avoid is the lost-with-obstacle branch: execute the avoidance
// maneuver, biased toward wherever the target was last seen.
func (s *Synthesizer) avoid(obst sonar.State, hint Hint) intent {
	if obst.NeedStop {
		return stopIntent("avoid_halt")
	}

	turn := s.track.BaseTurn

	// Nearly touching: minimal turn in place toward the target side,
	// nothing else is safe to do.
	if obst.DistanceCM <= s.stopCM*emergencyBand {
		if hint.TargetDirection < 0 {
			return spin(-turn*emergencyTurn, "avoid_emergency_left")
		}
		return spin(turn*emergencyTurn, "avoid_emergency_right")
	}

	forward := s.search.BaseSpeed
	if s.history.GroundConfirmed() {
		forward += s.search.BaseSpeed * groundCreepBonus
	}

	switch obst.Action {
	case sonar.ActionTurnRight:
		if hint.TargetDirection < 0 {
			// Target was on the left: don't swing hard away from it.
			turn *= softenFactor
		}
		return spin(turn, "avoid_turn_right")
	case sonar.ActionTurnLeft:
		if hint.TargetDirection > 0 {
			turn *= softenFactor
		}
		return spin(-turn, "avoid_turn_left")
	case sonar.ActionForward1, sonar.ActionForward2:
		return creep(forward, forward, "avoid_forward")
	default:
		return creep(forward, forward, "avoid_clear")
	}
}

// searchFor is the lost-without-obstacle branch: sweep toward the last
// known direction while keeping the accumulated rotation bounded.
func (s *Synthesizer) searchFor(hint Hint) intent {
	rot := s.reckoner.Rotation()
	speed := s.search.BaseSpeed

	// Unwound too far one way: pivot back until the estimate decays.
	if rot > s.search.MaxRotationDeg {
		// Net left rotation: pivot right to unwind.
		return creep(speed*correctionSpeed, -speed*correctionSpeed, "search_correct_right")
	}
	if rot < -s.search.MaxRotationDeg {
		return creep(-speed*correctionSpeed, speed*correctionSpeed, "search_correct_left")
	}

	factor := clamp(hint.TargetDirection, -offsetFullTurnPx, offsetFullTurnPx) / offsetFullTurnPx
	if math.Abs(factor) < straightBias {
		return creep(speed, speed, "search_forward")
	}

	bias := s.search.TurnGain * math.Abs(factor)
	if factor > 0 {
		// Target was to the right: right wheel eases off.
		return creep(speed, speed*(1-bias), "search_bias_right")
	}
	return creep(speed*(1-bias), speed, "search_bias_left")
}
