package pilot

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/porter/internal/hook"
	"github.com/ayusman/porter/internal/motion"
	"github.com/ayusman/porter/internal/sonar"
	"github.com/ayusman/porter/internal/store"
	"github.com/ayusman/porter/internal/target"
)

// autoLoop follows the target. It exits to Avoidance when an obstacle
// preempts, to Search when the target stays lost, or to Manual on a
// persistently failing camera.
func (p *Pilot) autoLoop(ctx context.Context) Mode {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	start := time.Now()
	camErrors := 0

	for {
		select {
		case <-ctx.Done():
			return ModeManual
		case <-ticker.C:
		}

		// Obstacle poll comes first: a close obstacle preempts
		// tracking no matter what the camera would say.
		st := p.deps.Monitor.Update()
		if time.Since(start) >= p.grace && p.preempts(st) {
			p.halt("avoid_preempt", st)
			return ModeAvoidance
		}

		obs, err := p.observe()
		if err != nil {
			camErrors++
			log.Printf("Camera read failed in auto loop: %v", err)
			if camErrors >= maxCameraErrors {
				return ModeManual
			}
			continue
		}
		camErrors = 0

		if obs.Lost {
			if next, ok := p.coast(st); !ok {
				return next
			}
			continue
		}

		p.mu.Lock()
		p.lostFrames = 0
		p.lastSeenDir = obs.CenterOffsetX
		p.lastObs = obs
		hint := motion.Hint{TargetDirection: p.lastSeenDir}
		p.mu.Unlock()

		cmd := p.deps.Synth.Compute(obs, st, hint)
		p.issue(cmd, obs, st)

		p.checkArrival(cmd, obs)
	}
}

// preempts decides whether the obstacle state forces Avoidance mode: a
// stop-band obstacle always does, a half-safe-distance one does unless
// the echo is attributed to the tracked marker's own wall.
func (p *Pilot) preempts(st sonar.State) bool {
	if st.NeedStop {
		return true
	}
	return st.DistanceCM < st.SafeDistanceCM/2 && !p.deps.Synth.WallConfirmed()
}

// coast handles one lost frame inside the auto loop: reissue the last
// tracking command for a short while, then give up and search. ok is
// false when the loop should exit with the returned mode.
func (p *Pilot) coast(st sonar.State) (Mode, bool) {
	p.mu.Lock()
	p.lostFrames++
	lost := p.lostFrames
	last := p.lastTrack
	p.mu.Unlock()

	if lost <= p.cfg.MaxLost && last.Moving() {
		if err := p.deps.Motors.Set(last.Left, last.Right); err != nil {
			log.Printf("Coast command failed: %v", err)
		}
		p.deps.Synth.ObserveIssued(last.Left, last.Right)
		p.telemetry.update(func(s *Snapshot) {
			s.Mode = ModeAuto.String()
			s.Left, s.Right = last.Left, last.Right
			s.Tag = "track_coast"
			s.LostFrames = lost
			s.ObstacleCM = st.DistanceCM
		})
		return ModeAuto, true
	}

	log.Printf("Target lost for %d frames, searching", lost)
	return ModeSearch, false
}

// checkArrival fires the arrival hooks after the stop command has held
// for the configured number of consecutive ticks, once per approach.
func (p *Pilot) checkArrival(cmd motion.Command, obs target.Observation) {
	p.mu.Lock()
	if cmd.Tag != "track_arrived" {
		p.arrivalTicks = 0
		if obs.DistanceCM > p.stopNearCM*arrivalResetFactor {
			p.arrivalFired = false
		}
		p.mu.Unlock()
		return
	}

	p.arrivalTicks++
	fire := p.arrivalTicks >= p.cfg.ArrivalTicks && !p.arrivalFired
	if fire {
		p.arrivalFired = true
	}
	p.mu.Unlock()

	if !fire {
		return
	}

	log.Printf("Arrived at %q (%.1f cm)", obs.Payload, obs.DistanceCM)

	if p.deps.Scans != nil {
		scan := &store.Scan{
			ID:         uuid.NewString(),
			Payload:    obs.Payload,
			DistanceCM: obs.DistanceCM,
			CenterX:    obs.CenterOffsetX,
			CenterY:    obs.CenterOffsetY,
			EdgePx:     obs.EdgePx,
			Source:     "arrival",
		}
		if err := p.deps.Scans.Create(scan); err != nil {
			log.Printf("Failed to record arrival scan: %v", err)
		}
	}

	if p.deps.Hooks != nil {
		p.deps.Hooks.RunLogged(hook.Event{
			Event:      "arrival",
			Payload:    obs.Payload,
			DistanceCM: obs.DistanceCM,
		})
	}
}

// avoidanceLoop runs the open-loop maneuver until the obstacle clears
// or the attempt budget is spent.
func (p *Pilot) avoidanceLoop(ctx context.Context) Mode {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	p.deps.Monitor.ResetManeuvers()

	for {
		select {
		case <-ctx.Done():
			return ModeManual
		case <-ticker.C:
		}

		st := p.deps.Monitor.Update()

		if st.DistanceCM > 1.5*st.SafeDistanceCM && !st.AvoidMode {
			log.Printf("Obstacle cleared at %.1f cm", st.DistanceCM)
			return ModeAuto
		}
		if attempts := p.deps.Monitor.Maneuvers(); attempts >= p.cfg.AvoidAttempts {
			log.Printf("Avoidance gave up after %d maneuvers", attempts)
			return ModeAuto
		}

		p.mu.Lock()
		hint := motion.Hint{TargetDirection: p.lastSeenDir, LostFrames: p.lostFrames}
		p.mu.Unlock()

		cmd := p.deps.Synth.Compute(target.Observation{Lost: true}, st, hint)
		p.issue(cmd, target.Observation{Lost: true}, st)
	}
}

// searchLoop sweeps for the target, bounded by the sweep budget.
func (p *Pilot) searchLoop(ctx context.Context) Mode {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	// One sweep period is a couple of seconds of ticks.
	sweepTicks := int(p.sweep / p.tick)
	if sweepTicks < 1 {
		sweepTicks = 1
	}

	ticks := 0
	sweeps := 0
	camErrors := 0

	for {
		select {
		case <-ctx.Done():
			return ModeManual
		case <-ticker.C:
		}

		st := p.deps.Monitor.Update()

		obs, err := p.observe()
		if err != nil {
			camErrors++
			log.Printf("Camera read failed in search loop: %v", err)
			if camErrors >= maxCameraErrors {
				return ModeManual
			}
			continue
		}
		camErrors = 0

		if !obs.Lost {
			log.Printf("Reacquired %q at %.1f cm", obs.Payload, obs.DistanceCM)
			p.mu.Lock()
			p.lostFrames = 0
			p.lastSeenDir = obs.CenterOffsetX
			p.mu.Unlock()
			return ModeAuto
		}

		p.mu.Lock()
		p.lostFrames++
		hint := motion.Hint{TargetDirection: p.lastSeenDir, LostFrames: p.lostFrames}
		p.mu.Unlock()

		cmd := p.deps.Synth.Compute(obs, st, hint)
		p.issue(cmd, obs, st)

		ticks++
		if ticks%sweepTicks == 0 {
			sweeps++
			if sweeps >= p.cfg.SearchAttempts {
				log.Printf("Search exhausted after %d sweeps", sweeps)
				return ModeAuto
			}
		}
	}
}

// observe reads one frame, detects and localizes. The frame Mat is
// closed before returning.
func (p *Pilot) observe() (target.Observation, error) {
	frame, err := p.deps.Camera.ReadFrame()
	if err != nil {
		return target.Observation{Lost: true}, err
	}
	defer frame.Close()

	p.mu.Lock()
	det := p.detector
	p.mu.Unlock()

	candidates, err := det.Detect(frame)
	if err != nil {
		log.Printf("Detection failed: %v", err)
		return target.Observation{Lost: true}, nil
	}

	return p.deps.Localizer.Select(candidates), nil
}

// issue sends a command to the motors and publishes telemetry.
func (p *Pilot) issue(cmd motion.Command, obs target.Observation, st sonar.State) {
	if err := p.deps.Motors.Set(cmd.Left, cmd.Right); err != nil {
		log.Printf("Motor command failed: %v", err)
	}
	if p.deps.Debug {
		log.Printf("[tick] %s L=%.2f R=%.2f dist=%.1f obstacle=%.1f", cmd.Tag, cmd.Left, cmd.Right, obs.DistanceCM, st.DistanceCM)
	}

	p.mu.Lock()
	if !obs.Lost {
		p.lastTrack = cmd
	}
	mode := p.mode
	lost := p.lostFrames
	p.mu.Unlock()

	p.telemetry.update(func(s *Snapshot) {
		s.Mode = mode.String()
		s.Left, s.Right = cmd.Left, cmd.Right
		s.Tag = cmd.Tag
		s.RotationDeg = cmd.RotationEstimate
		s.LostFrames = lost
		s.ObstacleCM = st.DistanceCM
		s.ObstaclePhase = st.Phase.String()
		if obs.Lost {
			s.TargetDistanceCM = 0
		} else {
			s.TargetPayload = obs.Payload
			s.TargetDistanceCM = obs.DistanceCM
		}
	})
}

// halt stops the motors immediately, used at preemption boundaries.
func (p *Pilot) halt(tag string, st sonar.State) {
	if err := p.deps.Motors.Stop(); err != nil {
		log.Printf("Halt failed: %v", err)
	}
	p.deps.Synth.ObserveIssued(0, 0)
	p.telemetry.update(func(s *Snapshot) {
		s.Left, s.Right = 0, 0
		s.Tag = tag
		s.ObstacleCM = st.DistanceCM
		s.ObstaclePhase = st.Phase.String()
	})
}
