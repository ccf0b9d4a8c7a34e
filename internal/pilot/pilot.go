// Package pilot orchestrates the navigation modes: it owns the camera
// claim, the control loops and the motors, and guarantees that at most
// one loop drives the robot at any time.
package pilot

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ayusman/porter/internal/capture"
	"github.com/ayusman/porter/internal/config"
	"github.com/ayusman/porter/internal/drive"
	"github.com/ayusman/porter/internal/hook"
	"github.com/ayusman/porter/internal/motion"
	"github.com/ayusman/porter/internal/sonar"
	"github.com/ayusman/porter/internal/store"
	"github.com/ayusman/porter/internal/target"
	"github.com/ayusman/porter/internal/vision"
)

// Mode is the active navigation mode.
type Mode int

const (
	ModeManual Mode = iota
	ModeAuto
	ModeAvoidance
	ModeSearch
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeAvoidance:
		return "avoidance"
	case ModeSearch:
		return "search"
	default:
		return "manual"
	}
}

const (
	// acquirePolls and acquirePollDelay bound the wait for the preview
	// stream to honor a revocation before tracking gives up.
	acquirePolls     = 20
	acquirePollDelay = 50 * time.Millisecond

	// restartThrottle slows down self-healing restarts of a loop that
	// keeps dying.
	restartThrottle = 500 * time.Millisecond

	// maxCameraErrors consecutive read failures inside a loop fall
	// back to Manual.
	maxCameraErrors = 10

	// arrivalResetFactor: moving back past stop-near by this factor
	// re-arms the arrival hooks for a fresh approach.
	arrivalResetFactor = 2.0
)

// Deps bundles everything a Pilot drives. Store and Hooks may be nil.
type Deps struct {
	Camera    capture.Camera
	Arbiter   *capture.Arbiter
	Detector  vision.TargetDetector
	Localizer *target.Localizer
	Monitor   *sonar.Monitor
	Synth     *motion.Synthesizer
	Motors    drive.Motors
	Hooks     *hook.Executor
	Scans     *store.ScanRepository

	// Debug enables per-tick command logging.
	Debug bool
}

// Pilot is the mode orchestrator.
type Pilot struct {
	deps Deps
	cfg  config.PilotConfig

	stopNearCM float64
	tick       time.Duration
	grace      time.Duration
	sweep      time.Duration

	mu           sync.Mutex
	mode         Mode
	loopCtx      context.Context
	cancel       context.CancelFunc
	done         chan struct{}
	detector     vision.TargetDetector
	realDetector vision.TargetDetector
	lostFrames   int
	lastSeenDir  float64
	lastTrack    motion.Command
	lastObs      target.Observation
	arrivalTicks int
	arrivalFired bool

	telemetry telemetry
}

// New creates a Pilot in Manual mode.
func New(deps Deps, cfg config.PilotConfig, tracking config.TrackingConfig) *Pilot {
	tick := time.Duration(cfg.TickMs) * time.Millisecond
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	return &Pilot{
		deps:         deps,
		cfg:          cfg,
		stopNearCM:   tracking.StopNearCM,
		tick:         tick,
		grace:        time.Duration(cfg.InitGraceS) * time.Second,
		sweep:        2 * time.Second,
		mode:         ModeManual,
		detector:     deps.Detector,
		realDetector: deps.Detector,
	}
}

// Mode returns the currently active mode.
func (p *Pilot) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// EngageAuto claims the camera and starts the Auto loop. A preview
// viewer holding the camera is revoked first and given a short window
// to let go.
func (p *Pilot) EngageAuto() error {
	p.mu.Lock()
	if p.mode != ModeManual {
		p.mu.Unlock()
		return fmt.Errorf("cannot engage auto from %s mode", p.mode)
	}
	p.mu.Unlock()

	p.deps.Arbiter.Revoke(capture.OwnerPreview)

	var err error
	for i := 0; i < acquirePolls; i++ {
		if err = p.deps.Arbiter.Acquire(capture.OwnerTracking); err == nil {
			break
		}
		time.Sleep(acquirePollDelay)
	}
	if err != nil {
		return fmt.Errorf("tracking could not start: %w", err)
	}

	if !p.deps.Camera.IsOpen() {
		if err := p.deps.Camera.Open(); err != nil {
			p.deps.Arbiter.Release(capture.OwnerTracking)
			return fmt.Errorf("tracking could not start: %w", err)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != ModeManual {
		// Lost the race to another caller; the claim is idempotent
		// for the tracking owner, nothing to undo.
		return fmt.Errorf("cannot engage auto from %s mode", p.mode)
	}

	p.lostFrames = 0
	p.lastSeenDir = 0
	p.lastTrack = motion.Command{}
	p.arrivalTicks = 0
	p.arrivalFired = false
	p.deps.Synth.ResetHistory()
	p.deps.Monitor.ResetManeuvers()

	log.Printf("Engaging auto mode")
	p.startLoopLocked(ModeAuto)
	return nil
}

// SetManual stops whatever loop is running, halts the motors and
// releases the camera claim. It returns once the loop has exited.
func (p *Pilot) SetManual() error {
	p.mu.Lock()
	if p.mode == ModeManual {
		p.mu.Unlock()
		return nil
	}
	cancel, done := p.cancel, p.done
	p.mode = ModeManual
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	if err := p.deps.Motors.Stop(); err != nil {
		log.Printf("Halt failed entering manual mode: %v", err)
	}
	p.deps.Arbiter.Release(capture.OwnerTracking)
	p.publishState()

	log.Printf("Manual mode")
	return nil
}

// ManualDrive issues a direct wheel command. Only valid in Manual mode.
func (p *Pilot) ManualDrive(left, right float64) error {
	p.mu.Lock()
	if p.mode != ModeManual {
		p.mu.Unlock()
		return fmt.Errorf("manual drive rejected in %s mode", p.mode)
	}
	p.mu.Unlock()

	if err := p.deps.Motors.Set(left, right); err != nil {
		return err
	}
	p.telemetry.update(func(s *Snapshot) {
		s.Mode = ModeManual.String()
		s.Left, s.Right = left, right
		s.Tag = "manual"
	})
	return nil
}

// SetDetectionEnabled swaps the detector for a disabled stub (or back),
// so the operator can drive with detection off without tearing down
// the pipeline.
func (p *Pilot) SetDetectionEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if enabled {
		p.detector = p.realDetector
	} else {
		p.detector = vision.Disabled{}
	}
}

// DetectionEnabled reports whether the real detector is active.
func (p *Pilot) DetectionEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, disabled := p.detector.(vision.Disabled)
	return !disabled
}

// Close stops any running loop and the motors.
func (p *Pilot) Close() error {
	return p.SetManual()
}

// startLoopLocked spawns the loop for mode m. Caller holds p.mu.
func (p *Pilot) startLoopLocked(m Mode) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.mode = m
	p.loopCtx = ctx
	p.cancel = cancel
	p.done = done
	go p.run(ctx, cancel, m, done)
}

// run executes one loop and hands off to its successor. The handoff is
// skipped when the operator cancelled the loop or another loop has
// already replaced it; a loop that crashes or asks to restart itself is
// throttled so a persistent failure cannot spin. The loop's context is
// always cancelled on the way out so a handoff does not leak it.
func (p *Pilot) run(ctx context.Context, cancel context.CancelFunc, m Mode, done chan struct{}) {
	defer close(done)
	defer cancel()

	next := p.supervise(ctx, m)

	if ctx.Err() != nil {
		return
	}

	if next == m {
		time.Sleep(restartThrottle)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.mode != m || p.done != done || ctx.Err() != nil {
		return
	}

	if next == ModeManual {
		p.mode = ModeManual
		p.cancel, p.done = nil, nil
		if err := p.deps.Motors.Stop(); err != nil {
			log.Printf("Halt failed falling back to manual: %v", err)
		}
		p.deps.Arbiter.Release(capture.OwnerTracking)
		log.Printf("Falling back to manual mode")
		return
	}

	log.Printf("Mode %s -> %s", m, next)
	p.startLoopLocked(next)
}

// supervise runs the mode loop, converting an escaped panic into a
// restart of the same mode so a crashing dependency call cannot strand
// the pilot with no loop running.
func (p *Pilot) supervise(ctx context.Context, m Mode) (next Mode) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Mode %s loop crashed: %v", m, r)
			next = m
		}
	}()
	return p.loop(ctx, m)
}

func (p *Pilot) loop(ctx context.Context, m Mode) Mode {
	switch m {
	case ModeAuto:
		return p.autoLoop(ctx)
	case ModeAvoidance:
		return p.avoidanceLoop(ctx)
	case ModeSearch:
		return p.searchLoop(ctx)
	default:
		return ModeManual
	}
}
