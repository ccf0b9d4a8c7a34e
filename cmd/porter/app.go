package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/porter/internal/capture"
	"github.com/ayusman/porter/internal/config"
	"github.com/ayusman/porter/internal/drive"
	"github.com/ayusman/porter/internal/hook"
	"github.com/ayusman/porter/internal/hw/gpio"
	"github.com/ayusman/porter/internal/motion"
	"github.com/ayusman/porter/internal/pilot"
	"github.com/ayusman/porter/internal/sonar"
	"github.com/ayusman/porter/internal/store"
	"github.com/ayusman/porter/internal/target"
	"github.com/ayusman/porter/internal/vision"
)

// app bundles the wired robot stack shared by the subcommands.
type app struct {
	cfg       *config.Config
	driver    gpio.Driver
	motors    drive.Motors
	ranger    sonar.Ranger
	monitor   *sonar.Monitor
	camera    capture.Camera
	arbiter   *capture.Arbiter
	detector  vision.TargetDetector
	localizer *target.Localizer
	synth     *motion.Synthesizer
	store     *store.Store
	pilot     *pilot.Pilot
}

// loadConfig reads the configuration and applies CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDevice >= 0 {
		cfg.Camera.Device = flagDevice
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if flagStore != "" {
		cfg.Store.Path = flagStore
	}
	if flagMockGPIO {
		cfg.GPIO.Mock = true
	}
	return cfg, nil
}

// openStore creates the registry database, making the parent directory
// if needed.
func openStore(cfg *config.Config) (*store.Store, error) {
	dir := filepath.Dir(cfg.Store.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return store.New(cfg.Store.Path)
}

// newRanger selects the ultrasonic backend from the configuration.
func newRanger(cfg *config.Config, drv gpio.Driver) (sonar.Ranger, error) {
	switch cfg.Sonar.Backend {
	case "off":
		log.Printf("Sonar disabled, obstacle avoidance inactive")
		return sonar.Disabled{}, nil
	case "serial":
		return sonar.NewSerialRanger(cfg.Sonar.SerialPort, cfg.Sonar.Baud)
	default:
		return sonar.NewHCSR04(drv, cfg.GPIO.Trig, cfg.GPIO.Echo)
	}
}

// buildApp wires the full robot stack from the configuration.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	drv, err := gpio.NewDriver(cfg.GPIO.Mock, cfg.GPIO.PWMHz)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to open GPIO: %w", err)
	}

	motors, err := drive.NewHBridge(drv,
		drive.Side{Fwd: cfg.GPIO.LeftFwd, Rev: cfg.GPIO.LeftRev},
		drive.Side{Fwd: cfg.GPIO.RightFwd, Rev: cfg.GPIO.RightRev})
	if err != nil {
		drv.Close()
		st.Close()
		return nil, fmt.Errorf("failed to set up motors: %w", err)
	}

	ranger, err := newRanger(cfg, drv)
	if err != nil {
		motors.Close()
		drv.Close()
		st.Close()
		return nil, fmt.Errorf("failed to open ranger: %w", err)
	}

	monitor := sonar.NewMonitor(ranger, sonar.MonitorConfig{
		SafeCM:        cfg.Obstacle.SafeCM,
		StopCM:        cfg.Obstacle.StopCM,
		ReleaseFactor: cfg.Obstacle.ReleaseFactor,
		RightTurn:     secs(cfg.Obstacle.RightTurnS),
		Forward1:      secs(cfg.Obstacle.Forward1S),
		LeftTurn:      secs(cfg.Obstacle.LeftTurnS),
		Forward2:      secs(cfg.Obstacle.Forward2S),
	})

	camera := capture.NewCamera(capture.Options{
		DeviceID:  cfg.Camera.Device,
		Width:     cfg.Camera.Width,
		Height:    cfg.Camera.Height,
		FPS:       cfg.Camera.FPS,
		Undistort: cfg.Camera.Undistort,
		Intrinsic: capture.Intrinsics{
			Fx:   cfg.Camera.Intrinsic.Fx,
			Fy:   cfg.Camera.Intrinsic.Fy,
			Cx:   cfg.Camera.Intrinsic.Cx,
			Cy:   cfg.Camera.Intrinsic.Cy,
			Dist: cfg.Camera.Intrinsic.Dist,
		},
	})

	localizer := target.New(target.Config{
		Fx:           cfg.Camera.Intrinsic.Fx,
		Fy:           cfg.Camera.Intrinsic.Fy,
		Cx:           cfg.Camera.Intrinsic.Cx,
		Cy:           cfg.Camera.Intrinsic.Cy,
		SizeCM:       cfg.Marker.SizeCM,
		MinEdgePx:    cfg.Marker.MinEdgePx,
		RegistryOnly: cfg.Marker.RegistryOnly,
		Lookup:       st.Markers(),
	})

	synth := motion.NewSynthesizer(cfg.Tracking, cfg.Search, cfg.Obstacle)
	arbiter := capture.NewArbiter()
	detector := vision.NewQRDetector()
	hooks := hook.NewExecutor(cfg.Hooks.Arrival)

	p := pilot.New(pilot.Deps{
		Camera:    camera,
		Arbiter:   arbiter,
		Detector:  detector,
		Localizer: localizer,
		Monitor:   monitor,
		Synth:     synth,
		Motors:    motors,
		Hooks:     hooks,
		Scans:     st.Scans(),
		Debug:     cfg.Debug,
	}, cfg.Pilot, cfg.Tracking)

	return &app{
		cfg:       cfg,
		driver:    drv,
		motors:    motors,
		ranger:    ranger,
		monitor:   monitor,
		camera:    camera,
		arbiter:   arbiter,
		detector:  detector,
		localizer: localizer,
		synth:     synth,
		store:     st,
		pilot:     p,
	}, nil
}

// Close shuts the stack down in dependency order.
func (a *app) Close() {
	if err := a.pilot.Close(); err != nil {
		log.Printf("Pilot shutdown: %v", err)
	}
	if err := a.camera.Close(); err != nil {
		log.Printf("Camera close: %v", err)
	}
	a.detector.Close()
	a.motors.Close()
	a.ranger.Close()
	a.driver.Close()
	a.store.Close()
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
