// Package config loads the porter runtime configuration from YAML.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Limits applied during validation.
const (
	// MaxDwellSeconds is the ceiling for avoidance phase dwell times.
	MaxDwellSeconds = 5.0
	// MinFPS and MaxFPS bound the camera frame rate.
	MinFPS = 5
	MaxFPS = 60
)

// CameraConfig describes the capture device and its intrinsics.
type CameraConfig struct {
	Device    int              `yaml:"device"`
	Width     int              `yaml:"width"`
	Height    int              `yaml:"height"`
	FPS       int              `yaml:"fps"`
	Undistort bool             `yaml:"undistort"`
	Intrinsic IntrinsicsConfig `yaml:"intrinsics"`
}

// IntrinsicsConfig holds the pinhole camera model parameters.
type IntrinsicsConfig struct {
	Fx   float64   `yaml:"fx"`
	Fy   float64   `yaml:"fy"`
	Cx   float64   `yaml:"cx"`
	Cy   float64   `yaml:"cy"`
	Dist []float64 `yaml:"dist"`
}

// MarkerConfig describes the fiducial markers being tracked.
type MarkerConfig struct {
	SizeCM       float64 `yaml:"size_cm"`
	MinEdgePx    float64 `yaml:"min_edge_px"`
	RegistryOnly bool    `yaml:"registry_only"`
}

// TrackingConfig holds gains and thresholds for target following.
type TrackingConfig struct {
	BaseForward float64 `yaml:"base_forward"`
	BaseTurn    float64 `yaml:"base_turn"`
	TurnComp    float64 `yaml:"turn_comp"`
	ForwardComp float64 `yaml:"forward_comp"`
	DeadZonePx  float64 `yaml:"dead_zone_px"`
	KpDist      float64 `yaml:"kp_dist"`
	KpPitch     float64 `yaml:"kp_pitch"`
	KpYaw       float64 `yaml:"kp_yaw"`
	MaxSpeed    float64 `yaml:"max_speed"`
	MinSpeed    float64 `yaml:"min_speed"`
	TrackFarCM  float64 `yaml:"track_far_cm"`
	StopNearCM  float64 `yaml:"stop_near_cm"`
}

// SearchConfig holds parameters for target reacquisition.
type SearchConfig struct {
	BaseSpeed      float64 `yaml:"base_speed"`
	TurnGain       float64 `yaml:"turn_gain"`
	MaxRotationDeg float64 `yaml:"max_rotation_deg"`
	ReckonGain     float64 `yaml:"reckon_gain"`
	MaxSpeedDiff   float64 `yaml:"max_speed_diff"`
	MaxRateDeg     float64 `yaml:"max_rate_deg"`
}

// ObstacleConfig holds ultrasonic thresholds and avoidance timing.
type ObstacleConfig struct {
	SafeCM        float64 `yaml:"safe_cm"`
	StopCM        float64 `yaml:"stop_cm"`
	ReleaseFactor float64 `yaml:"release_factor"`
	RightTurnS    float64 `yaml:"right_turn_s"`
	Forward1S     float64 `yaml:"forward1_s"`
	LeftTurnS     float64 `yaml:"left_turn_s"`
	Forward2S     float64 `yaml:"forward2_s"`
}

// PilotConfig holds the orchestrator loop parameters.
type PilotConfig struct {
	TickMs         int `yaml:"tick_ms"`
	MaxLost        int `yaml:"max_lost"`
	SearchAttempts int `yaml:"search_attempts"`
	AvoidAttempts  int `yaml:"avoid_attempts"`
	InitGraceS     int `yaml:"init_grace_s"`
	ArrivalTicks   int `yaml:"arrival_ticks"`
}

// SonarConfig selects the ultrasonic ranging backend.
type SonarConfig struct {
	Backend    string `yaml:"backend"` // gpio, serial, or off
	SerialPort string `yaml:"serial_port"`
	Baud       int    `yaml:"baud"`
}

// GPIOConfig holds BCM pin assignments and PWM settings.
type GPIOConfig struct {
	Mock     bool `yaml:"mock"`
	Trig     int  `yaml:"trig"`
	Echo     int  `yaml:"echo"`
	LeftFwd  int  `yaml:"left_fwd"`
	LeftRev  int  `yaml:"left_rev"`
	RightFwd int  `yaml:"right_fwd"`
	RightRev int  `yaml:"right_rev"`
	PWMHz    int  `yaml:"pwm_hz"`
}

// TeleopConfig holds manual driving parameters.
type TeleopConfig struct {
	StartSpeed float64 `yaml:"start_speed"`
	Step       float64 `yaml:"step"`
	AutoLimit  float64 `yaml:"auto_limit"`
}

// HookConfig describes one external command run on arrival events.
type HookConfig struct {
	Name     string   `yaml:"name"`
	Command  []string `yaml:"command"`
	TimeoutS int      `yaml:"timeout_s"`
}

// HooksConfig groups event hooks by trigger.
type HooksConfig struct {
	Arrival []HookConfig `yaml:"arrival"`
}

// StoreConfig holds the registry database location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds the preview/telemetry server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config aggregates the whole porter configuration.
type Config struct {
	Camera   CameraConfig   `yaml:"camera"`
	Marker   MarkerConfig   `yaml:"marker"`
	Tracking TrackingConfig `yaml:"tracking"`
	Search   SearchConfig   `yaml:"search"`
	Obstacle ObstacleConfig `yaml:"obstacle"`
	Pilot    PilotConfig    `yaml:"pilot"`
	Sonar    SonarConfig    `yaml:"sonar"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Teleop   TeleopConfig   `yaml:"teleop"`
	Store    StoreConfig    `yaml:"store"`
	Server   ServerConfig   `yaml:"server"`
	Hooks    HooksConfig    `yaml:"hooks"`
	Debug    bool           `yaml:"debug"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Camera: CameraConfig{
			Device: 0,
			Width:  640,
			Height: 480,
			FPS:    30,
			Intrinsic: IntrinsicsConfig{
				Fx:   530,
				Fy:   530,
				Cx:   320,
				Cy:   240,
				Dist: []float64{0, 0, 0, 0, 0},
			},
		},
		Marker: MarkerConfig{
			SizeCM:    2.5,
			MinEdgePx: 20,
		},
		Tracking: TrackingConfig{
			BaseForward: 0.35,
			BaseTurn:    0.28,
			TurnComp:    0.45,
			ForwardComp: 0.8,
			DeadZonePx:  25,
			KpDist:      0.015,
			KpPitch:     0.01,
			KpYaw:       0.004,
			MaxSpeed:    1.0,
			MinSpeed:    -1.0,
			TrackFarCM:  120,
			StopNearCM:  22,
		},
		Search: SearchConfig{
			BaseSpeed:      0.2,
			TurnGain:       0.3,
			MaxRotationDeg: 60,
			ReckonGain:     1.0,
			MaxSpeedDiff:   0.5,
			MaxRateDeg:     180,
		},
		Obstacle: ObstacleConfig{
			SafeCM:        30,
			StopCM:        12,
			ReleaseFactor: 1.8,
			RightTurnS:    0.8,
			Forward1S:     0.6,
			LeftTurnS:     0.8,
			Forward2S:     0.6,
		},
		Pilot: PilotConfig{
			TickMs:         100,
			MaxLost:        10,
			SearchAttempts: 5,
			AvoidAttempts:  5,
			InitGraceS:     2,
			ArrivalTicks:   5,
		},
		Sonar: SonarConfig{
			Backend:    "gpio",
			SerialPort: "/dev/ttyAMA0",
			Baud:       9600,
		},
		GPIO: GPIOConfig{
			Trig:     27,
			Echo:     22,
			LeftFwd:  16,
			LeftRev:  19,
			RightFwd: 20,
			RightRev: 21,
			PWMHz:    1000,
		},
		Teleop: TeleopConfig{
			StartSpeed: 0.8,
			Step:       0.1,
			AutoLimit:  0.7,
		},
		Store:  StoreConfig{Path: defaultStorePath()},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load reads the YAML file at path and applies validation.
// A missing file yields pure defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file %s not found, using defaults", path)
			cfg.validate()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.validate()
	return cfg, nil
}

// validate clamps out-of-range values and fills missing ones.
// Clamps are logged so bad configuration is visible without being fatal.
func (c *Config) validate() {
	if c.Camera.FPS < MinFPS || c.Camera.FPS > MaxFPS {
		clamped := clampInt(c.Camera.FPS, MinFPS, MaxFPS)
		log.Printf("Config: camera.fps %d out of range [%d, %d], clamped to %d",
			c.Camera.FPS, MinFPS, MaxFPS, clamped)
		c.Camera.FPS = clamped
	}

	if c.Marker.SizeCM <= 0 {
		c.Marker.SizeCM = 2.5
	}
	if c.Marker.MinEdgePx <= 0 {
		c.Marker.MinEdgePx = 20
	}

	if c.Tracking.MaxSpeed > 1 || c.Tracking.MaxSpeed <= 0 {
		log.Printf("Config: tracking.max_speed %.2f out of range (0, 1], clamped to 1.0", c.Tracking.MaxSpeed)
		c.Tracking.MaxSpeed = 1.0
	}
	if c.Tracking.MinSpeed < -1 || c.Tracking.MinSpeed > 0 {
		log.Printf("Config: tracking.min_speed %.2f out of range [-1, 0], clamped to -1.0", c.Tracking.MinSpeed)
		c.Tracking.MinSpeed = -1.0
	}
	if c.Tracking.TrackFarCM <= c.Tracking.StopNearCM {
		log.Printf("Config: tracking.track_far_cm %.1f must exceed stop_near_cm %.1f, using defaults",
			c.Tracking.TrackFarCM, c.Tracking.StopNearCM)
		c.Tracking.TrackFarCM = 120
		c.Tracking.StopNearCM = 22
	}

	c.Obstacle.RightTurnS = clampDwell("obstacle.right_turn_s", c.Obstacle.RightTurnS)
	c.Obstacle.Forward1S = clampDwell("obstacle.forward1_s", c.Obstacle.Forward1S)
	c.Obstacle.LeftTurnS = clampDwell("obstacle.left_turn_s", c.Obstacle.LeftTurnS)
	c.Obstacle.Forward2S = clampDwell("obstacle.forward2_s", c.Obstacle.Forward2S)

	if c.Obstacle.ReleaseFactor < 1.5 || c.Obstacle.ReleaseFactor > 1.8 {
		clamped := clampFloat(c.Obstacle.ReleaseFactor, 1.5, 1.8)
		log.Printf("Config: obstacle.release_factor %.2f out of range [1.5, 1.8], clamped to %.2f",
			c.Obstacle.ReleaseFactor, clamped)
		c.Obstacle.ReleaseFactor = clamped
	}
	if c.Obstacle.StopCM >= c.Obstacle.SafeCM {
		log.Printf("Config: obstacle.stop_cm %.1f must be below safe_cm %.1f, using defaults",
			c.Obstacle.StopCM, c.Obstacle.SafeCM)
		c.Obstacle.SafeCM = 30
		c.Obstacle.StopCM = 12
	}

	if c.Pilot.TickMs <= 0 {
		c.Pilot.TickMs = 100
	}
	if c.Pilot.MaxLost <= 0 {
		c.Pilot.MaxLost = 10
	}
	if c.Pilot.SearchAttempts <= 0 {
		c.Pilot.SearchAttempts = 5
	}
	if c.Pilot.AvoidAttempts <= 0 {
		c.Pilot.AvoidAttempts = 5
	}
	if c.Pilot.ArrivalTicks <= 0 {
		c.Pilot.ArrivalTicks = 5
	}

	switch c.Sonar.Backend {
	case "gpio", "serial", "off":
	default:
		log.Printf("Config: unknown sonar.backend %q, using gpio", c.Sonar.Backend)
		c.Sonar.Backend = "gpio"
	}

	if c.Teleop.StartSpeed <= 0 || c.Teleop.StartSpeed > 1 {
		c.Teleop.StartSpeed = 0.8
	}
	if c.Teleop.Step <= 0 || c.Teleop.Step > 0.5 {
		c.Teleop.Step = 0.1
	}
	if c.Teleop.AutoLimit <= 0 || c.Teleop.AutoLimit > 1 {
		c.Teleop.AutoLimit = 0.7
	}

	for i := range c.Hooks.Arrival {
		if c.Hooks.Arrival[i].TimeoutS <= 0 {
			c.Hooks.Arrival[i].TimeoutS = 5
		}
	}
}

// clampDwell applies the shared dwell-time ceiling to one phase timer.
func clampDwell(name string, v float64) float64 {
	if v <= 0 {
		return 0.5
	}
	if v > MaxDwellSeconds {
		log.Printf("Config: %s %.1fs exceeds %.0fs ceiling, clamped", name, v, MaxDwellSeconds)
		return MaxDwellSeconds
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// defaultStorePath returns ~/.porter/porter.db, falling back to the
// working directory when the home directory cannot be resolved.
func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "porter.db"
	}
	return filepath.Join(home, ".porter", "porter.db")
}
