// Package target converts detected marker geometry into range and
// bearing observations for the motion controller.
package target

import (
	"errors"
	"math"

	"github.com/ayusman/porter/internal/vision"
)

// minPixelEdge is the numerical-stability floor for the pixel edge
// length used in the distance estimate.
const minPixelEdge = 1e-5

// ErrDegenerateMarker is returned when a marker's pixel edge length is
// too small to estimate a distance from.
var ErrDegenerateMarker = errors.New("marker edge too small to estimate distance")

// Observation is one per-frame target fix. When Lost is true the
// numeric fields are zero and must not be interpreted; callers carry
// their own last-known values forward.
type Observation struct {
	Lost          bool
	Payload       string
	DistanceCM    float64
	CenterOffsetX float64
	CenterOffsetY float64
	YawTrend      float64
	PitchTrend    float64
	EdgePx        float64
}

// Lookup resolves per-payload marker attributes from the registry.
// ok is false when the payload is not registered; sizeCM of 0 means
// the registry entry has no size override.
type Lookup interface {
	MarkerSize(payload string) (sizeCM float64, enabled bool, ok bool)
}

// Config holds camera intrinsics and marker parameters for a Localizer.
type Config struct {
	Fx, Fy       float64
	Cx, Cy       float64
	SizeCM       float64
	MinEdgePx    float64
	RegistryOnly bool
	Lookup       Lookup
}

// Localizer estimates target distance and offsets from marker corner
// points. It is stateless: identical corners always yield identical
// observations.
type Localizer struct {
	cfg Config
}

// New creates a Localizer from the given configuration.
func New(cfg Config) *Localizer {
	if cfg.MinEdgePx <= 0 {
		cfg.MinEdgePx = 20
	}
	return &Localizer{cfg: cfg}
}

// Localize computes an observation from one marker's corner points
// using the default marker size.
func (l *Localizer) Localize(corners [4]vision.Point) (Observation, error) {
	return l.localize(corners, l.cfg.SizeCM, "")
}

func (l *Localizer) localize(corners [4]vision.Point, sizeCM float64, payload string) (Observation, error) {
	edge := pixelEdge(corners)
	if edge < minPixelEdge {
		return Observation{}, ErrDegenerateMarker
	}

	distance := sizeCM * l.cfg.Fx / edge

	var sumX, sumY float64
	for _, p := range corners {
		sumX += p.X
		sumY += p.Y
	}

	// Vertical stretch difference between the left and right edges
	// approximates left/right tilt; top-to-bottom span growth
	// approximates forward/backward tilt.
	leftY := corners[0].Y - corners[3].Y
	rightY := corners[1].Y - corners[2].Y
	yaw := (leftY - rightY) / 2

	topY := (corners[0].Y + corners[1].Y) / 2
	bottomY := (corners[2].Y + corners[3].Y) / 2
	pitch := bottomY - topY

	return Observation{
		Payload:       payload,
		DistanceCM:    distance,
		CenterOffsetX: sumX/4 - l.cfg.Cx,
		CenterOffsetY: sumY/4 - l.cfg.Cy,
		YawTrend:      yaw,
		PitchTrend:    pitch,
		EdgePx:        edge,
	}, nil
}

// Select picks the target among all candidates in a frame: unreliable
// (too small) markers are dropped, registry filtering is applied when
// configured, and the closest surviving marker wins. An empty result
// is a lost observation.
func (l *Localizer) Select(candidates []vision.Candidate) Observation {
	best := Observation{Lost: true}
	bestDist := math.Inf(1)

	for _, c := range candidates {
		if pixelEdge(c.Corners) < l.cfg.MinEdgePx {
			continue
		}

		size := l.cfg.SizeCM
		if l.cfg.Lookup != nil && c.Payload != "" {
			if override, enabled, ok := l.cfg.Lookup.MarkerSize(c.Payload); ok {
				if l.cfg.RegistryOnly && !enabled {
					continue
				}
				if override > 0 {
					size = override
				}
			} else if l.cfg.RegistryOnly {
				continue
			}
		} else if l.cfg.RegistryOnly && c.Payload == "" {
			// Unidentified markers cannot pass a whitelist.
			continue
		}

		obs, err := l.localize(c.Corners, size, c.Payload)
		if err != nil {
			continue
		}

		if obs.DistanceCM < bestDist {
			bestDist = obs.DistanceCM
			best = obs
		}
	}

	return best
}

// pixelEdge returns the mean length of the two horizontal edges.
func pixelEdge(corners [4]vision.Point) float64 {
	top := norm(corners[1], corners[0])
	bottom := norm(corners[2], corners[3])
	return (top + bottom) / 2
}

func norm(a, b vision.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
