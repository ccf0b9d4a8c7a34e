package target

import (
	"errors"
	"math"
	"testing"

	"github.com/ayusman/porter/internal/vision"
)

func testLocalizer() *Localizer {
	return New(Config{
		Fx: 530, Fy: 530,
		Cx: 320, Cy: 240,
		SizeCM:    2.5,
		MinEdgePx: 20,
	})
}

func TestLocalize_DistancePositiveAndMonotonic(t *testing.T) {
	l := testLocalizer()

	prev := math.Inf(1)
	for _, edge := range []float64{25, 50, 100, 200, 400} {
		obs, err := l.Localize(vision.CenteredCorners(edge))
		if err != nil {
			t.Fatalf("Localize(edge=%.0f) error = %v", edge, err)
		}
		if obs.DistanceCM <= 0 {
			t.Errorf("edge %.0f: distance %.2f not positive", edge, obs.DistanceCM)
		}
		if obs.DistanceCM >= prev {
			t.Errorf("edge %.0f: distance %.2f did not decrease from %.2f", edge, obs.DistanceCM, prev)
		}
		prev = obs.DistanceCM
	}
}

func TestLocalize_KnownDistance(t *testing.T) {
	l := testLocalizer()

	// 2.5cm marker at 53px should be 2.5*530/53 = 25cm away.
	obs, err := l.Localize(vision.CenteredCorners(53))
	if err != nil {
		t.Fatalf("Localize() error = %v", err)
	}
	if math.Abs(obs.DistanceCM-25.0) > 1e-9 {
		t.Errorf("expected distance 25cm, got %.4f", obs.DistanceCM)
	}
}

func TestLocalize_CenterOffsets(t *testing.T) {
	l := testLocalizer()

	obs, err := l.Localize(vision.ShiftedCorners(100, 60))
	if err != nil {
		t.Fatalf("Localize() error = %v", err)
	}
	if math.Abs(obs.CenterOffsetX-60) > 1e-9 {
		t.Errorf("expected x offset 60, got %.2f", obs.CenterOffsetX)
	}
	if math.Abs(obs.CenterOffsetY) > 1e-9 {
		t.Errorf("expected y offset 0, got %.2f", obs.CenterOffsetY)
	}
}

func TestLocalize_TiltTrends(t *testing.T) {
	l := testLocalizer()

	// Left edge stretched by 10px reads as yaw; square marker has none.
	obs, err := l.Localize(vision.TiltedCorners(100, 10, 0))
	if err != nil {
		t.Fatalf("Localize() error = %v", err)
	}
	if obs.YawTrend <= 0 {
		t.Errorf("expected positive yaw trend for stretched left edge, got %.2f", obs.YawTrend)
	}

	flat, _ := l.Localize(vision.CenteredCorners(100))
	if flat.YawTrend != 0 || math.Abs(flat.PitchTrend-100) > 1e-9 {
		t.Errorf("square fixture: yaw = %.2f, pitch = %.2f; want 0, 100", flat.YawTrend, flat.PitchTrend)
	}

	// Extra pitch skew grows the top-to-bottom span.
	pitched, _ := l.Localize(vision.TiltedCorners(100, 0, 15))
	if pitched.PitchTrend <= flat.PitchTrend {
		t.Errorf("expected pitch trend to grow with skew: %.2f vs %.2f", pitched.PitchTrend, flat.PitchTrend)
	}
}

func TestLocalize_DegenerateEdge(t *testing.T) {
	l := testLocalizer()

	corners := [4]vision.Point{{X: 320, Y: 240}, {X: 320, Y: 240}, {X: 320, Y: 240}, {X: 320, Y: 240}}
	if _, err := l.localize(corners, 2.5, ""); !errors.Is(err, ErrDegenerateMarker) {
		t.Errorf("expected ErrDegenerateMarker, got %v", err)
	}
}

func TestLocalize_Idempotent(t *testing.T) {
	l := testLocalizer()
	corners := vision.TiltedCorners(80, 5, 3)

	first, err := l.Localize(corners)
	if err != nil {
		t.Fatalf("Localize() error = %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := l.Localize(corners)
		if err != nil {
			t.Fatalf("Localize() error = %v", err)
		}
		if again != first {
			t.Fatalf("observation changed between identical calls: %+v vs %+v", again, first)
		}
	}
}

func TestSelect_ClosestWins(t *testing.T) {
	l := testLocalizer()

	candidates := []vision.Candidate{
		{Payload: "far", Corners: vision.CenteredCorners(40)},
		{Payload: "near", Corners: vision.ShiftedCorners(120, 50)},
		{Payload: "mid", Corners: vision.CenteredCorners(80)},
	}

	obs := l.Select(candidates)
	if obs.Lost {
		t.Fatal("expected a target, got lost")
	}
	if obs.Payload != "near" {
		t.Errorf("expected closest candidate 'near', got %q", obs.Payload)
	}
}

func TestSelect_DropsTinyMarkers(t *testing.T) {
	l := testLocalizer()

	// A 10px marker would be closest by the raw formula but is below
	// the reliability threshold.
	candidates := []vision.Candidate{
		{Payload: "tiny", Corners: vision.CenteredCorners(10)},
		{Payload: "ok", Corners: vision.CenteredCorners(40)},
	}

	obs := l.Select(candidates)
	if obs.Payload != "ok" {
		t.Errorf("expected tiny marker filtered out, got %q", obs.Payload)
	}
}

func TestSelect_NoCandidatesIsLost(t *testing.T) {
	l := testLocalizer()

	if obs := l.Select(nil); !obs.Lost {
		t.Error("expected lost observation for no candidates")
	}
	if obs := l.Select([]vision.Candidate{{Corners: vision.CenteredCorners(5)}}); !obs.Lost {
		t.Error("expected lost observation when all candidates are unreliable")
	}
}

type fakeLookup struct {
	sizes   map[string]float64
	enabled map[string]bool
}

func (f *fakeLookup) MarkerSize(payload string) (float64, bool, bool) {
	size, ok := f.sizes[payload]
	if !ok {
		return 0, false, false
	}
	return size, f.enabled[payload], true
}

func TestSelect_RegistrySizeOverride(t *testing.T) {
	lookup := &fakeLookup{
		sizes:   map[string]float64{"big": 5.0},
		enabled: map[string]bool{"big": true},
	}
	l := New(Config{
		Fx: 530, Cx: 320, Cy: 240,
		SizeCM: 2.5, MinEdgePx: 20,
		Lookup: lookup,
	})

	obs := l.Select([]vision.Candidate{{Payload: "big", Corners: vision.CenteredCorners(53)}})
	if obs.Lost {
		t.Fatal("expected a target")
	}
	// 5cm marker at 53px: 5*530/53 = 50cm, double the default-size estimate.
	if math.Abs(obs.DistanceCM-50.0) > 1e-9 {
		t.Errorf("expected overridden distance 50cm, got %.2f", obs.DistanceCM)
	}
}

func TestSelect_RegistryOnlyFiltering(t *testing.T) {
	lookup := &fakeLookup{
		sizes:   map[string]float64{"allowed": 0, "disabled": 0},
		enabled: map[string]bool{"allowed": true, "disabled": false},
	}
	l := New(Config{
		Fx: 530, Cx: 320, Cy: 240,
		SizeCM: 2.5, MinEdgePx: 20,
		RegistryOnly: true,
		Lookup:       lookup,
	})

	tests := []struct {
		payload  string
		wantLost bool
	}{
		{"allowed", false},
		{"disabled", true},
		{"unknown", true},
		{"", true}, // unidentified payloads fail a whitelist
	}

	for _, tt := range tests {
		obs := l.Select([]vision.Candidate{{Payload: tt.payload, Corners: vision.CenteredCorners(60)}})
		if obs.Lost != tt.wantLost {
			t.Errorf("payload %q: lost = %v, want %v", tt.payload, obs.Lost, tt.wantLost)
		}
	}
}

func TestSelect_EmptyPayloadValidWithoutRegistry(t *testing.T) {
	l := testLocalizer()

	obs := l.Select([]vision.Candidate{{Payload: "", Corners: vision.CenteredCorners(60)}})
	if obs.Lost {
		t.Error("expected unidentified marker to be a valid target when no whitelist is active")
	}
}
