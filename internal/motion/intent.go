package motion

// intent is one motion decision before gating and clamping. Every
// branch of the synthesizer produces exactly one intent and resolve
// turns it into the issued command.
type intent struct {
	left  float64
	right float64
	tag   string

	// halt forces zero output regardless of the speeds.
	halt bool
	// floor clamps negative speeds to zero, used while searching so
	// the robot never backs blindly into what it cannot see.
	floor bool
}

func stopIntent(tag string) intent {
	return intent{tag: tag, halt: true}
}

func spin(speed float64, tag string) intent {
	return intent{left: speed, right: -speed, tag: tag}
}

func creep(left, right float64, tag string) intent {
	return intent{left: left, right: right, tag: tag, floor: true}
}

func track(left, right float64, tag string) intent {
	return intent{left: left, right: right, tag: tag}
}

// resolve applies the halt gate, the search floor and the speed limits
// in that order.
func (s *Synthesizer) resolve(it intent) Command {
	left, right := it.left, it.right

	if it.halt {
		left, right = 0, 0
	}
	if it.floor {
		if left < 0 {
			left = 0
		}
		if right < 0 {
			right = 0
		}
	}

	left = clamp(left, s.track.MinSpeed, s.track.MaxSpeed)
	right = clamp(right, s.track.MinSpeed, s.track.MaxSpeed)

	return Command{
		Left:             left,
		Right:            right,
		Tag:              it.tag,
		RotationEstimate: s.reckoner.Rotation(),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
