package engine

// Quality limits. Setters clamp into these ranges.
const (
	MinSamplesPerPixel = 1
	MaxSamplesPerPixel = 32
	MinMaxDepth        = 1
	MaxMaxDepth        = 64
	MinFOV             = 5
	MaxFOV             = 120
)

// Settings are the per-dispatch quality knobs.
type Settings struct {
	SamplesPerPixel uint32
	MaxDepth        uint32
}

// DefaultSettings returns 4 samples per dispatch and 12 bounces.
func DefaultSettings() Settings {
	return Settings{SamplesPerPixel: 4, MaxDepth: 12}
}

// Clamped returns s with both fields inside their limits.
func (s Settings) Clamped() Settings {
	return Settings{
		SamplesPerPixel: uint32(clampInt(int(s.SamplesPerPixel), MinSamplesPerPixel, MaxSamplesPerPixel)),
		MaxDepth:        uint32(clampInt(int(s.MaxDepth), MinMaxDepth, MaxMaxDepth)),
	}
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

// clampFloat maps NaN to lo.
func clampFloat(v, lo, hi float32) float32 {
	if !(v >= lo) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
