package config

import (
	"fmt"
	"strings"

	"github.com/user/gpupathtracer/internal/engine"
)

// Mode selects a quality preset.
type Mode int

const (
	ModePreview Mode = iota
	ModeFinal
)

func (m Mode) String() string {
	switch m {
	case ModePreview:
		return "preview"
	case ModeFinal:
		return "final"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names printed by String, in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "preview", "":
		return ModePreview, nil
	case "final":
		return ModeFinal, nil
	}
	return ModePreview, fmt.Errorf("%w: unknown mode %q", ErrInvalid, s)
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Preset returns per-frame quality for a mode. Unknown modes fall back to
// preview.
func Preset(m Mode) engine.Settings {
	switch m {
	case ModeFinal:
		return engine.Settings{SamplesPerPixel: 16, MaxDepth: 32}
	default:
		return engine.DefaultSettings()
	}
}
