package config

import (
	"errors"
	"flag"
	"io"
	"log/slog"
	"testing"

	"github.com/user/gpupathtracer/internal/engine"
)

func env(vars map[string]string) Lookup {
	return func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatal(err)
	}
	if got := c.Settings(); got != engine.DefaultSettings() {
		t.Errorf("settings = %+v", got)
	}
}

func TestApplyEnv(t *testing.T) {
	c := Default()
	err := c.ApplyEnv(env(map[string]string{
		"PATHTRACER_WIDTH":     "640",
		"PATHTRACER_HEIGHT":    " 480 ",
		"PATHTRACER_MODE":      "FINAL",
		"PATHTRACER_HEADLESS":  "yes",
		"PATHTRACER_VSYNC":     "off",
		"PATHTRACER_APERTURE":  "0.1",
		"PATHTRACER_OUT":       "/tmp/x.png",
		"PATHTRACER_LOG_LEVEL": "debug",
		"PATHTRACER_SPP":       "",
		"OTHER_WIDTH":          "1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if c.Width != 640 || c.Height != 480 {
		t.Errorf("size = %dx%d", c.Width, c.Height)
	}
	if c.Mode != ModeFinal || !c.Headless || c.VSync {
		t.Errorf("mode=%v headless=%v vsync=%v", c.Mode, c.Headless, c.VSync)
	}
	if c.Aperture != 0.1 || c.Output != "/tmp/x.png" || c.LogLevel != "debug" {
		t.Errorf("aperture=%v out=%q level=%q", c.Aperture, c.Output, c.LogLevel)
	}
	if c.SamplesPerPixel != 0 {
		t.Errorf("empty SPP changed the value to %d", c.SamplesPerPixel)
	}
}

func TestApplyEnvMalformed(t *testing.T) {
	tests := map[string]string{
		"PATHTRACER_WIDTH":    "wide",
		"PATHTRACER_FOV":      "1e",
		"PATHTRACER_HEADLESS": "maybe",
		"PATHTRACER_MODE":     "draft",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			c := Default()
			if err := c.ApplyEnv(env(map[string]string{k: v})); err == nil {
				t.Errorf("%s=%q accepted", k, v)
			}
		})
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	c := Default()
	if err := c.ApplyEnv(env(map[string]string{"PATHTRACER_WIDTH": "640"})); err != nil {
		t.Fatal(err)
	}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-width", "800", "-mode", "final", "-spp", "2"}); err != nil {
		t.Fatal(err)
	}
	if c.Width != 800 {
		t.Errorf("width = %d, want 800", c.Width)
	}
	if c.Height != 720 {
		t.Errorf("height = %d, want default 720", c.Height)
	}
	want := engine.Settings{SamplesPerPixel: 2, MaxDepth: 32}
	if got := c.Settings(); got != want {
		t.Errorf("settings = %+v, want %+v", got, want)
	}

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	c.RegisterFlags(fs)
	if err := fs.Parse([]string{"-mode", "ultra"}); err == nil {
		t.Error("unknown mode accepted")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"zero width", func(c *Config) { c.Width = 0 }, false},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"headless no frames", func(c *Config) { c.Headless, c.Frames = true, 0 }, false},
		{"headless no output", func(c *Config) { c.Headless, c.Output = true, "" }, false},
		{"headless with panel", func(c *Config) { c.Headless, c.Panel = true, true }, false},
		{"negative focus", func(c *Config) { c.FocusDistance = -1 }, false},
		{"headless", func(c *Config) { c.Headless = true }, true},
		{"clamped", func(c *Config) { c.FramesInFlight, c.ImageCount, c.FOV, c.Aperture = 9, 1, 500, -2 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
		})
	}

	c := Default()
	c.FramesInFlight, c.ImageCount, c.FOV, c.Aperture = 9, 1, 500, -2
	c.Validate()
	if c.FramesInFlight != 3 || c.ImageCount != 2 || c.FOV != engine.MaxFOV || c.Aperture != 0 {
		t.Errorf("clamped to %d %d %v %v", c.FramesInFlight, c.ImageCount, c.FOV, c.Aperture)
	}
}

func TestLevel(t *testing.T) {
	c := Default()
	c.LogLevel = "WARN"
	l, err := c.Level()
	if err != nil || l != slog.LevelWarn {
		t.Errorf("level = %v, %v", l, err)
	}
}

func TestModeText(t *testing.T) {
	for _, m := range []Mode{ModePreview, ModeFinal} {
		b, _ := m.MarshalText()
		var got Mode
		if err := got.UnmarshalText(b); err != nil || got != m {
			t.Errorf("%v -> %q -> %v (%v)", m, b, got, err)
		}
	}
	if Mode(7).String() != "Mode(7)" {
		t.Errorf("String = %q", Mode(7))
	}
	if Preset(Mode(7)) != engine.DefaultSettings() {
		t.Error("unknown mode preset is not preview")
	}
}
