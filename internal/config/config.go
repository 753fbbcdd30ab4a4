// Package config holds the renderer's configuration: defaults, PATHTRACER_*
// environment overrides and command-line flags, applied in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/user/gpupathtracer/internal/engine"
)

// EnvPrefix starts every environment variable the config reads.
const EnvPrefix = "PATHTRACER_"

var ErrInvalid = errors.New("config: invalid value")

// Config is the full process configuration.
type Config struct {
	Width, Height int
	Title         string
	VSync         bool

	FramesInFlight int
	ImageCount     int

	Mode Mode
	// SamplesPerPixel and MaxDepth override the mode's preset when
	// non-zero.
	SamplesPerPixel int
	MaxDepth        int

	FOV           float64
	Aperture      float64
	FocusDistance float64

	// ScenePath is a JSON sphere list; empty uses the built-in scene.
	ScenePath string

	Headless bool
	Frames   int
	Output   string

	Panel    bool
	LogLevel string
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Width:          1280,
		Height:         720,
		Title:          "GPU Path Tracer",
		VSync:          true,
		FramesInFlight: engine.DefaultFramesInFlight,
		ImageCount:     3,
		Mode:           ModePreview,
		FOV:            20,
		Aperture:       0.05,
		Frames:         64,
		Output:         "output.png",
		LogLevel:       "info",
	}
}

// Lookup reads an environment variable. os.LookupEnv satisfies it.
type Lookup func(key string) (string, bool)

// Load builds a Config from defaults and the process environment, then
// parses args with the flags registered by RegisterFlags.
func Load(args []string) (Config, error) {
	cfg := Default()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// ApplyEnv overrides fields from PATHTRACER_* variables. The first
// malformed value is reported.
func (c *Config) ApplyEnv(lookup Lookup) error {
	var firstErr error
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}
	fail := func(name, v string, err error) {
		if firstErr == nil {
			firstErr = fmt.Errorf("%s%s=%q: %w", EnvPrefix, name, v, err)
		}
	}
	ints := map[string]*int{
		"WIDTH":            &c.Width,
		"HEIGHT":           &c.Height,
		"FRAMES_IN_FLIGHT": &c.FramesInFlight,
		"IMAGE_COUNT":      &c.ImageCount,
		"SPP":              &c.SamplesPerPixel,
		"MAX_DEPTH":        &c.MaxDepth,
		"FRAMES":           &c.Frames,
	}
	for name, dst := range ints {
		if v, ok := get(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				fail(name, v, err)
				continue
			}
			*dst = n
		}
	}
	floats := map[string]*float64{
		"FOV":            &c.FOV,
		"APERTURE":       &c.Aperture,
		"FOCUS_DISTANCE": &c.FocusDistance,
	}
	for name, dst := range floats {
		if v, ok := get(name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fail(name, v, err)
				continue
			}
			*dst = f
		}
	}
	bools := map[string]*bool{
		"VSYNC":    &c.VSync,
		"HEADLESS": &c.Headless,
		"PANEL":    &c.Panel,
	}
	for name, dst := range bools {
		if v, ok := get(name); ok {
			b, err := parseBool(v)
			if err != nil {
				fail(name, v, err)
				continue
			}
			*dst = b
		}
	}
	if v, ok := get("MODE"); ok {
		m, err := ParseMode(v)
		if err != nil {
			fail("MODE", v, err)
		} else {
			c.Mode = m
		}
	}
	if v, ok := get("TITLE"); ok {
		c.Title = v
	}
	if v, ok := get("SCENE"); ok {
		c.ScenePath = v
	}
	if v, ok := get("OUT"); ok {
		c.Output = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	return firstErr
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%w: not a boolean", ErrInvalid)
}

// RegisterFlags binds every field to a flag on fs, using the current values
// as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Width, "width", c.Width, "window width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "window height in pixels")
	fs.StringVar(&c.Title, "title", c.Title, "window title")
	fs.BoolVar(&c.VSync, "vsync", c.VSync, "wait for vertical sync on present")
	fs.IntVar(&c.FramesInFlight, "frames-in-flight", c.FramesInFlight, "frames the host may run ahead of the GPU (2..3)")
	fs.IntVar(&c.ImageCount, "images", c.ImageCount, "presentable images (2..4)")
	fs.TextVar(&c.Mode, "mode", c.Mode, "quality preset: preview or final")
	fs.IntVar(&c.SamplesPerPixel, "spp", c.SamplesPerPixel, "samples per pixel per frame (0 uses the preset)")
	fs.IntVar(&c.MaxDepth, "depth", c.MaxDepth, "max bounces (0 uses the preset)")
	fs.Float64Var(&c.FOV, "fov", c.FOV, "vertical field of view in degrees")
	fs.Float64Var(&c.Aperture, "aperture", c.Aperture, "lens aperture diameter")
	fs.Float64Var(&c.FocusDistance, "focus", c.FocusDistance, "focus distance (0 focuses on the look-at point)")
	fs.StringVar(&c.ScenePath, "scene", c.ScenePath, "path to a scene JSON file")
	fs.BoolVar(&c.Headless, "headless", c.Headless, "render offscreen and save a PNG")
	fs.IntVar(&c.Frames, "frames", c.Frames, "frames to accumulate in headless mode")
	fs.StringVar(&c.Output, "out", c.Output, "output PNG file for headless render")
	fs.BoolVar(&c.Panel, "panel", c.Panel, "open the control panel window")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}

// Validate clamps the ranged fields and rejects values that cannot work.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Width, c.Height)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Headless {
		if c.Frames < 1 {
			return fmt.Errorf("%w: headless frame count %d", ErrInvalid, c.Frames)
		}
		if c.Output == "" {
			return fmt.Errorf("%w: headless output path is empty", ErrInvalid)
		}
		if c.Panel {
			return fmt.Errorf("%w: the control panel needs a window", ErrInvalid)
		}
	}
	if c.FocusDistance < 0 {
		return fmt.Errorf("%w: focus distance %v", ErrInvalid, c.FocusDistance)
	}
	c.FramesInFlight = min(max(c.FramesInFlight, 2), 3)
	c.ImageCount = min(max(c.ImageCount, 2), 4)
	c.Aperture = max(c.Aperture, 0)
	c.FOV = min(max(c.FOV, engine.MinFOV), engine.MaxFOV)
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("%w: log level %q", ErrInvalid, c.LogLevel)
	}
	return l, nil
}

// Settings returns the mode preset with any explicit overrides applied,
// clamped to the engine's limits.
func (c *Config) Settings() engine.Settings {
	s := Preset(c.Mode)
	if c.SamplesPerPixel > 0 {
		s.SamplesPerPixel = uint32(c.SamplesPerPixel)
	}
	if c.MaxDepth > 0 {
		s.MaxDepth = uint32(c.MaxDepth)
	}
	return s.Clamped()
}
