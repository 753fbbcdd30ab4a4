package input

import (
	"log/slog"
	"time"

	"github.com/user/gpupathtracer/internal/engine"
	"github.com/user/gpupathtracer/internal/scene"
)

// Step sizes for the quality hotkeys, per key press.
const (
	DefaultSensitivity = 0.1 // degrees per pixel

	fovStep      = 5
	apertureStep = 0.01
	focusStep    = 0.25
)

// Options configures a Handler.
type Options struct {
	// Mailbox is drained every update; nil disables it.
	Mailbox *engine.Mailbox
	// Sensitivity is degrees of rotation per pixel of cursor motion.
	Sensitivity float64
	// OnPause is called whenever the pause state changes.
	OnPause func(paused bool)
	Logger  *slog.Logger
}

// Handler is the Input/UI phase of the render loop. It implements
// engine.InputPhase.
type Handler struct {
	src  Source
	opts Options
	log  *slog.Logger

	paused bool
	err    error
}

var _ engine.InputPhase = (*Handler)(nil)

// NewHandler captures the cursor and returns a handler reading from src.
func NewHandler(src Source, opts Options) *Handler {
	if opts.Sensitivity == 0 {
		opts.Sensitivity = DefaultSensitivity
	}
	log := opts.Logger
	if log == nil {
		log = engine.Logger()
	}
	h := &Handler{src: src, opts: opts, log: log}
	src.SetCursorCaptured(true)
	return h
}

// Paused reports whether camera input is suspended.
func (h *Handler) Paused() bool { return h.paused }

// Err returns the failure that made Update request a stop, if any.
func (h *Handler) Err() error { return h.err }

// Update polls the window and applies input to c. It returns true when the
// window was closed or a scene rebuild failed.
func (h *Handler) Update(c *engine.Controller, dt time.Duration) bool {
	h.src.PollEvents()
	if h.src.ShouldClose() {
		return true
	}
	if h.opts.Mailbox != nil {
		h.opts.Mailbox.Drain(c)
	}

	if h.src.Presses(KeyEscape)%2 == 1 {
		h.setPaused(!h.paused)
	}
	if err := h.hotkeys(c); err != nil {
		h.err = err
		return true
	}

	dx, dy := h.src.CursorDelta()
	if h.paused {
		return false
	}
	if dx != 0 || dy != 0 {
		// Screen y grows downward; moving the mouse up looks up.
		c.Rotate(dx*h.opts.Sensitivity, -dy*h.opts.Sensitivity)
	}
	h.move(c, dt)
	return false
}

func (h *Handler) setPaused(p bool) {
	h.paused = p
	h.src.SetCursorCaptured(!p)
	if h.opts.OnPause != nil {
		h.opts.OnPause(p)
	}
	h.log.Info("pause toggled", "paused", p)
}

var moves = []struct {
	key Key
	dir engine.Direction
}{
	{KeyW, engine.Forward},
	{KeyS, engine.Backward},
	{KeyA, engine.Left},
	{KeyD, engine.Right},
	{KeySpace, engine.Up},
	{KeyLeftShift, engine.Down},
}

func (h *Handler) move(c *engine.Controller, dt time.Duration) {
	if dt <= 0 {
		return
	}
	for _, m := range moves {
		if h.src.Down(m.key) {
			c.Translate(m.dir, dt)
		}
	}
}

// net returns presses of up minus presses of down.
func (h *Handler) net(down, up Key) int {
	return h.src.Presses(up) - h.src.Presses(down)
}

// hotkeys applies quality steps. Each setter call invalidates accumulation,
// so keys that were not pressed leave the controller untouched.
func (h *Handler) hotkeys(c *engine.Controller) error {
	if n := h.net(KeyLeftBracket, KeyRightBracket); n != 0 {
		c.SetSamplesPerPixel(c.SamplesPerPixel() + n)
		h.log.Info("samples per pixel", "value", c.SamplesPerPixel())
	}
	if n := h.net(Key9, Key0); n != 0 {
		c.SetMaxDepth(c.MaxDepth() + n)
		h.log.Info("max depth", "value", c.MaxDepth())
	}
	if n := h.net(KeyMinus, KeyEqual); n != 0 {
		c.SetFOV(c.FOV() + float32(n*fovStep))
		h.log.Info("field of view", "value", c.FOV())
	}
	if n := h.net(KeyComma, KeyPeriod); n != 0 {
		c.SetAperture(c.Aperture() + float32(n)*apertureStep)
		h.log.Info("aperture", "value", c.Aperture())
	}
	if n := h.net(KeySemicolon, KeyApostrophe); n != 0 {
		c.SetFocusDistance(c.FocusDistance() + float32(n)*focusStep)
		h.log.Info("focus distance", "value", c.FocusDistance())
	}
	if h.src.Presses(KeyC)%2 == 1 {
		return toggleChecker(c, h.log)
	}
	return nil
}

func toggleChecker(c *engine.Controller, log *slog.Logger) error {
	spheres := c.Scene()
	g := scene.Ground(spheres)
	if g < 0 {
		return nil
	}
	on := !spheres[g].Checker
	if err := c.RebuildScene(scene.WithChecker(spheres, on)); err != nil {
		return err
	}
	log.Info("ground pattern", "checker", on)
	return nil
}
