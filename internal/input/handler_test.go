package input

import (
	"testing"
	"time"

	"github.com/user/gpupathtracer/internal/engine"
	"github.com/user/gpupathtracer/internal/engine/gpu"
	"github.com/user/gpupathtracer/internal/engine/gpu/gputest"
)

type fakeSource struct {
	closed   bool
	down     map[Key]bool
	presses  map[Key]int
	dx, dy   float64
	captured []bool
	polls    int
}

func newFakeSource() *fakeSource {
	return &fakeSource{down: map[Key]bool{}, presses: map[Key]int{}}
}

func (f *fakeSource) PollEvents()       { f.polls++ }
func (f *fakeSource) ShouldClose() bool { return f.closed }
func (f *fakeSource) Down(k Key) bool   { return f.down[k] }

func (f *fakeSource) Presses(k Key) int {
	n := f.presses[k]
	delete(f.presses, k)
	return n
}

func (f *fakeSource) CursorDelta() (float64, float64) {
	dx, dy := f.dx, f.dy
	f.dx, f.dy = 0, 0
	return dx, dy
}

func (f *fakeSource) SetCursorCaptured(c bool) { f.captured = append(f.captured, c) }

func newController(t *testing.T) *engine.Controller {
	t.Helper()
	dev := gputest.NewDevice()
	c, err := engine.New(engine.Options{
		Device:  dev,
		Surface: gputest.NewSurface(dev, gpu.Extent{Width: 8, Height: 8}, 2),
		Kernel: gputest.NewCountingKernel(gputest.CountingLayout{
			Accum:            engine.BindingAccum,
			Target:           engine.BindingTarget,
			Params:           engine.BindingParams,
			FrameIndexOffset: 112,
		}),
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	if _, err := c.Frame(); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestIdleUpdateKeepsAccumulating(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	h := NewHandler(src, Options{})

	if quit := h.Update(c, 16*time.Millisecond); quit {
		t.Fatal("idle update requested quit")
	}
	if c.ResetPending() {
		t.Error("idle update invalidated accumulation")
	}
	if src.polls != 1 {
		t.Errorf("polls = %d, want 1", src.polls)
	}
	if len(src.captured) != 1 || !src.captured[0] {
		t.Errorf("cursor capture calls = %v, want [true]", src.captured)
	}
}

func TestMovementKeys(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	h := NewHandler(src, Options{})
	start := c.Camera().Position

	src.down[KeyW] = true
	h.Update(c, 200*time.Millisecond)

	moved := c.Camera().Position.Sub(start)
	if d := moved.Len(); d < 0.999 || d > 1.001 {
		t.Errorf("moved %v, want 1", d)
	}
	if moved.Dot(c.Camera().Direction) <= 0 {
		t.Error("W did not move forward")
	}
	if !c.ResetPending() {
		t.Error("movement did not invalidate")
	}
}

func TestMouseLook(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	h := NewHandler(src, Options{Sensitivity: 0.5})
	before := c.Camera().Direction

	src.dx = 20
	h.Update(c, 0)
	if c.Camera().Direction == before {
		t.Error("cursor motion did not rotate the camera")
	}

	// Upward cursor motion raises the view.
	c2 := newController(t)
	y0 := c2.Camera().Direction.Y()
	src.dy = -40
	h.Update(c2, 0)
	if c2.Camera().Direction.Y() <= y0 {
		t.Errorf("pitch did not increase: %v -> %v", y0, c2.Camera().Direction.Y())
	}
}

func TestPause(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	var events []bool
	h := NewHandler(src, Options{OnPause: func(p bool) { events = append(events, p) }})

	src.presses[KeyEscape] = 1
	h.Update(c, 0)
	if !h.Paused() {
		t.Fatal("escape did not pause")
	}
	if got := src.captured[len(src.captured)-1]; got {
		t.Error("cursor still captured while paused")
	}

	start := c.Camera()
	src.down[KeyD] = true
	src.dx = 100
	h.Update(c, time.Second)
	if c.Camera() != start || c.ResetPending() {
		t.Error("camera input applied while paused")
	}

	// Quality hotkeys still work while paused.
	src.presses[KeyRightBracket] = 2
	h.Update(c, 0)
	if c.SamplesPerPixel() != 6 {
		t.Errorf("spp = %d, want 6", c.SamplesPerPixel())
	}

	src.down[KeyD] = false
	src.presses[KeyEscape] = 1
	h.Update(c, 0)
	if h.Paused() {
		t.Error("second escape did not resume")
	}
	if len(events) != 2 || !events[0] || events[1] {
		t.Errorf("pause events = %v", events)
	}
}

func TestMouseLookAfterResume(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	h := NewHandler(src, Options{})

	src.presses[KeyEscape] = 1
	h.Update(c, 0)
	src.presses[KeyEscape] = 1
	h.Update(c, 0)
	if len(src.captured) != 3 || src.captured[1] || !src.captured[2] {
		t.Fatalf("capture calls = %v, want [true false true]", src.captured)
	}

	before := c.Camera().Direction
	src.dx = 50
	h.Update(c, 0)
	if c.Camera().Direction == before || !c.ResetPending() {
		t.Error("mouse-look ignored after resume")
	}
}

func TestHotkeys(t *testing.T) {
	tests := []struct {
		name  string
		key   Key
		n     int
		check func(c *engine.Controller) bool
	}{
		{"spp down", KeyLeftBracket, 1, func(c *engine.Controller) bool { return c.SamplesPerPixel() == 3 }},
		{"spp clamp", KeyLeftBracket, 10, func(c *engine.Controller) bool { return c.SamplesPerPixel() == 1 }},
		{"depth up", Key0, 2, func(c *engine.Controller) bool { return c.MaxDepth() == 14 }},
		{"depth down", Key9, 1, func(c *engine.Controller) bool { return c.MaxDepth() == 11 }},
		{"fov up", KeyEqual, 1, func(c *engine.Controller) bool { return c.FOV() == 25 }},
		{"fov down", KeyMinus, 1, func(c *engine.Controller) bool { return c.FOV() == 15 }},
		{"aperture up", KeyPeriod, 5, func(c *engine.Controller) bool { return c.Aperture() > 0.099 && c.Aperture() < 0.101 }},
		{"aperture floor", KeyComma, 50, func(c *engine.Controller) bool { return c.Aperture() == 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newController(t)
			src := newFakeSource()
			h := NewHandler(src, Options{})
			src.presses[tt.key] = tt.n
			h.Update(c, 0)
			if !tt.check(c) {
				t.Errorf("spp=%d depth=%d fov=%v aperture=%v",
					c.SamplesPerPixel(), c.MaxDepth(), c.FOV(), c.Aperture())
			}
			if !c.ResetPending() {
				t.Error("hotkey did not invalidate")
			}
		})
	}
}

func TestFocusHotkey(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	h := NewHandler(src, Options{})
	before := c.FocusDistance()
	src.presses[KeyApostrophe] = 4
	h.Update(c, 0)
	if got := c.FocusDistance() - before; got < 0.999 || got > 1.001 {
		t.Errorf("focus moved %v, want 1", got)
	}
}

func TestCheckerToggle(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	h := NewHandler(src, Options{})

	src.presses[KeyC] = 1
	if quit := h.Update(c, 0); quit {
		t.Fatalf("quit: %v", h.Err())
	}
	spheres := c.Scene()
	if spheres[0].Checker {
		t.Error("checker still on after toggle")
	}
	if !c.ResetPending() {
		t.Error("scene rebuild did not invalidate")
	}
	if _, err := c.Frame(); err != nil {
		t.Fatal(err)
	}

	src.presses[KeyC] = 1
	h.Update(c, 0)
	if !c.Scene()[0].Checker {
		t.Error("checker not restored")
	}
}

func TestMailboxDrainedOnUpdate(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	var mb engine.Mailbox
	h := NewHandler(src, Options{Mailbox: &mb})
	mb.Post(func(c *engine.Controller) { c.SetMaxDepth(40) })
	h.Update(c, 0)
	if c.MaxDepth() != 40 {
		t.Errorf("depth = %d, want 40", c.MaxDepth())
	}
}

func TestCloseQuits(t *testing.T) {
	c := newController(t)
	src := newFakeSource()
	h := NewHandler(src, Options{})
	src.closed = true
	if !h.Update(c, 0) {
		t.Error("closed window did not quit")
	}
	if h.Err() != nil {
		t.Errorf("err = %v", h.Err())
	}
}

func TestKeyString(t *testing.T) {
	if KeyEscape.String() != "Escape" || KeyCount.String() != "Key(18)" {
		t.Errorf("names: %s %s", KeyEscape, KeyCount)
	}
}
