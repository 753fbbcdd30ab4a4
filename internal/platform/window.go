// Package platform owns the GLFW window: context creation, event polling,
// and the key and cursor state the input handler reads.
package platform

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/user/gpupathtracer/internal/input"
)

// Options configures the window.
type Options struct {
	Width, Height int
	Title         string
	// Hidden creates an invisible window whose context is used for
	// offscreen rendering.
	Hidden    bool
	VSync     bool
	Resizable bool
	// Shared is set when another toolkit runs the GLFW event loop on the
	// main thread. PollEvents then only reads state the callbacks stored, and
	// the window may be driven from a different thread. Cursor capture does
	// not lock the pointer in this mode; mouse-look follows the visible
	// cursor while it is over the window.
	Shared bool
}

// Window is a GLFW window with an OpenGL 4.6 core context. It implements
// input.Source and opengl.Window.
type Window struct {
	win    *glfw.Window
	shared bool
	cursor input.Cursor

	mu      sync.Mutex
	down    [input.KeyCount]bool
	presses [input.KeyCount]int

	fbWidth, fbHeight int
	resized           bool
}

var _ input.Source = (*Window)(nil)

var keymap = map[glfw.Key]input.Key{
	glfw.KeyW:            input.KeyW,
	glfw.KeyA:            input.KeyA,
	glfw.KeyS:            input.KeyS,
	glfw.KeyD:            input.KeyD,
	glfw.KeySpace:        input.KeySpace,
	glfw.KeyLeftShift:    input.KeyLeftShift,
	glfw.KeyEscape:       input.KeyEscape,
	glfw.KeyLeftBracket:  input.KeyLeftBracket,
	glfw.KeyRightBracket: input.KeyRightBracket,
	glfw.KeyMinus:        input.KeyMinus,
	glfw.KeyEqual:        input.KeyEqual,
	glfw.KeyComma:        input.KeyComma,
	glfw.KeyPeriod:       input.KeyPeriod,
	glfw.KeySemicolon:    input.KeySemicolon,
	glfw.KeyApostrophe:   input.KeyApostrophe,
	glfw.Key9:            input.Key9,
	glfw.Key0:            input.Key0,
	glfw.KeyC:            input.KeyC,
}

// New initializes GLFW and opens the window with its context current. It
// must be called on the main OS thread.
func New(opts Options) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw init: %w", err)
	}
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 6)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Visible, boolHint(!opts.Hidden))
	glfw.WindowHint(glfw.Resizable, boolHint(opts.Resizable && !opts.Hidden))

	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		if !opts.Shared {
			glfw.Terminate()
		}
		return nil, fmt.Errorf("create window: %w", err)
	}
	win.MakeContextCurrent()
	if opts.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	w := &Window{win: win, shared: opts.Shared}
	w.fbWidth, w.fbHeight = win.GetFramebufferSize()
	win.SetKeyCallback(w.onKey)
	win.SetCursorPosCallback(w.onCursor)
	win.SetFramebufferSizeCallback(w.onFramebufferSize)
	return w, nil
}

func boolHint(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}

func (w *Window) onKey(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	k, ok := keymap[key]
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	switch action {
	case glfw.Press:
		w.down[k] = true
		w.presses[k]++
	case glfw.Release:
		w.down[k] = false
	}
}

func (w *Window) onCursor(_ *glfw.Window, x, y float64) { w.cursor.Move(x, y) }

func (w *Window) onFramebufferSize(_ *glfw.Window, width, height int) {
	w.mu.Lock()
	w.fbWidth, w.fbHeight = width, height
	w.resized = true
	w.mu.Unlock()
}

// DetachContext releases the context from the calling thread so another
// thread can make it current.
func (w *Window) DetachContext() { glfw.DetachCurrentContext() }

// MakeContextCurrent binds the window's context to the calling thread.
func (w *Window) MakeContextCurrent() { w.win.MakeContextCurrent() }

func (w *Window) PollEvents() {
	if !w.shared {
		glfw.PollEvents()
	}
}

// WaitEvents blocks for at most a tenth of a second.
func (w *Window) WaitEvents() {
	if w.shared {
		time.Sleep(100 * time.Millisecond)
		return
	}
	glfw.WaitEventsTimeout(0.1)
}

func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

// RequestClose flags the window for closing. Safe from any thread.
func (w *Window) RequestClose() { w.win.SetShouldClose(true) }

func (w *Window) SwapBuffers() { w.win.SwapBuffers() }

// FramebufferSize returns the size last reported by GLFW.
func (w *Window) FramebufferSize() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fbWidth, w.fbHeight
}

// Resized reports and clears the framebuffer-resize flag.
func (w *Window) Resized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.resized
	w.resized = false
	return r
}

func (w *Window) Down(k input.Key) bool {
	if k < 0 || k >= input.KeyCount {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.down[k]
}

func (w *Window) Presses(k input.Key) int {
	if k < 0 || k >= input.KeyCount {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	n := w.presses[k]
	w.presses[k] = 0
	return n
}

// CursorDelta reports motion only while the cursor is captured.
func (w *Window) CursorDelta() (float64, float64) { return w.cursor.Delta() }

// SetCursorCaptured turns mouse-look on or off. Unless the window is shared
// it also hides and locks the cursor, which calls into GLFW and must run on
// the main thread.
func (w *Window) SetCursorCaptured(captured bool) {
	if !w.shared {
		mode := glfw.CursorNormal
		if captured {
			mode = glfw.CursorDisabled
		}
		w.win.SetInputMode(glfw.CursorMode, mode)
		if captured && glfw.RawMouseMotionSupported() {
			w.win.SetInputMode(glfw.RawMouseMotion, glfw.True)
		}
	}
	w.cursor.SetCaptured(captured)
}

// Close destroys the window and, unless GLFW is shared, terminates it.
func (w *Window) Close() {
	w.win.Destroy()
	if !w.shared {
		glfw.Terminate()
	}
}
