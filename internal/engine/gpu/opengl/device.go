// Package opengl implements gpu.Device and gpu.Surface on OpenGL 4.6 compute.
//
// OpenGL has no image layouts, command buffers or queue semaphores. Layout
// transitions become glMemoryBarrier calls derived from the destination
// access mask, command buffers record closures that are replayed at submit,
// fences are sync objects, and semaphores are ordering no-ops because a
// single context executes everything in submission order.
//
// Every call must be made from the thread that owns the current context.
package opengl

import (
	"fmt"
	"log/slog"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// Required context version for compute shaders and direct state access.
const (
	minMajor = 4
	minMinor = 5
)

var (
	_ gpu.Device  = (*Device)(nil)
	_ gpu.Surface = (*WindowSurface)(nil)
	_ gpu.Surface = (*OffscreenSurface)(nil)
)

// Device is the GL context seen as a gpu.Device.
type Device struct {
	log      *slog.Logger
	renderer string
	overlay  *Kernel
	scratch  *Image
}

// NewDevice loads GL entry points for the current context and checks its
// capabilities. It fails with gpu.ErrUnsupported on contexts older than 4.5.
func NewDevice(log *slog.Logger) (*Device, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if err := gl.Init(); err != nil {
		return nil, &gpu.Error{Op: "gl init", Err: err}
	}
	var major, minor int32
	gl.GetIntegerv(gl.MAJOR_VERSION, &major)
	gl.GetIntegerv(gl.MINOR_VERSION, &minor)
	if major < minMajor || (major == minMajor && minor < minMinor) {
		return nil, fmt.Errorf("%w: OpenGL %d.%d, need %d.%d", gpu.ErrUnsupported, major, minor, minMajor, minMinor)
	}

	d := &Device{
		log:      log,
		renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
	}
	overlay, err := d.CompileKernel("overlay", overlaySource)
	if err != nil {
		return nil, err
	}
	d.overlay = overlay
	log.Info("opengl device ready",
		"renderer", d.renderer,
		"version", fmt.Sprintf("%d.%d", major, minor),
		"vendor", gl.GoStr(gl.GetString(gl.VENDOR)))
	return d, nil
}

// Renderer returns the GL_RENDERER string.
func (d *Device) Renderer() string { return d.renderer }

// Release frees device-owned programs and scratch images.
func (d *Device) Release() {
	if d.overlay != nil {
		d.overlay.Release()
		d.overlay = nil
	}
	if d.scratch != nil {
		d.scratch.Release()
		d.scratch = nil
	}
}

// check converts a pending GL error into a *gpu.Error.
func check(op string) error {
	code := gl.GetError()
	if code == gl.NO_ERROR {
		return nil
	}
	// Drain any further queued errors so the next check starts clean.
	for gl.GetError() != gl.NO_ERROR {
	}
	return &gpu.Error{Op: op, Code: int(code), Err: fmt.Errorf("%s", errorName(code))}
}

func errorName(code uint32) string {
	switch code {
	case gl.INVALID_ENUM:
		return "GL_INVALID_ENUM"
	case gl.INVALID_VALUE:
		return "GL_INVALID_VALUE"
	case gl.INVALID_OPERATION:
		return "GL_INVALID_OPERATION"
	case gl.INVALID_FRAMEBUFFER_OPERATION:
		return "GL_INVALID_FRAMEBUFFER_OPERATION"
	case gl.OUT_OF_MEMORY:
		return "GL_OUT_OF_MEMORY"
	default:
		return fmt.Sprintf("GL error 0x%x", code)
	}
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	return &Fence{signaled: signaled}, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) { return semaphore{}, nil }

func (d *Device) CreateCommandBuffer() (gpu.CommandBuffer, error) {
	return &CommandBuffer{dev: d}, nil
}

// Submit replays the command buffer and inserts a sync object for the fence.
// Wait and signal semaphores need no work on a single GL context.
func (d *Device) Submit(s gpu.Submission) error {
	cb, ok := s.Commands.(*CommandBuffer)
	if !ok {
		return &gpu.Error{Op: "submit", Err: fmt.Errorf("foreign command buffer %T", s.Commands)}
	}
	if cb.recording {
		return &gpu.Error{Op: "submit", Err: fmt.Errorf("command buffer still recording")}
	}
	for _, op := range cb.ops {
		if err := op(); err != nil {
			return err
		}
	}
	if f, ok := s.Fence.(*Fence); ok {
		f.arm()
	}
	gl.Flush()
	return check("submit")
}

func (d *Device) WaitIdle() error {
	gl.Finish()
	return check("wait idle")
}
