package opengl

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// DefaultImageCount is the number of presentable images per surface.
const DefaultImageCount = 3

// chain is the ring of presentable textures shared by both surfaces.
type chain struct {
	extent gpu.Extent
	images []*Image
	next   uint32
}

func (c *chain) build(ext gpu.Extent, n int) error {
	c.release()
	for i := 0; i < n; i++ {
		img, err := newImage(gpu.ImageDesc{
			Label:  fmt.Sprintf("surface[%d]", i),
			Extent: ext,
			Format: gpu.FormatRGBA8,
			Usage:  gpu.UsageStorage | gpu.UsageColorAttachment | gpu.UsageTransferSrc,
		})
		if err != nil {
			c.release()
			return err
		}
		c.images = append(c.images, img)
	}
	c.extent = ext
	c.next = 0
	return nil
}

func (c *chain) acquire() uint32 {
	idx := c.next
	c.next = (c.next + 1) % uint32(len(c.images))
	return idx
}

func (c *chain) release() {
	for _, img := range c.images {
		img.Release()
	}
	c.images = nil
}

func (c *chain) Extent() gpu.Extent           { return c.extent }
func (c *chain) ImageCount() int              { return len(c.images) }
func (c *chain) Image(index uint32) gpu.Image { return c.images[index] }

// Window is what a WindowSurface presents to. Its GL context must be current
// on the thread that uses the surface.
type Window interface {
	FramebufferSize() (width, height int)
	SwapBuffers()
	ShouldClose() bool
	// WaitEvents blocks until events arrive or a short timeout passes.
	WaitEvents()
}

// WindowSurface presents by blitting the chosen texture to the window's
// default framebuffer and swapping buffers.
type WindowSurface struct {
	chain
	// Resized, when set, reports a framebuffer-resize event the window saw
	// since the last call. The size comparison still applies without it.
	Resized func() bool
	// Done, when set, aborts a Recreate that is waiting for a minimized
	// window to be restored.
	Done <-chan struct{}

	win Window
	log *slog.Logger
	fbo uint32
	n   int
}

// NewWindowSurface creates n images sized to win's framebuffer. The window's
// context must be current.
func NewWindowSurface(win Window, n int, log *slog.Logger) (*WindowSurface, error) {
	if n <= 0 {
		n = DefaultImageCount
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &WindowSurface{win: win, log: log, n: n}
	gl.CreateFramebuffers(1, &s.fbo)
	if err := s.chain.build(s.framebufferExtent(), n); err != nil {
		gl.DeleteFramebuffers(1, &s.fbo)
		return nil, err
	}
	return s, nil
}

func (s *WindowSurface) framebufferExtent() gpu.Extent {
	w, h := s.win.FramebufferSize()
	return gpu.Extent{Width: uint32(max(w, 0)), Height: uint32(max(h, 0))}
}

// ResizePending polls the framebuffer size against the image extent.
func (s *WindowSurface) ResizePending() bool {
	if s.Resized != nil && s.Resized() {
		return true
	}
	return s.framebufferExtent() != s.extent
}

// Recreate blocks on window events while the window is minimized, then
// rebuilds the chain at the new framebuffer size. Closing the window or
// cancelling Done during the wait returns gpu.ErrSurfaceClosed.
func (s *WindowSurface) Recreate() error {
	ext := s.framebufferExtent()
	for ext.Empty() {
		if s.win.ShouldClose() {
			return fmt.Errorf("window closed while minimized: %w", gpu.ErrSurfaceClosed)
		}
		select {
		case <-s.Done:
			return fmt.Errorf("cancelled while minimized: %w", gpu.ErrSurfaceClosed)
		default:
		}
		s.win.WaitEvents()
		ext = s.framebufferExtent()
	}
	if err := s.chain.build(ext, s.n); err != nil {
		return err
	}
	s.log.Debug("window surface rebuilt", "extent", ext.String())
	return nil
}

func (s *WindowSurface) AcquireNext(gpu.Semaphore) (uint32, gpu.Status, error) {
	if s.framebufferExtent() != s.extent {
		return 0, gpu.StatusOutOfDate, nil
	}
	return s.acquire(), gpu.StatusSuccess, nil
}

// Present blits image index flipped vertically, since row 0 of every image
// is the top of the picture and GL's origin is bottom-left.
func (s *WindowSurface) Present(index uint32, _ gpu.Semaphore) (gpu.Status, error) {
	if int(index) >= len(s.images) {
		return gpu.StatusSuccess, &gpu.Error{Op: "present", Err: fmt.Errorf("image %d out of range", index)}
	}
	img := s.images[index]
	gl.NamedFramebufferTexture(s.fbo, gl.COLOR_ATTACHMENT0, img.tex, 0)
	w, h := int32(s.extent.Width), int32(s.extent.Height)
	gl.BlitNamedFramebuffer(s.fbo, 0, 0, 0, w, h, 0, h, w, 0, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	if err := check("present"); err != nil {
		return gpu.StatusSuccess, err
	}
	s.win.SwapBuffers()
	if s.framebufferExtent() != s.extent {
		return gpu.StatusSuboptimal, nil
	}
	return gpu.StatusSuccess, nil
}

// Release frees the images and the blit framebuffer.
func (s *WindowSurface) Release() {
	s.chain.release()
	if s.fbo != 0 {
		gl.DeleteFramebuffers(1, &s.fbo)
		s.fbo = 0
	}
}

// OffscreenSurface is a fixed-size chain for headless rendering. Present
// records which image was last finished.
type OffscreenSurface struct {
	chain
	n         int
	presented int
}

// NewOffscreenSurface creates n images of ext on the current context.
func NewOffscreenSurface(ext gpu.Extent, n int) (*OffscreenSurface, error) {
	if n <= 0 {
		n = DefaultImageCount
	}
	s := &OffscreenSurface{n: n, presented: -1}
	if err := s.chain.build(ext, n); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *OffscreenSurface) ResizePending() bool { return false }

func (s *OffscreenSurface) Recreate() error { return s.chain.build(s.extent, s.n) }

func (s *OffscreenSurface) AcquireNext(gpu.Semaphore) (uint32, gpu.Status, error) {
	return s.acquire(), gpu.StatusSuccess, nil
}

func (s *OffscreenSurface) Present(index uint32, _ gpu.Semaphore) (gpu.Status, error) {
	s.presented = int(index)
	return gpu.StatusSuccess, nil
}

// Snapshot reads back the last presented image. It waits for the GPU.
func (s *OffscreenSurface) Snapshot() (*image.RGBA, error) {
	if s.presented < 0 {
		return nil, fmt.Errorf("opengl: nothing presented yet")
	}
	img := s.images[s.presented]
	out := image.NewRGBA(image.Rect(0, 0, int(img.extent.Width), int(img.extent.Height)))
	gl.MemoryBarrier(gl.TEXTURE_UPDATE_BARRIER_BIT)
	gl.GetTextureImage(img.tex, 0, gl.RGBA, gl.UNSIGNED_BYTE, int32(len(out.Pix)), gl.Ptr(out.Pix))
	if err := check("read back image"); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *OffscreenSurface) Release() { s.chain.release() }
