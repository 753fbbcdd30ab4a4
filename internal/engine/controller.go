package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/user/gpupathtracer/internal/engine/gpu"
	"github.com/user/gpupathtracer/internal/scene"
)

// DefaultFramesInFlight bounds how far the host may run ahead of the GPU.
const DefaultFramesInFlight = 2

// FrameResult says what one iteration of the loop did.
type FrameResult int

const (
	// FrameRendered: a frame was dispatched and presented.
	FrameRendered FrameResult = iota
	// FrameSkipped: a pending resize was handled instead of rendering.
	FrameSkipped
	// FrameRecovered: the surface was out of date and has been rebuilt.
	FrameRecovered
)

func (r FrameResult) String() string {
	switch r {
	case FrameRendered:
		return "rendered"
	case FrameSkipped:
		return "skipped"
	case FrameRecovered:
		return "recovered"
	default:
		return fmt.Sprintf("FrameResult(%d)", int(r))
	}
}

// Compositor draws the UI over the finished target image. It records into
// cmd while target is in gpu.LayoutColorAttachment.
type Compositor interface {
	Composite(cmd gpu.CommandBuffer, target gpu.Image, s Stats) error
}

// Options configures a Controller.
type Options struct {
	Device  gpu.Device
	Surface gpu.Surface
	// Kernel is the path tracing program. It reads the bindings declared by
	// the Binding* constants.
	Kernel gpu.Kernel
	// Scene defaults to scene.Default().
	Scene []scene.Sphere
	// Compositor is optional.
	Compositor Compositor

	// FramesInFlight defaults to DefaultFramesInFlight; values below 2 are
	// raised to 2.
	FramesInFlight int
	// Camera defaults to DefaultCamera() when FocusDistance is zero.
	Camera Camera
	// Settings defaults to DefaultSettings() when zero.
	Settings Settings

	Logger *slog.Logger
	// Clock overrides the frame timer; nil uses hrtime.
	Clock func() time.Duration
}

// Controller drives the progressive render loop: parameter upload, barrier
// sequencing, compute dispatch, compositing and presentation, and the
// accumulation state that ties successive frames together. All methods must
// be called from the single render thread.
type Controller struct {
	dev        gpu.Device
	surface    gpu.Surface
	kernel     gpu.Kernel
	compositor Compositor
	log        *slog.Logger

	camera   Camera
	settings Settings

	scene  *sceneStore
	accum  *accumulation
	slots  *slotSet
	frames *frameRing
	fps    *frameCounter

	sampleFrame uint32
	extent      gpu.Extent

	snapshot atomic.Pointer[Stats]
	closed   bool
}

var ErrClosed = errors.New("engine: controller closed")

// New allocates every surface-dependent resource and uploads the scene. The
// accumulation image starts pending a clear.
func New(opts Options) (*Controller, error) {
	if opts.Device == nil || opts.Surface == nil || opts.Kernel == nil {
		return nil, errors.New("engine: device, surface and kernel are required")
	}
	log := opts.Logger
	if log == nil {
		log = Logger()
	}
	n := opts.FramesInFlight
	if n == 0 {
		n = DefaultFramesInFlight
	}
	n = max(n, 2)

	cam := opts.Camera
	if cam.FocusDistance == 0 {
		cam = DefaultCamera()
	}
	settings := opts.Settings
	if settings == (Settings{}) {
		settings = DefaultSettings()
	}
	spheres := opts.Scene
	if spheres == nil {
		spheres = scene.Default()
	}

	c := &Controller{
		dev:        opts.Device,
		surface:    opts.Surface,
		kernel:     opts.Kernel,
		compositor: opts.Compositor,
		log:        log,
		camera:     cam,
		settings:   settings.Clamped(),
		scene:      &sceneStore{dev: opts.Device},
		accum:      newAccumulation(opts.Device),
		slots:      &slotSet{dev: opts.Device, kernel: opts.Kernel},
		fps:        newFrameCounter(opts.Clock, log),
	}

	var err error
	if c.frames, err = newFrameRing(c.dev, n); err != nil {
		return nil, err
	}
	if err := c.scene.upload(spheres); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildSurfaceResources(); err != nil {
		c.Close()
		return nil, err
	}
	c.publish()
	log.Info("render loop ready",
		"extent", c.extent.String(),
		"images", c.surface.ImageCount(),
		"frames_in_flight", n,
		"spheres", c.scene.count())
	return c, nil
}

// buildSurfaceResources sizes the accumulation image and parameter slots to
// the current surface and invalidates accumulation.
func (c *Controller) buildSurfaceResources() error {
	c.extent = c.surface.Extent()
	if err := c.accum.resize(c.extent); err != nil {
		return err
	}
	if err := c.slots.rebuild(c.surface, c.accum.image, c.scene.buffer); err != nil {
		return err
	}
	c.invalidate()
	return nil
}

// recreate is the recovery path for resizes and out-of-date surfaces.
func (c *Controller) recreate() error {
	if err := c.dev.WaitIdle(); err != nil {
		return c.fatal("wait idle", err)
	}
	if err := c.surface.Recreate(); err != nil {
		if errors.Is(err, gpu.ErrSurfaceClosed) {
			c.log.Info("surface closed during recreation", "err", err)
			return err
		}
		return c.fatal("recreate surface", err)
	}
	if err := c.buildSurfaceResources(); err != nil {
		return c.fatal("recreate surface resources", err)
	}
	c.log.Debug("surface recreated", "extent", c.extent.String(), "images", c.surface.ImageCount())
	return nil
}

// invalidate sets the reset flag. Repeated calls before the next dispatch
// still produce a single clear.
func (c *Controller) invalidate() {
	c.accum.invalidate()
	c.sampleFrame = 0
}

// Frame runs one iteration: resize check, frame-slot wait, acquire,
// parameter upload, barriers and dispatch, composite, submit, present and
// bookkeeping. Device failures are returned, as is gpu.ErrSurfaceClosed when
// the surface goes away during recovery; out-of-date and suboptimal surfaces
// are recovered in place.
func (c *Controller) Frame() (FrameResult, error) {
	if c.closed {
		return FrameSkipped, ErrClosed
	}
	if c.surface.ResizePending() {
		if err := c.recreate(); err != nil {
			return FrameSkipped, err
		}
		return FrameSkipped, nil
	}

	fr := c.frames.current()
	if err := fr.fence.Wait(); err != nil {
		return FrameSkipped, c.fatal("wait frame fence", err)
	}

	index, status, err := c.surface.AcquireNext(fr.imageAvailable)
	if err != nil {
		return FrameSkipped, c.fatal("acquire image", err)
	}
	if status == gpu.StatusOutOfDate {
		c.log.Warn("surface out of date on acquire")
		if err := c.recreate(); err != nil {
			return FrameSkipped, err
		}
		return FrameRecovered, nil
	}

	sl, err := c.slots.at(index)
	if err != nil {
		return FrameSkipped, c.fatal("acquire image", err)
	}
	// Another frame in flight may still be reading this slot's parameters.
	if sl.fence != nil && sl.fence != fr.fence {
		if err := sl.fence.Wait(); err != nil {
			return FrameSkipped, c.fatal("wait image fence", err)
		}
	}
	sl.fence = fr.fence
	// Reset only once an image is in hand so an out-of-date acquire never
	// leaves this fence unsignaled.
	if err := fr.fence.Reset(); err != nil {
		return FrameSkipped, c.fatal("reset frame fence", err)
	}

	reset := c.accum.needsClear()
	frameIndex := c.sampleFrame + 1
	if reset {
		frameIndex = 0
	}
	params := c.camera.Params(c.extent, frameIndex, c.settings, c.scene.count())
	if err := sl.params.Write(0, params.Bytes()); err != nil {
		return FrameSkipped, c.fatal("write params", err)
	}

	cmd := fr.commands
	if err := cmd.Begin(); err != nil {
		return FrameSkipped, c.fatal("begin commands", err)
	}
	c.recordTrace(cmd, sl)
	if c.compositor != nil {
		st := c.stats()
		st.SampleFrame = frameIndex
		st.Accumulated = uint64(frameIndex+1) * uint64(c.settings.SamplesPerPixel)
		if err := c.compositor.Composite(cmd, sl.target, st); err != nil {
			return FrameSkipped, c.fatal("composite", err)
		}
	}
	cmd.PipelineBarrier(targetPresentBarrier(sl.target))
	if err := cmd.End(); err != nil {
		return FrameSkipped, c.fatal("end commands", err)
	}

	err = c.dev.Submit(gpu.Submission{
		Commands:   cmd,
		Wait:       []gpu.Semaphore{fr.imageAvailable},
		WaitStages: []gpu.Stage{gpu.StageComputeShader},
		Signal:     []gpu.Semaphore{fr.renderFinished},
		Fence:      fr.fence,
	})
	if err != nil {
		return FrameSkipped, c.fatal("submit", err)
	}

	presentStatus, err := c.surface.Present(index, fr.renderFinished)
	if err != nil {
		return FrameSkipped, c.fatal("present", err)
	}

	c.frames.advance()
	c.sampleFrame = frameIndex
	sl.initialized = true
	c.fps.tick()

	if presentStatus.NeedsRecreate() {
		c.log.Warn("surface needs recreation after present", "status", presentStatus.String())
		if err := c.recreate(); err != nil {
			return FrameRecovered, err
		}
		c.publish()
		return FrameRecovered, nil
	}
	c.publish()
	return FrameRendered, nil
}

// recordTrace records the clear (if due), the layout transitions, the
// dispatch and the hand-off to compositing, in that order.
func (c *Controller) recordTrace(cmd gpu.CommandBuffer, sl *slot) {
	cleared := c.accum.recordClear(cmd)
	cmd.PipelineBarrier(
		targetComputeBarrier(sl.target, sl.initialized),
		c.accum.computeBarrier(cleared),
	)

	tx, ty := c.kernel.TileSize()
	gx, gy := dispatchGroups(c.extent, tx, ty)
	cmd.BindKernel(c.kernel)
	cmd.BindBindings(sl.bindings)
	cmd.Dispatch(gx, gy, 1)

	cmd.PipelineBarrier(targetCompositeBarrier(sl.target))
}

// fatal logs a device failure with its operation and code and returns it as
// a *gpu.Error.
func (c *Controller) fatal(op string, err error) error {
	var ge *gpu.Error
	if !errors.As(err, &ge) {
		ge = &gpu.Error{Op: op, Err: err}
	}
	c.log.Error("device failure", "op", op, "code", ge.Code, "err", err)
	if ge.Op == op {
		return ge
	}
	return fmt.Errorf("%s: %w", op, ge)
}

// RebuildScene replaces the sphere list with a full re-upload and rebinds
// every slot. Accumulation is invalidated.
func (c *Controller) RebuildScene(spheres []scene.Sphere) error {
	if err := scene.Validate(spheres); err != nil {
		return err
	}
	if err := c.dev.WaitIdle(); err != nil {
		return c.fatal("wait idle", err)
	}
	if err := c.scene.upload(spheres); err != nil {
		return c.fatal("upload scene", err)
	}
	if err := c.slots.rebind(c.accum.image, c.scene.buffer); err != nil {
		return c.fatal("rebind scene", err)
	}
	c.invalidate()
	c.log.Debug("scene rebuilt", "spheres", len(spheres))
	return nil
}

// Close waits for the device and releases every resource. It is safe to
// call more than once.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.dev.WaitIdle()
	c.slots.release()
	c.accum.release()
	c.scene.release()
	if c.frames != nil {
		c.frames.release()
	}
	return err
}
