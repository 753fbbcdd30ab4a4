package engine

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/user/gpupathtracer/internal/scene"
)

// Every mutation below invalidates accumulation. The new value is used by
// the next Frame.

// SetSamplesPerPixel sets samples per dispatch, clamped to [1, 32].
func (c *Controller) SetSamplesPerPixel(n int) {
	c.settings.SamplesPerPixel = uint32(clampInt(n, MinSamplesPerPixel, MaxSamplesPerPixel))
	c.invalidate()
}

// SetMaxDepth sets the bounce limit, clamped to [1, 64].
func (c *Controller) SetMaxDepth(d int) {
	c.settings.MaxDepth = uint32(clampInt(d, MinMaxDepth, MaxMaxDepth))
	c.invalidate()
}

// SetAperture sets the lens diameter. Negative values become 0 (pinhole);
// NaN and infinities are ignored.
func (c *Controller) SetAperture(a float32) {
	if !finite(a) {
		return
	}
	if a < 0 {
		a = 0
	}
	c.camera.Aperture = a
	c.invalidate()
}

// SetFocusDistance sets the distance to the plane in focus. Non-positive
// and non-finite values are ignored and do not invalidate.
func (c *Controller) SetFocusDistance(f float32) {
	if !(f > 0) || !finite(f) {
		return
	}
	c.camera.FocusDistance = f
	c.invalidate()
}

// SetFOV sets the vertical field of view in degrees, clamped to [5, 120].
func (c *Controller) SetFOV(deg float32) {
	c.camera.FOV = clampFloat(deg, MinFOV, MaxFOV)
	c.invalidate()
}

// SetCamera places the camera. dir need not be normalized but must not be
// zero; on error the camera is unchanged.
func (c *Controller) SetCamera(pos, dir mgl32.Vec3) error {
	if !finiteVec(pos) || !finiteVec(dir) {
		return ErrNonFinite
	}
	l := dir.Len()
	if !(l > degenerateEps) {
		return ErrZeroDirection
	}
	c.camera.Position = pos
	c.camera.Direction = dir.Mul(1 / l)
	c.invalidate()
	return nil
}

// Translate moves the camera along d for dt at MoveSpeed.
func (c *Controller) Translate(d Direction, dt time.Duration) {
	c.camera = c.camera.translated(d, float32(MoveSpeed*dt.Seconds()))
	c.invalidate()
}

// Rotate turns the camera by yaw and pitch deltas in degrees. Non-finite
// deltas are ignored.
func (c *Controller) Rotate(dYaw, dPitch float64) {
	if math.IsNaN(dYaw) || math.IsInf(dYaw, 0) || math.IsNaN(dPitch) || math.IsInf(dPitch, 0) {
		return
	}
	c.camera = c.camera.rotated(dYaw, dPitch)
	c.invalidate()
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteVec(v mgl32.Vec3) bool { return finite(v[0]) && finite(v[1]) && finite(v[2]) }

func (c *Controller) SamplesPerPixel() int   { return int(c.settings.SamplesPerPixel) }
func (c *Controller) MaxDepth() int          { return int(c.settings.MaxDepth) }
func (c *Controller) Aperture() float32      { return c.camera.Aperture }
func (c *Controller) FocusDistance() float32 { return c.camera.FocusDistance }
func (c *Controller) FOV() float32           { return c.camera.FOV }
func (c *Controller) Camera() Camera         { return c.camera }
func (c *Controller) SampleFrame() uint32    { return c.sampleFrame }
func (c *Controller) Spheres() int           { return c.scene.count() }
func (c *Controller) FPS() float64           { return c.fps.fps }

// Scene returns a copy of the uploaded sphere list.
func (c *Controller) Scene() []scene.Sphere {
	return append([]scene.Sphere(nil), c.scene.spheres...)
}

// ResetPending reports whether the next frame will clear accumulation.
func (c *Controller) ResetPending() bool { return c.accum.needsClear() }

func (c *Controller) stats() Stats {
	acc := uint64(0)
	if !c.accum.needsClear() {
		acc = uint64(c.sampleFrame+1) * uint64(c.settings.SamplesPerPixel)
	}
	return Stats{
		FPS:         c.fps.fps,
		SampleFrame: c.sampleFrame,
		Accumulated: acc,
		Extent:      c.extent,
		Settings:    c.settings,
		Camera:      c.camera,
		Spheres:     c.scene.count(),
	}
}

func (c *Controller) publish() {
	s := c.stats()
	c.snapshot.Store(&s)
}

// Snapshot returns the stats published after the most recent frame. Unlike
// the other accessors it is safe to call from any goroutine.
func (c *Controller) Snapshot() Stats {
	if s := c.snapshot.Load(); s != nil {
		return *s
	}
	return Stats{}
}
