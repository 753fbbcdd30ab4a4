package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// WorldUp is the fixed camera up vector.
var WorldUp = mgl32.Vec3{0, 1, 0}

// secondaryUp replaces WorldUp when the view direction is parallel to it.
var secondaryUp = mgl32.Vec3{0, 0, -1}

const (
	degenerateEps = 1e-6
	maxPitch      = 89
)

// MoveSpeed is the translation speed in scene units per second.
const MoveSpeed = 5

// ErrZeroDirection is returned when a camera is aimed along a zero vector.
var ErrZeroDirection = errors.New("engine: camera direction has zero length")

// ErrNonFinite is returned when a camera position or direction holds NaN or
// an infinity.
var ErrNonFinite = errors.New("engine: camera value is not finite")

// Direction is a translation axis relative to the camera.
type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
	Up
	Down
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	case Left:
		return "left"
	case Right:
		return "right"
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// Camera is a thin-lens camera. Direction is always unit length.
type Camera struct {
	Position  mgl32.Vec3
	Direction mgl32.Vec3
	// FOV is the vertical field of view in degrees.
	FOV           float32
	Aperture      float32
	FocusDistance float32
}

// DefaultCamera looks from (13,2,3) at (0,1,0), focused on the target.
func DefaultCamera() Camera {
	c, _ := LookAt(mgl32.Vec3{13, 2, 3}, mgl32.Vec3{0, 1, 0}, 20, 0.05)
	return c
}

// LookAt builds a camera at pos aimed at target and focused on it.
func LookAt(pos, target mgl32.Vec3, fov, aperture float32) (Camera, error) {
	d := target.Sub(pos)
	dist := d.Len()
	if dist < degenerateEps {
		return Camera{}, ErrZeroDirection
	}
	return Camera{
		Position:      pos,
		Direction:     d.Mul(1 / dist),
		FOV:           clampFloat(fov, MinFOV, MaxFOV),
		Aperture:      max(aperture, 0),
		FocusDistance: dist,
	}, nil
}

// Basis returns the orthonormal camera frame. w points from the look-at
// point back toward the camera; u is right and v is up on the image plane.
// A view direction parallel to WorldUp falls back to secondaryUp so the
// basis never contains NaN.
func (c Camera) Basis() (u, v, w mgl32.Vec3) {
	w = c.Direction.Mul(-1).Normalize()
	side := WorldUp.Cross(w)
	if side.Len() < degenerateEps {
		side = secondaryUp.Cross(w)
	}
	u = side.Normalize()
	v = w.Cross(u)
	return u, v, w
}

// Params derives the kernel parameters for a target of the given extent.
func (c Camera) Params(ext gpu.Extent, frameIndex uint32, s Settings, spheres int) Params {
	u, v, w := c.Basis()

	aspect := float32(1)
	if ext.Height > 0 {
		aspect = float32(ext.Width) / float32(ext.Height)
	}
	halfHeight := float32(math.Tan(float64(mgl32.DegToRad(c.FOV)) / 2))
	viewportHeight := 2 * halfHeight
	viewportWidth := aspect * viewportHeight

	fd := c.FocusDistance
	horizontal := u.Mul(fd * viewportWidth)
	vertical := v.Mul(fd * viewportHeight)
	lowerLeft := c.Position.Sub(horizontal.Mul(0.5)).Sub(vertical.Mul(0.5)).Sub(w.Mul(fd))

	return Params{
		Origin:          c.Position,
		LensRadius:      c.Aperture / 2,
		LowerLeft:       lowerLeft,
		Horizontal:      horizontal,
		Vertical:        vertical,
		U:               u,
		V:               v,
		W:               w,
		FrameIndex:      frameIndex,
		SamplesPerPixel: s.SamplesPerPixel,
		MaxDepth:        s.MaxDepth,
		SphereCount:     uint32(spheres),
		Width:           ext.Width,
		Height:          ext.Height,
	}
}

// translated moves the camera dist units along d.
func (c Camera) translated(d Direction, dist float32) Camera {
	u, _, _ := c.Basis()
	var step mgl32.Vec3
	switch d {
	case Forward:
		step = c.Direction
	case Backward:
		step = c.Direction.Mul(-1)
	case Right:
		step = u
	case Left:
		step = u.Mul(-1)
	case Up:
		step = WorldUp
	case Down:
		step = WorldUp.Mul(-1)
	}
	c.Position = c.Position.Add(step.Mul(dist))
	return c
}

// yawPitch returns the direction's yaw around WorldUp and its pitch, in
// degrees.
func (c Camera) yawPitch() (yaw, pitch float64) {
	d := c.Direction
	yaw = degrees(math.Atan2(float64(d[2]), float64(d[0])))
	pitch = degrees(math.Asin(math.Max(-1, math.Min(1, float64(d[1])))))
	return yaw, pitch
}

// rotated turns the camera by yaw and pitch deltas in degrees. Pitch stays
// within ±89 degrees.
func (c Camera) rotated(dYaw, dPitch float64) Camera {
	yaw, pitch := c.yawPitch()
	yaw += dYaw
	pitch = math.Max(-maxPitch, math.Min(maxPitch, pitch+dPitch))

	y, p := yaw*math.Pi/180, pitch*math.Pi/180
	c.Direction = mgl32.Vec3{
		float32(math.Cos(p) * math.Cos(y)),
		float32(math.Sin(p)),
		float32(math.Cos(p) * math.Sin(y)),
	}.Normalize()
	return c
}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
