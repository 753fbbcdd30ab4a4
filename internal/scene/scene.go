package scene

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Material enumerates supported material kinds. Values are shared with the
// compute kernel and must stay in sync with it.
type Material uint32

const (
	MaterialDiffuse Material = iota
	MaterialMetallic
	MaterialDielectric
)

func (m Material) String() string {
	switch m {
	case MaterialDiffuse:
		return "diffuse"
	case MaterialMetallic:
		return "metallic"
	case MaterialDielectric:
		return "dielectric"
	default:
		return fmt.Sprintf("Material(%d)", uint32(m))
	}
}

// Valid reports whether m is one of the enumerated kinds.
func (m Material) Valid() bool { return m <= MaterialDielectric }

// Stride is the packed size of one sphere on the GPU: three vec4.
const Stride = 48

const flagChecker = 1

// Sphere is the only renderable primitive.
type Sphere struct {
	Center mgl32.Vec3
	Radius float32
	Albedo mgl32.Vec3

	Material Material
	// Param is the roughness for metallic spheres and the refractive index
	// for dielectric ones. Diffuse spheres ignore it.
	Param float32

	// Checker replaces the albedo with a procedural checker pattern.
	Checker bool
}

var (
	ErrEmpty           = errors.New("scene: no primitives")
	ErrInvalidRadius   = errors.New("scene: radius must be positive")
	ErrInvalidMaterial = errors.New("scene: unknown material kind")
	ErrInvalidIndex    = errors.New("scene: dielectric refractive index must be positive")
)

// Validate checks every sphere and returns the first violation.
func Validate(spheres []Sphere) error {
	if len(spheres) == 0 {
		return ErrEmpty
	}
	for i, s := range spheres {
		if !(s.Radius > 0) {
			return fmt.Errorf("sphere %d: %w (got %v)", i, ErrInvalidRadius, s.Radius)
		}
		if !s.Material.Valid() {
			return fmt.Errorf("sphere %d: %w (got %d)", i, ErrInvalidMaterial, uint32(s.Material))
		}
		if s.Material == MaterialDielectric && !(s.Param > 0) {
			return fmt.Errorf("sphere %d: %w (got %v)", i, ErrInvalidIndex, s.Param)
		}
	}
	return nil
}

// Default returns the built-in scene: a checkered ground, a red diffuse
// sphere flanked by glass and gold, and a small mirror in front.
func Default() []Sphere {
	return []Sphere{
		{
			Center:   mgl32.Vec3{0, -1000, 0},
			Radius:   1000,
			Albedo:   mgl32.Vec3{0.75, 0.8, 0.9},
			Material: MaterialDiffuse,
			Param:    1,
			Checker:  true,
		},
		{
			Center:   mgl32.Vec3{0, 1, 0},
			Radius:   1,
			Albedo:   mgl32.Vec3{0.9, 0.25, 0.25},
			Material: MaterialDiffuse,
			Param:    1,
		},
		{
			Center:   mgl32.Vec3{-4, 1, 0},
			Radius:   1,
			Albedo:   mgl32.Vec3{1, 1, 1},
			Material: MaterialDielectric,
			Param:    1.5,
		},
		{
			Center:   mgl32.Vec3{4, 1, 0},
			Radius:   1,
			Albedo:   mgl32.Vec3{0.95, 0.65, 0.15},
			Material: MaterialMetallic,
			Param:    0.03,
		},
		{
			Center:   mgl32.Vec3{2.5, 0.5, 2.5},
			Radius:   0.5,
			Albedo:   mgl32.Vec3{0.95, 0.95, 0.98},
			Material: MaterialMetallic,
			Param:    0,
		},
	}
}

// Ground returns the index of the largest sphere, or -1 for an empty scene.
func Ground(spheres []Sphere) int {
	idx := -1
	var best float32
	for i, s := range spheres {
		if s.Radius > best {
			best = s.Radius
			idx = i
		}
	}
	return idx
}

// WithChecker returns a copy of spheres with the ground's checker pattern
// set to on.
func WithChecker(spheres []Sphere, on bool) []Sphere {
	out := make([]Sphere, len(spheres))
	copy(out, spheres)
	if i := Ground(out); i >= 0 {
		out[i].Checker = on
	}
	return out
}

// Pack encodes spheres into the kernel's std430 layout:
//
//	vec4 centerRadius  // xyz center, w radius
//	vec4 albedo        // xyz albedo, w unused
//	vec4 misc          // x material, y roughness, z refractive index, w flags
func Pack(spheres []Sphere) []byte {
	buf := make([]byte, len(spheres)*Stride)
	for i, s := range spheres {
		b := buf[i*Stride:]
		putVec4(b[0:], s.Center[0], s.Center[1], s.Center[2], s.Radius)
		putVec4(b[16:], s.Albedo[0], s.Albedo[1], s.Albedo[2], 0)

		roughness, ior := float32(0), float32(1)
		switch s.Material {
		case MaterialMetallic:
			roughness = s.Param
		case MaterialDielectric:
			ior = s.Param
		}
		var flags float32
		if s.Checker {
			flags = flagChecker
		}
		putVec4(b[32:], float32(s.Material), roughness, ior, flags)
	}
	return buf
}

func putVec4(b []byte, x, y, z, w float32) {
	binary.LittleEndian.PutUint32(b[0:], math.Float32bits(x))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(y))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(z))
	binary.LittleEndian.PutUint32(b[12:], math.Float32bits(w))
}
