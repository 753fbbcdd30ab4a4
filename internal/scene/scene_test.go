package scene

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestDefaultSceneIsValid(t *testing.T) {
	spheres := Default()
	if err := Validate(spheres); err != nil {
		t.Fatalf("Validate(Default()) = %v", err)
	}
	if got := len(spheres); got != 5 {
		t.Fatalf("len(Default()) = %d, want 5", got)
	}
	g := Ground(spheres)
	if g != 0 || !spheres[g].Checker {
		t.Errorf("ground = %d (checker %v), want 0 with checker", g, g >= 0 && spheres[g].Checker)
	}
}

func TestValidate(t *testing.T) {
	ok := Sphere{Center: mgl32.Vec3{0, 1, 0}, Radius: 1, Material: MaterialDiffuse}

	tests := []struct {
		name    string
		spheres []Sphere
		want    error
	}{
		{"empty", nil, ErrEmpty},
		{"zero radius", []Sphere{ok, {Radius: 0}}, ErrInvalidRadius},
		{"negative radius", []Sphere{{Radius: -2}}, ErrInvalidRadius},
		{"nan radius", []Sphere{{Radius: float32(math.NaN())}}, ErrInvalidRadius},
		{"unknown material", []Sphere{{Radius: 1, Material: 7}}, ErrInvalidMaterial},
		{"glass without index", []Sphere{ok, {Radius: 1, Material: MaterialDielectric}}, ErrInvalidIndex},
		{"glass negative index", []Sphere{{Radius: 1, Material: MaterialDielectric, Param: -1.5}}, ErrInvalidIndex},
		{"glass", []Sphere{{Radius: 1, Material: MaterialDielectric, Param: 1.5}}, nil},
		{"valid", []Sphere{ok}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spheres)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPackLayout(t *testing.T) {
	spheres := []Sphere{
		{Center: mgl32.Vec3{1, 2, 3}, Radius: 4, Albedo: mgl32.Vec3{0.5, 0.25, 0.125}, Material: MaterialMetallic, Param: 0.3},
		{Center: mgl32.Vec3{-1, 0, 0}, Radius: 1, Material: MaterialDielectric, Param: 1.5, Checker: true},
	}
	buf := Pack(spheres)
	if len(buf) != 2*Stride {
		t.Fatalf("len(Pack) = %d, want %d", len(buf), 2*Stride)
	}

	f := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	want := map[int]float32{
		0: 1, 4: 2, 8: 3, 12: 4,
		16: 0.5, 20: 0.25, 24: 0.125,
		32: float32(MaterialMetallic), 36: 0.3, 40: 1, 44: 0,
		Stride + 32: float32(MaterialDielectric), Stride + 36: 0, Stride + 40: 1.5, Stride + 44: 1,
	}
	for off, w := range want {
		if got := f(off); got != w {
			t.Errorf("float at %d = %v, want %v", off, got, w)
		}
	}
}

func TestWithCheckerCopies(t *testing.T) {
	base := Default()
	off := WithChecker(base, false)
	if off[0].Checker {
		t.Fatal("ground checker still on")
	}
	if !base[0].Checker {
		t.Fatal("WithChecker modified its input")
	}
}
