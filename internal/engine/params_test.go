package engine

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

func TestParamsLayout(t *testing.T) {
	p := DefaultCamera().Params(gpu.Extent{Width: 640, Height: 480}, 9, Settings{SamplesPerPixel: 8, MaxDepth: 20}, 5)
	b := p.Bytes()
	if len(b) != ParamsSize {
		t.Fatalf("len = %d, want %d", len(b), ParamsSize)
	}

	le := binary.LittleEndian
	f32 := func(off int) float32 { return math.Float32frombits(le.Uint32(b[off:])) }

	if got := f32(12); got != p.LensRadius {
		t.Errorf("lens radius at 12 = %v, want %v", got, p.LensRadius)
	}
	for off, want := range map[int]uint32{112: 9, 116: 8, 120: 20, 124: 5} {
		if got := le.Uint32(b[off:]); got != want {
			t.Errorf("uint at %d = %d, want %d", off, got, want)
		}
	}
	if f32(128) != 640 || f32(132) != 480 {
		t.Errorf("resolution = %v x %v", f32(128), f32(132))
	}
	if f32(136) != 1.0/640 || f32(140) != 1.0/480 {
		t.Errorf("inverse resolution = %v, %v", f32(136), f32(140))
	}
	if got := (mgl32.Vec3{f32(96), f32(100), f32(104)}); got != p.W {
		t.Errorf("w at 96 = %v, want %v", got, p.W)
	}
}

func TestDecodeParams(t *testing.T) {
	p := DefaultCamera().Params(gpu.Extent{Width: 32, Height: 16}, 3, DefaultSettings(), 2)
	got, err := DecodeParams(p.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Errorf("decoded %+v\nwant    %+v", got, p)
	}

	if _, err := DecodeParams(make([]byte, ParamsSize-1)); err == nil {
		t.Error("short block decoded without error")
	}
}

func TestDispatchGroups(t *testing.T) {
	tests := []struct {
		ext    gpu.Extent
		tx, ty uint32
		gx, gy uint32
	}{
		{gpu.Extent{Width: 100, Height: 60}, 8, 8, 13, 8},
		{gpu.Extent{Width: 64, Height: 64}, 8, 8, 8, 8},
		{gpu.Extent{Width: 1, Height: 1}, 8, 8, 1, 1},
		{gpu.Extent{Width: 17, Height: 9}, 0, 0, 3, 2},
		{gpu.Extent{Width: 30, Height: 30}, 16, 4, 2, 8},
	}
	for _, tt := range tests {
		gx, gy := dispatchGroups(tt.ext, tt.tx, tt.ty)
		if gx != tt.gx || gy != tt.gy {
			t.Errorf("dispatchGroups(%s, %d, %d) = (%d, %d), want (%d, %d)",
				tt.ext, tt.tx, tt.ty, gx, gy, tt.gx, tt.gy)
		}
	}
}

func TestSettingsClamped(t *testing.T) {
	tests := []struct {
		in, want Settings
	}{
		{Settings{0, 0}, Settings{1, 1}},
		{Settings{4, 12}, Settings{4, 12}},
		{Settings{100, 100}, Settings{32, 64}},
	}
	for _, tt := range tests {
		if got := tt.in.Clamped(); got != tt.want {
			t.Errorf("%+v.Clamped() = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}
