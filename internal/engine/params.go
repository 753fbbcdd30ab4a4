package engine

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// ParamsSize is the std140 size of the kernel's parameter block.
const ParamsSize = 144

// Params is the per-frame parameter block written into the slot of the
// acquired image. Layout (vec4 each):
//
//	originLens, lowerLeft, horizontal, vertical, u, v, w,
//	uvec4(frameIndex, samplesPerPixel, maxDepth, sphereCount),
//	vec4(width, height, 1/width, 1/height)
type Params struct {
	Origin     mgl32.Vec3
	LensRadius float32
	LowerLeft  mgl32.Vec3
	Horizontal mgl32.Vec3
	Vertical   mgl32.Vec3
	U, V, W    mgl32.Vec3

	FrameIndex      uint32
	SamplesPerPixel uint32
	MaxDepth        uint32
	SphereCount     uint32

	Width, Height uint32
}

// Bytes encodes p in the kernel's layout.
func (p Params) Bytes() []byte {
	b := make([]byte, ParamsSize)
	putVec(b[0:], p.Origin, p.LensRadius)
	putVec(b[16:], p.LowerLeft, 0)
	putVec(b[32:], p.Horizontal, 0)
	putVec(b[48:], p.Vertical, 0)
	putVec(b[64:], p.U, 0)
	putVec(b[80:], p.V, 0)
	putVec(b[96:], p.W, 0)

	le := binary.LittleEndian
	le.PutUint32(b[112:], p.FrameIndex)
	le.PutUint32(b[116:], p.SamplesPerPixel)
	le.PutUint32(b[120:], p.MaxDepth)
	le.PutUint32(b[124:], p.SphereCount)

	w, h := float32(p.Width), float32(p.Height)
	var iw, ih float32
	if w > 0 {
		iw = 1 / w
	}
	if h > 0 {
		ih = 1 / h
	}
	putVec(b[128:], mgl32.Vec3{w, h, iw}, ih)
	return b
}

// DecodeParams is the inverse of Params.Bytes.
func DecodeParams(b []byte) (Params, error) {
	if len(b) < ParamsSize {
		return Params{}, fmt.Errorf("engine: params block is %d bytes, want %d", len(b), ParamsSize)
	}
	var p Params
	p.Origin, p.LensRadius = getVec(b[0:])
	p.LowerLeft, _ = getVec(b[16:])
	p.Horizontal, _ = getVec(b[32:])
	p.Vertical, _ = getVec(b[48:])
	p.U, _ = getVec(b[64:])
	p.V, _ = getVec(b[80:])
	p.W, _ = getVec(b[96:])

	le := binary.LittleEndian
	p.FrameIndex = le.Uint32(b[112:])
	p.SamplesPerPixel = le.Uint32(b[116:])
	p.MaxDepth = le.Uint32(b[120:])
	p.SphereCount = le.Uint32(b[124:])

	res, _ := getVec(b[128:])
	p.Width, p.Height = uint32(res[0]), uint32(res[1])
	return p, nil
}

func putVec(b []byte, v mgl32.Vec3, w float32) {
	le := binary.LittleEndian
	le.PutUint32(b[0:], math.Float32bits(v[0]))
	le.PutUint32(b[4:], math.Float32bits(v[1]))
	le.PutUint32(b[8:], math.Float32bits(v[2]))
	le.PutUint32(b[12:], math.Float32bits(w))
}

func getVec(b []byte) (mgl32.Vec3, float32) {
	le := binary.LittleEndian
	f := func(off int) float32 { return math.Float32frombits(le.Uint32(b[off:])) }
	return mgl32.Vec3{f(0), f(4), f(8)}, f(12)
}
