package engine

import (
	"encoding/binary"
	"math"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/user/gpupathtracer/internal/engine/gpu/gputest"
	"github.com/user/gpupathtracer/internal/scene"
)

// A host port of the compute kernel. It reads the same bindings, parameter
// block and sphere records, and follows the same accumulation rule, so the
// controller can be checked end to end against real images.

const (
	tMin = 1e-3
	tMax = 1e30
)

type ray struct {
	orig, dir mgl32.Vec3
}

func (r ray) at(t float32) mgl32.Vec3 { return r.orig.Add(r.dir.Mul(t)) }

type sphereRec struct {
	center   mgl32.Vec3
	radius   float32
	albedo   mgl32.Vec3
	material scene.Material
	rough    float32
	ior      float32
	checker  bool
}

func unpackSpheres(b []byte, n uint32) []sphereRec {
	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b[off:])) }
	out := make([]sphereRec, n)
	for i := range out {
		o := i * scene.Stride
		out[i] = sphereRec{
			center:   mgl32.Vec3{f(o), f(o + 4), f(o + 8)},
			radius:   f(o + 12),
			albedo:   mgl32.Vec3{f(o + 16), f(o + 20), f(o + 24)},
			material: scene.Material(f(o+32) + 0.5),
			rough:    f(o + 36),
			ior:      f(o + 40),
			checker:  uint32(f(o+44)+0.5)&1 != 0,
		}
	}
	return out
}

type hitRecord struct {
	p, normal mgl32.Vec3
	t         float32
	frontFace bool
	index     int
}

func (s sphereRec) hit(r ray, tMax float32, rec *hitRecord) bool {
	oc := r.orig.Sub(s.center)
	halfB := oc.Dot(r.dir)
	c := oc.Dot(oc) - s.radius*s.radius
	disc := halfB*halfB - c
	if disc < 0 {
		return false
	}
	sq := float32(math.Sqrt(float64(disc)))
	root := -halfB - sq
	if root < tMin || root > tMax {
		root = -halfB + sq
		if root < tMin || root > tMax {
			return false
		}
	}
	rec.t = root
	rec.p = r.at(root)
	outward := rec.p.Sub(s.center).Mul(1 / s.radius)
	rec.frontFace = r.dir.Dot(outward) < 0
	rec.normal = outward
	if !rec.frontFace {
		rec.normal = outward.Mul(-1)
	}
	return true
}

func hashU(x uint32) uint32 {
	x ^= x >> 17
	x *= 0xed5ad4bb
	x ^= x >> 11
	x *= 0xac4c1b51
	x ^= x >> 15
	x *= 0x31848bab
	x ^= x >> 14
	return x
}

type randSource struct{ state uint32 }

func (r *randSource) float() float32 {
	r.state = hashU(r.state)
	return float32(r.state) / 4294967296.0
}

func (r *randSource) unitVector() mgl32.Vec3 {
	z := r.float()*2 - 1
	a := float64(r.float()) * 2 * math.Pi
	rr := float32(math.Sqrt(math.Max(0, float64(1-z*z))))
	return mgl32.Vec3{rr * float32(math.Cos(a)), rr * float32(math.Sin(a)), z}
}

func (r *randSource) inUnitDisk() (float32, float32) {
	rr := math.Sqrt(float64(r.float()))
	a := float64(r.float()) * 2 * math.Pi
	return float32(rr * math.Cos(a)), float32(rr * math.Sin(a))
}

func reflectVec(v, n mgl32.Vec3) mgl32.Vec3 { return v.Sub(n.Mul(2 * n.Dot(v))) }

func refractVec(v, n mgl32.Vec3, eta float32) mgl32.Vec3 {
	d := n.Dot(v)
	k := 1 - eta*eta*(1-d*d)
	if k < 0 {
		return mgl32.Vec3{}
	}
	return v.Mul(eta).Sub(n.Mul(eta*d + float32(math.Sqrt(float64(k)))))
}

func reflectance(cosine, eta float32) float32 {
	r0 := (1 - eta) / (1 + eta)
	r0 *= r0
	return r0 + (1-r0)*float32(math.Pow(float64(1-cosine), 5))
}

func sky(d mgl32.Vec3) mgl32.Vec3 {
	t := 0.5 * (d.Y() + 1)
	return mgl32.Vec3{1, 1, 1}.Mul(1 - t).Add(mgl32.Vec3{0.5, 0.7, 1}.Mul(t))
}

func checker(p, base mgl32.Vec3) mgl32.Vec3 {
	if math.Sin(2*float64(p.X()))*math.Sin(2*float64(p.Z())) < 0 {
		return base.Mul(0.25)
	}
	return base
}

func radiance(r ray, world []sphereRec, depth uint32, rng *randSource) mgl32.Vec3 {
	throughput := mgl32.Vec3{1, 1, 1}
	for bounce := uint32(0); bounce < depth; bounce++ {
		var rec hitRecord
		rec.index = -1
		closest := float32(tMax)
		for i, s := range world {
			var tmp hitRecord
			if s.hit(r, closest, &tmp) {
				rec = tmp
				rec.index = i
				closest = tmp.t
			}
		}
		if rec.index < 0 {
			return mulVec(throughput, sky(r.dir))
		}
		s := world[rec.index]
		albedo := s.albedo
		if s.checker {
			albedo = checker(rec.p, albedo)
		}

		var dir mgl32.Vec3
		switch s.material {
		case scene.MaterialMetallic:
			dir = reflectVec(r.dir, rec.normal).Add(rng.unitVector().Mul(s.rough))
			if dir.Dot(rec.normal) <= 0 {
				return mgl32.Vec3{}
			}
		case scene.MaterialDielectric:
			eta := s.ior
			if rec.frontFace {
				eta = 1 / s.ior
			}
			cos := min(r.dir.Mul(-1).Dot(rec.normal), 1)
			sin := float32(math.Sqrt(float64(1 - cos*cos)))
			if eta*sin > 1 || reflectance(cos, eta) > rng.float() {
				dir = reflectVec(r.dir, rec.normal)
			} else {
				dir = refractVec(r.dir, rec.normal, eta)
			}
		default:
			dir = rec.normal.Add(rng.unitVector())
			if dir.Dot(dir) < 1e-8 {
				dir = rec.normal
			}
		}
		throughput = mulVec(throughput, albedo)
		r = ray{orig: rec.p, dir: dir.Normalize()}

		if bounce > 3 {
			p := max(throughput.X(), throughput.Y(), throughput.Z())
			if rng.float() > p {
				return mgl32.Vec3{}
			}
			throughput = throughput.Mul(1 / p)
		}
	}
	return mgl32.Vec3{}
}

func mulVec(a, b mgl32.Vec3) mgl32.Vec3 { return mgl32.Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]} }

func aces(x float32) float32 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	return mgl32.Clamp((x*(a*x+b))/(x*(c*x+d)+e), 0, 1)
}

// newReferenceKernel returns the host kernel. Pixels are traced by a pool of
// workers, one row at a time.
func newReferenceKernel() *gputest.Kernel {
	k := &gputest.Kernel{
		TileX:  TileSize,
		TileY:  TileSize,
		Reads:  []uint32{BindingAccum},
		Writes: []uint32{BindingAccum, BindingTarget},
	}
	k.Run = func(inv gputest.Invocation) error {
		p, err := DecodeParams(inv.Buffer(BindingParams).Data)
		if err != nil {
			return err
		}
		world := unpackSpheres(inv.Buffer(BindingScene).Data, p.SphereCount)
		accum, target := inv.Image(BindingAccum), inv.Image(BindingTarget)
		w, h := int(p.Width), int(p.Height)

		rows := make(chan int, h)
		for y := 0; y < h; y++ {
			rows <- y
		}
		close(rows)

		var wg sync.WaitGroup
		for i := 0; i < runtime.NumCPU(); i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for y := range rows {
					for x := 0; x < w; x++ {
						tracePixel(p, world, accum, target, x, y)
					}
				}
			}()
		}
		wg.Wait()
		return nil
	}
	return k
}

func tracePixel(p Params, world []sphereRec, accum, target *gputest.Image, x, y int) {
	rng := &randSource{state: hashU(uint32(x)*1973 ^ uint32(y)*9277 ^ hashU(p.FrameIndex*26699+1))}
	invW, invH := 1/float32(p.Width), 1/float32(p.Height)

	var col mgl32.Vec3
	for s := uint32(0); s < p.SamplesPerPixel; s++ {
		u := (float32(x) + rng.float()) * invW
		v := 1 - (float32(y)+rng.float())*invH

		lx, ly := rng.inUnitDisk()
		offset := p.U.Mul(lx * p.LensRadius).Add(p.V.Mul(ly * p.LensRadius))
		orig := p.Origin.Add(offset)
		tgt := p.LowerLeft.Add(p.Horizontal.Mul(u)).Add(p.Vertical.Mul(v))
		col = col.Add(radiance(ray{orig, tgt.Sub(orig).Normalize()}, world, p.MaxDepth, rng))
	}
	col = col.Mul(1 / float32(max(p.SamplesPerPixel, 1)))

	o := (y*int(p.Width) + x) * 4
	sum := [4]float32{col[0], col[1], col[2], 1}
	if p.FrameIndex != 0 {
		for c := range sum {
			sum[c] += accum.Pix[o+c]
		}
	}
	copy(accum.Pix[o:o+4], sum[:])

	n := float32(p.FrameIndex + 1)
	for c := 0; c < 3; c++ {
		target.Pix[o+c] = float32(math.Pow(float64(aces(sum[c]/n)), 1/2.2))
	}
	target.Pix[o+3] = 1
}

func accumImage(t *testing.T, dev *gputest.Device) *gputest.Image {
	t.Helper()
	for _, img := range dev.LiveImages() {
		if img.Label == "accumulation" {
			return img
		}
	}
	t.Fatal("no live accumulation image")
	return nil
}

func TestReferenceRender(t *testing.T) {
	const w, ht = 48, 27
	ref := newReferenceKernel()
	h := newHarness(t, w, ht, func(o *Options) { o.Kernel = ref })

	for i := 0; i < 3; i++ {
		h.frame(t, FrameRendered)
	}
	if ref.Dispatches != 3 {
		t.Fatalf("dispatches = %d, want 3", ref.Dispatches)
	}

	// Alpha counts frames: written on the reset frame, added afterwards.
	acc := accumImage(t, h.dev)
	for _, pt := range [][2]int{{0, 0}, {w - 1, ht - 1}, {w / 2, ht / 2}} {
		if a := acc.At(pt[0], pt[1])[3]; a != 3 {
			t.Errorf("accum alpha at %v = %v, want 3", pt, a)
		}
	}

	img := h.surface.Images()[h.surface.Presented[len(h.surface.Presented)-1]]
	// Row 0 is the top of the picture: open sky, blue above red.
	if px := img.At(0, 0); !(px[2] > px[0]) {
		t.Errorf("top-left pixel %v is not sky", px)
	}
	// The view is centered on the red diffuse sphere.
	if px := img.At(w/2, ht/2); !(px[0] > px[1] && px[0] > px[2]) {
		t.Errorf("center pixel %v is not red", px)
	}
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			for _, v := range img.At(x, y) {
				if v < 0 || v > 1 || math.IsNaN(float64(v)) {
					t.Fatalf("pixel (%d,%d) = %v out of range", x, y, img.At(x, y))
				}
			}
		}
	}

	// Moving restarts accumulation: the next frame's alpha is 1 again.
	h.c.Translate(Forward, 100*time.Millisecond)
	h.frame(t, FrameRendered)
	if a := accumImage(t, h.dev).At(5, 5)[3]; a != 1 {
		t.Errorf("accum alpha after move = %v, want 1", a)
	}
}
