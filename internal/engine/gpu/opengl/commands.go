package opengl

import (
	"errors"
	"image"

	"github.com/go-gl/gl/v4.6-core/gl"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

var errNotRecording = errors.New("opengl: command recorded outside Begin/End")

// CommandBuffer records closures that Submit replays in order.
type CommandBuffer struct {
	dev       *Device
	recording bool
	ops       []func() error
	err       error
}

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return errors.New("opengl: Begin while recording")
	}
	c.recording = true
	c.ops = c.ops[:0]
	c.err = nil
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return errors.New("opengl: End without Begin")
	}
	c.recording = false
	return c.err
}

func (c *CommandBuffer) record(op func() error) {
	if !c.recording {
		c.err = errNotRecording
		return
	}
	c.ops = append(c.ops, op)
}

// barrierBits maps the destination side of each barrier to the
// glMemoryBarrier bits that make earlier writes visible to it.
func barrierBits(barriers []gpu.ImageBarrier) uint32 {
	var bits uint32
	for _, b := range barriers {
		if b.SrcAccess == gpu.AccessNone && b.OldLayout == gpu.LayoutUndefined {
			continue
		}
		if b.DstAccess&(gpu.AccessShaderRead|gpu.AccessShaderWrite) != 0 {
			bits |= gl.SHADER_IMAGE_ACCESS_BARRIER_BIT
		}
		if b.DstAccess&gpu.AccessTransferWrite != 0 {
			bits |= gl.TEXTURE_UPDATE_BARRIER_BIT
		}
		// The overlay pass is a compute program on this backend.
		if b.DstAccess&(gpu.AccessColorAttachmentRead|gpu.AccessColorAttachmentWrite) != 0 {
			bits |= gl.SHADER_IMAGE_ACCESS_BARRIER_BIT | gl.FRAMEBUFFER_BARRIER_BIT
		}
		if b.NewLayout == gpu.LayoutPresentSrc {
			bits |= gl.FRAMEBUFFER_BARRIER_BIT | gl.TEXTURE_FETCH_BARRIER_BIT
		}
	}
	return bits
}

func (c *CommandBuffer) PipelineBarrier(barriers ...gpu.ImageBarrier) {
	bits := barrierBits(barriers)
	c.record(func() error {
		if bits != 0 {
			gl.MemoryBarrier(bits)
		}
		return nil
	})
}

func (c *CommandBuffer) ClearColorImage(img gpu.Image, _ gpu.Layout, color [4]float32) {
	im := img.(*Image)
	c.record(func() error {
		gl.ClearTexImage(im.tex, 0, gl.RGBA, gl.FLOAT, gl.Ptr(&color[0]))
		return check("clear image " + im.label)
	})
}

func (c *CommandBuffer) BindKernel(k gpu.Kernel) {
	kk := k.(*Kernel)
	c.record(func() error {
		gl.UseProgram(kk.program)
		return nil
	})
}

func (c *CommandBuffer) BindBindings(b gpu.Bindings) {
	bb := b.(*Bindings)
	c.record(func() error {
		bb.bind()
		return nil
	})
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	c.record(func() error {
		gl.DispatchCompute(x, y, z)
		return check("dispatch")
	})
}

// DrawOverlay uploads a copy of overlay into a scratch texture and blends it
// with the overlay kernel.
func (c *CommandBuffer) DrawOverlay(target gpu.Image, overlay *image.RGBA, origin image.Point) {
	dst := target.(*Image)
	b := overlay.Bounds()
	if b.Empty() {
		return
	}
	pix := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		copy(pix.Pix[y*pix.Stride:(y+1)*pix.Stride], overlay.Pix[overlay.PixOffset(b.Min.X, b.Min.Y+y):])
	}
	d := c.dev
	c.record(func() error {
		src, err := d.scratchImage(gpu.Extent{Width: uint32(b.Dx()), Height: uint32(b.Dy())})
		if err != nil {
			return err
		}
		gl.TextureSubImage2D(src.tex, 0, 0, 0, int32(b.Dx()), int32(b.Dy()), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix.Pix))
		gl.MemoryBarrier(gl.SHADER_IMAGE_ACCESS_BARRIER_BIT)

		gl.UseProgram(d.overlay.program)
		gl.Uniform2i(gl.GetUniformLocation(d.overlay.program, gl.Str("uOrigin\x00")), int32(origin.X), int32(origin.Y))
		gl.BindImageTexture(0, dst.tex, 0, false, 0, gl.READ_WRITE, gl.RGBA8)
		gl.BindImageTexture(1, src.tex, 0, false, 0, gl.READ_ONLY, gl.RGBA8)
		tx, ty := d.overlay.TileSize()
		gl.DispatchCompute((uint32(b.Dx())+tx-1)/tx, (uint32(b.Dy())+ty-1)/ty, 1)
		return check("draw overlay")
	})
}

// scratchImage returns an RGBA8 texture of exactly ext. The overlay kernel
// blends the whole texture.
func (d *Device) scratchImage(ext gpu.Extent) (*Image, error) {
	if s := d.scratch; s != nil && s.extent == ext {
		return s, nil
	}
	if d.scratch != nil {
		d.scratch.Release()
	}
	img, err := newImage(gpu.ImageDesc{Label: "overlay", Extent: ext, Format: gpu.FormatRGBA8})
	if err != nil {
		return nil, err
	}
	d.scratch = img
	return img, nil
}
