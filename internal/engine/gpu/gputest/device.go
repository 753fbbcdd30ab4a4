// Package gputest provides an in-memory gpu.Device and gpu.Surface for
// tests. Command buffers execute at submit on host memory; image layouts,
// fence and semaphore states are tracked and every misuse is reported as an
// error wrapping ErrValidation.
package gputest

import (
	"errors"
	"fmt"
	"image"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

var (
	// ErrValidation wraps every contract violation the device detects.
	ErrValidation = errors.New("gputest: validation failed")
	// ErrWouldHang is returned when a fence that will never be signaled is
	// waited on.
	ErrWouldHang = errors.New("gputest: wait on unsignaled fence would block forever")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// OpKind identifies a recorded command.
type OpKind int

const (
	OpBarrier OpKind = iota
	OpClear
	OpBindKernel
	OpBindBindings
	OpDispatch
	OpOverlay
)

func (k OpKind) String() string {
	return [...]string{"barrier", "clear", "bind-kernel", "bind-bindings", "dispatch", "overlay"}[k]
}

// Op is one executed command.
type Op struct {
	Kind     OpKind
	Submit   int
	Barrier  gpu.ImageBarrier
	Image    *Image
	Layout   gpu.Layout
	Groups   [3]uint32
	Kernel   *Kernel
	Bindings *Bindings
	Overlay  *image.RGBA
	Origin   image.Point
}

// Device is the in-memory device. Fields prefixed Fail inject errors.
type Device struct {
	FailSubmit      error
	FailCreateImage error
	FailWaitIdle    error

	// Executed lists every command run so far, across submissions.
	Executed  []Op
	Submits   int
	IdleWaits int

	images  []*Image
	buffers []*Buffer
	nextID  int
}

func NewDevice() *Device { return &Device{} }

// Image is a host-backed image. Pix holds four float32 per pixel.
type Image struct {
	ID       int
	Label    string
	Layout   gpu.Layout
	Defined  bool
	Released bool
	Pix      []float32

	extent gpu.Extent
	format gpu.Format
}

func (i *Image) Extent() gpu.Extent { return i.extent }
func (i *Image) Format() gpu.Format { return i.format }
func (i *Image) Release()           { i.Released = true }

// At returns the four channels of pixel (x, y).
func (i *Image) At(x, y int) [4]float32 {
	o := (y*int(i.extent.Width) + x) * 4
	return [4]float32{i.Pix[o], i.Pix[o+1], i.Pix[o+2], i.Pix[o+3]}
}

func (d *Device) newImage(desc gpu.ImageDesc) *Image {
	d.nextID++
	img := &Image{
		ID:     d.nextID,
		Label:  desc.Label,
		Layout: gpu.LayoutUndefined,
		Pix:    make([]float32, int(desc.Extent.Width)*int(desc.Extent.Height)*4),
		extent: desc.Extent,
		format: desc.Format,
	}
	d.images = append(d.images, img)
	return img
}

func (d *Device) CreateImage(desc gpu.ImageDesc) (gpu.Image, error) {
	if d.FailCreateImage != nil {
		return nil, d.FailCreateImage
	}
	if desc.Extent.Empty() {
		return nil, invalid("create image %q with empty extent", desc.Label)
	}
	return d.newImage(desc), nil
}

// LiveImages returns images that were created and not yet released.
func (d *Device) LiveImages() []*Image {
	var out []*Image
	for _, img := range d.images {
		if !img.Released {
			out = append(out, img)
		}
	}
	return out
}

// Buffer is a host-backed buffer.
type Buffer struct {
	Label    string
	Data     []byte
	Usage    gpu.BufferUsage
	Writes   int
	Released bool
}

func (b *Buffer) Size() int { return len(b.Data) }

func (b *Buffer) Write(offset int, data []byte) error {
	if b.Released {
		return gpu.ErrReleased
	}
	if offset < 0 || offset+len(data) > len(b.Data) {
		return gpu.ErrOutOfRange
	}
	copy(b.Data[offset:], data)
	b.Writes++
	return nil
}

func (b *Buffer) Release() { b.Released = true }

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size <= 0 {
		return nil, invalid("create buffer %q with size %d", desc.Label, desc.Size)
	}
	b := &Buffer{Label: desc.Label, Data: make([]byte, desc.Size), Usage: desc.Usage}
	d.buffers = append(d.buffers, b)
	return b, nil
}

// LiveBuffers returns buffers not yet released.
func (d *Device) LiveBuffers() []*Buffer {
	var out []*Buffer
	for _, b := range d.buffers {
		if !b.Released {
			out = append(out, b)
		}
	}
	return out
}

// Bindings resolves kernel slots to fake resources.
type Bindings struct {
	Images   map[uint32]*Image
	Buffers  map[uint32]*Buffer
	Released bool
}

func (b *Bindings) Release() { b.Released = true }

func (d *Device) CreateBindings(k gpu.Kernel, entries []gpu.Binding) (gpu.Bindings, error) {
	if _, ok := k.(*Kernel); !ok {
		return nil, invalid("bindings for foreign kernel %T", k)
	}
	b := &Bindings{Images: map[uint32]*Image{}, Buffers: map[uint32]*Buffer{}}
	for _, e := range entries {
		switch e.Kind {
		case gpu.BindingStorageImage:
			img, ok := e.Image.(*Image)
			if !ok || img.Released {
				return nil, invalid("slot %d: image missing or released", e.Slot)
			}
			b.Images[e.Slot] = img
		case gpu.BindingStorageBuffer, gpu.BindingUniformBuffer:
			buf, ok := e.Buffer.(*Buffer)
			if !ok || buf.Released {
				return nil, invalid("slot %d: buffer missing or released", e.Slot)
			}
			b.Buffers[e.Slot] = buf
		}
	}
	return b, nil
}

// Fence tracks signaled state. Submission signals it immediately.
type Fence struct {
	Signaled bool
	Waits    int
	Released bool
}

func (f *Fence) Wait() error {
	f.Waits++
	if !f.Signaled {
		return ErrWouldHang
	}
	return nil
}

func (f *Fence) Reset() error {
	f.Signaled = false
	return nil
}

func (f *Fence) Release() { f.Released = true }

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	return &Fence{Signaled: signaled}, nil
}

// Semaphore is binary: signaled once, consumed by one wait.
type Semaphore struct {
	Signaled bool
	Released bool
}

func (s *Semaphore) Release() { s.Released = true }

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) { return &Semaphore{}, nil }

func (d *Device) CreateCommandBuffer() (gpu.CommandBuffer, error) { return &CommandBuffer{}, nil }

func (d *Device) WaitIdle() error {
	d.IdleWaits++
	return d.FailWaitIdle
}

// Submit waits on and consumes the wait semaphores, executes the command
// buffer, then signals the signal semaphores and the fence.
func (d *Device) Submit(s gpu.Submission) error {
	if d.FailSubmit != nil {
		return d.FailSubmit
	}
	cb, ok := s.Commands.(*CommandBuffer)
	if !ok {
		return invalid("submit of foreign command buffer %T", s.Commands)
	}
	if cb.recording {
		return invalid("submit of command buffer still recording")
	}
	if cb.err != nil {
		return cb.err
	}
	if len(s.WaitStages) != len(s.Wait) {
		return invalid("%d wait semaphores with %d stages", len(s.Wait), len(s.WaitStages))
	}
	for _, w := range s.Wait {
		sem := w.(*Semaphore)
		if !sem.Signaled {
			return invalid("submit waits on a semaphore nobody signaled")
		}
		sem.Signaled = false
	}
	if f, ok := s.Fence.(*Fence); ok && f.Signaled {
		return invalid("submit with a fence that is still signaled")
	}

	d.Submits++
	for _, op := range cb.ops {
		op.Submit = d.Submits
		if err := d.execute(cb, &op); err != nil {
			return err
		}
		d.Executed = append(d.Executed, op)
	}
	for _, sg := range s.Signal {
		sg.(*Semaphore).Signaled = true
	}
	if f, ok := s.Fence.(*Fence); ok {
		f.Signaled = true
	}
	return nil
}

func (d *Device) execute(cb *CommandBuffer, op *Op) error {
	switch op.Kind {
	case OpBarrier:
		b := op.Barrier
		img := op.Image
		if img.Released {
			return invalid("barrier on released image %q", img.Label)
		}
		if b.OldLayout != gpu.LayoutUndefined && b.OldLayout != img.Layout {
			return invalid("image %q: barrier from %s but image is %s", img.Label, b.OldLayout, img.Layout)
		}
		if b.OldLayout == gpu.LayoutUndefined {
			img.Defined = false
		}
		img.Layout = b.NewLayout

	case OpClear:
		img := op.Image
		if img.Layout != op.Layout {
			return invalid("clear of %q in %s but image is %s", img.Label, op.Layout, img.Layout)
		}
		if img.Layout != gpu.LayoutTransferDst && img.Layout != gpu.LayoutGeneral {
			return invalid("clear of %q in %s", img.Label, img.Layout)
		}
		for i := range img.Pix {
			img.Pix[i] = 0
		}
		img.Defined = true

	case OpBindKernel:
		cb.kernel = op.Kernel

	case OpBindBindings:
		cb.bindings = op.Bindings

	case OpDispatch:
		return d.dispatch(cb, op.Groups)

	case OpOverlay:
		if op.Image.Layout != gpu.LayoutColorAttachment {
			return invalid("overlay on %q in %s", op.Image.Label, op.Image.Layout)
		}
		blend(op.Image, op.Overlay, op.Origin)
	}
	return nil
}

// blend composites src over img with source-over alpha.
func blend(img *Image, src *image.RGBA, at image.Point) {
	w, h := int(img.extent.Width), int(img.extent.Height)
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			tx, ty := at.X+x-b.Min.X, at.Y+y-b.Min.Y
			if tx < 0 || ty < 0 || tx >= w || ty >= h {
				continue
			}
			c := src.RGBAAt(x, y)
			a := float32(c.A) / 255
			o := (ty*w + tx) * 4
			for ch, v := range [3]uint8{c.R, c.G, c.B} {
				img.Pix[o+ch] = float32(v)/255 + img.Pix[o+ch]*(1-a)
			}
		}
	}
}

func (d *Device) dispatch(cb *CommandBuffer, groups [3]uint32) error {
	if cb.kernel == nil || cb.bindings == nil {
		return invalid("dispatch without kernel or bindings")
	}
	if cb.bindings.Released {
		return invalid("dispatch with released bindings")
	}
	k := cb.kernel
	inv := Invocation{Groups: groups, bindings: cb.bindings}
	for slot, img := range cb.bindings.Images {
		if img.Released {
			return invalid("dispatch reads released image %q", img.Label)
		}
		if img.Layout != gpu.LayoutGeneral {
			return invalid("dispatch binds %q (slot %d) in %s", img.Label, slot, img.Layout)
		}
	}
	for _, slot := range k.Reads {
		img := cb.bindings.Images[slot]
		if img != nil && !img.Defined {
			return invalid("dispatch reads %q before it was cleared", img.Label)
		}
	}
	for _, img := range cb.bindings.Images {
		if w := groups[0] * k.TileX; w < img.extent.Width {
			return invalid("grid %d wide does not cover %q (%d)", w, img.Label, img.extent.Width)
		}
		if h := groups[1] * k.TileY; h < img.extent.Height {
			return invalid("grid %d high does not cover %q (%d)", h, img.Label, img.extent.Height)
		}
	}
	k.Dispatches++
	if k.Run != nil {
		if err := k.Run(inv); err != nil {
			return err
		}
	}
	for _, slot := range k.Writes {
		if img := cb.bindings.Images[slot]; img != nil {
			img.Defined = true
		}
	}
	return nil
}

// CommandBuffer records ops; the device runs them at submit.
type CommandBuffer struct {
	recording bool
	ops       []Op
	err       error

	kernel   *Kernel
	bindings *Bindings
}

// Ops returns the commands recorded since the last Begin.
func (c *CommandBuffer) Ops() []Op { return c.ops }

func (c *CommandBuffer) Begin() error {
	if c.recording {
		return invalid("begin while recording")
	}
	c.recording = true
	c.ops = c.ops[:0]
	c.err = nil
	c.kernel, c.bindings = nil, nil
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.recording {
		return invalid("end without begin")
	}
	c.recording = false
	return c.err
}

func (c *CommandBuffer) record(op Op) {
	if !c.recording {
		c.err = invalid("%s recorded outside begin/end", op.Kind)
		return
	}
	c.ops = append(c.ops, op)
}

func (c *CommandBuffer) PipelineBarrier(barriers ...gpu.ImageBarrier) {
	for _, b := range barriers {
		img, ok := b.Image.(*Image)
		if !ok {
			c.err = invalid("barrier on foreign image %T", b.Image)
			return
		}
		c.record(Op{Kind: OpBarrier, Barrier: b, Image: img})
	}
}

func (c *CommandBuffer) ClearColorImage(img gpu.Image, layout gpu.Layout, _ [4]float32) {
	c.record(Op{Kind: OpClear, Image: img.(*Image), Layout: layout})
}

func (c *CommandBuffer) BindKernel(k gpu.Kernel) {
	c.record(Op{Kind: OpBindKernel, Kernel: k.(*Kernel)})
}

func (c *CommandBuffer) BindBindings(b gpu.Bindings) {
	c.record(Op{Kind: OpBindBindings, Bindings: b.(*Bindings)})
}

func (c *CommandBuffer) Dispatch(x, y, z uint32) {
	c.record(Op{Kind: OpDispatch, Groups: [3]uint32{x, y, z}})
}

func (c *CommandBuffer) DrawOverlay(target gpu.Image, overlay *image.RGBA, origin image.Point) {
	c.record(Op{Kind: OpOverlay, Image: target.(*Image), Overlay: overlay, Origin: origin})
}

var (
	_ gpu.Device  = (*Device)(nil)
	_ gpu.Surface = (*Surface)(nil)
	_ gpu.Kernel  = (*Kernel)(nil)
)
