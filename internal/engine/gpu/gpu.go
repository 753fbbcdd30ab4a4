// Package gpu defines the device and presentation contracts the render loop
// drives. Backends (OpenGL compute, the in-memory test device) implement them;
// the engine never talks to a graphics API directly.
package gpu

import (
	"fmt"
	"image"
)

// Format is a pixel format for images.
type Format int

const (
	FormatRGBA8 Format = iota
	FormatRGBA32F
)

func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "rgba8"
	case FormatRGBA32F:
		return "rgba32f"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// BytesPerPixel returns the size of one texel.
func (f Format) BytesPerPixel() int {
	if f == FormatRGBA32F {
		return 16
	}
	return 4
}

// Layout is the abstract state an image is in. Transitions between layouts
// are recorded explicitly with ImageBarrier; a backend without layouts still
// uses them to derive memory barriers.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutGeneral
	LayoutTransferDst
	LayoutColorAttachment
	LayoutPresentSrc
)

func (l Layout) String() string {
	switch l {
	case LayoutUndefined:
		return "undefined"
	case LayoutGeneral:
		return "general"
	case LayoutTransferDst:
		return "transfer-dst"
	case LayoutColorAttachment:
		return "color-attachment"
	case LayoutPresentSrc:
		return "present-src"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Access is a bit set of memory access kinds.
type Access uint32

const (
	AccessTransferWrite Access = 1 << iota
	AccessShaderRead
	AccessShaderWrite
	AccessColorAttachmentRead
	AccessColorAttachmentWrite
	AccessHostWrite

	AccessNone Access = 0
)

// Stage is a bit set of pipeline stages.
type Stage uint32

const (
	StageTopOfPipe Stage = 1 << iota
	StageTransfer
	StageComputeShader
	StageColorAttachmentOutput
	StageBottomOfPipe
	StageHost
)

// Extent is a 2D size in pixels.
type Extent struct {
	Width, Height uint32
}

// Empty reports whether either dimension is zero (minimized window).
func (e Extent) Empty() bool { return e.Width == 0 || e.Height == 0 }

func (e Extent) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

// ImageUsage is a bit set describing how an image will be used.
type ImageUsage uint32

const (
	UsageStorage ImageUsage = 1 << iota
	UsageTransferDst
	UsageTransferSrc
	UsageColorAttachment
)

// BufferUsage describes how a buffer is bound.
type BufferUsage int

const (
	BufferUniform BufferUsage = iota
	BufferStorage
)

// Residency selects where a buffer's memory lives.
type Residency int

const (
	MemoryHostVisible Residency = iota
	MemoryDeviceLocal
)

type ImageDesc struct {
	Label  string
	Extent Extent
	Format Format
	Usage  ImageUsage
}

type BufferDesc struct {
	Label  string
	Size   int
	Usage  BufferUsage
	Memory Residency
}

// Image is a device image. Release frees it; further use is an error.
type Image interface {
	Extent() Extent
	Format() Format
	Release()
}

// Buffer is a device buffer. Write copies host bytes into it at offset.
type Buffer interface {
	Size() int
	Write(offset int, data []byte) error
	Release()
}

// Kernel is a compiled compute program with a fixed tile size.
type Kernel interface {
	TileSize() (x, y uint32)
	Release()
}

// Bindings is a descriptor set: resources bound to kernel slots.
type Bindings interface {
	Release()
}

// BindingKind says how a resource is bound.
type BindingKind int

const (
	BindingStorageImage BindingKind = iota
	BindingStorageBuffer
	BindingUniformBuffer
)

// Binding attaches one resource to a kernel slot. Exactly one of Image or
// Buffer is set, depending on Kind.
type Binding struct {
	Slot   uint32
	Kind   BindingKind
	Image  Image
	Buffer Buffer
}

// Fence is a GPU-to-host signal. Wait blocks without a timeout.
type Fence interface {
	Wait() error
	Reset() error
	Release()
}

// Semaphore orders GPU work between submissions and presentation.
type Semaphore interface {
	Release()
}

// ImageBarrier transitions an image between layouts and orders memory
// accesses on either side of it.
type ImageBarrier struct {
	Image     Image
	OldLayout Layout
	NewLayout Layout
	SrcAccess Access
	DstAccess Access
	SrcStage  Stage
	DstStage  Stage
}

// CommandBuffer records GPU work. Nothing executes until the buffer is
// submitted.
type CommandBuffer interface {
	Begin() error
	End() error
	PipelineBarrier(barriers ...ImageBarrier)
	ClearColorImage(img Image, layout Layout, color [4]float32)
	BindKernel(k Kernel)
	BindBindings(b Bindings)
	Dispatch(x, y, z uint32)
	// DrawOverlay blends host pixels over target (source-over) with the
	// top-left corner at origin. The target must be in LayoutColorAttachment.
	DrawOverlay(target Image, overlay *image.RGBA, origin image.Point)
}

// Submission is one queue submit.
type Submission struct {
	Commands   CommandBuffer
	Wait       []Semaphore
	WaitStages []Stage
	Signal     []Semaphore
	Fence      Fence
}

// Device is the GPU resource context: allocation, submission and idle wait
// on a single queue that executes submissions in order.
type Device interface {
	CreateImage(desc ImageDesc) (Image, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateBindings(k Kernel, entries []Binding) (Bindings, error)
	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	CreateCommandBuffer() (CommandBuffer, error)
	Submit(s Submission) error
	WaitIdle() error
}

// Surface is the chain of presentable images.
type Surface interface {
	// AcquireNext returns the index of the next writable image and signals
	// sem when it is ready. StatusOutOfDate means the surface must be
	// recreated before use.
	AcquireNext(sem Semaphore) (uint32, Status, error)
	// Present queues image index for display after wait is signaled.
	Present(index uint32, wait Semaphore) (Status, error)
	Extent() Extent
	ImageCount() int
	Image(index uint32) Image
	// ResizePending reports that the window changed size since the last
	// recreation.
	ResizePending() bool
	// Recreate rebuilds the image chain at the window's current size. It
	// blocks while the window has an empty extent. Every image comes back in
	// LayoutUndefined.
	Recreate() error
}
