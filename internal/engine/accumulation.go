package engine

import (
	"fmt"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// accumulation owns the shared rgba32f image holding the running sum of
// samples since the last reset. One image serves every frame in flight;
// consecutive dispatches are ordered by the single queue plus the
// compute-to-compute barrier recorded each frame.
type accumulation struct {
	dev    gpu.Device
	image  gpu.Image
	layout gpu.Layout

	// cleared is false from creation until the first recorded clear.
	cleared bool
	// pending is the reset flag. invalidate sets it; the next clear
	// consumes it.
	pending bool
}

func newAccumulation(dev gpu.Device) *accumulation {
	return &accumulation{dev: dev, pending: true}
}

// invalidate requests a clear before the next dispatch. Calling it again
// before that dispatch has no further effect.
func (a *accumulation) invalidate() { a.pending = true }

func (a *accumulation) needsClear() bool { return a.pending || !a.cleared }

// resize releases the current image and allocates one of ext. The new image
// is never-initialized and must be cleared before it is read.
func (a *accumulation) resize(ext gpu.Extent) error {
	a.release()
	img, err := a.dev.CreateImage(gpu.ImageDesc{
		Label:  "accumulation",
		Extent: ext,
		Format: gpu.FormatRGBA32F,
		Usage:  gpu.UsageStorage | gpu.UsageTransferDst,
	})
	if err != nil {
		return fmt.Errorf("create accumulation image %s: %w", ext, err)
	}
	a.image = img
	a.layout = gpu.LayoutUndefined
	a.cleared = false
	a.pending = true
	return nil
}

// recordClear records the zero-clear if one is due and reports whether it
// did.
func (a *accumulation) recordClear(cmd gpu.CommandBuffer) bool {
	if !a.needsClear() {
		return false
	}
	cmd.PipelineBarrier(accumClearBarrier(a.image, a.layout))
	cmd.ClearColorImage(a.image, gpu.LayoutTransferDst, [4]float32{})
	a.layout = gpu.LayoutTransferDst
	a.cleared = true
	a.pending = false
	return true
}

// computeBarrier returns the transition into the kernel's layout and records
// the new layout.
func (a *accumulation) computeBarrier(cleared bool) gpu.ImageBarrier {
	b := accumComputeBarrier(a.image, cleared)
	a.layout = gpu.LayoutGeneral
	return b
}

func (a *accumulation) release() {
	if a.image != nil {
		a.image.Release()
		a.image = nil
	}
}
