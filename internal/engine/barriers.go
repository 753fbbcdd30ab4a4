package engine

import "github.com/user/gpupathtracer/internal/engine/gpu"

// Kernel binding slots. The compute kernel declares the same numbers.
const (
	BindingAccum  uint32 = 0
	BindingTarget uint32 = 1
	BindingScene  uint32 = 2
	BindingParams uint32 = 3
)

// TileSize is the kernel's local work-group size in each dimension.
const TileSize = 8

// dispatchGroups returns the grid that covers ext with tx×ty tiles.
func dispatchGroups(ext gpu.Extent, tx, ty uint32) (uint32, uint32) {
	if tx == 0 {
		tx = TileSize
	}
	if ty == 0 {
		ty = TileSize
	}
	return (ext.Width + tx - 1) / tx, (ext.Height + ty - 1) / ty
}

// accumClearBarrier makes the accumulation image transfer-writable. from is
// the layout the image is currently in.
func accumClearBarrier(img gpu.Image, from gpu.Layout) gpu.ImageBarrier {
	b := gpu.ImageBarrier{
		Image:     img,
		OldLayout: from,
		NewLayout: gpu.LayoutTransferDst,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessTransferWrite,
		SrcStage:  gpu.StageTopOfPipe,
		DstStage:  gpu.StageTransfer,
	}
	if from == gpu.LayoutGeneral {
		b.SrcAccess = gpu.AccessShaderRead | gpu.AccessShaderWrite
		b.SrcStage = gpu.StageComputeShader
	}
	return b
}

// accumComputeBarrier makes the accumulation image shader read/write. After a
// clear it waits on the transfer write; otherwise it orders this dispatch
// after the previous frame's dispatch.
func accumComputeBarrier(img gpu.Image, cleared bool) gpu.ImageBarrier {
	b := gpu.ImageBarrier{
		Image:     img,
		OldLayout: gpu.LayoutGeneral,
		NewLayout: gpu.LayoutGeneral,
		SrcAccess: gpu.AccessShaderWrite,
		DstAccess: gpu.AccessShaderRead | gpu.AccessShaderWrite,
		SrcStage:  gpu.StageComputeShader,
		DstStage:  gpu.StageComputeShader,
	}
	if cleared {
		b.OldLayout = gpu.LayoutTransferDst
		b.SrcAccess = gpu.AccessTransferWrite
		b.SrcStage = gpu.StageTransfer
	}
	return b
}

// targetComputeBarrier makes a presentable image shader-writable. An image
// that was never written has undefined contents; otherwise it was last
// presented.
func targetComputeBarrier(img gpu.Image, initialized bool) gpu.ImageBarrier {
	old := gpu.LayoutUndefined
	if initialized {
		old = gpu.LayoutPresentSrc
	}
	return gpu.ImageBarrier{
		Image:     img,
		OldLayout: old,
		NewLayout: gpu.LayoutGeneral,
		SrcAccess: gpu.AccessNone,
		DstAccess: gpu.AccessShaderWrite,
		SrcStage:  gpu.StageTopOfPipe,
		DstStage:  gpu.StageComputeShader,
	}
}

// targetCompositeBarrier hands the written image to the overlay pass, which
// loads it as a color attachment.
func targetCompositeBarrier(img gpu.Image) gpu.ImageBarrier {
	return gpu.ImageBarrier{
		Image:     img,
		OldLayout: gpu.LayoutGeneral,
		NewLayout: gpu.LayoutColorAttachment,
		SrcAccess: gpu.AccessShaderWrite,
		DstAccess: gpu.AccessColorAttachmentRead | gpu.AccessColorAttachmentWrite,
		SrcStage:  gpu.StageComputeShader,
		DstStage:  gpu.StageColorAttachmentOutput,
	}
}

func targetPresentBarrier(img gpu.Image) gpu.ImageBarrier {
	return gpu.ImageBarrier{
		Image:     img,
		OldLayout: gpu.LayoutColorAttachment,
		NewLayout: gpu.LayoutPresentSrc,
		SrcAccess: gpu.AccessColorAttachmentWrite,
		DstAccess: gpu.AccessNone,
		SrcStage:  gpu.StageColorAttachmentOutput,
		DstStage:  gpu.StageBottomOfPipe,
	}
}
