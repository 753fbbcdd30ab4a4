package engine

import (
	"testing"

	"github.com/user/gpupathtracer/internal/engine/gpu"
	"github.com/user/gpupathtracer/internal/engine/gpu/gputest"
)

func TestAccumulationClearCycle(t *testing.T) {
	dev := gputest.NewDevice()
	a := newAccumulation(dev)
	if err := a.resize(gpu.Extent{Width: 4, Height: 4}); err != nil {
		t.Fatal(err)
	}
	cb, _ := dev.CreateCommandBuffer()
	cmd := cb.(*gputest.CommandBuffer)

	record := func() (bool, []gputest.Op) {
		if err := cmd.Begin(); err != nil {
			t.Fatal(err)
		}
		cleared := a.recordClear(cmd)
		cmd.PipelineBarrier(a.computeBarrier(cleared))
		if err := cmd.End(); err != nil {
			t.Fatal(err)
		}
		return cleared, cmd.Ops()
	}

	cleared, ops := record()
	if !cleared || len(ops) != 3 {
		t.Fatalf("first record: cleared = %v, ops = %d", cleared, len(ops))
	}
	if ops[0].Barrier.OldLayout != gpu.LayoutUndefined || ops[2].Barrier.OldLayout != gpu.LayoutTransferDst {
		t.Errorf("barriers = %s, %s", ops[0].Barrier.OldLayout, ops[2].Barrier.OldLayout)
	}

	cleared, ops = record()
	if cleared || len(ops) != 1 || ops[0].Barrier.OldLayout != gpu.LayoutGeneral {
		t.Errorf("clean record: cleared = %v, ops = %d", cleared, len(ops))
	}

	a.invalidate()
	a.invalidate()
	cleared, ops = record()
	if !cleared || ops[0].Barrier.OldLayout != gpu.LayoutGeneral {
		t.Errorf("after invalidate: cleared = %v", cleared)
	}
	if ops[0].Barrier.SrcStage != gpu.StageComputeShader {
		t.Errorf("clear after dispatch waits on %v, want compute", ops[0].Barrier.SrcStage)
	}
	if cleared, _ = record(); cleared {
		t.Error("double invalidate produced a second clear")
	}
}

func TestAccumulationResizeRequiresClear(t *testing.T) {
	dev := gputest.NewDevice()
	a := newAccumulation(dev)
	if err := a.resize(gpu.Extent{Width: 4, Height: 4}); err != nil {
		t.Fatal(err)
	}
	a.cleared, a.pending = true, false
	old := a.image.(*gputest.Image)

	if err := a.resize(gpu.Extent{Width: 8, Height: 2}); err != nil {
		t.Fatal(err)
	}
	if !old.Released {
		t.Error("previous image not released")
	}
	if !a.needsClear() || a.layout != gpu.LayoutUndefined {
		t.Errorf("resized image: needsClear = %v, layout = %s", a.needsClear(), a.layout)
	}
}
