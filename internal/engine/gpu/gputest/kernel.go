package gputest

import (
	"encoding/binary"
	"fmt"
)

// Kernel is a compute program implemented in Go. Reads lists image slots
// that must hold defined contents at dispatch; Writes lists slots that are
// defined afterwards.
type Kernel struct {
	TileX, TileY uint32
	Reads        []uint32
	Writes       []uint32
	Run          func(inv Invocation) error

	Dispatches int
	Released   bool
}

func (k *Kernel) TileSize() (uint32, uint32) { return k.TileX, k.TileY }
func (k *Kernel) Release()                   { k.Released = true }

// Invocation is one dispatch as seen by Kernel.Run.
type Invocation struct {
	Groups   [3]uint32
	bindings *Bindings
}

func (inv Invocation) Image(slot uint32) *Image   { return inv.bindings.Images[slot] }
func (inv Invocation) Buffer(slot uint32) *Buffer { return inv.bindings.Buffers[slot] }

// CountingLayout names the slots and parameter offset a CountingKernel uses.
type CountingLayout struct {
	Accum, Target, Params uint32
	// FrameIndexOffset is the byte offset of the uint32 frame index inside
	// the parameter buffer.
	FrameIndexOffset int
}

// NewCountingKernel returns an 8x8 kernel that adds one sample to every
// accumulation pixel and writes accum/(frameIndex+1) to the target. After a
// correctly sequenced run every target pixel is exactly 1; any other value
// means a missed clear or a frame index out of step with the accumulator.
func NewCountingKernel(l CountingLayout) *Kernel {
	k := &Kernel{TileX: 8, TileY: 8, Reads: []uint32{l.Accum}, Writes: []uint32{l.Accum, l.Target}}
	k.Run = func(inv Invocation) error {
		accum, target, params := inv.Image(l.Accum), inv.Image(l.Target), inv.Buffer(l.Params)
		if accum == nil || target == nil || params == nil {
			return fmt.Errorf("counting kernel: missing binding")
		}
		if len(params.Data) < l.FrameIndexOffset+4 {
			return fmt.Errorf("counting kernel: params buffer too small (%d)", len(params.Data))
		}
		frame := binary.LittleEndian.Uint32(params.Data[l.FrameIndexOffset:])
		n := float32(frame + 1)
		w, h := accum.Extent().Width, accum.Extent().Height
		tw := target.Extent().Width
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				o := (y*w + x) * 4
				for c := uint32(0); c < 4; c++ {
					accum.Pix[o+c]++
				}
				if x < tw && y < target.Extent().Height {
					t := (y*tw + x) * 4
					for c := uint32(0); c < 4; c++ {
						target.Pix[t+c] = accum.Pix[o+c] / n
					}
				}
			}
		}
		return nil
	}
	return k
}
