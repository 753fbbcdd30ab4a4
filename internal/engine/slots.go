package engine

import (
	"fmt"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// slot is the per-presentable-image state: its parameter buffer, its
// descriptor set and whether the image was ever written.
type slot struct {
	target      gpu.Image
	params      gpu.Buffer
	bindings    gpu.Bindings
	initialized bool
	// fence belongs to the frame in flight that last used this slot.
	fence gpu.Fence
}

type slotSet struct {
	dev    gpu.Device
	kernel gpu.Kernel
	slots  []*slot
}

// rebuild releases every slot and creates one per surface image. All slots
// start uninitialized.
func (s *slotSet) rebuild(surface gpu.Surface, accum gpu.Image, scene gpu.Buffer) error {
	s.release()
	n := surface.ImageCount()
	for i := 0; i < n; i++ {
		buf, err := s.dev.CreateBuffer(gpu.BufferDesc{
			Label:  fmt.Sprintf("params[%d]", i),
			Size:   ParamsSize,
			Usage:  gpu.BufferUniform,
			Memory: gpu.MemoryHostVisible,
		})
		if err != nil {
			return fmt.Errorf("create params buffer %d: %w", i, err)
		}
		s.slots = append(s.slots, &slot{target: surface.Image(uint32(i)), params: buf})
	}
	return s.rebind(accum, scene)
}

// rebind recreates the descriptor sets, keeping parameter buffers and
// initialized flags.
func (s *slotSet) rebind(accum gpu.Image, scene gpu.Buffer) error {
	for i, sl := range s.slots {
		if sl.bindings != nil {
			sl.bindings.Release()
			sl.bindings = nil
		}
		b, err := s.dev.CreateBindings(s.kernel, []gpu.Binding{
			{Slot: BindingAccum, Kind: gpu.BindingStorageImage, Image: accum},
			{Slot: BindingTarget, Kind: gpu.BindingStorageImage, Image: sl.target},
			{Slot: BindingScene, Kind: gpu.BindingStorageBuffer, Buffer: scene},
			{Slot: BindingParams, Kind: gpu.BindingUniformBuffer, Buffer: sl.params},
		})
		if err != nil {
			return fmt.Errorf("create bindings %d: %w", i, err)
		}
		sl.bindings = b
	}
	return nil
}

func (s *slotSet) at(index uint32) (*slot, error) {
	if int(index) >= len(s.slots) {
		return nil, fmt.Errorf("engine: image index %d out of range (%d slots)", index, len(s.slots))
	}
	return s.slots[index], nil
}

func (s *slotSet) release() {
	for _, sl := range s.slots {
		if sl.bindings != nil {
			sl.bindings.Release()
		}
		if sl.params != nil {
			sl.params.Release()
		}
	}
	s.slots = nil
}
