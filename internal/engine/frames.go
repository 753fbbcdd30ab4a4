package engine

import (
	"fmt"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// frameSync is the synchronization set of one frame in flight.
type frameSync struct {
	fence          gpu.Fence
	imageAvailable gpu.Semaphore
	renderFinished gpu.Semaphore
	commands       gpu.CommandBuffer
}

// frameRing hands out frame-in-flight sets round robin.
type frameRing struct {
	frames []*frameSync
	index  int
}

func newFrameRing(dev gpu.Device, n int) (*frameRing, error) {
	r := &frameRing{}
	for i := 0; i < n; i++ {
		f, err := newFrameSync(dev)
		if err != nil {
			r.release()
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		r.frames = append(r.frames, f)
	}
	return r, nil
}

func newFrameSync(dev gpu.Device) (*frameSync, error) {
	f := &frameSync{}
	var err error
	// Signaled so the first wait on each slot returns at once.
	if f.fence, err = dev.CreateFence(true); err != nil {
		return nil, fmt.Errorf("create fence: %w", err)
	}
	if f.imageAvailable, err = dev.CreateSemaphore(); err != nil {
		f.release()
		return nil, fmt.Errorf("create semaphore: %w", err)
	}
	if f.renderFinished, err = dev.CreateSemaphore(); err != nil {
		f.release()
		return nil, fmt.Errorf("create semaphore: %w", err)
	}
	if f.commands, err = dev.CreateCommandBuffer(); err != nil {
		f.release()
		return nil, fmt.Errorf("create command buffer: %w", err)
	}
	return f, nil
}

func (f *frameSync) release() {
	if f.fence != nil {
		f.fence.Release()
	}
	if f.imageAvailable != nil {
		f.imageAvailable.Release()
	}
	if f.renderFinished != nil {
		f.renderFinished.Release()
	}
}

func (r *frameRing) current() *frameSync { return r.frames[r.index] }

func (r *frameRing) advance() { r.index = (r.index + 1) % len(r.frames) }

func (r *frameRing) release() {
	for _, f := range r.frames {
		f.release()
	}
	r.frames = nil
}
