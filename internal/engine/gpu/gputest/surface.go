package gputest

import (
	"errors"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// Surface is a fake swapchain of host images. Acquire hands out images
// round-robin. Statuses queued in AcquireStatus and PresentStatus are
// returned in order, one per call; when a queue is empty the call succeeds.
type Surface struct {
	AcquireStatus []gpu.Status
	PresentStatus []gpu.Status
	AcquireErr    error
	PresentErr    error
	// RecreateErr, when set, is returned by the next Recreate.
	RecreateErr error

	// Presented lists the image index of every successful present.
	Presented   []uint32
	Recreations int

	dev     *Device
	extent  gpu.Extent
	count   int
	images  []*Image
	next    uint32
	pending *gpu.Extent
}

// NewSurface creates count images of extent on dev.
func NewSurface(dev *Device, extent gpu.Extent, count int) *Surface {
	s := &Surface{dev: dev, extent: extent, count: count}
	s.build()
	return s
}

func (s *Surface) build() {
	for _, img := range s.images {
		img.Release()
	}
	s.images = s.images[:0]
	for i := 0; i < s.count; i++ {
		s.images = append(s.images, s.dev.newImage(gpu.ImageDesc{
			Label:  "surface",
			Extent: s.extent,
			Format: gpu.FormatRGBA8,
			Usage:  gpu.UsageStorage | gpu.UsageColorAttachment,
		}))
	}
	s.next = 0
}

// Resize simulates the window changing size.
func (s *Surface) Resize(e gpu.Extent) { s.pending = &e }

func (s *Surface) ResizePending() bool { return s.pending != nil }

func (s *Surface) Recreate() error {
	if err := s.RecreateErr; err != nil {
		s.RecreateErr = nil
		return err
	}
	if s.pending != nil {
		if s.pending.Empty() {
			return errors.New("gputest: recreate with empty extent would block")
		}
		s.extent = *s.pending
		s.pending = nil
	}
	s.build()
	s.Recreations++
	return nil
}

func (s *Surface) Extent() gpu.Extent { return s.extent }
func (s *Surface) ImageCount() int    { return len(s.images) }

func (s *Surface) Image(index uint32) gpu.Image { return s.images[index] }

// Images returns the current image chain.
func (s *Surface) Images() []*Image { return s.images }

func pop(q *[]gpu.Status) gpu.Status {
	if len(*q) == 0 {
		return gpu.StatusSuccess
	}
	st := (*q)[0]
	*q = (*q)[1:]
	return st
}

func (s *Surface) AcquireNext(sem gpu.Semaphore) (uint32, gpu.Status, error) {
	if s.AcquireErr != nil {
		return 0, gpu.StatusSuccess, s.AcquireErr
	}
	st := pop(&s.AcquireStatus)
	if st == gpu.StatusOutOfDate {
		return 0, st, nil
	}
	sm := sem.(*Semaphore)
	if sm.Signaled {
		return 0, st, invalid("acquire signals a semaphore that is already signaled")
	}
	sm.Signaled = true
	idx := s.next
	s.next = (s.next + 1) % uint32(len(s.images))
	return idx, st, nil
}

func (s *Surface) Present(index uint32, wait gpu.Semaphore) (gpu.Status, error) {
	if s.PresentErr != nil {
		return gpu.StatusSuccess, s.PresentErr
	}
	if int(index) >= len(s.images) {
		return gpu.StatusSuccess, invalid("present of image %d out of %d", index, len(s.images))
	}
	sm := wait.(*Semaphore)
	if !sm.Signaled {
		return gpu.StatusSuccess, invalid("present waits on a semaphore nobody signaled")
	}
	sm.Signaled = false
	if l := s.images[index].Layout; l != gpu.LayoutPresentSrc {
		return gpu.StatusSuccess, invalid("present of image %d in %s", index, l)
	}
	s.Presented = append(s.Presented, index)
	return pop(&s.PresentStatus), nil
}
