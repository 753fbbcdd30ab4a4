package engine

import (
	"fmt"

	"github.com/user/gpupathtracer/internal/engine/gpu"
	"github.com/user/gpupathtracer/internal/scene"
)

// sceneStore holds the uploaded sphere list. It is read-only while frames
// are in flight; upload replaces the whole buffer.
type sceneStore struct {
	dev     gpu.Device
	buffer  gpu.Buffer
	spheres []scene.Sphere
}

// upload validates spheres and copies them into a new device buffer. The
// previous buffer is released only after the new one is filled.
func (s *sceneStore) upload(spheres []scene.Sphere) error {
	if err := scene.Validate(spheres); err != nil {
		return err
	}
	data := scene.Pack(spheres)
	buf, err := s.dev.CreateBuffer(gpu.BufferDesc{
		Label:  "spheres",
		Size:   len(data),
		Usage:  gpu.BufferStorage,
		Memory: gpu.MemoryDeviceLocal,
	})
	if err != nil {
		return fmt.Errorf("create scene buffer: %w", err)
	}
	if err := buf.Write(0, data); err != nil {
		buf.Release()
		return fmt.Errorf("upload scene: %w", err)
	}
	s.release()
	s.buffer = buf
	s.spheres = append([]scene.Sphere(nil), spheres...)
	return nil
}

func (s *sceneStore) count() int { return len(s.spheres) }

func (s *sceneStore) release() {
	if s.buffer != nil {
		s.buffer.Release()
		s.buffer = nil
	}
}
