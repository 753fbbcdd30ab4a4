package engine

import (
	"log/slog"
	"time"

	"github.com/loov/hrtime"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// Stats is a read-only view of the controller for the UI.
type Stats struct {
	FPS         float64
	SampleFrame uint32
	// Accumulated is the number of samples per pixel in the accumulation
	// image after the last frame.
	Accumulated uint64
	Extent      gpu.Extent
	Settings    Settings
	Camera      Camera
	Spheres     int
}

// frameCounter measures frames per second over one-second windows.
type frameCounter struct {
	now    func() time.Duration
	log    *slog.Logger
	start  time.Duration
	frames int
	fps    float64
}

func newFrameCounter(now func() time.Duration, log *slog.Logger) *frameCounter {
	if now == nil {
		now = hrtime.Now
	}
	return &frameCounter{now: now, log: log, start: now()}
}

// tick records one displayed frame.
func (f *frameCounter) tick() {
	f.frames++
	elapsed := f.now() - f.start
	if elapsed < time.Second {
		return
	}
	f.fps = float64(f.frames) / elapsed.Seconds()
	f.log.Info("frame rate", "fps", int(f.fps+0.5), "frames", f.frames)
	f.frames = 0
	f.start = f.now()
}
