package engine

import (
	"context"
	"errors"
	"time"

	"github.com/loov/hrtime"

	"github.com/user/gpupathtracer/internal/engine/gpu"
)

// InputPhase is the first step of every iteration: poll the window, apply
// user input through the controller's hooks, and report whether to stop.
type InputPhase interface {
	Update(c *Controller, dt time.Duration) (quit bool)
}

// InputFunc adapts a function to InputPhase.
type InputFunc func(c *Controller, dt time.Duration) bool

func (f InputFunc) Update(c *Controller, dt time.Duration) bool { return f(c, dt) }

// Run drives frames until ctx is done, in reports quit, the surface closes,
// or a device failure occurs. Only the last is returned as an error. It waits
// for the device to go idle before returning.
func (c *Controller) Run(ctx context.Context, in InputPhase) error {
	last := hrtime.Now()
	for {
		if err := ctx.Err(); err != nil {
			break
		}
		now := hrtime.Now()
		dt := now - last
		last = now

		if in != nil && in.Update(c, dt) {
			break
		}
		if _, err := c.Frame(); err != nil {
			if !errors.Is(err, gpu.ErrSurfaceClosed) {
				return err
			}
			break
		}
	}
	if err := c.dev.WaitIdle(); err != nil {
		return c.fatal("wait idle", err)
	}
	return nil
}
