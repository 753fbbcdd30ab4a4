package main

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/user/gpupathtracer/internal/config"
	"github.com/user/gpupathtracer/internal/engine"
	"github.com/user/gpupathtracer/internal/engine/gpu/opengl"
	"github.com/user/gpupathtracer/internal/input"
	"github.com/user/gpupathtracer/internal/platform"
	"github.com/user/gpupathtracer/internal/scene"
	"github.com/user/gpupathtracer/internal/ui"
	"github.com/user/gpupathtracer/internal/ui/panel"
)

func runInteractive(ctx context.Context, cfg config.Config, cam engine.Camera, spheres []scene.Sphere, log *slog.Logger) error {
	if cfg.Panel {
		return runWithPanel(ctx, cfg, cam, spheres, log)
	}
	win, err := platform.New(platform.Options{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Title:     cfg.Title,
		VSync:     cfg.VSync,
		Resizable: true,
	})
	if err != nil {
		return err
	}
	defer win.Close()
	return renderLoop(ctx, win, cfg, cam, spheres, nil, log)
}

// runWithPanel gives the main thread to the control panel and renders on a
// second locked thread. The panel's event loop also pumps the render
// window's events.
func runWithPanel(ctx context.Context, cfg config.Config, cam engine.Camera, spheres []scene.Sphere, log *slog.Logger) error {
	var (
		mb   engine.Mailbox
		live atomic.Pointer[engine.Controller]
	)
	p := panel.New(panel.Options{
		Mailbox: &mb,
		Stats: func() engine.Stats {
			if c := live.Load(); c != nil {
				return c.Snapshot()
			}
			return engine.Stats{}
		},
		Initial: engine.Stats{Settings: cfg.Settings(), Camera: cam},
		Logger:  log,
	})

	win, err := platform.New(platform.Options{
		Width:     cfg.Width,
		Height:    cfg.Height,
		Title:     cfg.Title,
		VSync:     cfg.VSync,
		Resizable: true,
		Shared:    true,
	})
	if err != nil {
		return err
	}
	win.DetachContext()

	ctx, cancel := context.WithCancel(ctx)
	errc := make(chan error, 1)
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		defer p.Quit()
		win.MakeContextCurrent()
		errc <- renderLoop(ctx, win, cfg, cam, spheres, &mb, log, live.Store)
	}()

	p.Run()
	cancel()
	err = <-errc
	win.Close()
	return err
}

// renderLoop builds the device, surface and controller on the calling
// thread, which must hold the window's context, and runs until the window
// closes or ctx is done.
func renderLoop(ctx context.Context, win *platform.Window, cfg config.Config, cam engine.Camera, spheres []scene.Sphere, mb *engine.Mailbox, log *slog.Logger, ready ...func(*engine.Controller)) error {
	dev, err := opengl.NewDevice(log)
	if err != nil {
		return err
	}
	defer dev.Release()
	log.Info("gpu ready", "renderer", dev.Renderer())

	kernel, err := dev.PathTracer()
	if err != nil {
		return err
	}
	defer kernel.Release()

	surface, err := opengl.NewWindowSurface(win, cfg.ImageCount, log)
	if err != nil {
		return fmt.Errorf("window surface: %w", err)
	}
	surface.Resized = win.Resized
	surface.Done = ctx.Done()
	defer surface.Release()

	hud, err := ui.NewHUD(ui.HUDOptions{})
	if err != nil {
		return err
	}
	defer hud.Close()

	ctrl, err := engine.New(engine.Options{
		Device:         dev,
		Surface:        surface,
		Kernel:         kernel,
		Scene:          spheres,
		Compositor:     hud,
		FramesInFlight: cfg.FramesInFlight,
		Camera:         cam,
		Settings:       cfg.Settings(),
		Logger:         log,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()
	for _, f := range ready {
		f(ctrl)
	}

	handler := input.NewHandler(win, input.Options{
		Mailbox: mb,
		OnPause: hud.SetPaused,
		Logger:  log,
	})
	if err := ctrl.Run(ctx, handler); err != nil {
		return err
	}
	return handler.Err()
}
