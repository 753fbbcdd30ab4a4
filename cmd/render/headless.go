package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"time"

	"github.com/user/gpupathtracer/internal/config"
	"github.com/user/gpupathtracer/internal/engine"
	"github.com/user/gpupathtracer/internal/engine/gpu"
	"github.com/user/gpupathtracer/internal/engine/gpu/opengl"
	"github.com/user/gpupathtracer/internal/platform"
	"github.com/user/gpupathtracer/internal/scene"
)

// runHeadless accumulates cfg.Frames frames offscreen and writes the last
// one to cfg.Output. A hidden window provides the GL context.
func runHeadless(ctx context.Context, cfg config.Config, cam engine.Camera, spheres []scene.Sphere, log *slog.Logger) error {
	win, err := platform.New(platform.Options{Width: cfg.Width, Height: cfg.Height, Title: cfg.Title, Hidden: true})
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := opengl.NewDevice(log)
	if err != nil {
		return err
	}
	defer dev.Release()

	kernel, err := dev.PathTracer()
	if err != nil {
		return err
	}
	defer kernel.Release()

	ext := gpu.Extent{Width: uint32(cfg.Width), Height: uint32(cfg.Height)}
	surface, err := opengl.NewOffscreenSurface(ext, cfg.ImageCount)
	if err != nil {
		return fmt.Errorf("offscreen surface: %w", err)
	}
	defer surface.Release()

	ctrl, err := engine.New(engine.Options{
		Device:         dev,
		Surface:        surface,
		Kernel:         kernel,
		Scene:          spheres,
		FramesInFlight: cfg.FramesInFlight,
		Camera:         cam,
		Settings:       cfg.Settings(),
		Logger:         log,
	})
	if err != nil {
		return err
	}
	defer ctrl.Close()

	frames := 0
	err = ctrl.Run(ctx, engine.InputFunc(func(*engine.Controller, time.Duration) bool {
		frames++
		return frames > cfg.Frames
	}))
	if err != nil {
		return err
	}

	img, err := surface.Snapshot()
	if err != nil {
		return err
	}
	if err := savePNG(cfg.Output, img); err != nil {
		return err
	}
	s := ctrl.Snapshot()
	log.Info("headless render saved", "path", cfg.Output, "frames", cfg.Frames, "samples", s.Accumulated)
	return nil
}

// savePNG writes an image to a PNG file.
func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create png: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
