package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/xlab/closer"

	"github.com/user/gpupathtracer/internal/config"
	"github.com/user/gpupathtracer/internal/engine"
	"github.com/user/gpupathtracer/internal/scene"
)

func init() {
	// GLFW and the GL context live on the main thread.
	runtime.LockOSThread()
}

func main() {
	defer closer.Close()
	closer.Checked(run, true)
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	level, _ := cfg.Level()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	engine.SetLogger(log)
	log.Info("pathtracer starting",
		"mode", cfg.Mode.String(), "size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"headless", cfg.Headless, "panel", cfg.Panel)

	spheres := scene.Default()
	if cfg.ScenePath != "" {
		if spheres, err = scene.Load(cfg.ScenePath); err != nil {
			return err
		}
		log.Info("scene loaded", "path", cfg.ScenePath, "spheres", len(spheres))
	}
	cam, err := camera(cfg)
	if err != nil {
		return err
	}

	// A signal cancels the loop; closer exits once resources are released.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	defer close(done)
	closer.Bind(func() {
		cancel()
		<-done
	})

	if cfg.Headless {
		return runHeadless(ctx, cfg, cam, spheres, log)
	}
	return runInteractive(ctx, cfg, cam, spheres, log)
}

// camera builds the default view with the configured lens.
func camera(cfg config.Config) (engine.Camera, error) {
	cam, err := engine.LookAt(mgl32.Vec3{13, 2, 3}, mgl32.Vec3{0, 1, 0}, float32(cfg.FOV), float32(cfg.Aperture))
	if err != nil {
		return cam, err
	}
	if cfg.FocusDistance > 0 {
		cam.FocusDistance = float32(cfg.FocusDistance)
	}
	return cam, nil
}
