// Package panel is an optional fyne window with quality sliders and camera
// fields. Changes travel to the render thread through an engine.Mailbox.
package panel

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/user/gpupathtracer/internal/engine"
	"github.com/user/gpupathtracer/internal/scene"
)

// logFilter drops known-harmless GLFW noise that fyne forwards to the
// standard logger.
type logFilter struct {
	next io.Writer
}

func (f *logFilter) Write(p []byte) (int, error) {
	if strings.Contains(string(p), "Invalid scancode") {
		return len(p), nil
	}
	return f.next.Write(p)
}

// Options configures the control panel.
type Options struct {
	// Mailbox receives every change; the render thread applies them.
	Mailbox *engine.Mailbox
	// Stats is polled for the status labels. It must be safe to call from
	// any goroutine; Controller.Snapshot is.
	Stats   func() engine.Stats
	Initial engine.Stats
	Refresh time.Duration
	Logger  *slog.Logger
}

// Panel is a fyne window with quality sliders and camera entry fields. It
// never touches the controller directly.
type Panel struct {
	app  fyne.App
	win  fyne.Window
	opts Options
	log  *slog.Logger

	stop chan struct{}
}

func (p *Panel) post(fn func(*engine.Controller)) { p.opts.Mailbox.Post(fn) }

// New builds the widgets. Call Run on the main goroutine.
func New(opts Options) *Panel {
	if opts.Refresh <= 0 {
		opts.Refresh = 250 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = engine.Logger()
	}
	a := app.New()
	p := &Panel{
		app:  a,
		win:  a.NewWindow("Path Tracer Controls"),
		opts: opts,
		log:  opts.Logger,
		stop: make(chan struct{}),
	}
	p.win.SetContent(p.build())
	p.win.Resize(fyne.NewSize(360, 560))
	return p
}

// slider builds a labelled slider whose changes are posted with apply.
func (p *Panel) slider(name string, lo, hi, step, initial float64, format string, apply func(*engine.Controller, float64)) fyne.CanvasObject {
	label := widget.NewLabel(fmt.Sprintf("%s: "+format, name, initial))
	s := widget.NewSlider(lo, hi)
	s.Step = step
	s.Value = initial
	s.OnChanged = func(v float64) {
		label.SetText(fmt.Sprintf("%s: "+format, name, v))
		p.post(func(c *engine.Controller) { apply(c, v) })
	}
	return container.NewVBox(label, s)
}

func (p *Panel) build() fyne.CanvasObject {
	st := p.opts.Initial
	cam := st.Camera

	fpsLabel := widget.NewLabel("FPS: -")
	samplesLabel := widget.NewLabel("Samples: -")
	go p.refresh(fpsLabel, samplesLabel)

	quality := container.NewVBox(
		widget.NewLabel("Quality"),
		p.slider("Samples per frame", engine.MinSamplesPerPixel, engine.MaxSamplesPerPixel, 1,
			float64(st.Settings.SamplesPerPixel), "%.0f",
			func(c *engine.Controller, v float64) { c.SetSamplesPerPixel(int(v)) }),
		p.slider("Max depth", engine.MinMaxDepth, engine.MaxMaxDepth, 1,
			float64(st.Settings.MaxDepth), "%.0f",
			func(c *engine.Controller, v float64) { c.SetMaxDepth(int(v)) }),
	)

	lens := container.NewVBox(
		widget.NewLabel("Lens"),
		p.slider("Field of view", 10, 90, 1, float64(cam.FOV), "%.0f°",
			func(c *engine.Controller, v float64) { c.SetFOV(float32(v)) }),
		p.slider("Aperture", 0, 0.2, 0.005, float64(cam.Aperture), "%.3f",
			func(c *engine.Controller, v float64) { c.SetAperture(float32(v)) }),
		p.slider("Focus distance", 0.1, 50, 0.1, float64(cam.FocusDistance), "%.1f",
			func(c *engine.Controller, v float64) { c.SetFocusDistance(float32(v)) }),
	)

	// Camera placement by position and look-at point.
	entries := make([]*widget.Entry, 6)
	look := cam.Position.Add(cam.Direction.Mul(cam.FocusDistance))
	for i := range entries {
		entries[i] = widget.NewEntry()
	}
	for i := 0; i < 3; i++ {
		entries[i].SetText(fmt.Sprintf("%.2f", cam.Position[i]))
		entries[3+i].SetText(fmt.Sprintf("%.2f", look[i]))
	}
	applyCamera := widget.NewButton("Apply camera", func() {
		parseF := func(e *widget.Entry, def float32) float32 {
			v, err := strconv.ParseFloat(strings.TrimSpace(e.Text), 32)
			if err != nil {
				return def
			}
			return float32(v)
		}
		var pos, target mgl32.Vec3
		for i := 0; i < 3; i++ {
			pos[i] = parseF(entries[i], cam.Position[i])
			target[i] = parseF(entries[3+i], look[i])
		}
		p.post(func(c *engine.Controller) {
			if err := c.SetCamera(pos, target.Sub(pos)); err != nil {
				p.log.Warn("camera not applied", "err", err)
				return
			}
			c.SetFocusDistance(target.Sub(pos).Len())
		})
	})
	cameraBox := container.NewVBox(
		widget.NewLabel("Camera"),
		container.NewGridWithColumns(2,
			widget.NewLabel("Pos X"), entries[0],
			widget.NewLabel("Pos Y"), entries[1],
			widget.NewLabel("Pos Z"), entries[2],
			widget.NewLabel("Look X"), entries[3],
			widget.NewLabel("Look Y"), entries[4],
			widget.NewLabel("Look Z"), entries[5],
		),
		applyCamera,
	)

	checker := widget.NewCheck("Checkered ground", func(on bool) {
		p.post(func(c *engine.Controller) {
			if err := c.RebuildScene(scene.WithChecker(c.Scene(), on)); err != nil {
				p.log.Error("scene rebuild failed", "err", err)
			}
		})
	})
	checker.Checked = true

	return container.NewVScroll(container.NewVBox(
		fpsLabel,
		samplesLabel,
		widget.NewSeparator(),
		quality,
		lens,
		checker,
		widget.NewSeparator(),
		cameraBox,
	))
}

// refresh updates the status labels until the panel stops.
func (p *Panel) refresh(fps, samples *widget.Label) {
	if p.opts.Stats == nil {
		return
	}
	t := time.NewTicker(p.opts.Refresh)
	defer t.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-t.C:
			s := p.opts.Stats()
			fps.SetText(fmt.Sprintf("FPS: %.1f  (%s)", s.FPS, s.Extent))
			samples.SetText(fmt.Sprintf("Samples: %d per pixel", s.Accumulated))
		}
	}
}

// Run shows the panel and blocks until it is closed or Quit is called.
// It must run on the main goroutine.
func (p *Panel) Run() {
	prev := log.Writer()
	log.SetOutput(&logFilter{next: prev})
	defer log.SetOutput(prev)

	p.log.Info("control panel opened")
	p.win.ShowAndRun()
	close(p.stop)
}

// Quit closes the panel from any goroutine.
func (p *Panel) Quit() { p.app.Quit() }
