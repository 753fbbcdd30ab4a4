// Package ui draws the on-screen HUD and runs the optional control panel.
package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"slices"
	"sync/atomic"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/user/gpupathtracer/internal/engine"
	"github.com/user/gpupathtracer/internal/engine/gpu"
)

const (
	DefaultFontSize = 14
	hudPadding      = 6
)

var hudBackground = color.RGBA{0, 0, 0, 150}

// HUDOptions configures the overlay.
type HUDOptions struct {
	// FontSize in points at 72 DPI. Zero means DefaultFontSize.
	FontSize float64
	// Origin is the top-left corner of the overlay in the target image.
	Origin image.Point
	Lang   language.Tag
}

// HUD is an engine.Compositor that blends a small text panel with frame
// statistics over the rendered image. The panel is rasterized on the host
// and redrawn only when its text changes.
type HUD struct {
	face    font.Face
	printer *message.Printer
	origin  image.Point
	paused  atomic.Bool

	lines []string
	img   *image.RGBA
}

var _ engine.Compositor = (*HUD)(nil)

// NewHUD parses the embedded Go Regular font.
func NewHUD(opts HUDOptions) (*HUD, error) {
	if opts.FontSize == 0 {
		opts.FontSize = DefaultFontSize
	}
	if opts.Lang == (language.Tag{}) {
		opts.Lang = language.English
	}
	if opts.Origin == (image.Point{}) {
		opts.Origin = image.Pt(8, 8)
	}
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse hud font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    opts.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("hud font face: %w", err)
	}
	return &HUD{
		face:    face,
		printer: message.NewPrinter(opts.Lang),
		origin:  opts.Origin,
	}, nil
}

// SetPaused switches the hint line. Safe for concurrent use.
func (h *HUD) SetPaused(p bool) { h.paused.Store(p) }

// Lines formats s as the HUD text.
func (h *HUD) Lines(s engine.Stats) []string {
	p := h.printer
	hint := "ESC: pause"
	if h.paused.Load() {
		hint = "paused, ESC to resume"
	}
	return []string{
		p.Sprintf("%.0f fps  %s", s.FPS, s.Extent),
		p.Sprintf("%d samples/px  frame %d", s.Accumulated, s.SampleFrame),
		p.Sprintf("spp %d  depth %d  spheres %d", s.Settings.SamplesPerPixel, s.Settings.MaxDepth, s.Spheres),
		p.Sprintf("fov %.0f  aperture %.2f  focus %.2f", s.Camera.FOV, s.Camera.Aperture, s.Camera.FocusDistance),
		hint,
	}
}

// Composite records the overlay draw. target is in LayoutColorAttachment.
func (h *HUD) Composite(cmd gpu.CommandBuffer, target gpu.Image, s engine.Stats) error {
	lines := h.Lines(s)
	if h.img == nil || !slices.Equal(lines, h.lines) {
		h.img = h.render(lines)
		h.lines = lines
	}
	cmd.DrawOverlay(target, h.img, h.origin)
	return nil
}

func (h *HUD) render(lines []string) *image.RGBA {
	m := h.face.Metrics()
	lineHeight := m.Height.Ceil()
	width := 0
	for _, l := range lines {
		width = max(width, font.MeasureString(h.face, l).Ceil())
	}
	img := image.NewRGBA(image.Rect(0, 0, width+2*hudPadding, len(lines)*lineHeight+2*hudPadding))
	draw.Draw(img, img.Bounds(), image.NewUniform(hudBackground), image.Point{}, draw.Src)

	d := font.Drawer{Dst: img, Src: image.White, Face: h.face}
	for i, l := range lines {
		d.Dot = fixed.P(hudPadding, hudPadding+i*lineHeight+m.Ascent.Ceil())
		d.DrawString(l)
	}
	return img
}

// Close releases the font face.
func (h *HUD) Close() error { return h.face.Close() }
