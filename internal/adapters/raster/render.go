// Package raster draws overlay frames to PNG.
package raster

import (
	"fmt"
	"io"
	"strings"

	"github.com/gogpu/gg"

	"github.com/samirrijal/mylocation/internal/core/domain"
)

const (
	accuracyFill   = "#4285f4"
	accuracyAlpha  = 0.15
	accuracyStroke = 0.4
	markerRadius   = 7.5
)

var background = gg.RGB(0.93, 0.93, 0.91)

// Renderer implements ports.FrameRenderer.
type Renderer struct{}

func (Renderer) Render(f domain.Frame, w io.Writer) error {
	return Render(f, w)
}

// Render paints f at its viewport size and writes it to w as PNG.
func Render(f domain.Frame, w io.Writer) error {
	dc := gg.NewContext(f.Viewport.Width, f.Viewport.Height)
	defer dc.Close()

	dc.ClearWithColor(background)

	for _, el := range f.Elements {
		if !drawable(el) {
			continue
		}
		if err := drawAccuracy(dc, *el.Rect); err != nil {
			return fmt.Errorf("draw accuracy: %w", err)
		}
	}

	for _, m := range f.Markers {
		if !m.Visible || m.Pixel == nil {
			continue
		}
		if err := drawMarker(dc, *m.Pixel, m.Icon); err != nil {
			return fmt.Errorf("draw marker: %w", err)
		}
	}

	if err := dc.FlushGPU(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// drawable reports whether el is mounted, positioned and not hidden.
func drawable(el domain.ElementState) bool {
	if !el.Mounted || el.Rect == nil {
		return false
	}
	for _, c := range el.Classes {
		if strings.HasSuffix(c, "--hidden") {
			return false
		}
	}
	return el.Rect.Width > 0 && el.Rect.Height > 0
}

func drawAccuracy(dc *gg.Context, r domain.PixelRect) error {
	c := gg.Hex(accuracyFill)
	cx, cy := r.Left+r.Width/2, r.Top+r.Height/2

	dc.SetRGBA(c.R, c.G, c.B, accuracyAlpha)
	dc.DrawEllipse(cx, cy, r.Width/2, r.Height/2)
	if err := dc.Fill(); err != nil {
		return err
	}

	dc.SetRGBA(c.R, c.G, c.B, accuracyStroke)
	dc.SetLineWidth(1)
	dc.DrawEllipse(cx, cy, r.Width/2, r.Height/2)
	return dc.Stroke()
}

func drawMarker(dc *gg.Context, p domain.Pixel, icon domain.MarkerIcon) error {
	scale := icon.Scale
	if scale <= 0 {
		scale = 1
	}
	radius := markerRadius * scale

	opacity := 1.0
	if icon.FillOpacity != nil {
		opacity = max(0, min(1, *icon.FillOpacity))
	}
	if opacity > 0 {
		fill := gg.Hex(icon.FillColor)
		dc.SetRGBA(fill.R, fill.G, fill.B, opacity)
		dc.DrawCircle(p.X, p.Y, radius)
		if err := dc.Fill(); err != nil {
			return err
		}
	}

	if icon.StrokeWeight <= 0 || icon.StrokeColor == "" {
		return nil
	}
	dc.SetHexColor(icon.StrokeColor)
	dc.SetLineWidth(icon.StrokeWeight)
	dc.DrawCircle(p.X, p.Y, radius)
	return dc.Stroke()
}
