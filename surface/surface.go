// Package surface implements the per-page raster drawing surface. Each
// surface is exclusively owned by the overlay manager, sized exactly to its
// page container's pixel box, and torn down when the page disappears.
package surface

import (
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"

	"github.com/wudi/redline/coords"
)

// Surface is one page's raster canvas plus its viewport placement.
type Surface struct {
	canvas      *gg.Context
	bounds      coords.Rect
	interactive bool
}

// New creates a surface covering bounds. Zero-area bounds still allocate a
// 1x1 canvas so drawing calls stay safe.
func New(bounds coords.Rect) *Surface {
	w, h := pixelBox(bounds)
	return &Surface{
		canvas: gg.NewContext(w, h),
		bounds: bounds,
	}
}

// Canvas exposes the drawing context for the compositor.
func (s *Surface) Canvas() *gg.Context { return s.canvas }

// Bounds returns the surface's viewport-space placement.
func (s *Surface) Bounds() coords.Rect { return s.bounds }

// LocalBounds returns the surface-local pixel box with origin (0, 0).
func (s *Surface) LocalBounds() coords.Rect {
	return coords.Rect{W: s.bounds.W, H: s.bounds.H}
}

// Resize repositions and, when the pixel box changed, reallocates the
// canvas to track the container. Raster content is lost on reallocation;
// the caller replays the page's annotations afterwards. Recorded annotation
// coordinates are never rescaled here.
func (s *Surface) Resize(bounds coords.Rect) {
	oldW, oldH := pixelBox(s.bounds)
	s.bounds = bounds
	w, h := pixelBox(bounds)
	if w == oldW && h == oldH {
		return
	}
	// gg keeps prior pixels on grow; a clean replay wants a blank canvas.
	s.canvas = gg.NewContext(w, h)
}

// SetInteractive toggles whether the surface accepts pointer input.
func (s *Surface) SetInteractive(interactive bool) { s.interactive = interactive }

// Interactive reports whether the surface accepts pointer input.
func (s *Surface) Interactive() bool { return s.interactive }

// HitTest reports whether a viewport-space point lands on this surface
// while it accepts input.
func (s *Surface) HitTest(p coords.Point) bool {
	return s.interactive && s.bounds.Contains(p)
}

// ToLocal maps a viewport-space point into surface-local pixels, clamped to
// the surface box.
func (s *Surface) ToLocal(p coords.Point) coords.Point {
	return s.LocalBounds().Clamp(s.bounds.Local(p))
}

// Image returns the current raster. The result is a snapshot owned by the
// caller.
func (s *Surface) Image() image.Image { return s.canvas.Image() }

// EncodePNG writes the current raster as PNG.
func (s *Surface) EncodePNG(w io.Writer) error { return s.canvas.EncodePNG(w) }

// Close releases the canvas. The surface must not be used afterwards.
func (s *Surface) Close() error { return s.canvas.Close() }

func pixelBox(bounds coords.Rect) (int, int) {
	w := int(math.Round(bounds.W))
	h := int(math.Round(bounds.H))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}
