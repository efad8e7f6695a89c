// Package compositor replays stored annotations onto drawing surfaces.
// Every redraw is a full replace-draw: clear, then replay the page's
// sequence in insertion order. There is no incremental diffing, which keeps
// redraw trivially idempotent. The compositor never mutates the store.
package compositor

import (
	"time"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/redline/annotation"
	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/gesture"
	"github.com/wudi/redline/observability"
	"github.com/wudi/redline/surface"
)

// Fixed annotation paint. Blur regions are a semi-opaque dark cover, not a
// true blur of the underlying pixels.
const (
	blurR, blurG, blurB, blurA = 0.102, 0.102, 0.102, 0.78
	eraseWidth                 = 10.0
	labelSize                  = 14.0
	labelR, labelG, labelB     = 0.1, 0.1, 0.1
)

// Compositor draws annotation sequences and gesture previews.
type Compositor struct {
	store *annotation.Store
	face  text.Face
	log   observability.Logger
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithFace overrides the label font face.
func WithFace(face text.Face) Option {
	return func(c *Compositor) { c.face = face }
}

// WithLogger sets the compositor logger.
func WithLogger(l observability.Logger) Option {
	return func(c *Compositor) { c.log = l }
}

// New creates a compositor reading from store. The default label face is Go
// Regular at a fixed size.
func New(store *annotation.Store, opts ...Option) *Compositor {
	c := &Compositor{
		store: store,
		log:   observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.face == nil {
		if source, err := text.NewFontSource(goregular.TTF); err == nil {
			c.face = source.Face(labelSize)
		} else {
			c.log.Warn("default label face unavailable, labels will not render",
				observability.Error("err", err))
		}
	}
	return c
}

// Redraw clears the surface and replays every annotation stored for the
// page, in order.
func (c *Compositor) Redraw(s *surface.Surface, page int) {
	start := time.Now()
	dc := s.Canvas()
	dc.Clear()
	anns := c.store.Annotations(page)
	for _, a := range anns {
		switch p := a.Payload.(type) {
		case annotation.BlurRegion:
			c.fillBlur(dc, p.Rect())
		case annotation.EraseStroke:
			c.strokeErase(dc, p.Points)
		case annotation.TextLabel:
			c.drawLabel(dc, p)
		}
	}
	c.log.Debug("redraw",
		observability.Int("page", page),
		observability.Int(observability.MetricAnnotationCount, len(anns)),
		observability.Float64(observability.MetricRedrawTime, time.Since(start).Seconds()))
}

// Preview renders live gesture feedback on top of the last redraw. The next
// redraw erases it.
func (c *Compositor) Preview(s *surface.Surface, tool gesture.Tool, start, current coords.Point) {
	dc := s.Canvas()
	switch tool {
	case gesture.ToolBlur:
		c.fillBlur(dc, coords.RectFromCorners(start, current))
	case gesture.ToolErase:
		c.strokeErase(dc, []coords.Point{start, current})
	case gesture.ToolAddText:
		c.markInsertionPoint(dc, current)
	}
}

func (c *Compositor) fillBlur(dc *gg.Context, r coords.Rect) {
	if r.IsEmpty() {
		return
	}
	dc.SetRGBA(blurR, blurG, blurB, blurA)
	dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	dc.Fill()
}

func (c *Compositor) strokeErase(dc *gg.Context, points []coords.Point) {
	if len(points) < 2 {
		return
	}
	dc.SetRGBA(1, 1, 1, 1)
	dc.SetLineWidth(eraseWidth)
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)
	dc.MoveTo(points[0].X, points[0].Y)
	for _, p := range points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
}

func (c *Compositor) drawLabel(dc *gg.Context, label annotation.TextLabel) {
	if c.face == nil || label.Text == "" {
		return
	}
	dc.SetFont(c.face)
	dc.SetRGBA(labelR, labelG, labelB, 1)
	dc.DrawString(label.Text, label.X, label.Y)
}

// markInsertionPoint draws a short caret so the user sees where the pending
// label will anchor.
func (c *Compositor) markInsertionPoint(dc *gg.Context, at coords.Point) {
	dc.SetRGBA(labelR, labelG, labelB, 1)
	dc.SetLineWidth(1)
	dc.SetLineCap(gg.LineCapButt)
	dc.DrawLine(at.X, at.Y-labelSize, at.X, at.Y)
	dc.Stroke()
}
