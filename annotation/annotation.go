// Package annotation defines the annotation records the overlay engine
// draws and exports, and the per-page store that holds them.
package annotation

import (
	"github.com/google/uuid"

	"github.com/wudi/redline/coords"
)

// Kind identifies an annotation payload type.
type Kind int

const (
	// KindBlurRegion is a semi-opaque rectangle covering sensitive content.
	// No true blur of underlying pixels takes place; the overlay substitutes.
	KindBlurRegion Kind = iota
	// KindEraseStroke is a wide white polyline painting content out.
	KindEraseStroke
	// KindTextLabel is a short text anchored at a point.
	KindTextLabel
)

func (k Kind) String() string {
	switch k {
	case KindBlurRegion:
		return "blur-region"
	case KindEraseStroke:
		return "erase-stroke"
	case KindTextLabel:
		return "text-label"
	default:
		return "unknown"
	}
}

// Payload is the kind-specific data of an annotation. All coordinates are
// surface-local pixels captured at creation time; they are never
// renormalized on later resize or export.
type Payload interface {
	Kind() Kind
}

// BlurRegion spans the two drag corners in any order. Rendering normalizes
// the corners; the record keeps them as captured.
type BlurRegion struct {
	X0, Y0, X1, Y1 float64
}

func (BlurRegion) Kind() Kind { return KindBlurRegion }

// Rect returns the corner-normalized rectangle.
func (b BlurRegion) Rect() coords.Rect {
	return coords.RectFromCorners(coords.Point{X: b.X0, Y: b.Y0}, coords.Point{X: b.X1, Y: b.Y1})
}

// EraseStroke is an ordered point sequence painted as one polyline.
type EraseStroke struct {
	Points []coords.Point
}

func (EraseStroke) Kind() Kind { return KindEraseStroke }

// TextLabel anchors Text at (X, Y).
type TextLabel struct {
	X, Y float64
	Text string
}

func (TextLabel) Kind() Kind { return KindTextLabel }

// Annotation is one recorded edit on one page.
type Annotation struct {
	ID      string
	Page    int
	Payload Payload
}

// Kind returns the payload kind.
func (a Annotation) Kind() Kind { return a.Payload.Kind() }

// newID returns a fresh annotation identifier.
func newID() string { return uuid.NewString() }
