package compositor

import (
	"bytes"
	"image"
	"testing"

	"github.com/wudi/redline/annotation"
	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/gesture"
	"github.com/wudi/redline/surface"
)

func newPage(t *testing.T) (*annotation.Store, *surface.Surface) {
	t.Helper()
	store := annotation.NewStore()
	store.CreatePage(0)
	s := surface.New(coords.Rect{W: 100, H: 100})
	t.Cleanup(func() { s.Close() })
	return store, s
}

func alphaAt(img image.Image, x, y int) uint32 {
	_, _, _, a := img.At(x, y).RGBA()
	return a
}

func TestRedrawBlurRegion(t *testing.T) {
	store, s := newPage(t)
	comp := New(store)

	store.Append(0, annotation.BlurRegion{X0: 60, Y0: 70, X1: 20, Y1: 30})
	comp.Redraw(s, 0)

	img := s.Image()
	if alphaAt(img, 40, 50) == 0 {
		t.Error("inside the normalized region must be covered")
	}
	if alphaAt(img, 10, 10) != 0 {
		t.Error("outside the region must stay transparent")
	}
	if alphaAt(img, 80, 80) != 0 {
		t.Error("area beyond the region must stay transparent")
	}
}

func TestRedrawEraseStroke(t *testing.T) {
	store, s := newPage(t)
	comp := New(store)

	store.Append(0, annotation.EraseStroke{Points: []coords.Point{{X: 10, Y: 50}, {X: 90, Y: 50}}})
	comp.Redraw(s, 0)

	img := s.Image()
	r, g, b, a := img.At(50, 50).RGBA()
	if a == 0 {
		t.Fatal("stroke midpoint must be painted")
	}
	if r < 0xf000 || g < 0xf000 || b < 0xf000 {
		t.Errorf("stroke must be white, got rgb(%#x, %#x, %#x)", r, g, b)
	}
	// 10px wide stroke: 10px above the line is clear.
	if alphaAt(img, 50, 38) != 0 {
		t.Error("pixels well off the stroke must stay transparent")
	}
}

func TestRedrawIsFullReplace(t *testing.T) {
	store, s := newPage(t)
	comp := New(store)

	a, _ := store.Append(0, annotation.BlurRegion{X0: 0, Y0: 0, X1: 40, Y1: 40})
	comp.Redraw(s, 0)

	// Dropping the page and re-creating it empties the sequence; the next
	// redraw must clear the old pixels.
	store.DropPage(0)
	store.CreatePage(0)
	_ = a
	comp.Redraw(s, 0)

	if alphaAt(s.Image(), 20, 20) != 0 {
		t.Error("redraw after removal must clear previous content")
	}
}

func TestRedrawIdempotent(t *testing.T) {
	store, s := newPage(t)
	comp := New(store)

	store.Append(0, annotation.BlurRegion{X0: 5, Y0: 5, X1: 60, Y1: 40})
	store.Append(0, annotation.EraseStroke{Points: []coords.Point{{X: 10, Y: 80}, {X: 70, Y: 80}, {X: 70, Y: 20}}})
	store.Append(0, annotation.TextLabel{X: 12, Y: 95, Text: "review"})

	encode := func() []byte {
		t.Helper()
		var buf bytes.Buffer
		if err := s.EncodePNG(&buf); err != nil {
			t.Fatalf("EncodePNG failed: %v", err)
		}
		return buf.Bytes()
	}

	comp.Redraw(s, 0)
	first := encode()
	comp.Redraw(s, 0)
	second := encode()

	if !bytes.Equal(first, second) {
		t.Error("two redraws without store mutation must produce identical pixels")
	}
}

func TestPreviewClearedByRedraw(t *testing.T) {
	store, s := newPage(t)
	comp := New(store)

	comp.Redraw(s, 0)
	comp.Preview(s, gesture.ToolBlur, coords.Point{X: 10, Y: 10}, coords.Point{X: 60, Y: 60})
	if alphaAt(s.Image(), 30, 30) == 0 {
		t.Fatal("preview must be visible")
	}

	comp.Redraw(s, 0)
	if alphaAt(s.Image(), 30, 30) != 0 {
		t.Error("redraw must erase the preview")
	}
}

func TestPreviewEraseSegment(t *testing.T) {
	store, s := newPage(t)
	comp := New(store)

	comp.Preview(s, gesture.ToolErase, coords.Point{X: 20, Y: 20}, coords.Point{X: 80, Y: 20})
	if alphaAt(s.Image(), 50, 20) == 0 {
		t.Error("erase preview segment must be painted")
	}
}

func TestLabelRendering(t *testing.T) {
	store, s := newPage(t)
	comp := New(store)

	store.Append(0, annotation.TextLabel{X: 10, Y: 60, Text: "REDACTED"})
	comp.Redraw(s, 0)

	// Some pixel of the rendered text must be set; scan a generous window.
	img := s.Image()
	found := false
	for y := 40; y < 70 && !found; y++ {
		for x := 10; x < 95 && !found; x++ {
			if alphaAt(img, x, y) != 0 {
				found = true
			}
		}
	}
	if !found {
		t.Error("expected rendered label pixels")
	}
}
