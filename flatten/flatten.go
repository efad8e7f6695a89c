// Package flatten merges annotated page rasters back into the original PDF
// document. Each annotated page gets its raster embedded as an RGB image
// XObject with an SMask alpha channel, stretched over the page's MediaBox by
// an appended content stream. Pages without annotations keep their objects
// untouched.
package flatten

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sort"
	"time"

	xdraw "golang.org/x/image/draw"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/pagetree"

	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/observability"
)

// ErrNoDocument is returned when the original document bytes are empty.
var ErrNoDocument = errors.New("flatten: no document bytes")

// ErrPageRange is returned when an annotated page index has no
// corresponding page in the document. The export aborts rather than
// silently dropping the raster.
var ErrPageRange = errors.New("flatten: annotated page outside document")

// Flattener renders annotated rasters into PDF output. The zero
// configuration embeds rasters at full resolution.
type Flattener struct {
	log          observability.Logger
	maxRasterDim int
}

// Option configures a Flattener.
type Option func(*Flattener)

// WithLogger sets the flattener logger.
func WithLogger(l observability.Logger) Option {
	return func(f *Flattener) { f.log = l }
}

// WithMaxRasterDim caps the longer raster edge at dim pixels; larger
// rasters are downsampled before embedding. Zero disables the cap.
func WithMaxRasterDim(dim int) Option {
	return func(f *Flattener) { f.maxRasterDim = dim }
}

// New creates a Flattener.
func New(opts ...Option) *Flattener {
	f := &Flattener{log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Flatten returns the document with the rasters merged in. With no rasters
// the original bytes are returned unchanged. Any failure aborts the whole
// export; no partial output is produced.
func (f *Flattener) Flatten(original []byte, rasters map[int]image.Image) ([]byte, error) {
	if len(rasters) == 0 {
		return original, nil
	}
	if len(original) == 0 {
		return nil, ErrNoDocument
	}
	start := time.Now()

	doc, err := pdf.Read(bytes.NewReader(original), nil)
	if err != nil {
		return nil, fmt.Errorf("flatten: read document: %w", err)
	}
	pages, err := pagetree.FindPages(doc)
	if err != nil {
		return nil, fmt.Errorf("flatten: enumerate pages: %w", err)
	}

	indices := make([]int, 0, len(rasters))
	for i := range rasters {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		if i < 0 || i >= len(pages) {
			return nil, fmt.Errorf("flatten: page %d of %d-page document: %w", i, len(pages), ErrPageRange)
		}
	}

	for _, i := range indices {
		if err := f.flattenPage(doc, pages[i], i, rasters[i]); err != nil {
			return nil, fmt.Errorf("flatten: page %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if err := doc.Write(&buf); err != nil {
		return nil, fmt.Errorf("flatten: write document: %w", err)
	}
	f.log.Info("document flattened",
		observability.Int("pages", len(indices)),
		observability.Int(observability.MetricExportBytes, buf.Len()),
		observability.Float64(observability.MetricExportTime, time.Since(start).Seconds()))
	return buf.Bytes(), nil
}

func (f *Flattener) flattenPage(doc *pdf.Data, pageRef pdf.Reference, index int, raster image.Image) error {
	pageDict, err := pdf.GetDict(doc, pageRef)
	if err != nil {
		return err
	}
	if pageDict == nil {
		return errors.New("page dictionary missing")
	}

	box, err := inheritedMediaBox(doc, pageDict)
	if err != nil {
		return err
	}

	img := f.capRaster(raster, index)
	xRef, err := embedRaster(doc, img)
	if err != nil {
		return err
	}

	name, err := bindResource(doc, pageDict, xRef, index)
	if err != nil {
		return err
	}

	// The overlay stretches over the MediaBox regardless of the raster's
	// pixel box. Scale then translate, in PDF operand order.
	cm := coords.Scale(box.URx-box.LLx, box.URy-box.LLy).
		Multiply(coords.Translate(box.LLx, box.LLy))
	if err := appendOverlayContent(doc, pageDict, name, cm); err != nil {
		return err
	}

	// Put refuses to overwrite a reference that is already present in the
	// document; a nil put removes the stale entry first.
	if err := doc.Put(pageRef, nil); err != nil {
		return err
	}
	return doc.Put(pageRef, pageDict)
}

// capRaster downsamples the raster when its longer edge exceeds the
// configured cap.
func (f *Flattener) capRaster(src image.Image, index int) image.Image {
	if f.maxRasterDim <= 0 {
		return src
	}
	b := src.Bounds()
	long := b.Dx()
	if b.Dy() > long {
		long = b.Dy()
	}
	if long <= f.maxRasterDim {
		return src
	}
	scale := float64(f.maxRasterDim) / float64(long)
	w := int(float64(b.Dx()) * scale)
	h := int(float64(b.Dy()) * scale)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	f.log.Debug("raster downsampled",
		observability.Int("page", index),
		observability.Int("from", long),
		observability.Int("to", f.maxRasterDim))
	return dst
}

// embedRaster writes the raster as a flate-compressed DeviceRGB image
// XObject with a DeviceGray SMask carrying the alpha channel.
func embedRaster(doc *pdf.Data, src image.Image) (pdf.Reference, error) {
	b := src.Bounds()
	img := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(img, img.Bounds(), src, b.Min, draw.Src)
	width := img.Bounds().Dx()
	height := img.Bounds().Dy()

	maskRef := doc.Alloc()
	imgRef := doc.Alloc()

	stream, err := doc.OpenStream(imgRef, pdf.Dict{
		"Type":             pdf.Name("XObject"),
		"Subtype":          pdf.Name("Image"),
		"Width":            pdf.Integer(width),
		"Height":           pdf.Integer(height),
		"ColorSpace":       pdf.Name("DeviceRGB"),
		"BitsPerComponent": pdf.Integer(8),
		"SMask":            maskRef,
	}, pdf.FilterCompress{})
	if err != nil {
		return 0, err
	}
	alpha := make([]byte, 0, width*height)
	row := make([]byte, 0, width*3)
	for y := 0; y < height; y++ {
		row = row[:0]
		for x := 0; x < width; x++ {
			c := img.NRGBAAt(x, y)
			row = append(row, c.R, c.G, c.B)
			alpha = append(alpha, c.A)
		}
		if _, err := stream.Write(row); err != nil {
			return 0, err
		}
	}
	if err := stream.Close(); err != nil {
		return 0, err
	}

	stream, err = doc.OpenStream(maskRef, pdf.Dict{
		"Type":             pdf.Name("XObject"),
		"Subtype":          pdf.Name("Image"),
		"Width":            pdf.Integer(width),
		"Height":           pdf.Integer(height),
		"ColorSpace":       pdf.Name("DeviceGray"),
		"BitsPerComponent": pdf.Integer(8),
	}, pdf.FilterCompress{})
	if err != nil {
		return 0, err
	}
	if _, err := stream.Write(alpha); err != nil {
		return 0, err
	}
	if err := stream.Close(); err != nil {
		return 0, err
	}
	return imgRef, nil
}

// bindResource registers the XObject under a collision-free name in the
// page's Resources. Inherited Resources are materialized onto the page
// before modification so sibling pages stay untouched.
func bindResource(doc *pdf.Data, pageDict pdf.Dict, xRef pdf.Reference, index int) (pdf.Name, error) {
	inherited, err := inheritedResources(doc, pageDict)
	if err != nil {
		return "", err
	}
	res := pdf.Dict{}
	for k, v := range inherited {
		res[k] = v
	}

	xobjects := pdf.Dict{}
	if prior, err := pdf.GetDict(doc, res["XObject"]); err == nil {
		for k, v := range prior {
			xobjects[k] = v
		}
	} else {
		return "", err
	}

	name := pdf.Name(fmt.Sprintf("OvlPg%d", index))
	for n := 0; ; n++ {
		if _, taken := xobjects[name]; !taken {
			break
		}
		name = pdf.Name(fmt.Sprintf("OvlPg%d_%d", index, n))
	}
	xobjects[name] = xRef
	res["XObject"] = xobjects
	pageDict["Resources"] = res
	return name, nil
}

// appendOverlayContent wraps the page's existing content in a q/Q pair and
// appends the raster draw. The wrap keeps CTM changes made by the original
// content from displacing the overlay.
func appendOverlayContent(doc *pdf.Data, pageDict pdf.Dict, name pdf.Name, cm coords.Matrix) error {
	overlay := fmt.Sprintf("q\n%g %g %g %g %g %g cm\n/%s Do\nQ\n",
		cm[0], cm[1], cm[2], cm[3], cm[4], cm[5], name)

	existing, err := contentElements(doc, pageDict["Contents"])
	if err != nil {
		return err
	}
	if len(existing) == 0 {
		ref := doc.Alloc()
		if err := writeContentStream(doc, ref, overlay); err != nil {
			return err
		}
		pageDict["Contents"] = pdf.Array{ref}
		return nil
	}

	saveRef := doc.Alloc()
	if err := writeContentStream(doc, saveRef, "q\n"); err != nil {
		return err
	}
	tailRef := doc.Alloc()
	if err := writeContentStream(doc, tailRef, "Q\n"+overlay); err != nil {
		return err
	}

	out := make(pdf.Array, 0, len(existing)+2)
	out = append(out, saveRef)
	out = append(out, existing...)
	out = append(out, tailRef)
	pageDict["Contents"] = out
	return nil
}

// contentElements returns the page's content streams as array elements. A
// Contents entry may be a stream, an array of stream references, or an
// indirect reference to either; a referenced array must be resolved so its
// elements can be wrapped individually.
func contentElements(doc *pdf.Data, contents pdf.Object) (pdf.Array, error) {
	switch c := contents.(type) {
	case nil:
		return nil, nil
	case pdf.Array:
		return c, nil
	case pdf.Reference:
		resolved, err := pdf.Resolve(doc, c)
		if err != nil {
			return nil, err
		}
		if arr, ok := resolved.(pdf.Array); ok {
			return arr, nil
		}
		// A reference to a single stream stays indirect.
		return pdf.Array{c}, nil
	default:
		return pdf.Array{c}, nil
	}
}

func writeContentStream(doc *pdf.Data, ref pdf.Reference, body string) error {
	stream, err := doc.OpenStream(ref, nil, pdf.FilterCompress{})
	if err != nil {
		return err
	}
	if _, err := stream.Write([]byte(body)); err != nil {
		return err
	}
	return stream.Close()
}

// inheritedMediaBox resolves the page's MediaBox, walking Parent links for
// the inheritable attribute.
func inheritedMediaBox(doc *pdf.Data, pageDict pdf.Dict) (*pdf.Rectangle, error) {
	node := pageDict
	for depth := 0; node != nil && depth < 32; depth++ {
		if mb, ok := node["MediaBox"]; ok && mb != nil {
			return pdf.GetRectangle(doc, mb)
		}
		parent, ok := node["Parent"]
		if !ok {
			break
		}
		var err error
		node, err = pdf.GetDict(doc, parent)
		if err != nil {
			return nil, err
		}
	}
	return nil, errors.New("no MediaBox on page or ancestors")
}

// inheritedResources resolves the page's Resources, walking Parent links.
// A missing dictionary is not an error; the caller starts one.
func inheritedResources(doc *pdf.Data, pageDict pdf.Dict) (pdf.Dict, error) {
	node := pageDict
	for depth := 0; node != nil && depth < 32; depth++ {
		if r, ok := node["Resources"]; ok && r != nil {
			return pdf.GetDict(doc, r)
		}
		parent, ok := node["Parent"]
		if !ok {
			break
		}
		var err error
		node, err = pdf.GetDict(doc, parent)
		if err != nil {
			return nil, err
		}
	}
	return nil, nil
}
