// Package autoredact adds blur regions for recognized text that matches a
// caller-supplied matcher. OCR providers plug in behind a small engine
// contract; matched word boxes funnel through the same store append API as
// hand-drawn gestures.
package autoredact

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"regexp"
	"strings"

	"github.com/wudi/redline/annotation"
	"github.com/wudi/redline/observability"
)

// ImageFormat identifies the content type of an OCR input image.
type ImageFormat string

const (
	ImageFormatPNG  ImageFormat = "image/png"
	ImageFormatJPEG ImageFormat = "image/jpeg"
)

// Region describes a rectangular area in pixel coordinates with the origin
// in the upper-left corner of the image.
type Region struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// IsEmpty reports whether the region has non-positive dimensions.
func (r Region) IsEmpty() bool { return r.Width <= 0 || r.Height <= 0 }

// Input encapsulates a single page raster submitted for recognition.
type Input struct {
	// ID is an optional caller-provided identifier echoed back in the Result.
	ID string
	// Image is the encoded image payload in the format specified by Format.
	Image []byte
	// Format declares the image content type (e.g., image/png).
	Format ImageFormat
	// PageIndex links the input back to the zero-based page it came from.
	PageIndex int
	// DPI carries the effective dots-per-inch; zero means unknown.
	DPI int
	// Languages is a list of language hints (e.g., "eng", "deu") that
	// providers can use to select trained data.
	Languages []string
	// Region restricts recognition to a subsection of the image. Nil means
	// the full image is processed.
	Region *Region
}

// Word represents a single recognized token with its bounding box.
type Word struct {
	Text       string
	Bounds     Region
	Confidence float64
}

// Result captures recognition output for a single input image.
type Result struct {
	// InputID mirrors the Input.ID that produced this result.
	InputID string
	// PlainText contains the linearized recognized text.
	PlainText string
	// Words carries the individual tokens with positional metadata.
	Words []Word
}

// Engine is the OCR provider contract: one image in, one result out.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, input Input) (Result, error)
}

// Matcher decides which recognized words get redacted.
type Matcher interface {
	Match(word string) bool
}

// MatcherFunc adapts a function to the Matcher interface.
type MatcherFunc func(word string) bool

// Match implements Matcher.
func (f MatcherFunc) Match(word string) bool { return f(word) }

// Terms matches any of the given terms, case-insensitively, ignoring
// surrounding punctuation.
func Terms(terms ...string) Matcher {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[strings.ToLower(t)] = struct{}{}
	}
	return MatcherFunc(func(word string) bool {
		trimmed := strings.ToLower(strings.Trim(word, ".,;:!?()[]{}\"'"))
		_, ok := set[trimmed]
		return ok
	})
}

// Pattern matches words against a compiled regular expression.
func Pattern(re *regexp.Regexp) Matcher {
	return MatcherFunc(re.MatchString)
}

// Redactor runs recognition over page rasters and records one blur region
// per matching word.
type Redactor struct {
	store   *annotation.Store
	engine  Engine
	padding float64
	log     observability.Logger
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithPadding expands every matched word box by pad pixels on each side.
func WithPadding(pad float64) Option {
	return func(r *Redactor) { r.padding = pad }
}

// WithLogger sets the redactor logger.
func WithLogger(l observability.Logger) Option {
	return func(r *Redactor) { r.log = l }
}

// DefaultPadding keeps a small margin around matched words so glyph
// antialiasing does not peek out of the cover.
const DefaultPadding = 2.0

// NewRedactor creates a redactor appending to store through engine.
func NewRedactor(store *annotation.Store, engine Engine, opts ...Option) *Redactor {
	r := &Redactor{
		store:   store,
		engine:  engine,
		padding: DefaultPadding,
		log:     observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run recognizes the page raster and appends one padded blur region per
// word the matcher accepts. It returns the number of regions added. The
// page must be live in the store.
func (r *Redactor) Run(ctx context.Context, page int, raster image.Image, m Matcher) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !r.store.HasPage(page) {
		return 0, fmt.Errorf("autoredact page %d: %w", page, annotation.ErrNoPage)
	}

	in, err := inputFromRaster(page, raster)
	if err != nil {
		return 0, err
	}
	res, err := r.engine.Recognize(ctx, in)
	if err != nil {
		return 0, fmt.Errorf("autoredact page %d: recognize: %w", page, err)
	}

	added := 0
	for _, w := range res.Words {
		if w.Bounds.IsEmpty() || !m.Match(w.Text) {
			continue
		}
		region := annotation.BlurRegion{
			X0: w.Bounds.X - r.padding,
			Y0: w.Bounds.Y - r.padding,
			X1: w.Bounds.X + w.Bounds.Width + r.padding,
			Y1: w.Bounds.Y + w.Bounds.Height + r.padding,
		}
		if _, err := r.store.Append(page, region); err != nil {
			return added, fmt.Errorf("autoredact page %d: %w", page, err)
		}
		added++
	}
	r.log.Info("autoredact pass complete",
		observability.Int("page", page),
		observability.Int("words", len(res.Words)),
		observability.Int("redacted", added))
	return added, nil
}

func inputFromRaster(page int, raster image.Image) (Input, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, raster); err != nil {
		return Input{}, fmt.Errorf("encode page %d raster: %w", page, err)
	}
	return Input{
		ID:        fmt.Sprintf("page-%d", page),
		Image:     buf.Bytes(),
		Format:    ImageFormatPNG,
		PageIndex: page,
	}, nil
}
