// Package scripting exposes the overlay engine to an embedded JavaScript
// runtime for annotation automation: batch redactions, labelling, and
// inspection of the per-page annotation counts.
package scripting

import (
	"context"
)

// Engine represents a scripting engine (e.g., JavaScript).
type Engine interface {
	// Execute executes a script against the registered overlay DOM.
	Execute(ctx context.Context, script string) (interface{}, error)

	// RegisterDOM registers the overlay Document Object Model with the
	// engine.
	RegisterDOM(dom OverlayDOM) error
}

// OverlayDOM exposes the annotated document structure to the scripting
// engine. It provides a safe, controlled API for scripts to interact with
// the overlay store.
type OverlayDOM interface {
	// PageCount returns the number of live annotation pages.
	PageCount() int

	// GetPage returns a page by index (0-based).
	GetPage(index int) (PageProxy, error)

	// Alert shows an alert dialog (if supported by the embedder).
	Alert(message string)
}

// PageProxy represents an annotatable page exposed to scripts.
type PageProxy interface {
	GetIndex() int

	// AddRedaction records a blur region spanning the two corners.
	AddRedaction(x0, y0, x1, y1 float64) error

	// AddLabel records a text label anchored at (x, y).
	AddLabel(x, y float64, text string) error

	// AnnotationCount returns the page's current annotation count.
	AnnotationCount() int
}
