// Package render abstracts the external document renderer that owns the
// page regions the overlay engine draws on. The engine never owns renderer
// state: it looks up the renderer root, reads the per-page containers below
// it, and subscribes to structural change notifications.
//
// Two hosts are provided: MemHost for embedders that drive page structure
// programmatically, and DirHost for out-of-process renderers that
// materialize page descriptors on the filesystem.
package render

import "github.com/wudi/redline/coords"

// Container is an externally-owned handle to one rendered page region.
// Containers are referenced, never owned, by the overlay engine.
type Container interface {
	// ID identifies the container for the lifetime of the page. It stays
	// stable across reflows of the same page.
	ID() string

	// Label is the renderer's human-readable page label, "Page N" (1-based).
	Label() string

	// Bounds is the container's current pixel box in viewport coordinates.
	Bounds() coords.Rect

	// HasAnnotationLayer reports whether the renderer exposes a designated
	// annotation sub-layer for this page. When absent, surfaces are parented
	// directly under the container.
	HasAnnotationLayer() bool
}

// Root is the renderer's root element once it exists.
type Root interface {
	// Containers returns the current set of page containers, in renderer
	// order.
	Containers() []Container

	// Subscribe registers a callback invoked after every batch of structural
	// changes (page mount, unmount, reflow). The returned function cancels
	// the subscription.
	Subscribe(fn func()) (unsubscribe func(), err error)

	// SetTextSelectionEnabled toggles pointer-input acceptance of the
	// renderer's text-selection layer. The overlay manager keeps this state
	// mutually exclusive with surface interactivity.
	SetTextSelectionEnabled(enabled bool)
}

// Host locates the renderer root. The root may not exist yet while the
// renderer is still booting; the registry polls until it appears.
type Host interface {
	Root() (Root, bool)
}
