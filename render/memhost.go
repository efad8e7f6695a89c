package render

import (
	"sync"

	"github.com/wudi/redline/coords"
)

// MemHost is an in-memory Host and Root for embedders that drive page
// structure programmatically. Structural mutations notify subscribers
// synchronously, matching the engine's single-threaded event model.
type MemHost struct {
	mu          sync.Mutex
	present     bool
	order       []string
	pages       map[string]*memContainer
	subscribers map[int]func()
	nextSub     int
	textSelect  bool
}

// NewMemHost returns a host whose root is already present.
func NewMemHost() *MemHost {
	return &MemHost{
		present:     true,
		pages:       make(map[string]*memContainer),
		subscribers: make(map[int]func()),
		textSelect:  true,
	}
}

// NewDetachedMemHost returns a host whose root does not exist yet. Call
// SetPresent(true) to let the registry's polling find it.
func NewDetachedMemHost() *MemHost {
	h := NewMemHost()
	h.present = false
	return h
}

// SetPresent controls whether Root() finds the renderer root.
func (h *MemHost) SetPresent(present bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.present = present
}

// Root implements Host.
func (h *MemHost) Root() (Root, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.present {
		return nil, false
	}
	return h, true
}

// AddPage mounts a page container and notifies subscribers.
func (h *MemHost) AddPage(id, label string, bounds coords.Rect) {
	h.mu.Lock()
	if _, exists := h.pages[id]; !exists {
		h.order = append(h.order, id)
	}
	h.pages[id] = &memContainer{id: id, label: label, bounds: bounds, annotLayer: true}
	h.mu.Unlock()
	h.notify()
}

// RemovePage unmounts a page container and notifies subscribers.
func (h *MemHost) RemovePage(id string) {
	h.mu.Lock()
	if _, exists := h.pages[id]; exists {
		delete(h.pages, id)
		for i, pid := range h.order {
			if pid == id {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
	h.mu.Unlock()
	h.notify()
}

// SetBounds reflows a page container and notifies subscribers.
func (h *MemHost) SetBounds(id string, bounds coords.Rect) {
	h.mu.Lock()
	if c, ok := h.pages[id]; ok {
		c.bounds = bounds
	}
	h.mu.Unlock()
	h.notify()
}

// Containers implements Root.
func (h *MemHost) Containers() []Container {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Container, 0, len(h.order))
	for _, id := range h.order {
		out = append(out, h.pages[id])
	}
	return out
}

// Subscribe implements Root.
func (h *MemHost) Subscribe(fn func()) (func(), error) {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.subscribers[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}, nil
}

// SetTextSelectionEnabled implements Root.
func (h *MemHost) SetTextSelectionEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.textSelect = enabled
}

// TextSelectionEnabled reports the current text-selection layer state.
func (h *MemHost) TextSelectionEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.textSelect
}

func (h *MemHost) notify() {
	h.mu.Lock()
	fns := make([]func(), 0, len(h.subscribers))
	for _, fn := range h.subscribers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type memContainer struct {
	id         string
	label      string
	bounds     coords.Rect
	annotLayer bool
}

func (c *memContainer) ID() string               { return c.id }
func (c *memContainer) Label() string            { return c.label }
func (c *memContainer) Bounds() coords.Rect      { return c.bounds }
func (c *memContainer) HasAnnotationLayer() bool { return c.annotLayer }
