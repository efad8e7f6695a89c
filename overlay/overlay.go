// Package overlay owns the per-page drawing surfaces. The manager tracks
// the registry's index-to-container mapping, keeps exactly one surface per
// live page pixel-aligned with its container, routes pointer input by the
// active tool, and applies the gesture machine's effects to the annotation
// store and the compositor.
package overlay

import (
	"image"
	"sort"

	"github.com/wudi/redline/annotation"
	"github.com/wudi/redline/compositor"
	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/gesture"
	"github.com/wudi/redline/observability"
	"github.com/wudi/redline/registry"
	"github.com/wudi/redline/render"
	"github.com/wudi/redline/surface"
)

// TextRequestFunc is called when an addText release needs label text. The
// embedder later answers with SubmitText or CancelText; nothing blocks in
// between.
type TextRequestFunc func(page int, at coords.Point)

// Manager is the overlay canvas manager. All methods are intended for the
// single event-driven goroutine that also runs registry callbacks.
type Manager struct {
	store *annotation.Store
	comp  *compositor.Compositor
	log   observability.Logger

	root      render.Root
	surfaces  map[int]*surface.Surface
	tool      gesture.Tool
	state     gesture.State
	strokeID  string
	onText    TextRequestFunc
	exporting bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(l observability.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithTextRequest registers the label-text callback.
func WithTextRequest(fn TextRequestFunc) Option {
	return func(m *Manager) { m.onText = fn }
}

// New creates a manager mutating store and drawing through comp.
func New(store *annotation.Store, comp *compositor.Compositor, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		comp:     comp,
		log:      observability.NopLogger{},
		surfaces: make(map[int]*surface.Surface),
		state:    gesture.Idle(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BindRoot attaches the renderer root used for text-selection toggling.
func (m *Manager) BindRoot(root render.Root) {
	m.root = root
	m.syncRouting()
}

// ApplyMapping reconciles surfaces against the latest registry mapping:
// new indices gain a surface (and a store page), live ones are re-aligned
// to their container box, vanished ones are destroyed together with their
// annotation sequences.
func (m *Manager) ApplyMapping(mapping registry.Mapping) {
	for index, c := range mapping {
		bounds := c.Bounds()
		if s, ok := m.surfaces[index]; ok {
			s.Resize(bounds)
		} else {
			s := surface.New(bounds)
			s.SetInteractive(m.tool.Drawing())
			m.surfaces[index] = s
			m.store.CreatePage(index)
			m.log.Debug("surface created",
				observability.Int("page", index),
				observability.String("container", c.ID()))
		}
		m.comp.Redraw(m.surfaces[index], index)
	}
	for index, s := range m.surfaces {
		if _, ok := mapping[index]; ok {
			continue
		}
		if m.state.Phase != gesture.PhaseIdle && m.state.Page == index {
			m.state = gesture.Idle()
			m.strokeID = ""
		}
		s.Close()
		delete(m.surfaces, index)
		m.store.DropPage(index)
		m.log.Debug("surface destroyed", observability.Int("page", index))
	}
}

// SetTool switches the active tool synchronously. Surface interactivity and
// the renderer's text-selection layer toggle as mutually exclusive states;
// an in-flight gesture is aborted.
func (m *Manager) SetTool(t gesture.Tool) {
	if m.tool == t {
		return
	}
	m.tool = t
	m.applyEffects(m.handle(gesture.ToolChange{Tool: t}))
	m.syncRouting()
}

// Tool returns the active tool.
func (m *Manager) Tool() gesture.Tool { return m.tool }

// Press routes a viewport-space pointer press. Presses outside every
// interactive surface are ignored.
func (m *Manager) Press(p coords.Point) {
	if m.exporting {
		m.log.Warn("gesture rejected, export in flight")
		return
	}
	page, s, ok := m.hit(p)
	if !ok {
		return
	}
	m.applyEffects(m.handle(gesture.Press{Page: page, Point: s.ToLocal(p)}))
}

// Move routes a viewport-space pointer move during a drag.
func (m *Manager) Move(p coords.Point) {
	if m.state.Phase != gesture.PhaseDragging {
		return
	}
	s, ok := m.surfaces[m.state.Page]
	if !ok {
		m.log.Warn("drag on vanished surface", observability.Int("page", m.state.Page))
		m.state = gesture.Idle()
		return
	}
	m.applyEffects(m.handle(gesture.Move{Point: s.ToLocal(p)}))
}

// Release routes a viewport-space pointer release.
func (m *Manager) Release(p coords.Point) {
	if m.state.Phase != gesture.PhaseDragging {
		return
	}
	s, ok := m.surfaces[m.state.Page]
	if !ok {
		m.state = gesture.Idle()
		return
	}
	m.applyEffects(m.handle(gesture.Release{Point: s.ToLocal(p)}))
}

// Leave reports the pointer leaving the interactive region.
func (m *Manager) Leave() {
	m.applyEffects(m.handle(gesture.Leave{}))
}

// SubmitText completes a pending text label.
func (m *Manager) SubmitText(text string) {
	m.applyEffects(m.handle(gesture.SubmitText{Text: text}))
}

// CancelText abandons a pending text label.
func (m *Manager) CancelText() {
	m.applyEffects(m.handle(gesture.CancelText{}))
}

// Surface returns the live surface for a page, if any.
func (m *Manager) Surface(page int) (*surface.Surface, bool) {
	s, ok := m.surfaces[page]
	return s, ok
}

// Pages returns the live surface indices in ascending order.
func (m *Manager) Pages() []int {
	out := make([]int, 0, len(m.surfaces))
	for i := range m.surfaces {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Rasters snapshots the surfaces of every page holding at least one
// annotation, for the export flattener.
func (m *Manager) Rasters() map[int]image.Image {
	out := make(map[int]image.Image)
	for _, page := range m.store.AnnotatedPages() {
		s, ok := m.surfaces[page]
		if !ok {
			m.log.Warn("annotated page has no live surface", observability.Int("page", page))
			continue
		}
		out[page] = s.Image()
	}
	return out
}

// BeginExport blocks new gestures until EndExport. An in-flight drag is
// aborted so the store stays stable while the flattener reads it.
func (m *Manager) BeginExport() {
	m.exporting = true
	if m.state.Phase != gesture.PhaseIdle {
		m.applyEffects(m.handle(gesture.Leave{}))
	}
}

// EndExport re-enables gestures.
func (m *Manager) EndExport() { m.exporting = false }

// Close destroys all surfaces and their annotation sequences.
func (m *Manager) Close() {
	for index, s := range m.surfaces {
		s.Close()
		delete(m.surfaces, index)
		m.store.DropPage(index)
	}
}

func (m *Manager) handle(ev gesture.Event) []gesture.Effect {
	cfg := gesture.NewConfig(m.tool)
	next, effects := gesture.Handle(m.state, ev, cfg)
	m.state = next
	if next.Phase == gesture.PhaseIdle {
		m.strokeID = ""
	}
	return effects
}

func (m *Manager) applyEffects(effects []gesture.Effect) {
	for _, e := range effects {
		switch e := e.(type) {
		case gesture.Redraw:
			s, ok := m.surfaces[e.Page]
			if !ok {
				m.log.Warn("redraw without surface", observability.Int("page", e.Page))
				continue
			}
			m.comp.Redraw(s, e.Page)
		case gesture.Preview:
			s, ok := m.surfaces[e.Page]
			if !ok {
				continue
			}
			m.comp.Preview(s, e.Tool, e.Start, e.Current)
		case gesture.BeginStroke:
			a, err := m.store.Append(e.Page, annotation.EraseStroke{
				Points: []coords.Point{e.Start, e.Point},
			})
			if err != nil {
				m.log.Warn("begin stroke", observability.Error("err", err))
				continue
			}
			m.strokeID = a.ID
		case gesture.ExtendStroke:
			if m.strokeID == "" {
				continue
			}
			if err := m.store.ExtendStroke(e.Page, m.strokeID, e.Point); err != nil {
				m.log.Warn("extend stroke", observability.Error("err", err))
			}
		case gesture.CommitBlur:
			_, err := m.store.Append(e.Page, annotation.BlurRegion{
				X0: e.Start.X, Y0: e.Start.Y, X1: e.End.X, Y1: e.End.Y,
			})
			if err != nil {
				m.log.Warn("commit blur", observability.Error("err", err))
			}
		case gesture.CommitLabel:
			_, err := m.store.Append(e.Page, annotation.TextLabel{
				X: e.At.X, Y: e.At.Y, Text: e.Text,
			})
			if err != nil {
				m.log.Warn("commit label", observability.Error("err", err))
			}
		case gesture.RequestText:
			if m.onText != nil {
				m.onText(e.Page, e.At)
			}
		}
	}
}

func (m *Manager) hit(p coords.Point) (int, *surface.Surface, bool) {
	// Later pages stack above earlier ones; test topmost first.
	pages := m.Pages()
	for i := len(pages) - 1; i >= 0; i-- {
		s := m.surfaces[pages[i]]
		if s.HitTest(p) {
			return pages[i], s, true
		}
	}
	return 0, nil, false
}

// syncRouting keeps surface interactivity and the text-selection layer
// mutually exclusive.
func (m *Manager) syncRouting() {
	drawing := m.tool.Drawing()
	for _, s := range m.surfaces {
		s.SetInteractive(drawing)
	}
	if m.root != nil {
		m.root.SetTextSelectionEnabled(!drawing)
	}
}
