package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/observability"
)

// Descriptor is the JSON shape an out-of-process renderer writes for each
// mounted page, one "<id>.json" file per page under the root directory.
type Descriptor struct {
	Label string  `json:"label"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
}

// DirHost observes a directory where an external renderer materializes page
// descriptors. File create/remove/write events drive the structural change
// notifier. The root is considered present once the directory exists.
//
// Without WithDirHostDispatch, subscriber callbacks run on the watcher
// goroutine. Embedders that also feed pointer events must pass a dispatch
// that marshals the callbacks onto the same goroutine as those events.
type DirHost struct {
	dir      string
	log      observability.Logger
	dispatch func(fn func())

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	subscribers map[int]func()
	nextSub     int
	textSelect  bool
	closed      bool
}

// DirHostOption configures a DirHost.
type DirHostOption func(*DirHost)

// WithDirHostLogger sets the logger used for descriptor warnings.
func WithDirHostLogger(l observability.Logger) DirHostOption {
	return func(h *DirHost) { h.log = l }
}

// WithDirHostDispatch routes structural change notifications through
// dispatch instead of invoking subscribers on the watcher goroutine. The
// dispatch must eventually run fn on the goroutine that also delivers
// pointer events to the overlay manager.
func WithDirHostDispatch(dispatch func(fn func())) DirHostOption {
	return func(h *DirHost) { h.dispatch = dispatch }
}

// NewDirHost watches dir for page descriptor files.
func NewDirHost(dir string, opts ...DirHostOption) *DirHost {
	h := &DirHost{
		dir:         dir,
		log:         observability.NopLogger{},
		subscribers: make(map[int]func()),
		textSelect:  true,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.dispatch == nil {
		h.dispatch = func(fn func()) { fn() }
	}
	return h
}

// Root implements Host. The root exists once the directory does.
func (h *DirHost) Root() (Root, bool) {
	info, err := os.Stat(h.dir)
	if err != nil || !info.IsDir() {
		return nil, false
	}
	return h, true
}

// Containers implements Root by reading every descriptor file under the
// directory. Unreadable or malformed descriptors are skipped with a warning.
func (h *DirHost) Containers() []Container {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		h.log.Warn("read renderer directory", observability.Error("err", err))
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]Container, 0, len(names))
	for _, name := range names {
		path := filepath.Join(h.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			h.log.Warn("read page descriptor", observability.String("file", name), observability.Error("err", err))
			continue
		}
		var d Descriptor
		if err := json.Unmarshal(data, &d); err != nil {
			h.log.Warn("decode page descriptor", observability.String("file", name), observability.Error("err", err))
			continue
		}
		out = append(out, &dirContainer{
			id:     strings.TrimSuffix(name, ".json"),
			label:  d.Label,
			bounds: coords.Rect{X: d.X, Y: d.Y, W: d.W, H: d.H},
		})
	}
	return out
}

// Subscribe implements Root. The first subscription starts the watcher.
func (h *DirHost) Subscribe(fn func()) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("render: host closed")
	}
	if h.watcher == nil {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("create watcher: %w", err)
		}
		if err := w.Add(h.dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch %s: %w", h.dir, err)
		}
		h.watcher = w
		go h.watchLoop(w)
	}
	id := h.nextSub
	h.nextSub++
	h.subscribers[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subscribers, id)
		h.mu.Unlock()
	}, nil
}

// SetTextSelectionEnabled implements Root. DirHost has no real selection
// layer; the state is recorded so embedders can mirror it.
func (h *DirHost) SetTextSelectionEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.textSelect = enabled
}

// TextSelectionEnabled reports the recorded text-selection layer state.
func (h *DirHost) TextSelectionEnabled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.textSelect
}

// Close stops the watcher and drops all subscriptions.
func (h *DirHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.subscribers = make(map[int]func())
	if h.watcher != nil {
		err := h.watcher.Close()
		h.watcher = nil
		return err
	}
	return nil
}

func (h *DirHost) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			h.dispatch(h.notify)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			h.log.Warn("renderer watcher", observability.Error("err", err))
		}
	}
}

func (h *DirHost) notify() {
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

type dirContainer struct {
	id     string
	label  string
	bounds coords.Rect
}

func (c *dirContainer) ID() string               { return c.id }
func (c *dirContainer) Label() string            { return c.label }
func (c *dirContainer) Bounds() coords.Rect      { return c.bounds }
func (c *dirContainer) HasAnnotationLayer() bool { return false }
