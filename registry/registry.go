// Package registry discovers and tracks the per-page containers of an
// external renderer. It polls for the renderer root with bounded retries,
// then recomputes the full index-to-container mapping after each structural
// change batch, emitting only when the set of page indices changes.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wudi/redline/observability"
	"github.com/wudi/redline/render"
)

// Mapping is the current index-to-container assignment. Indices are
// zero-based and stable per document.
type Mapping map[int]render.Container

// Indices returns the mapped page indices in ascending order.
func (m Mapping) Indices() []int {
	out := make([]int, 0, len(m))
	for i := range m {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// ErrRendererNotFound is returned by Attach when root polling is exhausted.
// The registry is then permanently degraded for this document load; the
// session itself stays usable.
var ErrRendererNotFound = errors.New("registry: renderer root not found")

const (
	defaultPollAttempts = 50
	defaultPollInterval = 200 * time.Millisecond
)

// Registry watches a render.Host and emits mappings to a single listener.
type Registry struct {
	host     render.Host
	onUpdate func(Mapping)
	log      observability.Logger

	attempts int
	interval time.Duration

	root        render.Root
	unsubscribe func()
	current     Mapping
	degraded    bool
	closed      bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l observability.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithPollInterval overrides the root-polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Registry) { r.interval = d }
}

// WithPollAttempts overrides the root-polling attempt cap.
func WithPollAttempts(n int) Option {
	return func(r *Registry) { r.attempts = n }
}

// New creates a registry. onUpdate receives the full mapping whenever the
// set of page indices changes, starting with the initial mapping on attach.
func New(host render.Host, onUpdate func(Mapping), opts ...Option) *Registry {
	r := &Registry{
		host:     host,
		onUpdate: onUpdate,
		log:      observability.NopLogger{},
		attempts: defaultPollAttempts,
		interval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach polls for the renderer root, then subscribes to structural changes
// and emits the initial mapping. It blocks until the root is found, the
// attempt cap is exhausted (ErrRendererNotFound), or ctx is done.
func (r *Registry) Attach(ctx context.Context) error {
	root, err := r.pollRoot(ctx)
	if err != nil {
		if errors.Is(err, ErrRendererNotFound) {
			r.degraded = true
			r.log.Error("renderer root not found, continuing degraded",
				observability.Int("attempts", r.attempts))
		}
		return err
	}
	r.root = root

	unsubscribe, err := root.Subscribe(r.recompute)
	if err != nil {
		return fmt.Errorf("subscribe structural changes: %w", err)
	}
	r.unsubscribe = unsubscribe

	r.recompute()
	return nil
}

// Degraded reports whether root polling gave up for this document load.
func (r *Registry) Degraded() bool { return r.degraded }

// Mapping returns the latest computed mapping.
func (r *Registry) Mapping() Mapping { return r.current }

// Close unsubscribes from structural changes. The registry emits nothing
// afterwards.
func (r *Registry) Close() {
	r.closed = true
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *Registry) pollRoot(ctx context.Context) (render.Root, error) {
	for attempt := 0; attempt < r.attempts; attempt++ {
		if root, ok := r.host.Root(); ok {
			return root, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.interval):
		}
	}
	return nil, ErrRendererNotFound
}

// recompute rebuilds the whole mapping from the current container set. It
// runs synchronously inside the structural change callback, so all
// downstream mutation happens before the next event is processed.
func (r *Registry) recompute() {
	if r.closed || r.root == nil {
		return
	}
	next := make(Mapping)
	for _, c := range r.root.Containers() {
		index, ok := parseLabel(c.Label())
		if !ok {
			r.log.Warn("page label unparsable, page skipped",
				observability.String("id", c.ID()),
				observability.String("label", c.Label()))
			continue
		}
		next[index] = c
	}

	changed := !sameIndexSet(r.current, next)
	r.current = next
	if changed && r.onUpdate != nil {
		r.onUpdate(next)
	}
}

// parseLabel extracts the zero-based page index from a "Page N" label.
func parseLabel(label string) (int, bool) {
	rest, ok := strings.CutPrefix(label, "Page ")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

func sameIndexSet(a, b Mapping) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if _, ok := b[i]; !ok {
			return false
		}
	}
	return true
}
