package annotation

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/observability"
)

// ErrNoPage is returned when an operation targets a page index that has not
// been created in the store. Pages are created and destroyed explicitly by
// the overlay manager as surfaces come and go, never implicitly on first
// write.
var ErrNoPage = errors.New("annotation: page not in store")

// ErrNoAnnotation is returned when extending an annotation that does not
// exist (or is not an erase stroke).
var ErrNoAnnotation = errors.New("annotation: annotation not found")

// Store holds the per-page ordered annotation sequences. Insertion order is
// replay order. The store is the authoritative source for redraw and export;
// it is mutated only through the gesture effects (and the automation
// supplements that reuse the same append API) and read by the compositor
// and the flattener.
type Store struct {
	pages map[int][]Annotation
	log   observability.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the store logger.
func WithStoreLogger(l observability.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// NewStore returns an empty store with no pages.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		pages: make(map[int][]Annotation),
		log:   observability.NopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreatePage registers a page in the arena. Creating an existing page is a
// no-op; existing annotations are kept.
func (s *Store) CreatePage(page int) {
	if _, ok := s.pages[page]; ok {
		return
	}
	s.pages[page] = nil
}

// DropPage removes a page and discards its annotation sequence.
func (s *Store) DropPage(page int) {
	if n := len(s.pages[page]); n > 0 {
		s.log.Debug("dropping page annotations",
			observability.Int("page", page),
			observability.Int("count", n))
	}
	delete(s.pages, page)
}

// HasPage reports whether the page exists in the arena.
func (s *Store) HasPage(page int) bool {
	_, ok := s.pages[page]
	return ok
}

// Append records a new annotation at the end of the page's sequence and
// returns it. The page must have been created.
func (s *Store) Append(page int, p Payload) (Annotation, error) {
	if _, ok := s.pages[page]; !ok {
		return Annotation{}, fmt.Errorf("append %s to page %d: %w", p.Kind(), page, ErrNoPage)
	}
	a := Annotation{ID: newID(), Page: page, Payload: p}
	s.pages[page] = append(s.pages[page], a)
	return a, nil
}

// ExtendStroke appends a point to an existing erase stroke.
func (s *Store) ExtendStroke(page int, id string, pt coords.Point) error {
	seq, ok := s.pages[page]
	if !ok {
		return fmt.Errorf("extend stroke on page %d: %w", page, ErrNoPage)
	}
	for i := range seq {
		if seq[i].ID != id {
			continue
		}
		stroke, ok := seq[i].Payload.(EraseStroke)
		if !ok {
			return fmt.Errorf("extend %s: %w", id, ErrNoAnnotation)
		}
		stroke.Points = append(stroke.Points, pt)
		seq[i].Payload = stroke
		return nil
	}
	return fmt.Errorf("extend %s: %w", id, ErrNoAnnotation)
}

// Annotations returns the page's sequence in replay order. The returned
// slice is a copy; mutating it does not affect the store.
func (s *Store) Annotations(page int) []Annotation {
	seq := s.pages[page]
	out := make([]Annotation, len(seq))
	copy(out, seq)
	return out
}

// Count returns the number of annotations on the page.
func (s *Store) Count(page int) int { return len(s.pages[page]) }

// Pages returns all created page indices in ascending order.
func (s *Store) Pages() []int {
	out := make([]int, 0, len(s.pages))
	for i := range s.pages {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// AnnotatedPages returns the indices of pages holding at least one
// annotation, in ascending order.
func (s *Store) AnnotatedPages() []int {
	out := make([]int, 0, len(s.pages))
	for i, seq := range s.pages {
		if len(seq) > 0 {
			out = append(out, i)
		}
	}
	sort.Ints(out)
	return out
}
