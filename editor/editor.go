// Package editor wires the overlay engine together for one loaded document:
// renderer host discovery, the page registry, the overlay canvas manager,
// and export flattening. Embedders construct a Session per document load and
// feed it tool changes and pointer events.
package editor

import (
	"context"
	"fmt"
	"time"

	"github.com/wudi/redline/annotation"
	"github.com/wudi/redline/compositor"
	"github.com/wudi/redline/coords"
	"github.com/wudi/redline/flatten"
	"github.com/wudi/redline/gesture"
	"github.com/wudi/redline/observability"
	"github.com/wudi/redline/overlay"
	"github.com/wudi/redline/registry"
	"github.com/wudi/redline/render"
)

// ExportFilename is the delivery name for every export.
const ExportFilename = "edited-document.pdf"

// ExportContentType is the delivery MIME type for every export.
const ExportContentType = "application/pdf"

// ExportResult is the flattened document ready for delivery.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Session is the per-document engine instance.
type Session struct {
	host      render.Host
	store     *annotation.Store
	manager   *overlay.Manager
	registry  *registry.Registry
	flattener *flatten.Flattener
	log       observability.Logger
}

type config struct {
	log          observability.Logger
	onText       overlay.TextRequestFunc
	registryOpts []registry.Option
	flattenOpts  []flatten.Option
}

// Option configures a Session.
type Option func(*config)

// WithLogger sets the logger for the session and every component it builds.
func WithLogger(l observability.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithTextRequest registers the label-text prompt callback.
func WithTextRequest(fn overlay.TextRequestFunc) Option {
	return func(c *config) { c.onText = fn }
}

// WithRegistryOptions forwards options to the page registry.
func WithRegistryOptions(opts ...registry.Option) Option {
	return func(c *config) { c.registryOpts = append(c.registryOpts, opts...) }
}

// WithFlattenOptions forwards options to the export flattener.
func WithFlattenOptions(opts ...flatten.Option) Option {
	return func(c *config) { c.flattenOpts = append(c.flattenOpts, opts...) }
}

// New assembles a session over the given renderer host.
func New(host render.Host, opts ...Option) *Session {
	cfg := config{log: observability.NopLogger{}}
	for _, opt := range opts {
		opt(&cfg)
	}

	store := annotation.NewStore(annotation.WithStoreLogger(cfg.log))
	comp := compositor.New(store, compositor.WithLogger(cfg.log))

	managerOpts := []overlay.Option{overlay.WithLogger(cfg.log)}
	if cfg.onText != nil {
		managerOpts = append(managerOpts, overlay.WithTextRequest(cfg.onText))
	}
	manager := overlay.New(store, comp, managerOpts...)

	registryOpts := append([]registry.Option{registry.WithLogger(cfg.log)}, cfg.registryOpts...)
	reg := registry.New(host, manager.ApplyMapping, registryOpts...)

	flattenOpts := append([]flatten.Option{flatten.WithLogger(cfg.log)}, cfg.flattenOpts...)

	return &Session{
		host:      host,
		store:     store,
		manager:   manager,
		registry:  reg,
		flattener: flatten.New(flattenOpts...),
		log:       cfg.log,
	}
}

// Attach blocks polling for the renderer root, then subscribes to structural
// changes and builds the initial surfaces. On registry.ErrRendererNotFound
// the session stays usable but degraded: no surfaces, no drawing, export of
// an unannotated document still succeeds.
func (s *Session) Attach(ctx context.Context) error {
	start := time.Now()
	if err := s.registry.Attach(ctx); err != nil {
		return err
	}
	if root, ok := s.host.Root(); ok {
		s.manager.BindRoot(root)
	}
	s.log.Info("session attached",
		observability.Int(observability.MetricMappingPages, len(s.registry.Mapping())),
		observability.Float64(observability.MetricRegistryAttachTime, time.Since(start).Seconds()))
	return nil
}

// Degraded reports whether renderer discovery gave up for this document.
func (s *Session) Degraded() bool { return s.registry.Degraded() }

// Refresh re-applies the current mapping, re-aligning surfaces to container
// boxes after a reflow that did not change the page set.
func (s *Session) Refresh() { s.manager.ApplyMapping(s.registry.Mapping()) }

// Store exposes the annotation store for automation supplements.
func (s *Session) Store() *annotation.Store { return s.store }

// Manager exposes the overlay manager.
func (s *Session) Manager() *overlay.Manager { return s.manager }

// SetTool switches the active drawing tool.
func (s *Session) SetTool(t gesture.Tool) { s.manager.SetTool(t) }

// Press forwards a viewport-space pointer press.
func (s *Session) Press(p coords.Point) { s.manager.Press(p) }

// Move forwards a viewport-space pointer move.
func (s *Session) Move(p coords.Point) { s.manager.Move(p) }

// Release forwards a viewport-space pointer release.
func (s *Session) Release(p coords.Point) { s.manager.Release(p) }

// Leave forwards a pointer leave.
func (s *Session) Leave() { s.manager.Leave() }

// SubmitText completes a pending label prompt.
func (s *Session) SubmitText(text string) { s.manager.SubmitText(text) }

// CancelText abandons a pending label prompt.
func (s *Session) CancelText() { s.manager.CancelText() }

// Export flattens the session's annotations into the original document
// bytes. Gestures arriving while the export runs are rejected; the export
// itself is not cancellable once started.
func (s *Session) Export(ctx context.Context, original []byte) (ExportResult, error) {
	if err := ctx.Err(); err != nil {
		return ExportResult{}, fmt.Errorf("export: %w", err)
	}
	s.manager.BeginExport()
	defer s.manager.EndExport()

	data, err := s.flattener.Flatten(original, s.manager.Rasters())
	if err != nil {
		return ExportResult{}, err
	}
	return ExportResult{
		Filename:    ExportFilename,
		ContentType: ExportContentType,
		Data:        data,
	}, nil
}

// Close tears down the registry subscription and all surfaces.
func (s *Session) Close() {
	s.registry.Close()
	s.manager.Close()
}
