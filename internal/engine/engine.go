// Package engine ties one session together: a document, a cache, the
// fetcher, the renderer, and the navigator, created at session start and
// torn down together. Collaborators talk to the engine, not to each
// other, and every cross-component signal (content rendered, route
// changed, cache cleared) flows through it so the hub sees all of them.
package engine

import (
	"context"
	_ "embed"
	"strings"
	"time"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/content"
	"github.com/coderDevDev/dxp-dubai/internal/dom"
	dxperrors "github.com/coderDevDev/dxp-dubai/internal/errors"
	"github.com/coderDevDev/dxp-dubai/internal/hub"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/navigator"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
	"github.com/coderDevDev/dxp-dubai/internal/renderer"
)

//go:embed page.html
var defaultPage string

// Options customize engine construction.
type Options struct {
	Logger         logging.Logger
	Document       *dom.Document
	Site           *registry.Site
	Hub            *hub.Hub
	FetcherOptions []content.FetcherOption
}

// Option mutates construction options.
type Option func(*Options)

// WithLogger supplies the logger; the default logs per the config.
func WithLogger(l logging.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithDocument supplies a pre-parsed document instead of the built-in page.
func WithDocument(doc *dom.Document) Option {
	return func(o *Options) { o.Document = doc }
}

// WithSite supplies a manifest directly, bypassing file loading.
func WithSite(site *registry.Site) Option {
	return func(o *Options) { o.Site = site }
}

// WithHub connects a notification hub.
func WithHub(h *hub.Hub) Option {
	return func(o *Options) { o.Hub = h }
}

// WithFetcherOptions forwards options to the content fetcher.
func WithFetcherOptions(opts ...content.FetcherOption) Option {
	return func(o *Options) { o.FetcherOptions = opts }
}

// Status is a session snapshot for operators and the session endpoint.
type Status struct {
	Session    string    `json:"session"`
	Route      string    `json:"route"`
	State      string    `json:"state"`
	Generation uint64    `json:"generation"`
	Cached     []string  `json:"cached"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Engine is one content-synchronization session.
type Engine struct {
	cfg    *config.Config
	logger logging.Logger

	doc       *dom.Document
	registry  *registry.SiteRegistry
	cache     *content.SessionCache
	fetcher   *content.Fetcher
	renderer  *renderer.Renderer
	navigator *navigator.Navigator
	hub       *hub.Hub
}

// New builds a session from configuration. The manifest comes from the
// WithSite option, the configured manifest file, or the compiled-in
// default, in that order.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.Logger
	if logger == nil {
		logger = loggerFromConfig(cfg)
	}

	site := o.Site
	if site == nil {
		if cfg.Site.Manifest != "" {
			loaded, err := registry.LoadSiteFile(cfg.Site.Manifest)
			if err != nil {
				return nil, err
			}
			site = loaded
		} else {
			site = registry.DefaultSite()
		}
	}

	reg, err := registry.NewSiteRegistry(site)
	if err != nil {
		return nil, err
	}

	doc := o.Document
	if doc == nil {
		doc, err = dom.ParseDocumentString(defaultPage)
		if err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger.WithComponent("engine"),
		doc:      doc,
		registry: reg,
		cache:    content.NewSessionCache(),
		hub:      o.Hub,
	}

	e.fetcher = content.NewFetcher(cfg.Sources, reg, e.cache, logger, o.FetcherOptions...)
	e.renderer = renderer.New(doc, reg, cfg.Timing, e, logger)
	e.navigator = navigator.New(doc, reg, cfg.Timing, e.loadConfirmedRoute, e, logger)

	if e.hub != nil {
		e.hub.SetHelloProvider(func() hub.Message {
			return hub.Hello(e.cache.ID(), e.CurrentRoute())
		})
	}

	return e, nil
}

func loggerFromConfig(cfg *config.Config) logging.Logger {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
		lc.Level = level
	}
	if cfg.Log.Format != "" {
		lc.Format = cfg.Log.Format
	}
	return logging.NewLogger(lc)
}

// Start begins watching navigation and runs the initial load for the
// route already on screen. The returned results let callers wait for the
// initial render's deferred stages.
func (e *Engine) Start(ctx context.Context) ([]renderer.Result, error) {
	e.navigator.Start(ctx)

	route := e.navigator.DetectInitialRoute(ctx, e.cfg.Site.DefaultRoute)
	e.doc.SetPageMarker(route)
	e.logger.Info(ctx, "session started", "session", e.cache.ID(), "route", route)

	return e.LoadAndRender(ctx, route)
}

// Stop detaches the navigator. The cache and document stay readable.
func (e *Engine) Stop() {
	e.navigator.Stop()
	e.logger.Info(context.Background(), "session stopped", "session", e.cache.ID())
}

// Fetch resolves one resource through the cache, the primary source, and
// the fallback, in that order.
func (e *Engine) Fetch(ctx context.Context, resource string) (*content.Payload, error) {
	return e.fetcher.Fetch(ctx, resource)
}

// Prefetch warms the cache with every manifest resource.
func (e *Engine) Prefetch(ctx context.Context) ([]*content.Payload, *dxperrors.ErrorCollector) {
	return e.fetcher.Prefetch(ctx)
}

// Render writes the given payloads into a route's mounts without
// touching any source.
func (e *Engine) Render(ctx context.Context, route string, payloads map[string]*content.Payload) ([]renderer.Result, error) {
	return e.renderer.Render(ctx, route, payloads)
}

// LoadAndRender fetches a route's resources and renders its mounts,
// pinned to the current navigation generation.
func (e *Engine) LoadAndRender(ctx context.Context, route string) ([]renderer.Result, error) {
	return e.loadAndRender(ctx, route, e.navigator.Generation())
}

// loadConfirmedRoute is the navigator's loader callback.
func (e *Engine) loadConfirmedRoute(ctx context.Context, route string, generation uint64) {
	if _, err := e.loadAndRender(ctx, route, generation); err != nil {
		e.logger.Error(ctx, err, "confirmed route failed to load", "route", route)
	}
}

// loadAndRender is the fetch-then-render sequence. Fetching always
// finishes before rendering starts, and a load whose generation was
// superseded while fetching is discarded instead of rendered.
func (e *Engine) loadAndRender(ctx context.Context, route string, generation uint64) ([]renderer.Result, error) {
	if _, ok := e.registry.Route(route); !ok {
		return nil, &dxperrors.RouteUnknownError{Target: route}
	}

	started := time.Now()
	resources := e.registry.ResourcesForRoute(route)
	payloads := make(map[string]*content.Payload, len(resources))
	for _, name := range resources {
		payload, err := e.fetcher.Fetch(ctx, name)
		if err != nil {
			e.logger.Error(ctx, err, "resource unavailable", "resource", name, "route", route)
			continue
		}
		payloads[name] = payload
	}

	layout := e.fetchLayout(ctx)

	if current := e.navigator.Generation(); current != generation {
		e.logger.Info(ctx, "discarding superseded load", "route", route,
			"generation", generation, "current", current)
		return e.staleResults(route), nil
	}

	if layout != nil {
		if err := e.renderer.ApplyLayout(ctx, layout); err != nil {
			e.logger.Warn(ctx, err, "layout not applied", "route", route)
		} else if e.hub != nil {
			e.hub.Broadcast(hub.LayoutApplied(layout.Layout.ActivePreset))
		}
	}

	results, err := e.renderer.Render(ctx, route, payloads)
	if err != nil {
		return nil, err
	}

	e.logger.Info(ctx, "route loaded", "route", route,
		"mounts", len(results), "duration", time.Since(started).String())
	return results, nil
}

// fetchLayout resolves the manifest's layout resource, if it has one.
// Layout is route independent, so every load refreshes it.
func (e *Engine) fetchLayout(ctx context.Context) *content.Payload {
	for _, res := range e.registry.Resources() {
		if res.Kind != registry.KindLayout {
			continue
		}
		payload, err := e.fetcher.Fetch(ctx, res.Name)
		if err != nil {
			e.logger.Warn(ctx, err, "layout resource unavailable", "resource", res.Name)
			return nil
		}
		return payload
	}
	return nil
}

func (e *Engine) staleResults(route string) []renderer.Result {
	mounts := e.registry.MountsForRoute(route)
	results := make([]renderer.Result, 0, len(mounts))
	for _, mount := range mounts {
		results = append(results, renderer.Skipped(mount.ID, renderer.OutcomeSkippedStale))
	}
	return results
}

// ClearCache drops every cached payload and reports what was dropped.
// The next fetch for each resource goes back to its sources.
func (e *Engine) ClearCache(ctx context.Context) []string {
	names := e.cache.Names()
	e.cache.Clear()
	e.logger.Info(ctx, "session cache cleared", "resources", strings.Join(names, ","))

	if e.hub != nil && len(names) > 0 {
		e.hub.Broadcast(hub.ContentReloaded(names))
	}
	return names
}

// NavigateIntent records an interaction targeting a route.
func (e *Engine) NavigateIntent(ctx context.Context, route string) (navigator.Intent, error) {
	return e.navigator.NavigateIntent(ctx, route)
}

// SimulateRouterSwap injects a route's skeleton into the container the
// way the external router would, mutating the document so a pending
// intent can confirm. Development and test shim.
func (e *Engine) SimulateRouterSwap(ctx context.Context, route string) error {
	rt, ok := e.registry.Route(route)
	if !ok {
		return &dxperrors.RouteUnknownError{Target: route}
	}

	if err := e.doc.ReplaceContent(e.registry.Container(), rt.Skeleton); err != nil {
		return err
	}
	e.logger.Debug(ctx, "router swap simulated", "route", route)
	return nil
}

// Document exposes the session's live document.
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Registry exposes the active site manifest.
func (e *Engine) Registry() *registry.SiteRegistry {
	return e.registry
}

// SessionID returns the cache's session identity.
func (e *Engine) SessionID() string {
	return e.cache.ID()
}

// CurrentRoute returns the document's page marker.
func (e *Engine) CurrentRoute() string {
	return e.doc.PageMarker()
}

// Status snapshots the session.
func (e *Engine) Status() Status {
	return Status{
		Session:    e.cache.ID(),
		Route:      e.CurrentRoute(),
		State:      e.navigator.State().String(),
		Generation: e.navigator.Generation(),
		Cached:     e.cache.Names(),
		CreatedAt:  e.cache.CreatedAt(),
	}
}

// ContentRendered implements renderer.Notifier; every finished mount is
// announced to connected clients.
func (e *Engine) ContentRendered(ctx context.Context, route, mount string) {
	e.logger.Debug(ctx, "content rendered", "route", route, "mount", mount)
	if e.hub != nil {
		e.hub.Broadcast(hub.ContentRendered(route, mount))
	}
}

// RouteChanged implements navigator.Events.
func (e *Engine) RouteChanged(ctx context.Context, route string) {
	if e.hub != nil {
		e.hub.Broadcast(hub.RouteChanged(route))
	}
}

// RouteTimeout implements navigator.Events.
func (e *Engine) RouteTimeout(ctx context.Context, route string, waited time.Duration) {
	if e.hub != nil {
		e.hub.Broadcast(hub.RouteTimeout(route, waited))
	}
}
