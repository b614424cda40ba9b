// Package export writes a static snapshot of the site: every route is
// rendered against a fresh document from freshly fetched content, then
// serialized to <out>/<route>/index.html with the default route at the
// root. A manifest.json describes the snapshot; a sitemap.xml is added
// when a public base URL is known.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/content"
	"github.com/coderDevDev/dxp-dubai/internal/dom"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
	"github.com/coderDevDev/dxp-dubai/internal/renderer"
	"github.com/coderDevDev/dxp-dubai/internal/version"
)

// Snapshot renders always complete their staged transitions; the windows
// only exist for live viewers, so they collapse to the minimum here.
func exportTiming() config.TimingConfig {
	return config.TimingConfig{
		Debounce:       time.Millisecond,
		StagedSwap:     time.Millisecond,
		PostRender:     time.Millisecond,
		IntentSettle:   time.Millisecond,
		ConfirmTimeout: time.Second,
	}
}

// Options configures one snapshot run.
type Options struct {
	OutputDir string
	// BaseURL is the public origin the snapshot will be served from.
	// When set, a sitemap.xml is generated against it.
	BaseURL  string
	Progress Progress
}

// Page describes one written route page for the snapshot manifest.
type Page struct {
	Route       string    `json:"route"`
	Path        string    `json:"path"`
	Title       string    `json:"title"`
	Size        int64     `json:"size"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Manifest is the snapshot index written next to the pages.
type Manifest struct {
	Site        string    `json:"site"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
	Pages       []Page    `json:"pages"`
}

// Exporter renders routes to disk. It owns a private cache so one run
// fetches each resource exactly once regardless of route count.
type Exporter struct {
	cfg     *config.Config
	logger  logging.Logger
	reg     *registry.SiteRegistry
	cache   *content.SessionCache
	fetcher *content.Fetcher
}

// Option configures optional exporter collaborators.
type Option func(*options)

type options struct {
	logger      logging.Logger
	site        *registry.Site
	fetcherOpts []content.FetcherOption
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSite bypasses manifest loading.
func WithSite(site *registry.Site) Option {
	return func(o *options) { o.site = site }
}

// WithFetcherOptions forwards options to the content fetcher.
func WithFetcherOptions(opts ...content.FetcherOption) Option {
	return func(o *options) { o.fetcherOpts = append(o.fetcherOpts, opts...) }
}

// New builds an exporter from the configuration, resolving the site
// manifest the same way a live session does.
func New(cfg *config.Config, opts ...Option) (*Exporter, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		lc := logging.DefaultConfig()
		if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
			lc.Level = level
		}
		logger = logging.NewLogger(lc)
	}
	logger = logger.WithComponent("export")

	site := o.site
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

	cache := content.NewSessionCache()
	fetcher := content.NewFetcher(cfg.Sources, reg, cache, logger, o.fetcherOpts...)

	return &Exporter{
		cfg:     cfg,
		logger:  logger,
		reg:     reg,
		cache:   cache,
		fetcher: fetcher,
	}, nil
}

// Export fetches all content, renders every route, and writes the
// snapshot. It fails rather than write pages with missing sections.
func (x *Exporter) Export(ctx context.Context, opts Options) ([]Page, error) {
	if opts.OutputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	progress := opts.Progress
	if progress == nil {
		progress = nopProgress{}
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := x.prefetchAll(ctx); err != nil {
		return nil, err
	}

	routes := x.reg.Routes()
	progress.Start(len(routes))
	defer progress.Finish()

	pages := make([]Page, 0, len(routes))
	for _, route := range routes {
		page, err := x.exportRoute(ctx, route, opts.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("failed to export route %q: %w", route.Name, err)
		}
		pages = append(pages, page)
		progress.Step(route.Name)
	}

	if err := x.writeManifest(opts.OutputDir, pages); err != nil {
		return nil, err
	}

	if opts.BaseURL != "" {
		if err := x.writeSitemap(opts.OutputDir, opts.BaseURL, pages); err != nil {
			return nil, err
		}
	}

	x.logger.Info(ctx, "snapshot written", "dir", opts.OutputDir, "pages", len(pages))
	return pages, nil
}

// prefetchAll loads every resource into the run's cache and refuses to
// continue when any of them is unavailable from both sources.
func (x *Exporter) prefetchAll(ctx context.Context) error {
	_, collector := x.fetcher.Prefetch(ctx)
	for _, fetchErr := range collector.GetErrors() {
		x.logger.Warn(ctx, &fetchErr, "source failed during prefetch", "resource", fetchErr.Resource)
	}

	var missing []string
	for _, res := range x.reg.Resources() {
		if _, ok := x.cache.Get(res.Name); !ok {
			missing = append(missing, res.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("content unavailable for: %s", strings.Join(missing, ", "))
	}
	return nil
}

// exportRoute renders one route against a fresh document and writes it.
func (x *Exporter) exportRoute(ctx context.Context, route registry.Route, outputDir string) (Page, error) {
	doc, err := dom.ParseDocumentString(x.pageShell(route))
	if err != nil {
		return Page{}, err
	}

	rend := renderer.New(doc, x.reg, exportTiming(), nil, x.logger)

	if layout := x.layoutPayload(); layout != nil {
		if err := rend.ApplyLayout(ctx, layout); err != nil {
			return Page{}, err
		}
	}

	payloads := make(map[string]*content.Payload)
	for _, name := range x.reg.ResourcesForRoute(route.Name) {
		if payload, ok := x.cache.Get(name); ok {
			payloads[name] = payload
		}
	}

	results, err := rend.Render(ctx, route.Name, payloads)
	if err != nil {
		return Page{}, err
	}
	for _, result := range results {
		select {
		case <-result.Done:
		case <-time.After(5 * time.Second):
			return Page{}, fmt.Errorf("render of mount %q never settled", result.Mount)
		}
		if result.Outcome != renderer.OutcomeApplied && result.Outcome != renderer.OutcomeStaged {
			return Page{}, fmt.Errorf("mount %q not rendered: %s", result.Mount, result.Outcome)
		}
	}

	pageHTML, err := doc.HTML()
	if err != nil {
		return Page{}, err
	}

	relPath := filepath.Join(route.Name, "index.html")
	if route.Name == x.cfg.Site.DefaultRoute {
		relPath = "index.html"
	}
	pagePath := filepath.Join(outputDir, relPath)

	if err := os.MkdirAll(filepath.Dir(pagePath), 0755); err != nil {
		return Page{}, err
	}
	if err := os.WriteFile(pagePath, []byte(pageHTML), 0644); err != nil {
		return Page{}, err
	}

	return Page{
		Route:       route.Name,
		Path:        filepath.ToSlash(relPath),
		Title:       route.Title(),
		Size:        int64(len(pageHTML)),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// pageShell builds the scaffold the external router would have injected
// for the route, wrapped in a minimal document.
func (x *Exporter) pageShell(route registry.Route) string {
	site := x.reg.Site()
	title := html.EscapeString(site.Name + " — " + route.Title())
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html lang="en"><head><meta charset="utf-8"/><title>`)
	b.WriteString(title)
	b.WriteString("</title></head>\n")
	b.WriteString(fmt.Sprintf(`<body data-page=%q>`, route.Name))
	b.WriteString(fmt.Sprintf(`<main id=%q>`, site.Container))
	b.WriteString(route.Skeleton)
	b.WriteString("</main></body></html>")
	return b.String()
}

func (x *Exporter) layoutPayload() *content.Payload {
	for _, res := range x.reg.Resources() {
		if res.Kind != registry.KindLayout {
			continue
		}
		if payload, ok := x.cache.Get(res.Name); ok {
			return payload
		}
	}
	return nil
}

func (x *Exporter) writeManifest(outputDir string, pages []Page) error {
	manifest := Manifest{
		Site:        x.reg.Site().Name,
		Version:     version.Short(),
		GeneratedAt: time.Now().UTC(),
		Pages:       pages,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outputDir, "manifest.json"), data, 0644)
}

func (x *Exporter) writeSitemap(outputDir, baseURL string, pages []Page) error {
	base := strings.TrimSuffix(baseURL, "/")

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">` + "\n")
	for _, page := range pages {
		loc := base + "/"
		if dir := strings.TrimSuffix(page.Path, "index.html"); dir != "" {
			loc = base + "/" + strings.Trim(dir, "/") + "/"
		}
		b.WriteString("  <url>\n")
		b.WriteString(fmt.Sprintf("    <loc>%s</loc>\n", loc))
		b.WriteString(fmt.Sprintf("    <lastmod>%s</lastmod>\n", page.GeneratedAt.Format("2006-01-02")))
		b.WriteString("  </url>\n")
	}
	b.WriteString("</urlset>\n")

	return os.WriteFile(filepath.Join(outputDir, "sitemap.xml"), []byte(b.String()), 0644)
}
