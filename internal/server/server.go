// Package server exposes the content engine over HTTP for development:
// the live document at the root, a small JSON API over the session, and
// the WebSocket notification hub. When fallback watching is enabled it
// also reloads content whenever the static content directory changes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/engine"
	"github.com/coderDevDev/dxp-dubai/internal/hub"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
	"github.com/coderDevDev/dxp-dubai/internal/renderer"
	"github.com/coderDevDev/dxp-dubai/internal/watcher"
)

// Content files settle slower than DOM mutations, so the file debounce
// window is wider than the timing.debounce used for document changes.
const fileDebounce = 300 * time.Millisecond

// Burst of WebSocket connects tolerated before new upgrades get 429.
const (
	connectRate  = 10
	connectBurst = 30
)

// Server hosts one content session behind a development HTTP surface.
type Server struct {
	cfg    *config.Config
	logger logging.Logger

	engine  *engine.Engine
	hub     *hub.Hub
	watcher *watcher.ContentWatcher

	httpServer   *http.Server
	serverMutex  sync.RWMutex
	shutdownOnce sync.Once
}

// Option configures optional server collaborators.
type Option func(*options)

type options struct {
	logger     logging.Logger
	engineOpts []engine.Option
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithEngineOptions forwards options to the engine constructor. Tests
// use this to stub the content source client.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *options) { o.engineOpts = append(o.engineOpts, opts...) }
}

// New wires the hub, the engine, and (when enabled) the fallback
// content watcher. The HTTP listener is created by Start.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = newLogger(cfg)
	}

	h := hub.NewHub(
		hub.AllowList(cfg.Server.AllowedOrigins),
		rate.NewLimiter(rate.Limit(connectRate), connectBurst),
		logger,
	)

	engineOpts := append([]engine.Option{
		engine.WithLogger(logger),
		engine.WithHub(h),
	}, o.engineOpts...)

	eng, err := engine.New(cfg, engineOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	s := &Server{
		cfg:    cfg,
		logger: logger.WithComponent("server"),
		engine: eng,
		hub:    h,
	}

	if cfg.Watch.Enabled {
		cw, err := watcher.New(cfg.Sources.ContentDir, fileDebounce, cfg.Watch.Ignore, logger)
		if err != nil {
			// Missing content dir only disables live reload; fetching
			// still works against the primary source.
			logger.Warn(context.Background(), err, "content watching disabled",
				"dir", cfg.Sources.ContentDir)
		} else {
			s.watcher = cw
		}
	}

	return s, nil
}

func newLogger(cfg *config.Config) logging.Logger {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	lc := logging.DefaultConfig()
	lc.Level = level
	lc.Format = cfg.Log.Format
	return logging.NewLogger(lc)
}

// Start runs the initial content load, starts watching, and serves HTTP
// until Shutdown is called or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	results, err := s.engine.Start(ctx)
	if err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}
	s.logger.Info(ctx, "initial route loaded",
		"route", s.engine.CurrentRoute(),
		"mounts", len(results),
		"rendered", countRendered(results))

	if s.watcher != nil {
		s.watcher.AddHandler(s.handleContentChange)
		s.watcher.Start(ctx)
		s.logger.Info(ctx, "watching content directory", "dir", s.cfg.Sources.ContentDir)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.httpServer
	s.serverMutex.Unlock()

	s.logger.Info(ctx, "server listening", "addr", addr, "session", s.engine.SessionID())

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// routes builds the development mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/ws", s.hub.HandleWebSocket)
	mux.HandleFunc("/api/content/", s.handleContent)
	mux.HandleFunc("/api/cache", s.handleCache)
	mux.HandleFunc("/api/navigate/", s.handleNavigate)
	mux.HandleFunc("/api/routes", s.handleRoutes)
	mux.HandleFunc("/api/session", s.handleSession)
	return mux
}

// Engine exposes the underlying session, mainly for commands that embed
// the server.
func (s *Server) Engine() *engine.Engine {
	return s.engine
}

// handleContentChange reacts to fallback content edits: manifest files
// swap the registry, everything else empties the cache, then the current
// route is rendered again from fresh payloads.
func (s *Server) handleContentChange(changes []watcher.Change) error {
	ctx := context.Background()

	for _, change := range changes {
		s.logger.Debug(ctx, "content changed", "path", change.Path, "op", change.Type.String())
		if s.cfg.Site.Manifest != "" && samePath(change.Path, s.cfg.Site.Manifest) {
			s.reloadManifest(ctx)
		}
	}

	s.engine.ClearCache(ctx)

	route := s.engine.CurrentRoute()
	if _, err := s.engine.LoadAndRender(ctx, route); err != nil {
		return fmt.Errorf("reload of route %q failed: %w", route, err)
	}

	s.logger.Info(ctx, "content reloaded", "route", route, "files", len(changes))
	return nil
}

func (s *Server) reloadManifest(ctx context.Context) {
	site, err := registry.LoadSiteFile(s.cfg.Site.Manifest)
	if err != nil {
		s.logger.Warn(ctx, err, "manifest reload skipped", "path", s.cfg.Site.Manifest)
		return
	}
	if err := s.engine.Registry().Replace(site); err != nil {
		s.logger.Warn(ctx, err, "manifest rejected", "path", s.cfg.Site.Manifest)
		return
	}
	s.logger.Info(ctx, "manifest reloaded", "path", s.cfg.Site.Manifest)
}

// Shutdown stops the watcher, the session, the hub, and finally the
// HTTP listener. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.logger.Info(ctx, "shutting down")

		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				s.logger.Warn(ctx, err, "watcher stop failed")
			}
		}

		s.engine.Stop()

		if err := s.hub.Shutdown(ctx); err != nil {
			s.logger.Warn(ctx, err, "hub shutdown failed")
		}

		s.serverMutex.RLock()
		srv := s.httpServer
		s.serverMutex.RUnlock()

		if srv != nil {
			shutdownErr = srv.Shutdown(ctx)
		}
	})

	return shutdownErr
}

func countRendered(results []renderer.Result) int {
	n := 0
	for _, res := range results {
		if res.Outcome == renderer.OutcomeApplied || res.Outcome == renderer.OutcomeStaged {
			n++
		}
	}
	return n
}

func samePath(a, b string) bool {
	aa, err := filepath.Abs(a)
	if err != nil {
		return false
	}
	bb, err := filepath.Abs(b)
	if err != nil {
		return false
	}
	return aa == bb
}
