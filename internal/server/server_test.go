package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/content"
	"github.com/coderDevDev/dxp-dubai/internal/engine"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/watcher"
)

const (
	listingBody = `{"projects":[
		{"id":1,"title":"Azure Tower","category":"architecture","year":2024,"mediaUrl":"/media/azure.jpg","linkTarget":"/works/azure-tower"},
		{"id":2,"title":"Desert Bloom Pavilion","category":"exhibition","mediaUrl":"/media/bloom.jpg"}
	]}`
	copyBody = `{"sections":{
		"home-hero":{"heading":"Designing Dubai","body":"Spatial stories for the Gulf."},
		"about":{"heading":"About","body":"We build exhibitions."}
	}}`
	layoutBody = `{"activePreset":"dusk","presets":{"dusk":{"accent":"#d97706"}}}`
)

type stubResponse struct {
	status int
	body   string
}

type stubDoer struct {
	mutex     sync.Mutex
	responses map[string]stubResponse
}

func (d *stubDoer) Do(req *http.Request) (*http.Response, error) {
	d.mutex.Lock()
	resp, ok := d.responses[req.URL.Path]
	d.mutex.Unlock()

	if !ok {
		resp = stubResponse{status: http.StatusNotFound, body: "not found"}
	}
	return &http.Response{
		StatusCode: resp.status,
		Status:     http.StatusText(resp.status),
		Body:       io.NopCloser(strings.NewReader(resp.body)),
		Header:     make(http.Header),
	}, nil
}

func (d *stubDoer) set(path string, resp stubResponse) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.responses[path] = resp
}

func healthySources() map[string]stubResponse {
	return map[string]stubResponse{
		"/api/projects": {status: http.StatusOK, body: listingBody},
		"/api/copy":     {status: http.StatusOK, body: copyBody},
		"/api/layout":   {status: http.StatusOK, body: layoutBody},
	}
}

func writeFallbacks(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "listing.json"), []byte(listingBody), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "copy.json"), []byte(copyBody), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layout.json"), []byte(layoutBody), 0644))
	return dir
}

func testConfig(contentDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:        0,
			Host:        "localhost",
			Environment: "development",
		},
		Sources: config.SourcesConfig{
			BaseURL:    "http://content.local",
			ContentDir: contentDir,
			Timeout:    2 * time.Second,
		},
		Site: config.SiteConfig{DefaultRoute: "home"},
		Timing: config.TimingConfig{
			Debounce:       10 * time.Millisecond,
			StagedSwap:     20 * time.Millisecond,
			PostRender:     10 * time.Millisecond,
			IntentSettle:   20 * time.Millisecond,
			ConfirmTimeout: 1 * time.Second,
		},
		Log: config.LogConfig{Level: "error", Format: "text"},
	}
}

// newTestServer builds a started server: the initial load has completed
// and every first-paint render has settled before it returns.
func newTestServer(t *testing.T, doer *stubDoer) *Server {
	t.Helper()
	return newTestServerWithConfig(t, doer, testConfig(writeFallbacks(t)))
}

func newTestServerWithConfig(t *testing.T, doer *stubDoer, cfg *config.Config) *Server {
	t.Helper()

	s, err := New(cfg,
		WithLogger(logging.NewNopLogger()),
		WithEngineOptions(engine.WithFetcherOptions(content.WithClient(doer))),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = s.Shutdown(context.Background())
	})

	results, err := s.engine.Start(ctx)
	require.NoError(t, err)
	for _, result := range results {
		select {
		case <-result.Done:
		case <-time.After(2 * time.Second):
			t.Fatalf("render of %s never completed", result.Mount)
		}
	}
	return s
}

func TestContentChangeReloadsCurrentRoute(t *testing.T) {
	dir := writeFallbacks(t)
	doer := &stubDoer{responses: healthySources()}
	s := newTestServerWithConfig(t, doer, testConfig(dir))

	require.Contains(t, s.engine.Document().TextContent("home-hero"), "Designing Dubai")

	// Upstream copy changes; the watcher handler must drop the cache so
	// the next render sees it.
	doer.set("/api/copy", stubResponse{
		status: http.StatusOK,
		body:   `{"sections":{"home-hero":{"heading":"Night Mode","body":"After dark."}}}`,
	})

	path := filepath.Join(dir, "copy.json")
	require.NoError(t, s.handleContentChange([]watcher.Change{{Type: watcher.ChangeModified, Path: path}}))

	require.Eventually(t, func() bool {
		return strings.Contains(s.engine.Document().TextContent("home-hero"), "Night Mode")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestContentChangeReloadsManifest(t *testing.T) {
	dir := writeFallbacks(t)
	manifestPath := filepath.Join(dir, "site.yml")
	require.NoError(t, os.WriteFile(manifestPath, []byte(microManifest("#home-hero")), 0644))

	cfg := testConfig(dir)
	cfg.Site.Manifest = manifestPath

	doer := &stubDoer{responses: healthySources()}
	s := newTestServerWithConfig(t, doer, cfg)

	route, ok := s.engine.Registry().Route("home")
	require.True(t, ok)
	require.Equal(t, "#home-hero", route.Signature)

	require.NoError(t, os.WriteFile(manifestPath, []byte(microManifest("#hero-v2")), 0644))
	require.NoError(t, s.handleContentChange([]watcher.Change{{Type: watcher.ChangeModified, Path: manifestPath}}))

	route, ok = s.engine.Registry().Route("home")
	require.True(t, ok)
	require.Equal(t, "#hero-v2", route.Signature)
}

func microManifest(signature string) string {
	return `
name: micro
container: app
resources:
  - name: copy
    kind: copy
    primary_path: /api/copy
    fallback_path: copy.json
routes:
  - name: home
    path: /
    signature: "` + signature + `"
    skeleton: '<section id="home-hero" data-placeholder="true"></section>'
mounts:
  - id: home-hero
    route: home
    resource: copy
    view: hero
    section: home-hero
    placeholder: true
`
}
