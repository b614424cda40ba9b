package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/export"
	"github.com/coderDevDev/dxp-dubai/internal/server"
)

const (
	integrationListing = `{"projects": [
		{"id": 1, "title": "Azure Tower", "category": "exhibition", "year": 2024,
		 "mediaUrl": "/media/azure.jpg", "linkTarget": "/works/azure-tower"},
		{"id": 2, "title": "Desert Bloom Pavilion", "category": "installation", "year": 2024}
	]}`
	integrationCopy = `{"sections": {
		"home-hero": {"heading": "Designing Dubai", "body": "Pavilions for the Gulf light."},
		"about": {"heading": "About the studio", "body": "We build exhibitions."}
	}}`
	integrationLayout = `{"activePreset": "dusk", "presets": {"dusk": {"accent": "#d97706"}}}`
)

// writeFallbackContent lays out a content directory the fetcher can
// serve every built-in resource from.
func writeFallbackContent(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	files := map[string]string{
		"listing.json": integrationListing,
		"copy.json":    integrationCopy,
		"layout.json":  integrationLayout,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	return dir
}

// configureViper resets viper to an offline configuration against the
// given content directory, mirroring what a .dxp.yml would set.
func configureViper(contentDir string, watch bool) {
	viper.Reset()
	viper.Set("server.port", 0)
	viper.Set("server.host", "localhost")
	viper.Set("sources.fallback_only", true)
	viper.Set("sources.content_dir", contentDir)
	viper.Set("watch.enabled", watch)
	viper.Set("timing.debounce", "20ms")
	viper.Set("timing.staged_swap", "30ms")
	viper.Set("timing.post_render", "10ms")
	viper.Set("timing.intent_settle", "40ms")
	viper.Set("timing.confirm_timeout", "2s")
	viper.Set("log.level", "error")
}

func TestIntegration_ServerStartStop(t *testing.T) {
	contentDir := writeFallbackContent(t)
	configureViper(contentDir, false)

	cfg, err := config.Load()
	require.NoError(t, err)

	srv, err := server.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startErr := make(chan error, 1)
	go func() {
		startErr <- srv.Start(ctx)
	}()

	// The initial load has finished once the default route is current
	// and its signature element exists in the document.
	require.Eventually(t, func() bool {
		return srv.Engine().CurrentRoute() == "home" &&
			srv.Engine().Document().HasElement("home-hero")
	}, 3*time.Second, 20*time.Millisecond)

	status := srv.Engine().Status()
	assert.Equal(t, "home", status.Route)
	assert.NotEmpty(t, status.Session)
	assert.Contains(t, status.Cached, "copy")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	require.NoError(t, srv.Shutdown(shutdownCtx))

	select {
	case err := <-startErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestIntegration_ContentChangeReloadsDocument(t *testing.T) {
	contentDir := writeFallbackContent(t)
	configureViper(contentDir, true)

	cfg, err := config.Load()
	require.NoError(t, err)

	srv, err := server.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Start(ctx)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	require.Eventually(t, func() bool {
		return srv.Engine().CurrentRoute() == "home" &&
			strings.Contains(srv.Engine().Document().TextContent("home-hero"), "Designing Dubai")
	}, 3*time.Second, 20*time.Millisecond)

	// Editing the fallback file must flow through the file watcher into
	// a cache clear and a re-render of the current route.
	edited := `{"sections": {
		"home-hero": {"heading": "Night Skyline", "body": "After-dark program."},
		"about": {"heading": "About the studio", "body": "We build exhibitions."}
	}}`
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "copy.json"), []byte(edited), 0644))

	require.Eventually(t, func() bool {
		return strings.Contains(srv.Engine().Document().TextContent("home-hero"), "Night Skyline")
	}, 5*time.Second, 50*time.Millisecond)
}

func TestIntegration_ConfigurationLoading(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(contentDir string)
		verify  func(t *testing.T, cfg *config.Config)
		wantErr bool
	}{
		{
			name: "defaults fill the gaps",
			setup: func(contentDir string) {
				viper.Reset()
				viper.Set("sources.fallback_only", true)
				viper.Set("sources.content_dir", contentDir)
			},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 8090, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Server.Host)
				assert.Equal(t, "home", cfg.Site.DefaultRoute)
				assert.Equal(t, 150*time.Millisecond, cfg.Timing.Debounce)
				assert.Equal(t, 8*time.Second, cfg.Timing.ConfirmTimeout)
			},
		},
		{
			name: "duration strings parse",
			setup: func(contentDir string) {
				viper.Reset()
				viper.Set("sources.fallback_only", true)
				viper.Set("sources.content_dir", contentDir)
				viper.Set("timing.debounce", "75ms")
				viper.Set("timing.confirm_timeout", "3s")
			},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, 75*time.Millisecond, cfg.Timing.Debounce)
				assert.Equal(t, 3*time.Second, cfg.Timing.ConfirmTimeout)
			},
		},
		{
			name: "remote source with origins",
			setup: func(contentDir string) {
				viper.Reset()
				viper.Set("sources.base_url", "https://cms.example.com")
				viper.Set("sources.content_dir", contentDir)
				viper.Set("server.allowed_origins", []string{"https://dxp-dubai.example"})
			},
			verify: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "https://cms.example.com", cfg.Sources.BaseURL)
				assert.False(t, cfg.Sources.FallbackOnly)
				assert.Equal(t, []string{"https://dxp-dubai.example"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "offline without sources is rejected",
			setup: func(contentDir string) {
				viper.Reset()
				viper.Set("sources.content_dir", contentDir)
			},
			wantErr: true,
		},
		{
			name: "confirm timeout below debounce is rejected",
			setup: func(contentDir string) {
				viper.Reset()
				viper.Set("sources.fallback_only", true)
				viper.Set("sources.content_dir", contentDir)
				viper.Set("timing.debounce", "500ms")
				viper.Set("timing.confirm_timeout", "100ms")
			},
			wantErr: true,
		},
	}

	contentDir := writeFallbackContent(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup(contentDir)

			cfg, err := config.Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestIntegration_ExportSnapshot(t *testing.T) {
	contentDir := writeFallbackContent(t)
	configureViper(contentDir, false)

	cfg, err := config.Load()
	require.NoError(t, err)

	exporter, err := export.New(cfg)
	require.NoError(t, err)

	outDir := t.TempDir()
	pages, err := exporter.Export(context.Background(), export.Options{
		OutputDir: outDir,
		BaseURL:   "https://dxp-dubai.example",
	})
	require.NoError(t, err)
	require.Len(t, pages, 3)

	home, err := os.ReadFile(filepath.Join(outDir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(home), "Designing Dubai")
	assert.Contains(t, string(home), `data-preset="dusk"`)

	assert.FileExists(t, filepath.Join(outDir, "works", "index.html"))
	assert.FileExists(t, filepath.Join(outDir, "about", "index.html"))
	assert.FileExists(t, filepath.Join(outDir, "manifest.json"))
	assert.FileExists(t, filepath.Join(outDir, "sitemap.xml"))
}
