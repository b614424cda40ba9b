package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/content"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
	"github.com/spf13/cobra"
)

func TestInitCommand(t *testing.T) {
	tempDir := t.TempDir()

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldDir)

	require.NoError(t, os.Chdir(tempDir))

	initManifest = false

	err = runInit(&cobra.Command{}, []string{})
	require.NoError(t, err)

	assert.FileExists(t, ".dxp.yml")
	assert.FileExists(t, "content/listing.json")
	assert.FileExists(t, "content/copy.json")
	assert.FileExists(t, "content/layout.json")
	assert.NoFileExists(t, "site.yml")
}

func TestInitCommandWithProjectName(t *testing.T) {
	tempDir := t.TempDir()

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldDir)

	require.NoError(t, os.Chdir(tempDir))

	initManifest = false

	err = runInit(&cobra.Command{}, []string{"demo-site"})
	require.NoError(t, err)

	assert.DirExists(t, "demo-site")
	assert.FileExists(t, "demo-site/.dxp.yml")
	assert.FileExists(t, "demo-site/content/listing.json")
}

func TestInitCommandManifest(t *testing.T) {
	tempDir := t.TempDir()

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldDir)

	require.NoError(t, os.Chdir(tempDir))

	initManifest = true
	defer func() { initManifest = false }()

	err = runInit(&cobra.Command{}, []string{})
	require.NoError(t, err)

	site, err := registry.LoadSiteFile("site.yml")
	require.NoError(t, err)

	builtin := registry.DefaultSite()
	assert.Equal(t, builtin.Name, site.Name)
	assert.Equal(t, builtin.Container, site.Container)
	assert.Len(t, site.Resources, len(builtin.Resources))
	assert.Len(t, site.Routes, len(builtin.Routes))
	assert.Len(t, site.Mounts, len(builtin.Mounts))
}

func TestInitCommandKeepsExistingFiles(t *testing.T) {
	tempDir := t.TempDir()

	oldDir, err := os.Getwd()
	require.NoError(t, err)
	defer os.Chdir(oldDir)

	require.NoError(t, os.Chdir(tempDir))

	initManifest = false

	require.NoError(t, runInit(&cobra.Command{}, []string{}))

	edited := `{"projects": [{"id": 9, "title": "Edited"}]}`
	require.NoError(t, os.WriteFile("content/listing.json", []byte(edited), 0644))

	require.NoError(t, runInit(&cobra.Command{}, []string{}))

	data, err := os.ReadFile("content/listing.json")
	require.NoError(t, err)
	assert.Equal(t, edited, string(data))
}

// The scaffolded fixtures must survive the same strict decoding a live
// fetch applies, or the scaffolded workspace would fail its first load.
func TestStarterContentDecodes(t *testing.T) {
	site := registry.DefaultSite()
	bodies := map[string]string{
		"listing": starterListing,
		"copy":    starterCopy,
		"layout":  starterLayout,
	}

	for _, res := range site.Resources {
		body, ok := bodies[res.Name]
		require.True(t, ok, "no starter body for resource %q", res.Name)

		payload, err := content.DecodePayload(res, []byte(body))
		require.NoError(t, err, "starter %s does not decode", res.Name)
		assert.Equal(t, res.Kind, payload.Kind)
	}
}

func TestStarterCopyCoversMountSections(t *testing.T) {
	site := registry.DefaultSite()

	payload, err := content.DecodePayload(site.Resources[1], []byte(starterCopy))
	require.NoError(t, err)
	require.NotNil(t, payload.Copy)

	for _, mount := range site.Mounts {
		if mount.Section == "" {
			continue
		}
		_, ok := payload.Copy.Sections[mount.Section]
		assert.True(t, ok, "starter copy is missing section %q used by mount %q", mount.Section, mount.ID)
	}
}

func TestResolveSite(t *testing.T) {
	t.Run("defaults to the built-in site", func(t *testing.T) {
		cfg := &config.Config{}
		site, err := resolveSite(cfg)
		require.NoError(t, err)
		assert.Equal(t, registry.DefaultSite().Name, site.Name)
	})

	t.Run("loads the configured manifest", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "site.yml")
		require.NoError(t, os.WriteFile(path, []byte(starterManifest), 0644))

		cfg := &config.Config{}
		cfg.Site.Manifest = path

		site, err := resolveSite(cfg)
		require.NoError(t, err)
		assert.Len(t, site.Routes, 3)
	})

	t.Run("fails on a missing manifest", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Site.Manifest = filepath.Join(t.TempDir(), "absent.yml")

		_, err := resolveSite(cfg)
		assert.Error(t, err)
	})
}

func TestPayloadSize(t *testing.T) {
	site := registry.DefaultSite()

	payload, err := content.DecodePayload(site.Resources[0], []byte(starterListing))
	require.NoError(t, err)

	size := payloadSize(payload)
	assert.Greater(t, size, 100)
}

func TestConfigViewRendersDurations(t *testing.T) {
	cfg := &config.Config{}
	cfg.Timing.Debounce = 150 * time.Millisecond
	cfg.Timing.ConfirmTimeout = 8 * time.Second
	cfg.Sources.Timeout = 5 * time.Second

	view := configView(cfg)

	timing, ok := view["timing"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "150ms", timing["debounce"])
	assert.Equal(t, "8s", timing["confirm_timeout"])

	sources, ok := view["sources"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "5s", sources["timeout"])
}
