package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		setup       func()
		expectError bool
		check       func(t *testing.T, cfg *Config)
	}{
		{
			name: "successful load with defaults",
			setup: func() {
				viper.Reset()
				viper.Set("sources.base_url", "https://content.example/api")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8090, cfg.Server.Port)
				assert.Equal(t, "localhost", cfg.Server.Host)
				assert.Equal(t, "content", cfg.Sources.ContentDir)
				assert.Equal(t, "home", cfg.Site.DefaultRoute)
				assert.Equal(t, DefaultDebounce, cfg.Timing.Debounce)
				assert.Equal(t, DefaultStagedSwap, cfg.Timing.StagedSwap)
				assert.Equal(t, DefaultPostRender, cfg.Timing.PostRender)
				assert.Equal(t, DefaultIntentSettle, cfg.Timing.IntentSettle)
				assert.Equal(t, DefaultConfirmTimeout, cfg.Timing.ConfirmTimeout)
				assert.Equal(t, "info", cfg.Log.Level)
				assert.Equal(t, "text", cfg.Log.Format)
			},
		},
		{
			name: "underscore keys pulled from viper",
			setup: func() {
				viper.Reset()
				viper.Set("sources.base_url", "https://cdn.example")
				viper.Set("sources.content_dir", "static/content")
				viper.Set("sources.fallback_only", true)
				viper.Set("site.default_route", "works")
				viper.Set("timing.staged_swap", "120ms")
				viper.Set("timing.confirm_timeout", "2s")
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://cdn.example", cfg.Sources.BaseURL)
				assert.Equal(t, "static/content", cfg.Sources.ContentDir)
				assert.True(t, cfg.Sources.FallbackOnly)
				assert.Equal(t, "works", cfg.Site.DefaultRoute)
				assert.Equal(t, 120*time.Millisecond, cfg.Timing.StagedSwap)
				assert.Equal(t, 2*time.Second, cfg.Timing.ConfirmTimeout)
			},
		},
		{
			name: "fallback only needs no base url",
			setup: func() {
				viper.Reset()
				viper.Set("sources.fallback_only", true)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Sources.BaseURL)
				assert.True(t, cfg.Sources.FallbackOnly)
			},
		},
		{
			name: "missing base url without fallback toggle",
			setup: func() {
				viper.Reset()
			},
			expectError: true,
		},
		{
			name: "allowed origins slice",
			setup: func() {
				viper.Reset()
				viper.Set("sources.fallback_only", true)
				viper.Set("server.allowed_origins", []string{"https://dxp.example"})
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"https://dxp.example"}, cfg.Server.AllowedOrigins)
			},
		},
		{
			name: "watch ignore defaults",
			setup: func() {
				viper.Reset()
				viper.Set("sources.fallback_only", true)
				viper.Set("watch.enabled", true)
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Watch.Enabled)
				assert.Contains(t, cfg.Watch.Ignore, "**/*.tmp")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer viper.Reset()

			cfg, err := Load()
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, cfg)
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestValidateServerConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      ServerConfig
		expectError bool
	}{
		{"valid", ServerConfig{Port: 8090, Host: "localhost"}, false},
		{"zero port allowed", ServerConfig{Port: 0, Host: "localhost"}, false},
		{"port too large", ServerConfig{Port: 70000}, true},
		{"negative port", ServerConfig{Port: -1}, true},
		{"dangerous host", ServerConfig{Port: 8090, Host: "localhost; rm -rf /"}, true},
		{"backtick host", ServerConfig{Port: 8090, Host: "host`cmd`"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateServerConfig(&tt.config)
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSourcesConfig(t *testing.T) {
	tests := []struct {
		name        string
		config      SourcesConfig
		expectError string
	}{
		{
			name:   "valid https",
			config: SourcesConfig{BaseURL: "https://content.example/api", ContentDir: "content", Timeout: time.Second},
		},
		{
			name:        "ftp scheme rejected",
			config:      SourcesConfig{BaseURL: "ftp://content.example", ContentDir: "content", Timeout: time.Second},
			expectError: "http or https",
		},
		{
			name:        "traversal content dir",
			config:      SourcesConfig{BaseURL: "https://content.example", ContentDir: "../../etc", Timeout: time.Second},
			expectError: "traversal",
		},
		{
			name:        "zero timeout",
			config:      SourcesConfig{BaseURL: "https://content.example", ContentDir: "content"},
			expectError: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSourcesConfig(&tt.config)
			if tt.expectError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTimingConfig(t *testing.T) {
	valid := TimingConfig{
		Debounce:       DefaultDebounce,
		StagedSwap:     DefaultStagedSwap,
		PostRender:     DefaultPostRender,
		IntentSettle:   DefaultIntentSettle,
		ConfirmTimeout: DefaultConfirmTimeout,
	}
	assert.NoError(t, validateTimingConfig(&valid))

	t.Run("negative window", func(t *testing.T) {
		bad := valid
		bad.PostRender = -time.Millisecond
		assert.Error(t, validateTimingConfig(&bad))
	})

	t.Run("confirm timeout below debounce", func(t *testing.T) {
		bad := valid
		bad.ConfirmTimeout = valid.Debounce / 2
		err := validateTimingConfig(&bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "confirm_timeout")
	})
}

func TestValidateLogConfig(t *testing.T) {
	assert.NoError(t, validateLogConfig(&LogConfig{Level: "debug", Format: "json"}))
	assert.Error(t, validateLogConfig(&LogConfig{Level: "loud", Format: "text"}))
	assert.Error(t, validateLogConfig(&LogConfig{Level: "info", Format: "xml"}))
}

func TestValidatePath(t *testing.T) {
	assert.NoError(t, validatePath("content"))
	assert.NoError(t, validatePath("./site.yml"))
	assert.Error(t, validatePath(""))
	assert.Error(t, validatePath("../outside"))
	assert.Error(t, validatePath("dir;rm"))
}
