// Package config provides configuration management for the dxp content
// engine using Viper for flexible configuration loading from files,
// environment variables, and command-line flags.
//
// The configuration system supports YAML files, environment variable
// overrides with DXP_ prefix, validation, and security checks. It manages
// server settings, content source endpoints, site manifest selection,
// synchronization timing windows, and development-specific options like
// the fallback content watcher.
package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default timing windows for the synchronization loop. All of them can
// be overridden per deployment; tests shrink them to keep runs fast.
const (
	DefaultDebounce       = 150 * time.Millisecond
	DefaultStagedSwap     = 300 * time.Millisecond
	DefaultPostRender     = 100 * time.Millisecond
	DefaultIntentSettle   = 250 * time.Millisecond
	DefaultConfirmTimeout = 8 * time.Second
	DefaultSourceTimeout  = 5 * time.Second
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sources SourcesConfig `yaml:"sources"`
	Site    SiteConfig    `yaml:"site"`
	Timing  TimingConfig  `yaml:"timing"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Environment    string   `yaml:"environment"`
}

// SourcesConfig describes where content payloads come from. BaseURL is
// the primary remote endpoint root; ContentDir holds the static fallback
// files. FallbackOnly skips the primary entirely, which is how offline
// development runs.
type SourcesConfig struct {
	BaseURL      string        `yaml:"base_url"`
	ContentDir   string        `yaml:"content_dir"`
	FallbackOnly bool          `yaml:"fallback_only"`
	Timeout      time.Duration `yaml:"timeout"`
}

type SiteConfig struct {
	Manifest     string `yaml:"manifest"`
	DefaultRoute string `yaml:"default_route"`
}

// TimingConfig carries the windows that shape the synchronization loop:
// mutation debouncing, the staged placeholder swap delay, the post-render
// settle before lazy media activation, the grace period before an intent
// is cleared, and the bound on waiting for route confirmation.
type TimingConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	StagedSwap     time.Duration `yaml:"staged_swap"`
	PostRender     time.Duration `yaml:"post_render"`
	IntentSettle   time.Duration `yaml:"intent_settle"`
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

type WatchConfig struct {
	Enabled bool     `yaml:"enabled"`
	Ignore  []string `yaml:"ignore"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Underscore keys do not round-trip through viper.Unmarshal, so they
	// are pulled explicitly when set (same workaround as slices below).
	if viper.IsSet("sources.base_url") {
		config.Sources.BaseURL = viper.GetString("sources.base_url")
	}
	if viper.IsSet("sources.content_dir") {
		config.Sources.ContentDir = viper.GetString("sources.content_dir")
	}
	if viper.IsSet("sources.fallback_only") {
		config.Sources.FallbackOnly = viper.GetBool("sources.fallback_only")
	}
	if viper.IsSet("sources.timeout") {
		config.Sources.Timeout = viper.GetDuration("sources.timeout")
	}
	if viper.IsSet("site.default_route") {
		config.Site.DefaultRoute = viper.GetString("site.default_route")
	}
	if viper.IsSet("server.allowed_origins") && len(config.Server.AllowedOrigins) == 0 {
		origins := viper.GetStringSlice("server.allowed_origins")
		if len(origins) > 0 {
			config.Server.AllowedOrigins = origins
		}
	}
	if viper.IsSet("watch.enabled") {
		config.Watch.Enabled = viper.GetBool("watch.enabled")
	}
	if viper.IsSet("watch.ignore") && len(config.Watch.Ignore) == 0 {
		ignore := viper.GetStringSlice("watch.ignore")
		if len(ignore) > 0 {
			config.Watch.Ignore = ignore
		}
	}

	// Timing windows accept duration strings ("150ms") from file or env.
	if viper.IsSet("timing.debounce") {
		config.Timing.Debounce = viper.GetDuration("timing.debounce")
	}
	if viper.IsSet("timing.staged_swap") {
		config.Timing.StagedSwap = viper.GetDuration("timing.staged_swap")
	}
	if viper.IsSet("timing.post_render") {
		config.Timing.PostRender = viper.GetDuration("timing.post_render")
	}
	if viper.IsSet("timing.intent_settle") {
		config.Timing.IntentSettle = viper.GetDuration("timing.intent_settle")
	}
	if viper.IsSet("timing.confirm_timeout") {
		config.Timing.ConfirmTimeout = viper.GetDuration("timing.confirm_timeout")
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func applyDefaults(config *Config) {
	if config.Server.Port == 0 && !viper.IsSet("server.port") {
		config.Server.Port = 8090
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if config.Server.Environment == "" {
		config.Server.Environment = "development"
	}

	if config.Sources.ContentDir == "" {
		config.Sources.ContentDir = "content"
	}
	if config.Sources.Timeout == 0 {
		config.Sources.Timeout = DefaultSourceTimeout
	}

	if config.Site.DefaultRoute == "" {
		config.Site.DefaultRoute = "home"
	}

	if config.Timing.Debounce == 0 {
		config.Timing.Debounce = DefaultDebounce
	}
	if config.Timing.StagedSwap == 0 {
		config.Timing.StagedSwap = DefaultStagedSwap
	}
	if config.Timing.PostRender == 0 {
		config.Timing.PostRender = DefaultPostRender
	}
	if config.Timing.IntentSettle == 0 {
		config.Timing.IntentSettle = DefaultIntentSettle
	}
	if config.Timing.ConfirmTimeout == 0 {
		config.Timing.ConfirmTimeout = DefaultConfirmTimeout
	}

	if len(config.Watch.Ignore) == 0 {
		config.Watch.Ignore = []string{"**/.*", "**/*.tmp", "**/*.swp"}
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
	if config.Log.Format == "" {
		config.Log.Format = "text"
	}
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateServerConfig(&config.Server); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := validateSourcesConfig(&config.Sources); err != nil {
		return fmt.Errorf("sources config: %w", err)
	}

	if err := validateSiteConfig(&config.Site); err != nil {
		return fmt.Errorf("site config: %w", err)
	}

	if err := validateTimingConfig(&config.Timing); err != nil {
		return fmt.Errorf("timing config: %w", err)
	}

	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}

	return nil
}

// validateServerConfig validates server configuration values
func validateServerConfig(config *ServerConfig) error {
	// Allow 0 for system-assigned ports in testing
	if config.Port < 0 || config.Port > 65535 {
		return fmt.Errorf("port %d is not in valid range 0-65535", config.Port)
	}

	if config.Host != "" {
		dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'", "\\"}
		for _, char := range dangerousChars {
			if strings.Contains(config.Host, char) {
				return fmt.Errorf("host contains dangerous character: %s", char)
			}
		}
	}

	return nil
}

// validateSourcesConfig validates content source configuration values
func validateSourcesConfig(config *SourcesConfig) error {
	if config.BaseURL != "" {
		parsed, err := url.Parse(config.BaseURL)
		if err != nil {
			return fmt.Errorf("base_url is not a valid URL: %w", err)
		}
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return fmt.Errorf("base_url must use http or https, got %q", parsed.Scheme)
		}
		if parsed.Host == "" {
			return fmt.Errorf("base_url is missing a host: %s", config.BaseURL)
		}
	}

	if config.BaseURL == "" && !config.FallbackOnly {
		return fmt.Errorf("base_url is required unless fallback_only is set")
	}

	if err := validatePath(config.ContentDir); err != nil {
		return fmt.Errorf("invalid content_dir '%s': %w", config.ContentDir, err)
	}

	if config.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", config.Timeout)
	}

	return nil
}

// validateSiteConfig validates site configuration values
func validateSiteConfig(config *SiteConfig) error {
	if config.Manifest != "" {
		if err := validatePath(config.Manifest); err != nil {
			return fmt.Errorf("invalid manifest path '%s': %w", config.Manifest, err)
		}
	}

	if config.DefaultRoute == "" {
		return fmt.Errorf("default_route cannot be empty")
	}

	return nil
}

// validateTimingConfig validates synchronization timing windows
func validateTimingConfig(config *TimingConfig) error {
	windows := []struct {
		name  string
		value time.Duration
	}{
		{"debounce", config.Debounce},
		{"staged_swap", config.StagedSwap},
		{"post_render", config.PostRender},
		{"intent_settle", config.IntentSettle},
		{"confirm_timeout", config.ConfirmTimeout},
	}
	for _, w := range windows {
		if w.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", w.name, w.value)
		}
	}

	// A confirmation bound shorter than the debounce window could expire
	// before the first mutation batch is even inspected.
	if config.ConfirmTimeout <= config.Debounce {
		return fmt.Errorf("confirm_timeout (%s) must exceed debounce (%s)", config.ConfirmTimeout, config.Debounce)
	}

	return nil
}

// validateLogConfig validates logging configuration values
func validateLogConfig(config *LogConfig) error {
	switch strings.ToLower(config.Level) {
	case "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("unknown log level %q", config.Level)
	}

	switch config.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be text or json, got %q", config.Format)
	}

	return nil
}

// validatePath validates a file path for security
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("empty path")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains traversal: %s", path)
	}

	dangerousChars := []string{";", "&", "|", "$", "`", "(", ")", "<", ">", "\"", "'"}
	for _, char := range dangerousChars {
		if strings.Contains(cleanPath, char) {
			return fmt.Errorf("path contains dangerous character: %s", char)
		}
	}

	return nil
}
