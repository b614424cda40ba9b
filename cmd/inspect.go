package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the effective configuration and site manifest",
	Long: `Display the configuration and site manifest the engine would run
with, after resolving the config file, environment variables, flag
overrides, and defaults. The site section shows the loaded manifest or
the built-in site when none is configured.

Examples:
  dxp inspect                      # Everything as YAML
  dxp inspect --format json        # Everything as JSON
  dxp inspect --site-only          # Just the resolved site manifest`,
	RunE: runInspect,
}

var (
	inspectFormat   string
	inspectSiteOnly bool
)

func init() {
	rootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "yaml", "Output format (yaml, json)")
	inspectCmd.Flags().Bool("config-only", false, "Show only the resolved configuration")
	inspectCmd.Flags().BoolVar(&inspectSiteOnly, "site-only", false, "Show only the resolved site manifest")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	site, err := resolveSite(cfg)
	if err != nil {
		return fmt.Errorf("failed to load site manifest: %w", err)
	}

	configOnly, _ := cmd.Flags().GetBool("config-only")

	var output interface{}
	switch {
	case inspectSiteOnly:
		output = site
	case configOnly:
		output = configView(cfg)
	default:
		output = map[string]interface{}{
			"config": configView(cfg),
			"site":   site,
		}
	}

	switch inspectFormat {
	case "yaml", "yml":
		encoder := yaml.NewEncoder(os.Stdout)
		defer encoder.Close()
		return encoder.Encode(output)
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(output)
	default:
		return fmt.Errorf("unsupported format: %s (supported: yaml, json)", inspectFormat)
	}
}

// configView renders the configuration as plain maps with durations as
// strings ("150ms"), so both output formats use config-file keys and
// the result can be pasted straight back into a config file.
func configView(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"server": map[string]interface{}{
			"port":            cfg.Server.Port,
			"host":            cfg.Server.Host,
			"allowed_origins": cfg.Server.AllowedOrigins,
			"environment":     cfg.Server.Environment,
		},
		"sources": map[string]interface{}{
			"base_url":      cfg.Sources.BaseURL,
			"content_dir":   cfg.Sources.ContentDir,
			"fallback_only": cfg.Sources.FallbackOnly,
			"timeout":       cfg.Sources.Timeout.String(),
		},
		"site": map[string]interface{}{
			"manifest":      cfg.Site.Manifest,
			"default_route": cfg.Site.DefaultRoute,
		},
		"timing": map[string]interface{}{
			"debounce":        cfg.Timing.Debounce.String(),
			"staged_swap":     cfg.Timing.StagedSwap.String(),
			"post_render":     cfg.Timing.PostRender.String(),
			"intent_settle":   cfg.Timing.IntentSettle.String(),
			"confirm_timeout": cfg.Timing.ConfirmTimeout.String(),
		},
		"watch": map[string]interface{}{
			"enabled": cfg.Watch.Enabled,
			"ignore":  cfg.Watch.Ignore,
		},
		"log": map[string]interface{}{
			"level":  cfg.Log.Level,
			"format": cfg.Log.Format,
		},
	}
}
