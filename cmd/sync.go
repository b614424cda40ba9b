package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/content"
	"github.com/coderDevDev/dxp-dubai/internal/logging"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Prefetch all content resources and report their origins",
	Long: `Fetch every resource named in the site manifest through the regular
source chain (primary endpoint, then static fallback) and report where
each payload came from. Useful for checking content health before a
deploy or while editing fallback files.

Examples:
  dxp sync                         # Fetch and print a table
  dxp sync -f json                 # Output as JSON
  dxp sync --fallback-only         # Skip remote sources entirely`,
	RunE: runSync,
}

var syncFormat string

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringVarP(&syncFormat, "format", "f", "table", "Output format (table, json)")
	syncCmd.Flags().Bool("fallback-only", false, "Fetch entirely from local fallback files")
}

// syncReport is one fetched resource in the sync output.
type syncReport struct {
	Resource  string `json:"resource"`
	Kind      string `json:"kind"`
	Origin    string `json:"origin"`
	Size      int    `json:"size"`
	FetchedAt string `json:"fetched_at"`
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Flags().Changed("fallback-only") {
		cfg.Sources.FallbackOnly = true
	}

	site, err := resolveSite(cfg)
	if err != nil {
		return fmt.Errorf("failed to load site manifest: %w", err)
	}

	reg, err := registry.NewSiteRegistry(site)
	if err != nil {
		return fmt.Errorf("failed to build site registry: %w", err)
	}

	cache := content.NewSessionCache()
	fetcher := content.NewFetcher(cfg.Sources, reg, cache, cliLogger(cfg))

	payloads, collector := fetcher.Prefetch(context.Background())

	for _, fetchErr := range collector.GetErrors() {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", fetchErr.Error())
	}

	reports := make([]syncReport, 0, len(payloads))
	for _, payload := range payloads {
		reports = append(reports, syncReport{
			Resource:  payload.Resource,
			Kind:      string(payload.Kind),
			Origin:    payload.Origin.String(),
			Size:      payloadSize(payload),
			FetchedAt: payload.FetchedAt.Format("2006-01-02 15:04:05"),
		})
	}

	switch strings.ToLower(syncFormat) {
	case "json":
		if err := outputSyncJSON(reports); err != nil {
			return err
		}
	case "table":
		outputSyncTable(reports)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", syncFormat)
	}

	// A resource that failed both sources never reaches the cache. That
	// is the condition sync exists to catch, so it fails the command.
	var missing []string
	for _, res := range reg.Resources() {
		if _, ok := cache.Get(res.Name); !ok {
			missing = append(missing, res.Name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("content unavailable for: %s", strings.Join(missing, ", "))
	}

	return nil
}

// payloadSize reports the encoded size of the decoded content, which
// tracks what a render works with rather than raw transfer bytes.
func payloadSize(payload *content.Payload) int {
	var data interface{}
	switch {
	case payload.Listing != nil:
		data = payload.Listing
	case payload.Copy != nil:
		data = payload.Copy
	case payload.Layout != nil:
		data = payload.Layout
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return 0
	}
	return len(encoded)
}

func outputSyncTable(reports []syncReport) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "RESOURCE\tKIND\tORIGIN\tSIZE\tFETCHED")
	for _, report := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			report.Resource,
			report.Kind,
			report.Origin,
			report.Size,
			report.FetchedAt,
		)
	}

	fmt.Fprintf(w, "\nTotal: %d resources\n", len(reports))
}

func outputSyncJSON(reports []syncReport) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reports)
}

// resolveSite loads the configured manifest, falling back to the
// built-in site definition when none is configured.
func resolveSite(cfg *config.Config) (*registry.Site, error) {
	if cfg.Site.Manifest != "" {
		return registry.LoadSiteFile(cfg.Site.Manifest)
	}
	return registry.DefaultSite(), nil
}

// cliLogger builds a logger for one-shot commands. Command output goes
// to stdout, so the logger stays on stderr at the configured level.
func cliLogger(cfg *config.Config) logging.Logger {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(cfg.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = cfg.Log.Format
	lc.Output = os.Stderr
	return logging.NewLogger(lc)
}
