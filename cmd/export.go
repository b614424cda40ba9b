package cmd

import (
	"context"
	"fmt"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/export"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Aliases: []string{"e"},
	Short:   "Export a static snapshot of every route",
	Long: `Fetch all content once, render every route through the same staged
pipeline the live engine uses, and write the result as static HTML.
Each route lands at <output>/<route>/index.html with the default route
at the root, next to a manifest.json index. With --base-url a
sitemap.xml is generated as well.

The export fails rather than write pages with missing content, so a
broken source surfaces in CI instead of production.

Examples:
  dxp export --output dist
  dxp export --output dist --base-url https://dxp-dubai.example
  dxp export -o dist --fallback-only`,
	RunE: runExport,
}

var (
	exportOutput  string
	exportBaseURL string
)

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "dist", "Output directory for the snapshot")
	exportCmd.Flags().StringVar(&exportBaseURL, "base-url", "", "Public origin for sitemap generation")
	exportCmd.Flags().Bool("fallback-only", false, "Export entirely from local fallback files")
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if cmd.Flags().Changed("fallback-only") {
		cfg.Sources.FallbackOnly = true
	}

	exporter, err := export.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create exporter: %w", err)
	}

	pages, err := exporter.Export(context.Background(), export.Options{
		OutputDir: exportOutput,
		BaseURL:   exportBaseURL,
		Progress:  export.NewProgress(),
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	fmt.Printf("Exported %d routes to %s\n", len(pages), exportOutput)
	for _, page := range pages {
		fmt.Printf("  %s -> %s (%d bytes)\n", page.Route, page.Path, page.Size)
	}

	return nil
}
