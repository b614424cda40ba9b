package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/registry"
	"github.com/spf13/cobra"
)

var routesCmd = &cobra.Command{
	Use:     "routes",
	Aliases: []string{"r"},
	Short:   "List the routes of the resolved site manifest",
	Long: `List every route of the site with its path, confirmation signature,
and the content resources its mounts consume.

Examples:
  dxp routes                       # Table format
  dxp routes -f json               # Output as JSON`,
	RunE: runRoutes,
}

var routesFormat string

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVarP(&routesFormat, "format", "f", "table", "Output format (table, json)")
}

func runRoutes(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	site, err := resolveSite(cfg)
	if err != nil {
		return fmt.Errorf("failed to load site manifest: %w", err)
	}

	reg, err := registry.NewSiteRegistry(site)
	if err != nil {
		return fmt.Errorf("failed to build site registry: %w", err)
	}

	switch strings.ToLower(routesFormat) {
	case "json":
		return outputRoutesJSON(reg)
	case "table":
		return outputRoutesTable(reg)
	default:
		return fmt.Errorf("unsupported format: %s (supported: table, json)", routesFormat)
	}
}

func outputRoutesJSON(reg *registry.SiteRegistry) error {
	routes := reg.Routes()
	output := make([]map[string]interface{}, len(routes))

	for i, route := range routes {
		output[i] = map[string]interface{}{
			"name":      route.Name,
			"path":      route.Path,
			"title":     route.Title(),
			"signature": route.Signature,
			"resources": reg.ResourcesForRoute(route.Name),
		}
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func outputRoutesTable(reg *registry.SiteRegistry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "NAME\tPATH\tTITLE\tSIGNATURE\tRESOURCES")

	routes := reg.Routes()
	for _, route := range routes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			route.Name,
			route.Path,
			route.Title(),
			route.Signature,
			strings.Join(reg.ResourcesForRoute(route.Name), ", "),
		)
	}

	fmt.Fprintf(w, "\nTotal: %d routes\n", len(routes))

	return nil
}
