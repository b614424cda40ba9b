package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/coderDevDev/dxp-dubai/internal/version"
	"github.com/spf13/cobra"
)

var versionFormat string

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information including the semantic version, git
commit, build timestamp, Go version, and target platform.

Examples:
  dxp version                  # Human-readable version
  dxp version --format json    # Output as JSON`,
	RunE: runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "text", "Output format (text, json)")
	versionCmd.Flags().Bool("short", false, "Show short version only")
}

func runVersion(cmd *cobra.Command, args []string) error {
	short, _ := cmd.Flags().GetBool("short")

	switch versionFormat {
	case "json":
		return outputVersionJSON()
	case "text":
		if short {
			fmt.Println(version.Short())
			return nil
		}
		outputVersionText()
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", versionFormat)
	}
}

func outputVersionText() {
	info := version.Info()

	fmt.Printf("dxp %s", info.Version)
	if info.GitCommit != "unknown" && len(info.GitCommit) >= 7 {
		fmt.Printf(" (%s)", info.GitCommit[:7])
	}
	if version.Dirty() {
		fmt.Print(" (dirty)")
	}
	fmt.Println()

	if !info.BuildTime.IsZero() {
		fmt.Printf("Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}
	fmt.Printf("Go: %s\n", info.GoVersion)
	fmt.Printf("Platform: %s\n", info.Platform)
}

func outputVersionJSON() error {
	info := version.Info()

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}
