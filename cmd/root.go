// Package cmd provides the command-line interface for dxp with
// configuration management across multiple sources.
//
// Configuration precedence, highest first:
//  1. Command-line flags (--config, --port, ...)
//  2. DXP_CONFIG_FILE environment variable (custom config file path)
//  3. Individual environment variables (DXP_SERVER_PORT, ...)
//  4. Configuration file (.dxp.yml)
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dxp",
	Short: "Content synchronization and preview for the Dubai experience site",
	Long: `dxp keeps a marketing site's pages in sync with their content sources.
It fetches JSON content with static fallbacks, caches it per session,
renders it into mounted page sections, and follows route changes from
the site's external router.

Quick Start:
  dxp init                        Scaffold content fixtures and config
  dxp serve                       Start the development server
  dxp sync                        Prefetch all content and report origins
  dxp export --output dist        Write a static snapshot of every route

Command Aliases (for faster typing):
  init (i), serve (s), export (e), routes (r)`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Flags written with underscores resolve to their hyphenated form,
	// matching the config file key style (--fallback_only works).
	rootCmd.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .dxp.yml, can also use DXP_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig wires viper to the configuration sources.
//
// Config file resolution, highest priority first:
//  1. --config flag
//  2. DXP_CONFIG_FILE environment variable
//  3. .dxp.yml in the current directory
//
// All configuration keys also bind to DXP_* environment variables
// (DXP_SERVER_PORT, DXP_SOURCES_BASE_URL, ...).
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("DXP_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dxp")
	}

	viper.SetEnvPrefix("DXP")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// A missing or unreadable config file is not fatal; defaults and
	// environment variables still apply.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
