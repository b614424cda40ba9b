package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/coderDevDev/dxp-dubai/internal/config"
	"github.com/coderDevDev/dxp-dubai/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Start the development server with content reloading",
	Long: `Start the development server. The server loads the default route,
serves the synchronized document over HTTP, streams render and reload
events over WebSocket, and reloads content when fallback files or the
site manifest change on disk.

Examples:
  dxp serve                        # Serve on the configured port
  dxp serve --port 3000            # Override the port
  dxp serve --fallback-only        # Skip remote sources, use local files`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	serveCmd.Flags().Bool("no-watch", false, "Don't watch content files for changes")
	serveCmd.Flags().Bool("fallback-only", false, "Serve entirely from local fallback files")

	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if noWatch, _ := cmd.Flags().GetBool("no-watch"); noWatch {
		cfg.Watch.Enabled = false
	}
	if cmd.Flags().Changed("fallback-only") {
		cfg.Sources.FallbackOnly = true
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Shutting down server...")

		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			log.Printf("Error during server shutdown: %v", shutdownErr)
		}

		cancel()
	}()

	fmt.Printf("Starting dxp server at http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}
