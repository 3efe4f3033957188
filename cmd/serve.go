package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/et-316/ex-file-eraser/internal/config"
	"github.com/et-316/ex-file-eraser/internal/detect"
	"github.com/et-316/ex-file-eraser/internal/photolib"
	"github.com/et-316/ex-file-eraser/internal/session"
	"github.com/et-316/ex-file-eraser/internal/session/postgres"
	"github.com/et-316/ex-file-eraser/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Ex File Eraser web server.
The server exposes the run-based HTTP API: upload or import photos, detect
faces, pick the reference identity, review flags, export the archive, and
apply the hide/delete pass.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	deps := web.Deps{
		Store:    session.NewMemoryStore(),
		Detector: detect.NewHTTPDetector(cfg.Detector.URL),
		Embedder: detect.NewHTTPEmbedder(cfg.Embedding.URL, cfg.Embedding.Dim),
	}

	if cfg.Database.URL != "" {
		fmt.Printf("Connecting to PostgreSQL database...\n")
		pool, err := postgres.Initialize(&cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		defer pool.Close()
		repo := postgres.NewRunRepository(pool)
		deps.Persister = repo
		deps.Loader = repo
		fmt.Printf("Run persistence enabled (PostgreSQL)\n")
	} else {
		fmt.Printf("DATABASE_URL not set, runs are kept in memory only\n")
	}

	if cfg.PhotoLib.URL != "" {
		library, err := photolib.New(cfg.PhotoLib.URL, cfg.PhotoLib.Token)
		if err != nil {
			return fmt.Errorf("failed to create photo library client: %w", err)
		}
		deps.Library = library
		fmt.Printf("Photo library bridge: %s\n", cfg.PhotoLib.URL)
	} else {
		fmt.Printf("PHOTOLIB_URL not set, import and apply endpoints are disabled\n")
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, deps)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Ex File Eraser on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
