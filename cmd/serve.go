package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/treefind/treefind/internal/config"
	"github.com/treefind/treefind/internal/finder"
	"github.com/treefind/treefind/internal/gitsource"
	"github.com/treefind/treefind/internal/server"
	"go.uber.org/zap"
)

var (
	// Flags. Zero values mean "use the config file".
	serveHost string
	servePort int
	serveRoot string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the treefind HTTP server",
	Long: `Serve the find API over a directory of git repositories.

Endpoints:
  GET /api/v1/find   find files by pattern (pathPattern, repos, revision, limit)
  GET /health        health check
  GET /metrics       Prometheus metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "",
		"bind address (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"listen port (overrides config)")
	serveCmd.Flags().StringVar(&serveRoot, "repos-root", "",
		"directory containing the hosted repositories (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
	if serveRoot != "" {
		cfg.Repos.Root = serveRoot
	}
	if cfg.Repos.Root == "" {
		return fmt.Errorf("repository root is required (--repos-root or repos.root in config)")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store := gitsource.NewStore(cfg.Repos.Root, logger)
	f := finder.New(store, logger, cfg.Find.Jobs)

	srv, err := server.New(f, store, logger, &server.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		DefaultLimit: cfg.Find.DefaultLimit,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received",
		zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
