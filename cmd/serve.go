// File: cmd/serve.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"direxpo/pkg/api"
	"direxpo/pkg/logging"
	"direxpo/pkg/metrics"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the direxpo HTTP API",
	Long: `Start the HTTP API used by the file picker. Exports are written to the
configured output directory. SIGINT or SIGTERM shuts the server down gracefully.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("addr", "127.0.0.1:5199", "address to listen on")
	f.String("output-dir", ".output", "directory generated documents are written to")
	f.Float64("max-size-mb", 50, "default per-file size limit in MB when a request does not set one (0 disables)")
	f.Bool("gitignore", true, "respect the root .gitignore during discovery")

	RootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := os.MkdirAll(cfg.Export.OutputDir, 0o755); err != nil {
		logger.Error("Failed to create output directory", zap.String("outputDir", cfg.Export.OutputDir), zap.Error(err))
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	m := metrics.New()
	svc, err := api.NewService(api.ServiceConfig{
		OutputDir:        cfg.Export.OutputDir,
		DefaultMaxSizeMb: cfg.Export.DefaultMaxSizeMb,
		RespectGitignore: cfg.Discovery.RespectGitignore,
		CacheSize:        cfg.Discovery.CacheSize,
	}, m, logging.Named("api"))
	if err != nil {
		return fmt.Errorf("failed to initialize service: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(svc, m, logging.Named("http")).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening",
			zap.String("addr", srv.Addr),
			zap.String("outputDir", cfg.Export.OutputDir),
			zap.Float64("defaultMaxSizeMb", cfg.Export.DefaultMaxSizeMb))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}
