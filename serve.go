package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/rrna16s/internal/config"
	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/analysis"
	"github.com/yumyai/rrna16s/pkg/archive"
	"github.com/yumyai/rrna16s/pkg/handler"
	"github.com/yumyai/rrna16s/pkg/metrics"
	"github.com/yumyai/rrna16s/pkg/model"
	"github.com/yumyai/rrna16s/pkg/pipeline"
)

const shutdownTimeout = 30 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the analysis workers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides RRNA16S_LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Start:", zap.String("Version", VERSION))

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	artifacts, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if artifacts != nil {
		logger.Info("Archiving run artifacts", zap.String("driver", string(artifacts.Driver())))
	}

	m := metrics.New()
	orch := analysis.New(store, pipeline.NewInvoker(cfg.Pipeline), analysis.Options{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		Archive:     artifacts,
		Metrics:     m,
		ReferenceDB: referenceDatabase(cfg.Pipeline),
	})
	orch.Start(ctx)
	if _, err := orch.Resume(ctx); err != nil {
		logger.Error("Could not resume queued analyses", zap.Error(err))
	}

	addr := cfg.ListenAddr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(&handler.AnalysisContext{Store: store, Scheduler: orch, Metrics: m}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting", zap.String("addr", addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Error starting server:", zap.Error(err))
			_ = orch.Shutdown(context.Background())
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server did not shut down cleanly", zap.Error(err))
	}
	// Runs in flight are waited for; what is still queued resumes on the next start.
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Analysis workers still running at exit", zap.Error(err))
	}
	return nil
}

func referenceDatabase(c config.PipelineConfig) *model.ReferenceDatabase {
	if c.BlastDBDir == "" || c.BlastDBName == "" {
		return nil
	}
	return &model.ReferenceDatabase{Name: c.BlastDBName, Path: c.BlastDBDir}
}
