package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ewastehub/appraisal-relay/internal/analysis"
	"github.com/ewastehub/appraisal-relay/internal/config"
	"github.com/ewastehub/appraisal-relay/internal/queue"
	"github.com/ewastehub/appraisal-relay/internal/server"
	"github.com/ewastehub/appraisal-relay/internal/service"
	"github.com/ewastehub/appraisal-relay/internal/store"
	"github.com/ewastehub/appraisal-relay/pkg/infra"
)

func main() {
	cfg := config.Load()
	logger := infra.SetupLogger(cfg)
	slog.SetDefault(logger)

	if problems := cfg.Validate(); len(problems) > 0 {
		for _, p := range problems {
			slog.Error("FATAL: configuration error", "problem", p)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	remoteStore, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		slog.Error("FATAL: failed to initialize remote store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if !remoteStore.IsAvailable(ctx) {
		slog.Warn("Remote store unreachable at startup, records will buffer until sync")
	}

	offlineQueue := queue.NewMemQueue()
	coordinator := service.NewCoordinator(remoteStore, offlineQueue, logger)
	normalizer := service.NewNormalizer(cfg.WorkerID)

	var analyzer server.Analyzer
	if cfg.AnalysisAPIKey != "" {
		analyzer = analysis.NewClient(cfg.AnalysisAPIKey, cfg.AnalysisBaseURL, cfg.AnalysisModels, logger)
	} else {
		slog.Warn("ANALYSIS_API_KEY not set, image analysis disabled (raw submissions only)")
	}

	api := server.New(coordinator, normalizer, analyzer, remoteStore, logger)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	go func() {
		slog.Info("🚀 Appraisal Relay started", "addr", cfg.HTTPAddr, "backend", cfg.StoreBackend, "worker_id", cfg.WorkerID)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("FATAL: HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("👋 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Best-effort flush so a clean shutdown does not strand buffered records
	if depth := coordinator.QueueDepth(); depth > 0 {
		slog.Info("Flushing offline queue before exit", "depth", depth)
		res := coordinator.SyncNow(shutdownCtx)
		if res.StoreUnavailable || len(res.Failed) > 0 {
			slog.Warn("Flush incomplete, records remain unsynced",
				"succeeded", res.Succeeded,
				"remaining", len(res.Failed),
				"store_unavailable", res.StoreUnavailable,
			)
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown error", "error", err)
	}
	slog.Info("✅ Shutdown complete")
}

func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (service.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.StoreTimeout, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		sheets := store.NewSheetsStore(cfg.SpreadsheetID, cfg.SheetName, cfg.SheetsToken, cfg.StoreTimeout, logger)
		return sheets, func() {}, nil
	}
}
