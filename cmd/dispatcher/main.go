package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"maildispatch/internal/config"
	"maildispatch/internal/dispatch"
	"maildispatch/internal/mailer"
	"maildispatch/internal/metrics"
	"maildispatch/internal/store"
)

// dispatchStore narrows *store.Store to the interfaces the dispatch
// layer consumes, converting the concrete claim type along the way.
type dispatchStore struct {
	*store.Store
}

func (s dispatchStore) ClaimPending(ctx context.Context, campaignID int64, limit int) (dispatch.Claim, error) {
	claim, err := s.Store.ClaimPending(ctx, campaignID, limit)
	if err != nil {
		return nil, err
	}
	return claim, nil
}

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config (.env first, then environment)
	// ------------------------------------------------
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	st, err := store.New(ctx, cfg.DatabaseURL, cfg.ConnectTimeout)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer st.Close()

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	// ------------------------------------------------
	// Dispatch engine
	// ------------------------------------------------
	limiter := rate.NewLimiter(rate.Every(cfg.ChunkInterval), 1)

	ds := dispatchStore{st}
	sender := dispatch.NewSender(ds, &mailer.SMTPSender{}, limiter, cfg.BatchSize, logger)
	driver := dispatch.NewDriver(ds, sender, logger)

	// ------------------------------------------------
	// Single-tick mode: run once and report via exit code,
	// for invocation from cron or an external scheduler.
	// ------------------------------------------------
	if cfg.TickInterval <= 0 {
		if err := driver.Tick(ctx); err != nil {
			logger.Fatal("tick failed", zap.Error(err))
		}
		return
	}

	// ------------------------------------------------
	// Loop mode: internal ticker + metrics endpoint.
	// ------------------------------------------------
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

loop:
	for {
		if err := driver.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				break loop
			}
			logger.Error("tick failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
		}
	}

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}
