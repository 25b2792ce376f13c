package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/app"
	"github.com/leozw/zone-health/internal/config"
	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/logging"
	"github.com/leozw/zone-health/internal/scheduler"
)

const summaryInterval = time.Minute

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	a.Start(ctx)

	go logSummaries(ctx, a.Scheduler, logger)

	logger.Info("Worker started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	a.Close()
	logger.Info("Worker exited")
}

func logSummaries(ctx context.Context, s *scheduler.Scheduler, logger *zap.Logger) {
	ticker := time.NewTicker(summaryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.Snapshot()
			logger.Info("Check summary",
				zap.Bool("is_checking", snap.Checking),
				zap.Int("healthy", snap.Counters[core.StatusHealthy]),
				zap.Int("warning", snap.Counters[core.StatusWarning]),
				zap.Int("error", snap.Counters[core.StatusError]),
				zap.Int("unavailable", snap.Counters[core.StatusUnavailable]),
				zap.Int("inactive", snap.Counters[core.StatusInactive]),
				zap.Int("pending", snap.Counters[core.StatusPending]),
				zap.Time("updated_at", snap.UpdatedAt),
			)
		}
	}
}
