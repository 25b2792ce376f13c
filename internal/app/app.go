// Package app assembles the scheduler and its collaborators from
// configuration. Both binaries that run checks use it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/checks"
	"github.com/leozw/zone-health/internal/config"
	"github.com/leozw/zone-health/internal/deployment"
	"github.com/leozw/zone-health/internal/metrics"
	"github.com/leozw/zone-health/internal/overrides"
	"github.com/leozw/zone-health/internal/registry"
	"github.com/leozw/zone-health/internal/scheduler"
	"github.com/leozw/zone-health/internal/storage"
	"github.com/leozw/zone-health/internal/storage/file"
	"github.com/leozw/zone-health/internal/storage/memory"
	"github.com/leozw/zone-health/internal/storage/postgres"
	"github.com/leozw/zone-health/internal/storage/redis"
)

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     storage.Store
	Collector *metrics.Collector
	Scheduler *scheduler.Scheduler
	// Poller is nil when no REST API location is configured.
	Poller *deployment.Poller
}

// New opens the override store, loads the check registry and builds the
// scheduler. Registry and storage failures are returned; callers treat them
// as fatal.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	reg, err := LoadRegistry(cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ov := overrides.New(store, logger)
	collector := metrics.NewCollector()

	sched := scheduler.New(reg, ov.Load(ctx), scheduler.Config{
		Logger:       logger,
		Overrides:    ov,
		Recorder:     collector,
		CheckTimeout: cfg.Scheduler.CheckTimeout,
		RESTBaseURL:  cfg.Deployment.RESTURL,
		RESTTimeout:  cfg.Deployment.Timeout,
	})

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Collector: collector,
		Scheduler: sched,
	}

	if cfg.Deployment.RESTURL != "" {
		client := deployment.NewClient(cfg.Deployment, logger)
		prober := deployment.TCPProber{Port: cfg.Deployment.ServerPort, Timeout: cfg.Deployment.Timeout}
		a.Poller = deployment.NewPoller(client, prober, sched, collector, cfg.Deployment.PollInterval, logger)
	} else {
		logger.Warn("No REST API location configured, deployment inventory disabled")
	}

	logger.Info("Checks loaded",
		zap.Int("check_count", reg.Len()),
		zap.String("storage_backend", cfg.Storage.Backend),
	)
	return a, nil
}

// Start starts the scheduler, the deployment poller and the remote writer
// when configured. All stop when ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	a.Scheduler.Start(ctx)

	if a.Poller != nil {
		go a.Poller.Run(ctx)
	} else {
		// Nothing else triggers the first run.
		go func() {
			_, err := a.Scheduler.RunAll(ctx)
			if err != nil && ctx.Err() == nil && !errors.Is(err, scheduler.ErrSuperseded) {
				a.Logger.Warn("Initial run failed", zap.Error(err))
			}
		}()
	}

	if a.Config.Mimir.URL != "" {
		writer := metrics.NewRemoteWriter(a.Collector.Gatherer(), a.Config.Mimir, a.Logger)
		go writer.Start(ctx)
	}
}

func (a *App) Close() {
	a.Scheduler.Stop()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("Failed to close override store", zap.Error(err))
	}
}

// LoadRegistry registers the built-in checks followed by the catalog file.
func LoadRegistry(cfg *config.Config) (*registry.Registry, error) {
	httpClient := checks.NewHTTPClient()

	builtin := checks.Builtin(checks.Options{
		HTTPClient:     httpClient,
		DNSServer:      cfg.Checks.DNSServer,
		CertWarnDays:   cfg.Checks.CertWarnDays,
		DomainWarnDays: cfg.Checks.DomainWarnDays,
		LowFreeSpace:   cfg.Checks.LowFreeSpaceBytes,
	})

	custom, err := checks.LoadCatalog(cfg.Catalog.Path, httpClient)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(builtin, custom)
	if err != nil {
		return nil, fmt.Errorf("loading checks: %w", err)
	}
	return reg, nil
}

// OpenStore connects the configured override backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendFile:
		s, err := file.New(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("opening override file: %w", err)
		}
		return s, nil
	case config.BackendRedis:
		c, err := redis.Connect(ctx, cfg.RedisURL, cfg.KeyPrefix)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return c, nil
	case config.BackendPostgres:
		db, err := postgres.NewConnection(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		return postgres.NewStore(db), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}
