// Package bootstrap wires the service together: config, logging, storage,
// the detection engine, and the alert scheduler.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"logward/alerting"
	"logward/config"
	"logward/detect"
	"logward/metrics"
	"logward/notify"
	"logward/storage"
)

// App holds every long-lived component of the service.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	SQLite     *storage.SQLite
	ClickHouse *storage.ClickHouse
	Redis      *redis.Client

	Engine    *detect.Engine
	Evaluator *alerting.Evaluator
	Scheduler *alerting.Scheduler

	cancel context.CancelFunc
}

// NewApp builds the full component graph. Nothing starts ticking until
// Start is called.
func NewApp(ctx context.Context) (*App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, sugar, err := InitLogger(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	sqlite, err := storage.NewSQLite(cfg.SQLite.Path, sugar)
	if err != nil {
		return nil, fmt.Errorf("init sqlite: %w", err)
	}

	clickhouse, err := storage.NewClickHouse(cfg, sugar)
	if err != nil {
		sqlite.Close()
		return nil, fmt.Errorf("init clickhouse: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		sqlite.Close()
		clickhouse.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	appCtx, cancel := context.WithCancel(ctx)

	engine, err := detect.NewEngine(appCtx, sqlite, detect.EngineOptions{
		CacheSize:     cfg.Engine.CacheSize,
		BatchWorkers:  cfg.Engine.BatchWorkers,
		QueueSize:     cfg.Engine.QueueSize,
		CaseSensitive: cfg.Engine.CaseSensitive,
	}, sugar)
	if err != nil {
		cancel()
		sqlite.Close()
		clickhouse.Close()
		redisClient.Close()
		return nil, fmt.Errorf("init detection engine: %w", err)
	}

	evaluator := alerting.NewEvaluator(clickhouse, sqlite, sqlite, sugar)
	queue := notify.NewRedisQueue(redisClient, cfg.Redis.QueueKey)
	scheduler := alerting.NewScheduler(sqlite, sqlite, evaluator, queue, cfg.Scheduler.Interval, sugar)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Sugar:      sugar,
		SQLite:     sqlite,
		ClickHouse: clickhouse,
		Redis:      redisClient,
		Engine:     engine,
		Evaluator:  evaluator,
		Scheduler:  scheduler,
		cancel:     cancel,
	}, nil
}

// Start launches the scheduler and, when enabled, the metrics endpoint.
func (a *App) Start(ctx context.Context) error {
	if a.Config.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(a.Config.Metrics.Addr, a.Sugar); err != nil {
				a.Sugar.Errorw("metrics endpoint exited", "error", err)
			}
		}()
	}

	a.Scheduler.Start(ctx)
	a.Sugar.Infow("logward started",
		"scheduler_interval", a.Config.Scheduler.Interval,
		"engine_workers", a.Config.Engine.BatchWorkers)
	return nil
}

// WaitForShutdown blocks until a shutdown signal is received.
func (a *App) WaitForShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}

// Shutdown stops components in dependency order: the scheduler first so no
// new work starts, then the engine's workers, then the stores.
func (a *App) Shutdown() {
	a.Sugar.Info("shutting down")

	a.Scheduler.Stop()
	a.Engine.Close()
	a.cancel()

	if err := a.Redis.Close(); err != nil {
		a.Sugar.Warnw("redis close failed", "error", err)
	}
	if err := a.ClickHouse.Close(); err != nil {
		a.Sugar.Warnw("clickhouse close failed", "error", err)
	}
	if err := a.SQLite.Close(); err != nil {
		a.Sugar.Warnw("sqlite close failed", "error", err)
	}

	a.Sugar.Info("shutdown complete")
	_ = a.Logger.Sync()
}
