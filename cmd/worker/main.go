package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vendora/vendora/internal/app"
	jobmetrics "github.com/vendora/vendora/internal/jobs"
	"github.com/vendora/vendora/internal/platform/cache"
	"github.com/vendora/vendora/internal/platform/db"
	"github.com/vendora/vendora/internal/suppliers"
	"github.com/vendora/vendora/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	supplierRepo := suppliers.NewRepository(pool)

	var indexer suppliers.SearchIndexer = suppliers.NoopSearchIndexer{}
	if cfg.SearchIndexEnabled {
		indexer = suppliers.NewRedisSearchIndexer(redisClient)
	}

	logoJob := jobs.NewLogoFetchJob(supplierRepo, &http.Client{Timeout: 10 * time.Second}, logger)
	reindexJob := jobs.NewSearchReindexJob(supplierRepo, indexer, logger)

	jm := jobmetrics.NewMetrics(nil)
	tracked := func(name string, handler func(context.Context, *asynq.Task) error) func(context.Context, *asynq.Task) error {
		return func(ctx context.Context, task *asynq.Task) error {
			return jm.Track(name).End(handler(ctx, task))
		}
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLogoFetch, Handler: tracked(jobs.TaskLogoFetch, logoJob.Handle)},
			{Type: jobs.TaskSearchReindex, Handler: tracked(jobs.TaskSearchReindex, reindexJob.Handle)},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
