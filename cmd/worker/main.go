package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/bulk-pricing/internal/app"
	"github.com/noah-isme/bulk-pricing/internal/audit"
	"github.com/noah-isme/bulk-pricing/internal/config"
	"github.com/noah-isme/bulk-pricing/internal/obs"
	"github.com/noah-isme/bulk-pricing/internal/resilience"
	"github.com/noah-isme/bulk-pricing/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
		resilience.MustRegisterMetrics(prometheus.DefaultRegisterer)
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.Open(startCtx, cfg, logger, "bulk-pricing-worker")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task queue redis url")
	}

	// The worker only warms caches; it never publishes further changes.
	ruleService := deps.RuleService(nil)
	srv := tasks.NewServer(redisOpt, tasks.ServerConfig{
		Queue:       cfg.TaskQueue,
		Concurrency: cfg.WorkerConcurrency,
		Logger:      logger,
	})
	mux := tasks.NewServeMux(tasks.RuleChangedHandler{
		Warmer:   ruleService,
		Activity: audit.Service{Store: audit.NewPGStore(deps.DB), Enabled: cfg.AuditEnabled},
		Logger:   logger,
	})

	logger.Info().Str("queue", cfg.TaskQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")
	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
