package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/bulk-pricing/internal/config"
	"github.com/noah-isme/bulk-pricing/internal/lock"
	"github.com/noah-isme/bulk-pricing/internal/migrations"
	"github.com/noah-isme/bulk-pricing/internal/obs"
	"github.com/noah-isme/bulk-pricing/internal/resilience"
	"github.com/noah-isme/bulk-pricing/internal/rules"
)

// Dependencies are the shared infrastructure handles of a process.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Store  *rules.PGStore
}

// Open connects to PostgreSQL and Redis. The caller owns Close.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, applicationName string) (*Dependencies, error) {
	pool, err := OpenDatabase(ctx, cfg, applicationName)
	if err != nil {
		return nil, err
	}
	rdb, err := OpenRedis(ctx, cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Dependencies{
		Config: cfg,
		Logger: logger,
		DB:     pool,
		Redis:  rdb,
		Store:  rules.NewPGStore(pool),
	}, nil
}

// OpenDatabase builds a traced pgx pool and verifies connectivity.
func OpenDatabase(ctx context.Context, cfg *config.Config, applicationName string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if applicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if cfg.DBMaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.DBMaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// OpenRedis builds an instrumented Redis client and verifies connectivity.
func OpenRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if cfg.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Migrate applies pending schema migrations.
func (d *Dependencies) Migrate() error {
	m, err := migrations.New(d.Config.DatabaseURL)
	if err != nil {
		return err
	}
	return errors.Join(migrations.Up(m), migrations.Close(m))
}

// RuleService assembles the rule lookup service over the shared handles.
// notifier may be nil.
func (d *Dependencies) RuleService(notifier rules.Notifier) *rules.Service {
	cfg := d.Config
	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("rule-store").
		WithLogger(d.Logger)
	return rules.NewService(rules.ServiceConfig{
		Store:         d.Store,
		Cache:         rules.NewCache(d.Redis, cfg.RuleCacheTTL, cfg.RuleMissTTL),
		Breaker:       breaker,
		Locker:        lock.Locker{R: d.Redis, RetryBackoff: cfg.LockRetryBackoff},
		Notifier:      notifier,
		LockTTL:       cfg.LockTTL,
		LookupTimeout: cfg.RuleLookupTimeout,
		Logger:        d.Logger,
	})
}

// Close releases the Redis client and database pool.
func (d *Dependencies) Close() error {
	var err error
	if d.Redis != nil {
		err = d.Redis.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
	return err
}
