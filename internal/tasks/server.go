package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// ServerConfig configures the rule-change worker.
type ServerConfig struct {
	Queue           string
	Concurrency     int
	ShutdownTimeout time.Duration
	Logger          zerolog.Logger
}

// NewServer builds an asynq server consuming the pricing queue.
func NewServer(redis asynq.RedisConnOpt, cfg ServerConfig) *asynq.Server {
	queue := strings.TrimSpace(cfg.Queue)
	if queue == "" {
		queue = "pricing"
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = 10 * time.Second
	}
	logger := cfg.Logger
	return asynq.NewServer(redis, asynq.Config{
		Concurrency:     concurrency,
		Queues:          map[string]int{queue: 1},
		ShutdownTimeout: shutdown,
		Logger:          logAdapter{logger: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			logger.Warn().Err(err).
				Str("task_type", task.Type()).
				Int("retry", retried).
				Int("max_retry", maxRetry).
				Msg("task failed")
		}),
	})
}

// logAdapter routes asynq's internal logging through zerolog.
type logAdapter struct {
	logger zerolog.Logger
}

func (l logAdapter) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l logAdapter) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
