package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/bulk-pricing/internal/app"
	"github.com/noah-isme/bulk-pricing/internal/audit"
	"github.com/noah-isme/bulk-pricing/internal/auth"
	"github.com/noah-isme/bulk-pricing/internal/common"
	"github.com/noah-isme/bulk-pricing/internal/config"
	"github.com/noah-isme/bulk-pricing/internal/health"
	"github.com/noah-isme/bulk-pricing/internal/obs"
	"github.com/noah-isme/bulk-pricing/internal/quote"
	"github.com/noah-isme/bulk-pricing/internal/ratelimit"
	"github.com/noah-isme/bulk-pricing/internal/resilience"
	"github.com/noah-isme/bulk-pricing/internal/rules"
	"github.com/noah-isme/bulk-pricing/internal/security"
	"github.com/noah-isme/bulk-pricing/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
		resilience.MustRegisterMetrics(prometheus.DefaultRegisterer)
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), nil)
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   "bulk-pricing-api",
			Endpoint:      cfg.OTLPEndpoint,
			SamplingRatio: cfg.TracingSampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	startCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	deps, err := app.Open(startCtx, cfg, logger, "bulk-pricing-api")
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error().Err(err).Msg("close dependencies")
		}
	}()

	if cfg.DBAutoMigrate {
		if err := deps.Migrate(); err != nil {
			logger.Fatal().Err(err).Msg("apply migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse task queue redis url")
	}
	taskClient := asynq.NewClient(redisOpt)
	ruleService := deps.RuleService(tasks.NewEnqueuer(taskClient, cfg.TaskQueue))
	ruleHandler := rules.NewHandler(ruleService, logger, cfg.AdminListLimit, cfg.AdminListMaxLimit)
	quoteHandler := quote.NewHandler(ruleService, logger)

	verifier, err := auth.NewVerifier(auth.Config{
		Secret:       cfg.AdminJWTSecret,
		Issuer:       cfg.AdminJWTIssuer,
		Audience:     cfg.AdminJWTAudience,
		ClockSkew:    cfg.AdminJWTClockSkew,
		RequiredRole: cfg.AdminRole,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("admin authentication disabled")
		verifier = nil
	}
	adminAuth := auth.Middleware{Verifier: verifier, Logger: logger}

	quoteLimiter, err := ratelimit.NewRedisLimiter(deps.Redis, cfg.QuoteRateLimit, "ratelimit:quote")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote rate limiter")
	}
	quoteLimit := ratelimit.Handler{
		Limiter: quoteLimiter,
		Key:     ratelimit.ByClientIP,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	activityHandler := audit.Handler{
		Service:      audit.Service{Store: audit.NewPGStore(deps.DB), Enabled: cfg.AuditEnabled},
		DefaultLimit: cfg.AdminListLimit,
		MaxLimit:     cfg.AdminListMaxLimit,
	}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL, Prefix: "idem:pricing:"}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	healthHandler := health.Handler{
		Checker:        readinessChecker{db: deps.DB, redis: deps.Redis},
		DBTimeout:      500 * time.Millisecond,
		RedisTimeout:   300 * time.Millisecond,
		RuleStoreState: ruleService.BreakerState,
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.RequestBodyLimit}.Middleware)

		v.Route("/pricing", func(p chi.Router) {
			p.Use(quoteLimit.Middleware)
			p.Post("/quote", quoteHandler.Quote)
			p.Post("/preview", quoteHandler.Preview)
		})
		v.Get("/products/{productId}/pricing-rule", ruleHandler.TierTable)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(adminAuth.RequireAdmin)
			admin.Get("/pricing-rules", ruleHandler.AdminList)
			admin.Get("/pricing-rules/activity", activityHandler.List)
			admin.Route("/products/{productId}/pricing-rule", func(pr chi.Router) {
				pr.Get("/", ruleHandler.AdminGet)
				pr.Group(func(w chi.Router) {
					w.Use(idem.Middleware)
					w.Put("/", ruleHandler.AdminPut)
					w.Delete("/", ruleHandler.AdminDelete)
				})
			})
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-ctx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	if err := taskClient.Close(); err != nil {
		logger.Error().Err(err).Msg("close task client")
	}
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
