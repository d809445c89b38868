package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	CORSAllowedOrigins []string

	DBAutoMigrate bool
	DBMaxConns    int

	RuleCacheTTL      time.Duration
	RuleMissTTL       time.Duration
	RuleLookupTimeout time.Duration

	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration

	LockTTL          time.Duration
	LockRetryBackoff time.Duration
	IdempotencyTTL   time.Duration

	QuoteRateLimit   string
	RequestBodyLimit int64

	AdminJWTSecret    string
	AdminJWTIssuer    string
	AdminJWTAudience  string
	AdminJWTClockSkew time.Duration
	AdminRole         string
	AdminListLimit    int
	AdminListMaxLimit int

	TaskQueue         string
	WorkerConcurrency int
	AuditEnabled      bool

	SecurityHeaders bool
	EnableHSTS      bool

	LogFormat        string
	LogLevel         string
	MetricsBucketsMS string
	MetricsNamespace string
	MetricsEnabled   bool
	TracingEnabled   bool
	OTLPEndpoint     string
	TracingSampling  float64
	PprofEnabled     bool
	PprofUser        string
	PprofPass        string
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DBAutoMigrate: parseBool(k.String("DB_AUTO_MIGRATE"), false),
		DBMaxConns:    parseInt(k.String("DB_MAX_CONNS"), 10),

		RuleCacheTTL:      parseDuration(k.String("PRICING_RULE_CACHE_TTL"), "5m"),
		RuleMissTTL:       parseDuration(k.String("PRICING_RULE_MISS_TTL"), "30s"),
		RuleLookupTimeout: parseDuration(k.String("PRICING_RULE_LOOKUP_TIMEOUT"), "300ms"),

		BreakerMinRequests:  parseInt(k.String("BREAKER_MIN_REQUESTS"), 10),
		BreakerFailureRatio: parseFloat(k.String("BREAKER_FAILURE_RATIO"), 0.5),
		BreakerOpenFor:      parseDuration(k.String("BREAKER_OPEN_FOR"), "30s"),

		LockTTL:          parseDuration(k.String("LOCK_TTL"), "10s"),
		LockRetryBackoff: parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		IdempotencyTTL:   parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		QuoteRateLimit:   valueOrDefault(k.String("QUOTE_RATE_LIMIT"), "600-M"),
		RequestBodyLimit: int64(parseInt(k.String("REQUEST_BODY_LIMIT_BYTES"), 1<<20)),

		AdminJWTSecret:    k.String("ADMIN_JWT_SECRET"),
		AdminJWTIssuer:    strings.TrimSpace(k.String("ADMIN_JWT_ISSUER")),
		AdminJWTAudience:  strings.TrimSpace(k.String("ADMIN_JWT_AUDIENCE")),
		AdminJWTClockSkew: parseDuration(k.String("ADMIN_JWT_CLOCK_SKEW"), "30s"),
		AdminRole:         valueOrDefault(k.String("ADMIN_ROLE"), "admin"),
		AdminListLimit:    parseInt(k.String("ADMIN_LIST_DEFAULT_LIMIT"), 20),
		AdminListMaxLimit: parseInt(k.String("ADMIN_LIST_MAX_LIMIT"), 100),

		TaskQueue:         valueOrDefault(k.String("TASK_QUEUE"), "pricing"),
		WorkerConcurrency: parseInt(k.String("WORKER_CONCURRENCY"), 4),
		AuditEnabled:      parseBool(k.String("AUDIT_ENABLED"), true),

		SecurityHeaders: parseBool(k.String("SECURITY_HEADERS"), true),
		EnableHSTS:      parseBool(k.String("SECURITY_HSTS"), false),

		LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
		LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
		MetricsBucketsMS: k.String("OBS_METRICS_BUCKETS_MS"),
		MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "bulkpricing"),
		MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
		TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
		OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
		TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		PprofEnabled:     parseBool(k.String("OBS_ENABLE_PPROF"), false),
		PprofUser:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_USER")),
		PprofPass:        strings.TrimSpace(k.String("SECURE_PPROF_BASIC_AUTH_PASS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.AdminListLimit > cfg.AdminListMaxLimit {
		cfg.AdminListLimit = cfg.AdminListMaxLimit
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
