package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/bulk-pricing/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":           "postgres://localhost/pricing",
		"REDIS_URL":              "redis://localhost:6379/0",
		"PRICING_RULE_CACHE_TTL": "",
		"QUOTE_RATE_LIMIT":       "",
		"PORT":                   "",
	})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr())
	require.Equal(t, 5*time.Minute, cfg.RuleCacheTTL)
	require.Equal(t, "600-M", cfg.QuoteRateLimit)
	require.Equal(t, "admin", cfg.AdminRole)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"DATABASE_URL":                "postgres://localhost/pricing",
		"REDIS_URL":                   "redis://localhost:6379/0",
		"PORT":                        ":9090",
		"PRICING_RULE_LOOKUP_TIMEOUT": "750ms",
		"BREAKER_FAILURE_RATIO":       "0.25",
		"CORS_ALLOWED_ORIGINS":        "https://shop.example, https://admin.example",
		"DB_AUTO_MIGRATE":             "yes",
		"PRICING_RULE_MISS_TTL":       "not-a-duration",
	})
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.HTTPAddr())
	require.Equal(t, 750*time.Millisecond, cfg.RuleLookupTimeout)
	require.InDelta(t, 0.25, cfg.BreakerFailureRatio, 1e-9)
	require.Equal(t, []string{"https://shop.example", "https://admin.example"}, cfg.CORSAllowedOrigins)
	require.True(t, cfg.DBAutoMigrate)
	require.Equal(t, 30*time.Second, cfg.RuleMissTTL)
}

func TestLoadRequiresDatabase(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"DATABASE_URL": "", "REDIS_URL": "redis://localhost:6379/0"})
	require.EqualError(t, err, "DATABASE_URL is required")
}
