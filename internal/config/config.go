package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/JustinTDCT/CineGate/internal/pagination"
)

type Config struct {
	Port          int
	BaseURL       string
	Environment   string
	MongoURI      string
	MongoDatabase string
	RedisAddr     string
	DatabaseURL   string
	AppSecret     string

	PageSize           int
	RelatedLimit       int
	RevealDelay        time.Duration
	TokenTTL           time.Duration
	CacheTTL           time.Duration
	CacheSize          int
	DenylistedServices []string
	SitemapSchedule    string
	DownloadRatePerMin int
	// TrustedProxies lists the CIDRs or addresses whose forwarding
	// headers are believed.
	TrustedProxies []string

	LogLevel  string
	LogFormat string
	LogFile   string
	SentryDSN string
}

func Load() *Config {
	return &Config{
		Port:          envInt("PORT", 8080),
		BaseURL:       strings.TrimRight(env("BASE_URL", "http://localhost:8080"), "/"),
		Environment:   env("ENVIRONMENT", "development"),
		MongoURI:      env("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: env("MONGO_DATABASE", "cinegate"),
		RedisAddr:     env("REDIS_ADDR", ""),
		DatabaseURL:   env("DATABASE_URL", ""),
		AppSecret:     env("APP_SECRET", ""),

		PageSize:           envInt("PAGE_SIZE", 24),
		RelatedLimit:       envInt("RELATED_LIMIT", 12),
		RevealDelay:        envDuration("REVEAL_DELAY", 5*time.Second),
		TokenTTL:           envDuration("TOKEN_TTL", 10*time.Minute),
		CacheTTL:           envDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:          envInt("CACHE_SIZE", 2048),
		DenylistedServices: envList("DENYLISTED_SERVICES", []string{"Cloudflare"}),
		SitemapSchedule:    env("SITEMAP_SCHEDULE", "@every 1h"),
		DownloadRatePerMin: envInt("DOWNLOAD_RATE_PER_MIN", 60),
		TrustedProxies:     envList("TRUSTED_PROXIES", nil),

		LogLevel:  env("LOG_LEVEL", "info"),
		LogFormat: env("LOG_FORMAT", "json"),
		LogFile:   env("LOG_FILE", ""),
		SentryDSN: env("SENTRY_DSN", ""),
	}
}

// Validate reports settings the gateway cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	if c.MongoDatabase == "" {
		errs = append(errs, errors.New("MONGO_DATABASE is required"))
	}
	if len(c.AppSecret) < 32 {
		errs = append(errs, errors.New("APP_SECRET must be at least 32 bytes"))
	}
	if !pagination.Divides(c.PageSize) {
		errs = append(errs, fmt.Errorf("PAGE_SIZE must be a positive divisor of %d", pagination.MaxResponseSize))
	}
	return errors.Join(errs...)
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func (c *Config) AuditStoreEnabled() bool {
	return c.DatabaseURL != ""
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := cast.ToIntE(v); err == nil {
			return i
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := cast.ToDurationE(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range cast.ToStringSlice(strings.Split(v, ",")) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
