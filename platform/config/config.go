// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSweepCronSpec() string
}

// NotificationConfig provides settings for the reactivation sweep and the
// notification records it produces (link construction back to the app).
type NotificationConfig interface {
	GetAppBaseURL() string
	GetSweepParallelism() int
}

// ProbabilityConfig provides the probability band tuning values.
// Defaults preserve the historical scoring bands; override only when the
// business bands change, never per-deployment casually.
type ProbabilityConfig interface {
	GetProbabilityBand(group string) (base, span, single int)
}

// =============================================================================
// Config
// =============================================================================

// Band holds the probability tuning values for one stage group.
type Band struct {
	Base   int
	Span   int
	Single int
}

type Config struct {
	Env             string
	HTTPAddr        string
	DatabaseURL     string
	JWTAccessSecret string
	CORSAllowAll    bool
	CORSOrigins     []string
	CORSAllowCreds  bool
	AppBaseURL      string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	SweepCronSpec    string
	SweepParallelism int

	ProbabilityBands map[string]Band
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetHTTPAddr() string        { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool      { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string   { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool    { return c.CORSAllowCreds }

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetSweepCronSpec() string  { return c.SweepCronSpec }

func (c *Config) GetAppBaseURL() string      { return c.AppBaseURL }
func (c *Config) GetSweepParallelism() int   { return c.SweepParallelism }

// GetProbabilityBand returns the tuning values for a stage group.
// Unknown groups return a zero band.
func (c *Config) GetProbabilityBand(group string) (int, int, int) {
	b, ok := c.ProbabilityBands[group]
	if !ok {
		return 0, 0, 0
	}
	return b.Base, b.Span, b.Single
}

// =============================================================================
// Loading
// =============================================================================

// Load reads configuration from environment variables, with .env support.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:    corsAllowAll,
		CORSOrigins:     corsOrigins,
		CORSAllowCreds:  strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:      getEnv("APP_BASE_URL", "http://localhost:4200"),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		// Daily at 06:00 by default; the sweep is idempotent so a tighter
		// schedule is safe, just noisy.
		SweepCronSpec:    getEnv("SWEEP_CRON", "0 6 * * *"),
		SweepParallelism: mustInt(getEnv("SWEEP_PARALLELISM", "4")),

		ProbabilityBands: loadProbabilityBands(),
	}

	if strings.EqualFold(cfg.Env, "production") {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required in production")
		}
		if cfg.JWTAccessSecret == "" {
			return nil, fmt.Errorf("JWT_ACCESS_SECRET is required in production")
		}
	}

	return cfg, nil
}

// loadProbabilityBands returns the band table with env overrides applied.
// The default values are historical business tuning; changing them breaks
// comparability of probability scores across old and new leads.
func loadProbabilityBands() map[string]Band {
	return map[string]Band{
		"open": {
			Base:   mustInt(getEnv("PROB_OPEN_BASE", "10")),
			Span:   mustInt(getEnv("PROB_OPEN_SPAN", "40")),
			Single: mustInt(getEnv("PROB_OPEN_SINGLE", "25")),
		},
		"follow_up": {
			Base:   mustInt(getEnv("PROB_FOLLOWUP_BASE", "41")),
			Span:   mustInt(getEnv("PROB_FOLLOWUP_SPAN", "39")),
			Single: mustInt(getEnv("PROB_FOLLOWUP_SINGLE", "60")),
		},
		"scheduling": {
			Base:   mustInt(getEnv("PROB_SCHEDULING_BASE", "81")),
			Span:   mustInt(getEnv("PROB_SCHEDULING_SPAN", "18")),
			Single: mustInt(getEnv("PROB_SCHEDULING_SINGLE", "90")),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func mustInt(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return n
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func containsWildcard(values []string) bool {
	for _, v := range values {
		if v == "*" {
			return true
		}
	}
	return false
}
