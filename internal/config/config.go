// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the server configuration from OCMS_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// Supported database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// ScheduleOff disables a scheduled job.
const ScheduleOff = "off"

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBDriver   string `env:"OCMS_DB_DRIVER" envDefault:"sqlite"`
	DBPath     string `env:"OCMS_DB_PATH" envDefault:"./data/ocms-nav.db"`
	DBDSN      string `env:"OCMS_DB_DSN"` // MySQL DSN, required when DBDriver is mysql
	ServerHost string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel   string `env:"OCMS_LOG_LEVEL" envDefault:"info"`

	// Cache configuration
	RedisURL          string `env:"OCMS_REDIS_URL"`                         // Optional Redis URL for distributed caching
	CachePrefix       string `env:"OCMS_CACHE_PREFIX" envDefault:"ocms:"`   // Redis key prefix
	CacheTTL          int    `env:"OCMS_CACHE_TTL" envDefault:"3600"`       // Default cache TTL in seconds
	CacheMaxSize      int    `env:"OCMS_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries
	CacheWarmSchedule string `env:"OCMS_CACHE_WARM_SCHEDULE" envDefault:"@every 10m"`

	// Maintenance jobs
	IntegritySchedule string        `env:"OCMS_INTEGRITY_SCHEDULE" envDefault:"@hourly"`
	EventRetention    time.Duration `env:"OCMS_EVENT_RETENTION" envDefault:"720h"` // 0 keeps events forever

	// Request handling
	ReorderRateLimit float64       `env:"OCMS_REORDER_RATE_LIMIT" envDefault:"5"` // per client, per second; 0 disables
	ReorderBurst     int           `env:"OCMS_REORDER_BURST" envDefault:"10"`
	RequestTimeout   time.Duration `env:"OCMS_REQUEST_TIMEOUT" envDefault:"30s"`

	// Rendered menu options
	MenuLogoURL  string `env:"OCMS_MENU_LOGO_URL"`
	MenuLogoAlt  string `env:"OCMS_MENU_LOGO_ALT"`
	MenuCSSClass string `env:"OCMS_MENU_CSS_CLASS" envDefault:"menu"`

	// PreviewChrome enables the headless Chrome height probe on previews.
	PreviewChrome     bool   `env:"OCMS_PREVIEW_CHROME" envDefault:"false"`
	PreviewChromePath string `env:"OCMS_PREVIEW_CHROME_PATH"` // empty uses the chromedp lookup
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// CacheTTLDuration returns CacheTTL as a duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// SlogLevel maps LogLevel onto a slog level. Load has already rejected
// unknown names.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	return load(env.Options{})
}

func load(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("OCMS_DB_PATH is required for the sqlite driver"))
		}
	case DriverMySQL:
		if c.DBDSN == "" {
			errs = append(errs, errors.New("OCMS_DB_DSN is required for the mysql driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("OCMS_DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMySQL, c.DBDriver))
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("OCMS_SERVER_PORT must be between 1 and 65535, got %d", c.ServerPort))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("OCMS_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}

	if c.CacheTTL < 0 {
		errs = append(errs, fmt.Errorf("OCMS_CACHE_TTL must not be negative, got %d", c.CacheTTL))
	}
	if c.ReorderRateLimit < 0 {
		errs = append(errs, fmt.Errorf("OCMS_REORDER_RATE_LIMIT must not be negative, got %g", c.ReorderRateLimit))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("OCMS_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}

	for name, expr := range map[string]string{
		"OCMS_CACHE_WARM_SCHEDULE": c.CacheWarmSchedule,
		"OCMS_INTEGRITY_SCHEDULE":  c.IntegritySchedule,
	} {
		if expr == "" || expr == ScheduleOff {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
