// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func loadFrom(t *testing.T, vars map[string]string) (*Config, error) {
	t.Helper()
	if vars == nil {
		vars = map[string]string{}
	}
	return load(env.Options{Environment: vars})
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := loadFrom(t, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBDriver != DriverSQLite {
		t.Errorf("DBDriver = %q, want %q", cfg.DBDriver, DriverSQLite)
	}
	if cfg.DBPath != "./data/ocms-nav.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "./data/ocms-nav.db")
	}
	if cfg.ServerAddr() != "localhost:8080" {
		t.Errorf("ServerAddr() = %q, want %q", cfg.ServerAddr(), "localhost:8080")
	}
	if !cfg.IsDevelopment() {
		t.Error("default env should be development")
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, want INFO", cfg.SlogLevel())
	}
	if cfg.CacheTTLDuration() != time.Hour {
		t.Errorf("CacheTTLDuration() = %v, want 1h", cfg.CacheTTLDuration())
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
	if cfg.ReorderRateLimit != 5 || cfg.ReorderBurst != 10 {
		t.Errorf("reorder limit = %g/%d, want 5/10", cfg.ReorderRateLimit, cfg.ReorderBurst)
	}
	if cfg.EventRetention != 720*time.Hour {
		t.Errorf("EventRetention = %v, want 720h", cfg.EventRetention)
	}
	if cfg.UseRedisCache() || cfg.PreviewChrome {
		t.Error("redis and chrome should be off by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{
		"OCMS_DB_DRIVER":           "mysql",
		"OCMS_DB_DSN":              "nav:secret@tcp(db:3306)/nav",
		"OCMS_SERVER_HOST":         "0.0.0.0",
		"OCMS_SERVER_PORT":         "3000",
		"OCMS_ENV":                 "production",
		"OCMS_LOG_LEVEL":           "debug",
		"OCMS_REDIS_URL":           "redis://cache:6379/0",
		"OCMS_CACHE_WARM_SCHEDULE": "*/5 * * * *",
		"OCMS_REORDER_RATE_LIMIT":  "0.5",
		"OCMS_REQUEST_TIMEOUT":     "5s",
		"OCMS_PREVIEW_CHROME":      "true",
	})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.DBDriver != DriverMySQL || cfg.DBDSN != "nav:secret@tcp(db:3306)/nav" {
		t.Errorf("db = %q %q", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.ServerAddr() != "0.0.0.0:3000" {
		t.Errorf("ServerAddr() = %q", cfg.ServerAddr())
	}
	if cfg.IsDevelopment() {
		t.Error("production env reported as development")
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v, want DEBUG", cfg.SlogLevel())
	}
	if !cfg.UseRedisCache() {
		t.Error("UseRedisCache() = false")
	}
	if cfg.ReorderRateLimit != 0.5 {
		t.Errorf("ReorderRateLimit = %g", cfg.ReorderRateLimit)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
	if !cfg.PreviewChrome {
		t.Error("PreviewChrome = false")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		wantErr string
	}{
		{"unknown driver", map[string]string{"OCMS_DB_DRIVER": "postgres"}, "OCMS_DB_DRIVER"},
		{"mysql without dsn", map[string]string{"OCMS_DB_DRIVER": "mysql"}, "OCMS_DB_DSN"},
		{"port zero", map[string]string{"OCMS_SERVER_PORT": "0"}, "OCMS_SERVER_PORT"},
		{"port too large", map[string]string{"OCMS_SERVER_PORT": "70000"}, "OCMS_SERVER_PORT"},
		{"port not a number", map[string]string{"OCMS_SERVER_PORT": "http"}, "parsing config"},
		{"log level", map[string]string{"OCMS_LOG_LEVEL": "verbose"}, "OCMS_LOG_LEVEL"},
		{"negative ttl", map[string]string{"OCMS_CACHE_TTL": "-1"}, "OCMS_CACHE_TTL"},
		{"bad schedule", map[string]string{"OCMS_CACHE_WARM_SCHEDULE": "every now and then"}, "OCMS_CACHE_WARM_SCHEDULE"},
		{"zero timeout", map[string]string{"OCMS_REQUEST_TIMEOUT": "0s"}, "OCMS_REQUEST_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadFrom(t, tt.vars)
			if err == nil {
				t.Fatal("Load() should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %s", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	cfg, err := loadFrom(t, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg.DBDriver = "oracle"
	cfg.ServerPort = -1

	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should fail")
	}
	for _, want := range []string{"OCMS_DB_DRIVER", "OCMS_SERVER_PORT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}

func TestLoad_DisabledSchedule(t *testing.T) {
	cfg, err := loadFrom(t, map[string]string{"OCMS_INTEGRITY_SCHEDULE": ScheduleOff})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.IntegritySchedule != ScheduleOff {
		t.Errorf("IntegritySchedule = %q, want %q", cfg.IntegritySchedule, ScheduleOff)
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}
