// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/ocms-nav/internal/cache"
	"github.com/olegiv/ocms-nav/internal/config"
	"github.com/olegiv/ocms-nav/internal/handler"
	"github.com/olegiv/ocms-nav/internal/logging"
	"github.com/olegiv/ocms-nav/internal/navtree"
	"github.com/olegiv/ocms-nav/internal/preview"
	"github.com/olegiv/ocms-nav/internal/preview/browser"
	"github.com/olegiv/ocms-nav/internal/scheduler"
	"github.com/olegiv/ocms-nav/internal/service"
	"github.com/olegiv/ocms-nav/internal/store"
	"github.com/olegiv/ocms-nav/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")
	envFile := flag.String("env-file", ".env", "Path to an optional .env file")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "oCMS navigation server\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_DRIVER         sqlite (default) or mysql\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_PATH           SQLite database path (default: ./data/ocms-nav.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_DB_DSN            MySQL DSN\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SERVER_HOST       Server host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_SERVER_PORT       Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_ENV               Environment: development, production\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_LOG_LEVEL         Log level: debug, info, warn, error\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_REDIS_URL         Redis URL for the shared cache\n")
		_, _ = fmt.Fprintf(os.Stderr, "  OCMS_PREVIEW_CHROME    Measure previews in headless Chrome (true/false)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if *showVersion {
		fmt.Println(buildInfo())
		os.Exit(0)
	}

	if err := run(*envFile); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func buildInfo() version.Info {
	return version.Info{Version: appVersion, GitCommit: appGitCommit, BuildTime: appBuildTime}
}

func run(envFile string) error {
	// Optional in development; production sets the environment directly.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", envFile, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	plainLogger := slog.New(textHandler)
	slog.SetDefault(plainLogger)

	plainLogger.Info("starting", "build", buildInfo().String(), "env", cfg.Env, "driver", cfg.DBDriver)

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	// From here on WARN and above also land in the event log.
	logger := slog.New(logging.NewEventLogHandler(textHandler, db))
	slog.SetDefault(logger)

	cacheManager := cache.NewManager(cache.Config{
		RedisURL:        cfg.RedisURL,
		Prefix:          cfg.CachePrefix,
		DefaultTTL:      cfg.CacheTTLDuration(),
		MaxSize:         cfg.CacheMaxSize,
		CleanupInterval: time.Minute,
	}, logger)
	defer func() { _ = cacheManager.Close() }()

	menus := service.NewMenuService(db, cacheManager.Nav, logger)
	contents := service.NewContentService(db, cacheManager.Nav, logger)
	// The event service reports its own failures on the plain logger so a
	// broken events table cannot recurse into itself.
	events := service.NewEventService(db, plainLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	renderer := preview.NewRenderer()
	deps := handler.Deps{
		DB:       db,
		Cache:    cacheManager,
		Version:  buildInfo(),
		Menus:    menus,
		Contents: contents,
		Events:   events,
		Renderer: renderer,
		Logger:   logger,
		MenuRender: handler.MenuRenderOptions{
			LogoURL:  cfg.MenuLogoURL,
			LogoAlt:  cfg.MenuLogoAlt,
			CSSClass: cfg.MenuCSSClass,
			Limits:   navtree.DefaultLimits,
		},
		IsDevelopment:  cfg.IsDevelopment(),
		RequestTimeout: cfg.RequestTimeout,
		ReorderRate:    cfg.ReorderRateLimit,
		ReorderBurst:   cfg.ReorderBurst,
	}

	if cfg.PreviewChrome {
		probe, closeProbe, err := startProbe(ctx, cfg, renderer, logger)
		if err != nil {
			logger.Warn("preview height probe disabled", "category", "preview", "error", err)
		} else {
			defer closeProbe()
			deps.Probe = probe
		}
	}

	sched := scheduler.New(logger)
	for _, job := range []scheduler.Job{
		scheduler.CacheWarmJob(cfg.CacheWarmSchedule, menus, contents, logger),
		scheduler.IntegrityJob(cfg.IntegritySchedule, menus, logger),
		scheduler.EventRetentionJob(cfg.EventRetention, events, logger),
	} {
		if err := sched.Register(job); err != nil {
			return err
		}
	}
	// Warm and check once at startup so the first requests hit the cache
	// and stored problems show up immediately.
	for _, name := range []string{scheduler.JobCacheWarm, scheduler.JobMenuIntegrity} {
		if err := sched.TriggerNow(name); err != nil {
			logger.Warn("startup job failed", "category", "system", "job", name, "error", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           handler.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}

// openDatabase opens the configured store and applies migrations.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := cfg.DBDSN
	if cfg.DBDriver == config.DriverSQLite {
		dsn = cfg.DBPath
		if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := store.Open(cfg.DBDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := store.MigrateDriver(db, cfg.DBDriver); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return db, nil
}

// startProbe launches headless Chrome and wires it behind a Compositor.
func startProbe(ctx context.Context, cfg *config.Config, renderer *preview.Renderer, logger *slog.Logger) (*preview.Probe, func(), error) {
	var opts []browser.Option
	if cfg.PreviewChromePath != "" {
		opts = append(opts, browser.WithExecPath(cfg.PreviewChromePath))
	}
	surface, err := browser.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}

	comp := preview.NewCompositor(surface, logger, preview.WithRenderer(renderer))
	logger.Info("preview height probe enabled", "category", "preview")
	// Closing the compositor also closes the browser surface.
	return preview.NewProbe(comp, preview.DefaultSettle), func() { _ = comp.Close() }, nil
}
