// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/olegiv/plz-cms/internal/config"
	"github.com/olegiv/plz-cms/internal/handler"
	"github.com/olegiv/plz-cms/internal/hub"
	"github.com/olegiv/plz-cms/internal/logging"
	"github.com/olegiv/plz-cms/internal/middleware"
	"github.com/olegiv/plz-cms/internal/version"
)

const requestTimeout = 30 * time.Second

func main() {
	// Parse CLI flags
	configPath := flag.String("config", envOr("PLZ_CONFIG", "plz.yaml"), "Path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	var tr transferFlags
	flag.StringVar(&tr.exportPath, "export", "", "Export the collections to `file` and exit")
	flag.StringVar(&tr.importPath, "import", "", "Import collections from `file` (JSON or zip) and exit")
	flag.BoolVar(&tr.zip, "zip", false, "Write the export as a zip archive")
	flag.BoolVar(&tr.secrets, "secrets", false, "Include password hashes and recovery tokens in the export")
	flag.BoolVar(&tr.overwrite, "overwrite", false, "Replace existing documents on import instead of skipping them")
	flag.BoolVar(&tr.dryRun, "dry-run", false, "Report what an import would change without writing")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "plz - headless content management API\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "       %s -export backup.zip -zip [-secrets]\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "       %s -import backup.zip [-overwrite] [-dry-run]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_CONFIG                 Configuration file (default: plz.yaml)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_DB_DEFAULT             URI of the default database\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_MAIL_DEFAULT_SERVICE   Mail service of the default transport\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_MAIL_DEFAULT_ADDRESS   Sender address of the default transport\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_MAIL_DEFAULT_PASSWORD  Password of the default transport\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_SERVER_HOST            Listen host (default: localhost)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_SERVER_PORT            Listen port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_ENV                    Environment: development|production (default: development)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_LOG_LEVEL              debug|info|warn|error (default: info)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  PLZ_REDIS_URL              Redis URL for the label cache (optional)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		_, _ = fmt.Println(version.Get())
		os.Exit(0)
	}

	if tr.exportPath != "" && tr.importPath != "" {
		_, _ = fmt.Fprintln(os.Stderr, "-export and -import are mutually exclusive")
		os.Exit(2)
	}

	if err := run(*configPath, tr); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(configPath string, tr transferFlags) error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	opts := &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}
	var base slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDevelopment() {
		base = slog.NewTextHandler(os.Stdout, opts)
	}

	// WARN and ERROR also go to the event collection once the default database is open
	eventLog := logging.NewEventLogHandler(base)
	logger := slog.New(eventLog)
	slog.SetDefault(logger)

	ctx := context.Background()
	h, err := hub.Configure(ctx, cfg, logger, hub.WithEventLog(eventLog))
	if err != nil {
		return fmt.Errorf("configuring hub: %w", err)
	}
	defer func() {
		if err := h.Close(); err != nil {
			slog.Error("error closing hub", "error", err)
		}
	}()

	if tr.active() {
		return runTransfer(ctx, h, tr)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.GetHead)
	r.Use(middleware.Metrics(h.Metrics()))

	health := handler.NewHealthHandler(h.Databases())
	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Handle("/metrics", h.Metrics().Handler())

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(requestTimeout))
		r.Route("/system", handler.NewSystemHandler(h, logger).Routes)
		h.Routes(r)
	})

	h.Scheduler().Start()

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           r,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "version", version.Get().Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	}

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
