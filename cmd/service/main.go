// Package main is the entry point for the hitokoto widget server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/clients"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/clients/acl"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/errtrack"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/handlers"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/views"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/store/memory"
	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/config"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/telemetry"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

// Build-time variables, injected via ldflags.
// Example: go build -ldflags "-X main.Version=1.0.0 -X main.Commit=$(git rev-parse HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	// Version is the semantic version of the service.
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "unknown"

	// BuildTime is the timestamp when the binary was built.
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Determine profile from environment
	profile := os.Getenv("APP_ENVIRONMENT")
	if profile == "" {
		profile = "local"
	}

	// 2. Load and validate configuration (fail fast)
	cfg, err := config.Load(profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// 3. Initialize logging
	logger := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: cfg.App.Version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	logging.SetDefault(logger)

	logger.Info("starting service",
		slog.String("version", Version),
		slog.String("commit", Commit),
		slog.String("environment", cfg.App.Environment),
	)

	// 4. Initialize telemetry (noop if disabled)
	telProvider, err := telemetry.New(ctx, &telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Endpoint:     cfg.Telemetry.Endpoint,
		ServiceName:  cfg.Telemetry.ServiceName,
		Version:      cfg.App.Version,
		Environment:  cfg.App.Environment,
		SamplingRate: cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}

	defer func() {
		if shutdownErr := telProvider.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
			logger.Error("telemetry shutdown error", slog.Any("error", shutdownErr))
		}
	}()

	// 5. Metrics registry served on /metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := app.NewMetrics(registry)

	// 6. Error reporting (nop without a DSN)
	reporter, err := errtrack.New(errtrack.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.App.Environment,
		Release:     Version,
		SampleRate:  cfg.Sentry.SampleRate,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating error reporter: %w", err)
	}

	// 7. Create HTTP client for the quote service
	httpClient, err := clients.New(&clients.Config{
		BaseURL:     cfg.Services.Hitokoto.BaseURL,
		ServiceName: cfg.Services.Hitokoto.Name,
		Timeout:     cfg.Client.Timeout,
		Transport:   cfg.Client.Transport,
		UserAgent:   cfg.App.Name + "/" + Version,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP client: %w", err)
	}

	// 8. Create hitokoto client adapter (ACL pattern)
	hitokotoClient := acl.NewHitokotoClient(acl.HitokotoClientConfig{
		Client:        httpClient,
		CategoryParam: cfg.Services.Hitokoto.CategoryParam,
		Logger:        logger,
	})

	healthRegistry := ports.NewHealthRegistry(ports.WithCheckTimeout(cfg.Client.Timeout))
	if err := healthRegistry.Register(hitokotoClient); err != nil {
		return fmt.Errorf("registering hitokoto health check: %w", err)
	}

	// 9. Create quote and widget services (application layer)
	quoteService := app.NewQuoteService(app.QuoteServiceConfig{
		QuoteClient: hitokotoClient,
		Reporter:    reporter,
		Metrics:     metrics,
		Logger:      logger,
	})

	defaults, err := defaultStyle(cfg.Widget.Style)
	if err != nil {
		return fmt.Errorf("invalid default style: %w", err)
	}

	store := memory.New(memory.Config[*app.Widget]{
		TTL:     cfg.Widget.SessionTTL,
		OnEvict: app.EvictWidget,
		Logger:  logger,
	})
	go store.Run(ctx, cfg.Widget.SweepInterval)

	widgets := app.NewWidgetService(app.WidgetServiceConfig{
		Fetcher:      quoteService,
		Store:        store,
		Defaults:     defaults,
		FetchTimeout: cfg.Client.Timeout,
		Metrics:      metrics,
		Logger:       logger,
	})
	app.RegisterSessionGauge(registry, widgets.Sessions)

	// 10. Create handlers
	footer := cfg.Footer.Resolved()
	buildInfo := handlers.NewBuildInfo(Version, Commit, BuildTime)
	healthHandler := handlers.NewHealthHandler(handlers.HealthHandlerConfig{
		Registry: healthRegistry,
		Build:    buildInfo,
		Gatherer: registry,
		Sessions: widgets.Sessions,
	})
	widgetHandler := handlers.NewWidgetHandler(handlers.WidgetHandlerConfig{
		Widgets: widgets,
		Cookie: handlers.SessionCookie{
			TTL:    cfg.Widget.SessionTTL,
			Secure: cfg.App.Environment == "prod",
		},
		Footer: views.Footer{
			Project: footer.Project,
			Version: footer.Version,
			Author:  footer.Author,
		},
		PrefersDark: cfg.Widget.PrefersDark,
	})

	// 11. Create HTTP server and router
	server := http.New(&cfg.Server, logger)

	routerCfg := http.NewDefaultRouterConfig(logger, &cfg.App, healthHandler, widgetHandler)
	routerCfg.Reporter = reporter
	if err := http.SetupRouter(server.Engine(), routerCfg); err != nil {
		return fmt.Errorf("setting up router: %w", err)
	}

	// 12. Start server (non-blocking)
	serverErr := server.Start()

	// 13. Wait for shutdown signal
	return waitForShutdown(ctx, logger, server, widgets, reporter, serverErr, cfg.Server.ShutdownTimeout)
}

// defaultStyle builds the initial widget style from config.
func defaultStyle(s config.StyleConfig) (domain.Style, error) {
	return domain.NewStyle(domain.Settings{
		FontFamily:   s.FontFamily,
		FontSize:     s.FontSize,
		Gradient:     s.Gradient,
		TextColor:    s.TextColor,
		BorderColor:  s.BorderColor,
		ShadowColor:  s.ShadowColor,
		BorderRadius: s.BorderRadius,
		PanelOpen:    s.PanelOpen,
		Category:     s.Category,
	})
}

// waitForShutdown blocks until a shutdown signal is received or server error occurs.
// It then stops the HTTP server, cancels in-flight fetches and flushes error reports.
func waitForShutdown(
	ctx context.Context,
	logger *slog.Logger,
	server *http.Server,
	widgets *app.WidgetService,
	reporter ports.ErrorReporter,
	serverErr <-chan error,
	shutdownTimeout time.Duration,
) error {
	// Listen for OS signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		// Server error during startup or runtime
		return fmt.Errorf("server error: %w", err)

	case sig := <-quit:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	logger.Info("initiating graceful shutdown",
		slog.Duration("timeout", shutdownTimeout),
	)

	// Stop accepting new requests, drain in-flight
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	// Drop sessions and wait for their fetches to stop
	if err := widgets.Close(shutdownCtx); err != nil {
		logger.Warn("widget fetches still running at shutdown", slog.Any("error", err))
	}

	if flusher, ok := reporter.(interface{ Close() bool }); ok && !flusher.Close() {
		logger.Warn("error reports not flushed before shutdown")
	}

	logger.Info("shutdown complete")

	return nil
}
