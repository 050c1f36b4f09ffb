// Package errtrack ships fetch failure causes to Sentry.
package errtrack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

// flushTimeout bounds how long Close waits for buffered events.
const flushTimeout = 2 * time.Second

// Config configures the Sentry reporter.
type Config struct {
	DSN         string
	Environment string
	Release     string
	SampleRate  float64

	// Transport overrides event delivery. Tests use it to capture events.
	Transport sentry.Transport

	Logger *slog.Logger
}

// SentryReporter implements ports.ErrorReporter on a dedicated Sentry hub so
// it never touches the global client.
type SentryReporter struct {
	hub    *sentry.Hub
	logger *slog.Logger
}

// New creates a reporter. An empty DSN returns ports.NopErrorReporter so
// callers never need to check whether reporting is on.
func New(cfg Config) (ports.ErrorReporter, error) {
	if cfg.DSN == "" {
		return ports.NopErrorReporter{}, nil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
		Transport:   cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("creating sentry client: %w", err)
	}

	logger.Info("sentry error reporting enabled", slog.String("environment", cfg.Environment))

	return &SentryReporter{
		hub:    sentry.NewHub(client, sentry.NewScope()),
		logger: logger,
	}, nil
}

// Report captures err with tags. Delivery is asynchronous.
func (r *SentryReporter) Report(_ context.Context, err error, tags map[string]string) {
	if err == nil {
		return
	}

	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)

		if id := hub.CaptureException(err); id == nil {
			r.logger.Debug("sentry dropped event", slog.Any("error", err))
		}
	})
}

// Close flushes buffered events. It reports whether the flush completed.
func (r *SentryReporter) Close() bool {
	return r.hub.Flush(flushTimeout)
}
