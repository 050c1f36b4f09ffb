// Package app contains application services that orchestrate use cases.
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/telemetry"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

// QuoteService performs single quote fetches. It owns everything around the
// call: tracing, metrics, logging the cause of a failure and reporting it.
// Callers only ever see domain.ErrFetchFailed.
type QuoteService struct {
	quoteClient ports.QuoteClient
	reporter    ports.ErrorReporter
	metrics     *Metrics
	logger      *slog.Logger
}

// QuoteServiceConfig contains configuration for the quote service.
type QuoteServiceConfig struct {
	QuoteClient ports.QuoteClient
	Reporter    ports.ErrorReporter
	Metrics     *Metrics
	Logger      *slog.Logger
}

// NewQuoteService creates a new quote service with the provided dependencies.
// Panics if QuoteClient is nil.
func NewQuoteService(cfg QuoteServiceConfig) *QuoteService {
	if cfg.QuoteClient == nil {
		panic("QuoteService: QuoteClient is required")
	}

	svc := &QuoteService{
		quoteClient: cfg.QuoteClient,
		reporter:    cfg.Reporter,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}

	if svc.reporter == nil {
		svc.reporter = ports.NopErrorReporter{}
	}
	if svc.metrics == nil {
		svc.metrics = NewMetrics(nil)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}

	return svc
}

// Fetch retrieves one random quote in the given category.
//
// A canceled ctx means the fetch was superseded; that is recorded as
// canceled and not reported. Every other failure is logged with its cause
// and sent to the error reporter.
func (s *QuoteService) Fetch(ctx context.Context, category domain.Category) (*domain.Quote, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "quote.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("hitokoto.category", string(category)))

	logger := logging.FromContextOr(ctx, s.logger).With(slog.String("category", string(category)))

	start := time.Now()
	quote, err := s.quoteClient.RandomQuote(ctx, category)
	s.metrics.fetchDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		s.metrics.fetchTotal.WithLabelValues(ResultSuccess).Inc()
		span.SetAttributes(attribute.Int("hitokoto.id", quote.ID))
		logger.DebugContext(ctx, "fetched quote", slog.Int("quote_id", quote.ID))

		return quote, nil
	}

	if !domain.IsFetchFailure(err) {
		err = domain.NewFetchError("request", err)
	}

	if errors.Is(err, context.Canceled) {
		s.metrics.fetchTotal.WithLabelValues(ResultCanceled).Inc()
		logger.DebugContext(ctx, "quote fetch canceled")

		return nil, err
	}

	s.metrics.fetchTotal.WithLabelValues(ResultFailure).Inc()
	span.SetStatus(codes.Error, domain.FetchFailureMessage)
	span.RecordError(err)

	stage := ""
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) {
		stage = fetchErr.Stage
	}

	logger.WarnContext(ctx, "quote fetch failed",
		slog.String("stage", stage),
		slog.Any("error", err),
	)
	s.reporter.Report(ctx, err, map[string]string{
		"stage":    stage,
		"category": string(category),
	})

	return nil, err
}
