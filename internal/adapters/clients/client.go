package clients

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/middleware"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/config"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/hitokoto-widget/internal/adapters/clients"

	// defaultTimeout applies when Config.Timeout is not positive.
	defaultTimeout = 10 * time.Second
)

// Config configures an HTTP client instance.
type Config struct {
	// BaseURL is the base URL for all requests (e.g., "https://v1.hitokoto.cn").
	BaseURL string

	// ServiceName identifies the downstream service for logging and tracing.
	ServiceName string

	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	// Transport configures the connection pool. Zero values fall back to
	// the config package defaults.
	Transport config.TransportConfig

	// UserAgent is sent on every request when set.
	UserAgent string

	// Logger is an optional logger. If nil, a default logger is used.
	Logger *slog.Logger
}

// Client is an instrumented HTTP client for one downstream service. Each
// call is a single attempt: callers decide whether and when to try again.
// Spans and trace propagation come from the otelhttp transport.
type Client struct {
	http      *http.Client
	pool      *http.Transport
	base      url.URL
	name      string
	userAgent string
	logger    *slog.Logger
	metrics   *clientMetrics
}

type clientMetrics struct {
	duration metric.Float64Histogram
	total    metric.Int64Counter
}

func newClientMetrics() (*clientMetrics, error) {
	meter := otel.Meter(instrumentationName)

	duration, durErr := meter.Float64Histogram("http.client.request.duration",
		metric.WithDescription("Time spent on one downstream request"),
		metric.WithUnit("s"))
	total, totalErr := meter.Int64Counter("http.client.request.total",
		metric.WithDescription("Downstream requests by outcome"))

	if err := errors.Join(durErr, totalErr); err != nil {
		return nil, fmt.Errorf("creating client metrics: %w", err)
	}

	return &clientMetrics{duration: duration, total: total}, nil
}

// New creates a new instrumented HTTP client.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}

	if cfg.ServiceName == "" {
		return nil, errors.New("service name is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/")

	metrics, err := newClientMetrics()
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool := newTransport(cfg.Transport)
	name := cfg.ServiceName

	return &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: otelhttp.NewTransport(pool,
				otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
					return "HTTP " + r.Method + " " + name
				}),
			),
		},
		pool:      pool,
		base:      *base,
		name:      name,
		userAgent: cfg.UserAgent,
		logger:    logger.With(slog.String("component", "clients.Client"), slog.String("downstream", name)),
		metrics:   metrics,
	}, nil
}

func newTransport(cfg config.TransportConfig) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // stdlib guarantees the type

	t.MaxIdleConns = orDefault(cfg.MaxIdleConns, config.DefaultTransportMaxIdleConns)
	t.MaxIdleConnsPerHost = orDefault(cfg.MaxIdleConnsPerHost, config.DefaultTransportMaxIdleConnsPerHost)
	t.IdleConnTimeout = orDefault(cfg.IdleConnTimeout, 90*time.Second)

	return t
}

func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}

	return def
}

// Do executes one HTTP request. Transport failures are wrapped in
// ErrRequestFailed; any response, whatever its status, is returned for the
// caller to interpret.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	c.setHeaders(ctx, req)

	resp, err := c.http.Do(req.WithContext(ctx))
	took := time.Since(start)

	logger := logging.FromContextOr(ctx, c.logger).With(
		slog.String("downstream", c.name),
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.Duration("duration", took),
	)

	if err != nil {
		result, level := "error", slog.LevelWarn
		// Cancellation is how superseded fetches end.
		if errors.Is(err, context.Canceled) {
			result, level = "canceled", slog.LevelDebug
		}

		c.record(ctx, req.Method, took, attribute.String("result", result))
		logger.Log(ctx, level, "request failed", slog.Any("error", err))

		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}

	c.record(ctx, req.Method, took,
		attribute.String("result", strconv.Itoa(resp.StatusCode/100)+"xx"),
		attribute.Int("http.status_code", resp.StatusCode))
	logger.Debug("request completed", slog.Int("status", resp.StatusCode))

	return resp, nil
}

// Get performs an HTTP GET request. query may be nil.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path, query), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	return c.Do(ctx, req)
}

// ServiceName returns the downstream name this client was built for.
func (c *Client) ServiceName() string {
	return c.name
}

// setHeaders forwards the request and correlation IDs and sets the user agent.
func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	for header, value := range map[string]string{
		middleware.HeaderRequestID:     middleware.RequestIDFromContext(ctx),
		middleware.HeaderCorrelationID: middleware.CorrelationIDFromContext(ctx),
		"User-Agent":                   c.userAgent,
	} {
		if value != "" {
			req.Header.Set(header, value)
		}
	}
}

// buildURL appends path to the base URL's path and sets the query.
func (c *Client) buildURL(path string, query url.Values) string {
	u := c.base
	u.Path = c.base.Path + "/" + strings.TrimPrefix(path, "/")
	u.RawQuery = query.Encode()

	return u.String()
}

func (c *Client) record(ctx context.Context, method string, took time.Duration, extra ...attribute.KeyValue) {
	attrs := metric.WithAttributes(append([]attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("peer.service", c.name),
	}, extra...)...)

	c.metrics.duration.Record(ctx, took.Seconds(), attrs)
	c.metrics.total.Add(ctx, 1, attrs)
}
