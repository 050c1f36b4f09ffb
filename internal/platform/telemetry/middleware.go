package telemetry

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
)

// HeaderTraceID echoes the request's trace ID back to the browser.
const HeaderTraceID = "X-Trace-ID"

// probePrefix groups the health and metrics routes, which are not traced.
const probePrefix = "/-/"

// serverInstruments are the OTLP request instruments. The prometheus
// collectors on /-/metrics cover quote fetches; these cover page traffic.
type serverInstruments struct {
	duration metric.Float64Histogram
	answered metric.Int64Counter
	inflight metric.Int64UpDownCounter
}

func newServerInstruments(meter metric.Meter) (*serverInstruments, error) {
	var (
		si   serverInstruments
		errs [3]error
	)

	si.duration, errs[0] = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Time taken to answer a widget request"),
		metric.WithUnit("s"))
	si.answered, errs[1] = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Widget requests answered"))
	si.inflight, errs[2] = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Widget requests in flight"))

	if err := errors.Join(errs[:]...); err != nil {
		return nil, err
	}

	return &si, nil
}

func (si *serverInstruments) begin(ctx context.Context, route attribute.Set) func(status int) {
	if si == nil {
		return func(int) {}
	}

	start := time.Now()
	si.inflight.Add(ctx, 1, metric.WithAttributeSet(route))

	return func(status int) {
		si.inflight.Add(ctx, -1, metric.WithAttributeSet(route))

		done := metric.WithAttributes(append(route.ToSlice(), attribute.Int("http.status_code", status))...)
		si.duration.Record(ctx, time.Since(start).Seconds(), done)
		si.answered.Add(ctx, 1, done)
	}
}

// Middleware records request metrics, tags the request logger with the
// trace ID and echoes it in X-Trace-ID.
// It expects TracingMiddleware to run first so a span is in the context.
func Middleware() gin.HandlerFunc {
	instruments, err := newServerInstruments(otel.Meter(instrumentationName))
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Request = c.Request.WithContext(logging.WithTraceID(ctx, traceID))
			c.Header(HeaderTraceID, traceID)
		}

		finish := instruments.begin(ctx, attribute.NewSet(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
		))

		c.Next()

		finish(c.Writer.Status())
	}
}

// TracingMiddleware starts a server span per request. Probe routes under
// /-/ are not traced.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !strings.HasPrefix(r.URL.Path, probePrefix)
	}))
}
