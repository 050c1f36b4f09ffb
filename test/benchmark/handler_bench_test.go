package benchmark

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	apphttp "github.com/jsamuelsen/hitokoto-widget/internal/adapters/http"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/handlers"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/middleware"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/views"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/store/memory"
	"github.com/jsamuelsen/hitokoto-widget/internal/app"
	"github.com/jsamuelsen/hitokoto-widget/internal/domain"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/config"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

func init() {
	// Set Gin to release mode for accurate benchmarks
	gin.SetMode(gin.ReleaseMode)
}

// staticFetcher answers every fetch immediately with the same quote.
type staticFetcher struct{}

func (staticFetcher) Fetch(_ context.Context, category domain.Category) (*domain.Quote, error) {
	return &domain.Quote{ID: 1, Text: "x", From: "y", Category: category}, nil
}

// createGinContext creates a Gin context for handler testing.
func createGinContext(w http.ResponseWriter, r *http.Request) *gin.Context {
	c, _ := gin.CreateTestContext(w)
	c.Request = r
	return c
}

// setupHealthHandler creates a HealthHandler with a minimal registry for benchmarking.
func setupHealthHandler() *handlers.HealthHandler {
	return handlers.NewHealthHandler(handlers.HealthHandlerConfig{
		Registry: ports.NewHealthRegistry(),
		Build:    handlers.NewBuildInfo("1.0.0", "abc123", "2024-01-01T00:00:00Z"),
	})
}

// setupRouter builds the full router over an in-memory widget service.
func setupRouter(b *testing.B) (*gin.Engine, *app.WidgetService) {
	b.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	widgets := app.NewWidgetService(app.WidgetServiceConfig{
		Fetcher: staticFetcher{},
		Store: memory.New(memory.Config[*app.Widget]{
			TTL:     time.Hour,
			OnEvict: app.EvictWidget,
			Logger:  logger,
		}),
		Logger: logger,
	})
	b.Cleanup(func() { _ = widgets.Close(context.Background()) })

	widgetHandler := handlers.NewWidgetHandler(handlers.WidgetHandlerConfig{
		Widgets: widgets,
		Cookie:  handlers.SessionCookie{TTL: time.Hour},
		Footer:  views.Footer{Project: "Hitokoto App", Version: "1.0.0", Author: "Unknown"},
	})

	engine := gin.New()
	cfg := apphttp.NewDefaultRouterConfig(logger,
		&config.AppConfig{Name: "hitokoto-widget", Version: "bench", Environment: "test"},
		setupHealthHandler(), widgetHandler)
	if err := apphttp.SetupRouter(engine, cfg); err != nil {
		b.Fatal(err)
	}

	return engine, widgets
}

// openSession creates a settled session and returns its cookie.
func openSession(b *testing.B, engine *gin.Engine, widgets *app.WidgetService) *http.Cookie {
	b.Helper()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		b.Fatal("no session cookie")
	}

	if _, err := widgets.Wait(context.Background(), cookies[0].Value); err != nil {
		b.Fatal(err)
	}

	return cookies[0]
}

// BenchmarkLivenessHandler measures the performance of the liveness endpoint.
// This is a critical path for Kubernetes probes and should be extremely fast.
func BenchmarkLivenessHandler(b *testing.B) {
	handler := setupHealthHandler()
	req := httptest.NewRequest(http.MethodGet, "/-/live", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		c := createGinContext(w, req)
		handler.Liveness(c)
	}
}

// BenchmarkWidgetPage measures rendering the page for an existing session.
func BenchmarkWidgetPage(b *testing.B) {
	engine, widgets := setupRouter(b)
	cookie := openSession(b, engine, widgets)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.AddCookie(cookie)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
	}
}

// BenchmarkStylesheet measures the stylesheet, conditional and not.
func BenchmarkStylesheet(b *testing.B) {
	engine, widgets := setupRouter(b)
	cookie := openSession(b, engine, widgets)

	first := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/style.css", http.NoBody)
	req.AddCookie(cookie)
	engine.ServeHTTP(first, req)
	etag := first.Header().Get("ETag")

	b.Run("full", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			engine.ServeHTTP(httptest.NewRecorder(), req)
		}
	})

	b.Run("not modified", func(b *testing.B) {
		conditional := req.Clone(context.Background())
		conditional.Header.Set("If-None-Match", etag)

		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			engine.ServeHTTP(httptest.NewRecorder(), conditional)
		}
	})
}

// BenchmarkAPIGetWidget measures the JSON widget endpoint.
func BenchmarkAPIGetWidget(b *testing.B) {
	engine, widgets := setupRouter(b)
	cookie := openSession(b, engine, widgets)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widget", http.NoBody)
	req.AddCookie(cookie)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
	}
}

// BenchmarkToggleTheme measures a style mutation that needs no fetch.
func BenchmarkToggleTheme(b *testing.B) {
	engine, widgets := setupRouter(b)
	cookie := openSession(b, engine, widgets)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/widget/theme/toggle", http.NoBody)
		req.AddCookie(cookie)
		engine.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkMiddlewareChain measures the overhead of the request middleware.
func BenchmarkMiddlewareChain(b *testing.B) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	router := gin.New()
	router.Use(
		middleware.Recovery(nil),
		middleware.ContextLogger(logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.Logging(),
		middleware.ClientHints(),
	)
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
	}
}
