package http

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/handlers"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/middleware"
	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/views"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/config"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/telemetry"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

// DefaultRequestTimeout bounds page and API handlers, including an explicit
// wait on a quote fetch.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the base logger stored in every request context.
	Logger *slog.Logger

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// WidgetHandler serves the widget page and its JSON API.
	WidgetHandler *handlers.WidgetHandler

	// Reporter receives recovered panics. Nil drops them.
	Reporter ports.ErrorReporter

	// Timeout is the request deadline for page and API routes.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Context logger - base logger for the request
//  3. Request ID - generate/extract request ID
//  4. Correlation ID - handle distributed tracing correlation
//  5. OpenTelemetry - tracing and metrics
//  6. Logging - request logging (skips health endpoints and the stylesheet)
//  7. Client hints - ask for the color scheme preference
//
// Route groups:
//   - /-/ (internal): health endpoints, no timeout
//   - / (page): widget page, form posts and style.css
//   - /api/v1/: JSON API
func SetupRouter(engine *gin.Engine, cfg RouterConfig) error {
	tmpl, err := views.Templates()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	engine.SetHTMLTemplate(tmpl)

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	engine.Use(
		middleware.Recovery(cfg.Reporter),
		middleware.ContextLogger(logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.AppConfig.Name),
		telemetry.Middleware(),
		middleware.Logging("/style.css"),
		middleware.ClientHints(),
	)

	// Register health endpoints (no timeout for probes)
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutes(engine.Group("/-"))
	}

	if cfg.WidgetHandler == nil {
		return nil
	}

	page := engine.Group("/", middleware.Timeout(cfg.Timeout))
	cfg.WidgetHandler.RegisterRoutes(page)

	apiV1 := engine.Group("/api/v1", middleware.Timeout(cfg.Timeout))
	cfg.WidgetHandler.RegisterAPIRoutes(apiV1)

	return nil
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	healthHandler *handlers.HealthHandler,
	widgetHandler *handlers.WidgetHandler,
) RouterConfig {
	return RouterConfig{
		Logger:        logger,
		AppConfig:     appCfg,
		HealthHandler: healthHandler,
		WidgetHandler: widgetHandler,
		Timeout:       DefaultRequestTimeout,
	}
}
