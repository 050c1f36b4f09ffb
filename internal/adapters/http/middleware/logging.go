package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
)

// ContextLogger stores logger in the request context so later middleware
// and handlers enrich and use it through logging.FromContext.
func ContextLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}
}

// Logging logs "request started" at debug and "request completed" at a
// level chosen by status. The completion line uses the logger as the
// handler left it, so it carries the widget session once one is resolved.
//
// Operational /-/ routes and the exact paths in quiet are not logged.
func Logging(quiet ...string) gin.HandlerFunc {
	skip := make(map[string]bool, len(quiet))
	for _, path := range quiet {
		skip[path] = true
	}

	return func(c *gin.Context) {
		if skip[c.Request.URL.Path] || strings.HasPrefix(c.Request.URL.Path, "/-/") {
			c.Next()
			return
		}

		start := time.Now()
		target := c.Request.URL.RequestURI()

		logging.FromContext(c.Request.Context()).Debug("request started",
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.String("client_ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
		)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)

		logging.FromContext(c.Request.Context()).Log(c.Request.Context(), completionLevel(status), "request completed",
			slog.String("method", c.Request.Method),
			slog.String("path", target),
			slog.String("route", c.FullPath()),
			slog.Int("status", status),
			slog.Int64("latency_ms", latency.Milliseconds()),
			slog.Int("bytes", c.Writer.Size()),
		)
	}
}

func completionLevel(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
