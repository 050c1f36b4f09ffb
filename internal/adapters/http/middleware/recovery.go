package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/hitokoto-widget/internal/adapters/http/dto"
	"github.com/jsamuelsen/hitokoto-widget/internal/platform/logging"
	"github.com/jsamuelsen/hitokoto-widget/internal/ports"
)

// panicMessage is all a client learns about a panic.
const panicMessage = "an internal error occurred"

// Recovery turns a handler panic into a 500. The panic and its stack are
// logged and sent to reporter, which may be nil. API routes get the JSON
// error envelope; page routes get plain text.
//
// A response that is already partly written is left as is.
func Recovery(reporter ports.ErrorReporter) gin.HandlerFunc {
	if reporter == nil {
		reporter = ports.NopErrorReporter{}
	}

	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			ctx := c.Request.Context()
			traceID := dto.GetTraceID(c)

			logging.FromContext(ctx).Error("panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("method", c.Request.Method),
				slog.String("path", c.Request.URL.Path),
				slog.String("trace_id", traceID),
			)
			reporter.Report(ctx, fmt.Errorf("panic: %v", r), map[string]string{
				"route": c.FullPath(),
			})

			switch {
			case c.Writer.Written():
				c.Abort()
			case strings.HasPrefix(c.Request.URL.Path, "/api/"):
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					dto.NewErrorResponse(dto.ErrorCodeInternal, panicMessage).WithTraceID(traceID))
			default:
				c.Abort()
				c.String(http.StatusInternalServerError, panicMessage+" (trace "+traceID+")")
			}
		}()

		c.Next()
	}
}
