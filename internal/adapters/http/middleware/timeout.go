package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout puts a deadline of limit on the request context. It never writes
// a response itself. Handlers that wait, e.g. for a quote fetch, watch
// ctx.Done() and answer with whatever state they have.
//
// Quote fetches run detached from this deadline. A non-positive limit
// leaves the context alone.
func Timeout(limit time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), limit)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
