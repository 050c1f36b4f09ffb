package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderPrefersColorScheme is the client hint carrying the browser's color
// scheme preference ("light" or "dark").
const HeaderPrefersColorScheme = "Sec-CH-Prefers-Color-Scheme"

// ClientHints asks browsers to send the color scheme hint on subsequent
// requests. Responses vary on it because a new session seeds dark mode
// from it.
func ClientHints() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Accept-CH", HeaderPrefersColorScheme)
		c.Header("Vary", HeaderPrefersColorScheme)
		c.Next()
	}
}

// PrefersDark reads the color scheme hint. ok is false when the browser did
// not send a recognizable value.
func PrefersDark(c *gin.Context) (dark, ok bool) {
	switch strings.Trim(strings.ToLower(c.GetHeader(HeaderPrefersColorScheme)), `" `) {
	case "dark":
		return true, true
	case "light":
		return false, true
	default:
		return false, false
	}
}
