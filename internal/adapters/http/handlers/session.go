package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// DefaultSessionCookie names the cookie that carries the widget session ID.
const DefaultSessionCookie = "hitokoto_session"

// SessionCookie reads and writes the widget session cookie.
type SessionCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

func (s SessionCookie) name() string {
	if s.Name == "" {
		return DefaultSessionCookie
	}

	return s.Name
}

// Read returns the session ID, or "" when the browser sent none.
func (s SessionCookie) Read(c *gin.Context) string {
	id, err := c.Cookie(s.name())
	if err != nil {
		return ""
	}

	return id
}

// Write sets the cookie. It is written on every response so its lifetime
// follows the store's sliding expiry.
func (s SessionCookie) Write(c *gin.Context, id string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     s.name(),
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.TTL.Seconds()),
		Secure:   s.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
