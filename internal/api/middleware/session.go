package middleware

import (
	"net/http"
	"strings"

	"github.com/alanensastegui/subsights-demo/backend/internal/shared/id"
	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie holds the visitor's session identifier.
	SessionCookie = "demo_sid"

	sessionKey    = "demo.session"
	sessionMaxAge = 365 * 24 * 60 * 60
)

// Session makes sure every visitor carries a session cookie. A missing or
// malformed cookie is replaced with a fresh identifier.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(SessionCookie)
		if err != nil || !id.IsValid(sid, id.SessionPrefix) {
			sid = id.NewSessionID().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(SessionCookie, sid, sessionMaxAge, "/", "", secureRequest(c), true)
		}
		c.Set(sessionKey, sid)
		c.Next()
	}
}

// secureRequest reports whether the visitor reached us over HTTPS, either
// directly or through a TLS-terminating proxy.
func secureRequest(c *gin.Context) bool {
	if c.Request.TLS != nil {
		return true
	}
	proto, _, _ := strings.Cut(c.GetHeader("X-Forwarded-Proto"), ",")
	return strings.EqualFold(strings.TrimSpace(proto), "https")
}

// SessionID returns the session set by Session, or "" when it did not run.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionKey)
}
