package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitPerIP(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 2}))
	router.GET("/relay", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	request := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/relay", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(router, req).Code
	}

	assert.Equal(t, http.StatusNoContent, request("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, request("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, request("10.0.0.1"))

	// Other clients have their own bucket.
	assert.Equal(t, http.StatusNoContent, request("10.0.0.2"))
}

func TestRateLimitRejectionBody(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}))
	router.GET("/relay", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	serve(router, httptest.NewRequest(http.MethodGet, "/relay", nil))
	w := serve(router, httptest.NewRequest(http.MethodGet, "/relay", nil))

	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestIPLimiterEvictsIdleClients(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := newIPLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 1}, func() time.Time { return now })

	assert.True(t, l.allow("10.0.0.1"))
	assert.True(t, l.allow("10.0.0.2"))
	require.Equal(t, 2, l.size())

	now = now.Add(idleClientTTL + time.Second)
	assert.True(t, l.allow("10.0.0.3"))
	assert.Equal(t, 1, l.size())

	// Refilled after the idle period.
	assert.True(t, l.allow("10.0.0.1"))
}

func TestCORSWildcard(t *testing.T) {
	router := gin.New()
	router.Use(CORS(DefaultCORSConfig()))
	router.GET("/api/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	w := serve(router, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORSExplicitOrigins(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://demo.subsights.example"}

	router := gin.New()
	router.Use(CORS(cfg))
	router.GET("/api/events", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "https://demo.subsights.example")
	w := serve(router, req)
	assert.Equal(t, "https://demo.subsights.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = serve(router, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSessionIssuesCookieOnce(t *testing.T) {
	router := gin.New()
	router.Use(Session())
	router.GET("/demo", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/demo", nil))
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)
	assert.Equal(t, sessionMaxAge, cookies[0].MaxAge)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, cookies[0].Value, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/demo", nil)
	req.AddCookie(cookies[0])
	w = serve(router, req)
	assert.Empty(t, w.Result().Cookies())
	assert.Equal(t, cookies[0].Value, w.Body.String())
}

func TestSessionReplacesMalformedCookie(t *testing.T) {
	router := gin.New()
	router.Use(Session())
	router.GET("/demo", func(c *gin.Context) { c.String(http.StatusOK, SessionID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/demo", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-session"})
	w := serve(router, req)

	require.Len(t, w.Result().Cookies(), 1)
	assert.NotEqual(t, "not-a-session", w.Body.String())
	assert.True(t, strings.HasPrefix(w.Body.String(), "sess_"))
}

func TestSessionCookieSecureBehindTLS(t *testing.T) {
	router := gin.New()
	router.Use(Session())
	router.GET("/demo", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		target string
		proto  string
		secure bool
	}{
		{name: "plain http", target: "/demo"},
		{name: "direct tls", target: "https://demo.subsights.com/demo", secure: true},
		{name: "forwarded https", target: "/demo", proto: "https", secure: true},
		{name: "forwarded chain", target: "/demo", proto: "HTTPS, http", secure: true},
		{name: "forwarded http", target: "/demo", proto: "http"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.proto != "" {
				req.Header.Set("X-Forwarded-Proto", tt.proto)
			}
			cookies := serve(router, req).Result().Cookies()
			require.Len(t, cookies, 1)
			assert.Equal(t, tt.secure, cookies[0].Secure)
		})
	}
}
