package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/providers/origin"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const htmlContentType = "text/html; charset=utf-8"

// Proxy serves the injected target page, or an error-announcement document
// when delivery failed. Only unknown slugs get a non-200 answer.
func (h *Handlers) Proxy(c *gin.Context) {
	slug := c.Param("slug")
	rendered, err := h.proxy.Render(c.Request.Context(), slug, c.Request.UserAgent())
	if errors.Is(err, target.ErrNotFound) {
		c.String(http.StatusNotFound, "unknown demo: %s", slug)
		return
	}
	if err != nil {
		h.logger.Error("proxy render failed", zap.String("slug", slug), zap.Error(err))
		rendered.HTML = origin.ErrorDocument(&origin.Failure{Reason: types.ReasonProxyError})
	}

	if h.metrics != nil {
		var reason types.Reason
		if rendered.Failure != nil {
			reason = rendered.Failure.Reason
		}
		h.metrics.RecordProxyRender(slug, reason, rendered.Duration)
	}

	c.Header("Cache-Control", "no-store")
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, htmlContentType, []byte(rendered.HTML))
}

// Relay forwards an intercepted network call from a proxied page to the
// target origin.
func (h *Handlers) Relay(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}

	resp, err := h.relay.Forward(c.Request.Context(), t, origin.RelayRequest{
		Method: c.Request.Method,
		URL:    c.Query("url"),
		Header: c.Request.Header,
		Body:   c.Request.Body,
	})
	if errors.Is(err, origin.ErrOutsideOrigin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "url is outside the target origin"})
		return
	}
	if err != nil {
		h.logger.Warn("relay failed", zap.String("slug", t.Slug), zap.Error(err))
		if h.metrics != nil {
			h.metrics.RecordRelay(t.Slug, 0)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "upstream unavailable"})
		return
	}
	defer resp.Body.Close()

	if h.metrics != nil {
		h.metrics.RecordRelay(t.Slug, resp.Status)
	}
	for key, values := range resp.Header {
		for _, v := range values {
			c.Writer.Header().Add(key, v)
		}
	}
	c.Status(resp.Status)
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		h.logger.Debug("relay body copy interrupted", zap.String("slug", t.Slug), zap.Error(err))
	}
}

// Probe reports whether the target is likely embeddable.
func (h *Handlers) Probe(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}

	result := h.prober.Probe(c.Request.Context(), t)
	if h.metrics != nil {
		h.metrics.RecordProbe(t.Slug, result.Allowed)
	}
	c.JSON(http.StatusOK, gin.H{
		"allowed": result.Allowed,
		"detail":  result.Detail,
		"summary": result.Summary(),
	})
}
