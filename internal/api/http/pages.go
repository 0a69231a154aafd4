package http

import (
	"bytes"
	"html/template"
	"net/http"
	"net/url"

	"github.com/alanensastegui/subsights-demo/backend/internal/providers/origin"
	"github.com/alanensastegui/subsights-demo/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Shell serves the page that opens the view channel and hosts whichever
// mode the server picks. ?mode= forces a mode.
func (h *Handlers) Shell(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}

	viewPath := "/api/demo/" + t.Slug + "/view"
	if raw := c.Query("mode"); raw != "" {
		mode, ok := types.ParseMode(raw)
		if !ok {
			c.String(http.StatusBadRequest, "unknown mode: %s", raw)
			return
		}
		viewPath += "?mode=" + url.QueryEscape(mode.String())
	}

	h.renderPage(c, shellTemplate, shellData{
		Slug:        t.Slug,
		Label:       t.DisplayLabel(),
		ViewPath:    viewPath,
		DefaultPath: "/api/demo/" + t.Slug + "/default",
		StatusType:  origin.MessageType,
	})
}

// DefaultPage serves the locally rendered page carrying the widget snippet.
// It needs no cross-origin trust, so it is the last stop of every view.
func (h *Handlers) DefaultPage(c *gin.Context) {
	t, ok := h.lookup(c)
	if !ok {
		return
	}

	data := defaultData{
		Label: t.DisplayLabel(),
		URL:   t.BaseURL,
	}
	if u, err := url.Parse(t.BaseURL); err == nil {
		data.Host = u.Host
	}
	if err := origin.ValidateSnippet(t.Embed); err != nil {
		h.logger.Error("target has a malformed widget snippet",
			zap.String("slug", t.Slug),
			zap.Error(err),
		)
		data.Misconfigured = true
	} else {
		// Operator-supplied markup from the registry.
		data.Snippet = template.HTML(t.Embed)
	}

	h.renderPage(c, defaultTemplate, data)
}

func (h *Handlers) renderPage(c *gin.Context, tmpl *template.Template, data interface{}) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		h.logger.Error("failed to render page", zap.String("template", tmpl.Name()), zap.Error(err))
		c.String(http.StatusInternalServerError, "page unavailable")
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, htmlContentType, buf.Bytes())
}
