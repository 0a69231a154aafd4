package http

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/alanensastegui/subsights-demo/backend/internal/domain/target"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/monitoring"
	"github.com/alanensastegui/subsights-demo/backend/internal/infrastructure/resilience"
	"github.com/alanensastegui/subsights-demo/backend/internal/providers/origin"
	"github.com/alanensastegui/subsights-demo/backend/internal/providers/probe"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the components the handlers serve. Metrics and Breakers are optional.
type Deps struct {
	Registry target.Registry
	Proxy    *origin.Proxy
	Relay    *origin.Relay
	Prober   *probe.Prober
	Events   *telemetry.Store
	Metrics  *monitoring.Metrics
	Breakers *resilience.Set
	Logger   *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	registry target.Registry
	proxy    *origin.Proxy
	relay    *origin.Relay
	prober   *probe.Prober
	events   *telemetry.Store
	metrics  *monitoring.Metrics
	breakers *resilience.Set
	logger   *zap.Logger
}

// NewHandlers creates a new handler set
func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		registry: deps.Registry,
		proxy:    deps.Proxy,
		relay:    deps.Relay,
		prober:   deps.Prober,
		events:   deps.Events,
		metrics:  deps.Metrics,
		breakers: deps.Breakers,
		logger:   logger,
	}
}

// Health handles liveness checks
func (h *Handlers) Health(c *gin.Context) {
	resp := gin.H{
		"status":  "healthy",
		"service": "subsights-demo",
		"targets": len(h.registry.List()),
	}
	if h.breakers != nil {
		open := make(map[string]string)
		for key, state := range h.breakers.Snapshot() {
			if state != resilience.StateClosed {
				open[key] = state.String()
			}
		}
		resp["breakers"] = open
	}
	c.JSON(http.StatusOK, resp)
}

// targetView is the public shape of a target.
type targetView struct {
	Slug           string `json:"slug"`
	Label          string `json:"label"`
	URL            string `json:"url"`
	AllowEmbedding bool   `json:"allowEmbedding"`
	Embed          string `json:"embed"`
}

var apiKeyAttr = regexp.MustCompile(`(?i)(` + origin.AttrAPIKey + `\s*=\s*)("[^"]*"|'[^']*'|[^\s>]+)`)

// redactSnippet hides the widget api key.
func redactSnippet(snippet string) string {
	return apiKeyAttr.ReplaceAllString(snippet, `${1}"[redacted]"`)
}

// ListTargets lists registered targets without secrets
func (h *Handlers) ListTargets(c *gin.Context) {
	targets := h.registry.List()
	out := make([]targetView, 0, len(targets))
	for _, t := range targets {
		out = append(out, targetView{
			Slug:           t.Slug,
			Label:          t.DisplayLabel(),
			URL:            t.BaseURL,
			AllowEmbedding: t.AllowEmbedding,
			Embed:          redactSnippet(t.Embed),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"targets": out,
		"count":   len(out),
	})
}

// lookup resolves the :slug parameter. It writes a 404 and reports false
// when the slug is not registered.
func (h *Handlers) lookup(c *gin.Context) (target.Target, bool) {
	slug := c.Param("slug")
	t, err := h.registry.Lookup(slug)
	if errors.Is(err, target.ErrNotFound) {
		c.String(http.StatusNotFound, "unknown demo: %s", slug)
		return target.Target{}, false
	}
	if err != nil {
		c.String(http.StatusInternalServerError, "registry error")
		return target.Target{}, false
	}
	return t, true
}
