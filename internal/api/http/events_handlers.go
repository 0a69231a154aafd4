package http

import (
	"errors"
	"net/http"

	"github.com/alanensastegui/subsights-demo/backend/internal/api/middleware"
	"github.com/alanensastegui/subsights-demo/backend/internal/domain/telemetry"
	"github.com/gin-gonic/gin"
)

// RecordEvent accepts an orchestration event reported by a client.
func (h *Handlers) RecordEvent(c *gin.Context) {
	var in telemetry.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event body"})
		return
	}
	if in.SessionID == "" {
		in.SessionID = middleware.SessionID(c)
	}

	event, err := h.events.Record(c.Request.Context(), in)
	if errors.Is(err, telemetry.ErrInvalidEvent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record event"})
		return
	}
	c.JSON(http.StatusCreated, event)
}

// ListEvents returns stored events, newest first.
func (h *Handlers) ListEvents(c *gin.Context) {
	events, _ := h.events.List(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// ClearEvents removes every stored event.
func (h *Handlers) ClearEvents(c *gin.Context) {
	if err := h.events.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear events"})
		return
	}
	c.Status(http.StatusNoContent)
}

// EventSummary returns fallback statistics over stored events.
func (h *Handlers) EventSummary(c *gin.Context) {
	summary, _ := h.events.Summary(c.Request.Context())
	c.JSON(http.StatusOK, summary)
}
