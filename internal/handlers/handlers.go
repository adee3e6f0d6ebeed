package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/notify"
	"github.com/01moynul/projecthub-golang/internal/store"
	"github.com/01moynul/projecthub-golang/internal/stream"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	DB            *sqlx.DB
	Notifications store.NotificationStore
	Projects      store.ProjectStore
	Tasks         store.TaskStore
	Dispatcher    *notify.Dispatcher
	Registry      *stream.Registry
	Log           *zap.Logger

	// Heartbeat is the interval of keep-alive comments on open streams.
	Heartbeat time.Duration
	// BrokerMode is reported by /health: "local" or "redis".
	BrokerMode string
}

// Ping is the handler for GET /v1/ping
func (h *Handlers) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong!"})
}

// Health is the handler for GET /v1/health
func (h *Handlers) Health(c *gin.Context) {
	dbStatus := "ok"
	status := http.StatusOK
	if err := h.DB.PingContext(c.Request.Context()); err != nil {
		h.Log.Error("health check: database ping failed", zap.Error(err))
		dbStatus = "down"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   http.StatusText(status),
		"database": dbStatus,
		"streams":  h.Registry.Len(),
		"broker":   h.BrokerMode,
	})
}

// notifyBestEffort dispatches a notification for a domain action. A failure
// is logged and never fails the action itself.
func (h *Handlers) notifyBestEffort(ctx context.Context, recipientID string, typ models.NotificationType, title, message string, assoc *notify.Associations) {
	if _, err := h.Dispatcher.Notify(ctx, recipientID, typ, title, message, assoc); err != nil {
		h.Log.Error("failed to send notification",
			zap.String("recipient", recipientID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}

// parseIDParam reads a positive int64 path parameter, answering 400 otherwise.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}
