package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/middleware"
	"github.com/01moynul/projecthub-golang/internal/models"
	"github.com/01moynul/projecthub-golang/internal/stream"
)

const defaultHeartbeat = 25 * time.Second

var connectedFrame = models.ConnectionFrame{
	Type:    "connection",
	Message: "Connected to notification stream",
}

// StreamNotifications is the handler for GET /v1/notifications/stream
// It holds the response open as an event stream until the client goes away
// or a newer stream of the same user replaces it.
func (h *Handlers) StreamNotifications(c *gin.Context) {
	email := middleware.UserEmail(c)
	log := h.Log.With(zap.String("user", email))

	// 1. --- Check Streaming Support ---
	w := c.Writer
	flusher, ok := w.(http.Flusher)
	if !ok {
		log.Error("notification stream: response writer cannot flush")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Streaming unsupported"})
		return
	}

	// 2. --- Prepare Headers ---
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// 3. --- Handshake ---
	// Only this goroutine writes the response; pushes are queued on conn.
	rc := http.NewResponseController(w)
	conn := stream.NewConn(w, flusher, stream.WithWriteDeadline(rc.SetWriteDeadline, stream.DefaultWriteTimeout))
	if err := conn.Send(connectedFrame); err != nil {
		log.Warn("notification stream: handshake failed", zap.Error(err))
		return
	}

	// 4. --- Register, Released On Every Exit Path ---
	h.Registry.Register(email, conn)
	defer func() {
		h.Registry.Release(email, conn)
		conn.Close()
		log.Debug("notification stream closed", zap.String("conn", conn.ID()))
	}()
	log.Debug("notification stream opened", zap.String("conn", conn.ID()))

	// 5. --- Write Frames And Heartbeats Until Done ---
	interval := h.Heartbeat
	if interval <= 0 {
		interval = defaultHeartbeat
	}
	if err := conn.Serve(c.Request.Context(), interval); err != nil {
		log.Debug("notification stream write failed", zap.String("conn", conn.ID()), zap.Error(err))
	}
}
