package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/middleware"
	"github.com/01moynul/projecthub-golang/internal/store"
)

//
// --- Notification Handlers ---
//

type listNotificationsQuery struct {
	Page       int  `form:"page" binding:"omitempty,min=1"`
	Limit      int  `form:"limit" binding:"omitempty,min=1"`
	UnreadOnly bool `form:"unreadOnly"`
}

// GetMyNotifications is the handler for GET /v1/notifications
// It returns one page of the caller's notifications, newest first.
func (h *Handlers) GetMyNotifications(c *gin.Context) {
	// 1. --- Get User & Query ---
	email := middleware.UserEmail(c)
	var q listNotificationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query: " + err.Error()})
		return
	}
	opts := store.ListOptions{Page: q.Page, Limit: q.Limit, UnreadOnly: q.UnreadOnly}
	opts.Normalize()

	// 2. --- Query Store ---
	ctx := c.Request.Context()
	page, err := h.Notifications.ListPage(ctx, email, opts)
	if err != nil {
		h.Log.Error("listing notifications", zap.String("user", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notifications"})
		return
	}

	// 3. --- Send Success Response ---
	// stats and the page come from the same snapshot.
	totalPages := (page.Total + opts.Limit - 1) / opts.Limit
	c.JSON(http.StatusOK, gin.H{
		"notifications": page.Items,
		"pagination": gin.H{
			"page":       opts.Page,
			"limit":      opts.Limit,
			"total":      page.Total,
			"totalPages": totalPages,
		},
		"unreadCount": page.Stats.Unread,
		"stats":       page.Stats,
	})
}

// MarkNotificationAsRead is the handler for POST (and PATCH) /v1/notifications/:id/read
// It returns the updated record. Missing and foreign notifications are both 404.
func (h *Handlers) MarkNotificationAsRead(c *gin.Context) {
	email := middleware.UserEmail(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	n, err := h.Notifications.MarkAsRead(c.Request.Context(), id, email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		h.Log.Error("marking notification read", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notification"})
		return
	}

	c.JSON(http.StatusOK, n)
}

// MarkAllNotificationsAsRead is the handler for POST /v1/notifications/read-all
func (h *Handlers) MarkAllNotificationsAsRead(c *gin.Context) {
	email := middleware.UserEmail(c)

	updated, err := h.Notifications.MarkAllAsRead(c.Request.Context(), email)
	if err != nil {
		h.Log.Error("marking all notifications read", zap.String("user", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update notifications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "All notifications marked as read",
		"updated": updated,
	})
}

// DeleteNotification is the handler for DELETE /v1/notifications/:id
func (h *Handlers) DeleteNotification(c *gin.Context) {
	email := middleware.UserEmail(c)
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	err := h.Notifications.Delete(c.Request.Context(), id, email)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		h.Log.Error("deleting notification", zap.Int64("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

// GetNotificationStats is the handler for GET /v1/notifications/stats
func (h *Handlers) GetNotificationStats(c *gin.Context) {
	email := middleware.UserEmail(c)

	stats, err := h.Notifications.Stats(c.Request.Context(), email)
	if err != nil {
		h.Log.Error("computing notification stats", zap.String("user", email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load notification stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}
