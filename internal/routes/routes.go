package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/01moynul/projecthub-golang/internal/auth"
	"github.com/01moynul/projecthub-golang/internal/handlers"
	"github.com/01moynul/projecthub-golang/internal/middleware"
)

// CORSMiddleware lets the configured web client call the API.
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. Allow only the configured frontend origin
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)

		// 2. Allow credentials
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")

		// 3. Allow the headers we use ("Authorization" for JWT, "Last-Event-ID" for streams)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID, Last-Event-ID")

		// 4. Allow the HTTP methods we use in our API
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		// 5. Answer the preflight OPTIONS request with 204
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Options configures SetupRouter.
type Options struct {
	AllowedOrigin string
	Tokens        *auth.TokenManager
	// StreamLimiter throttles stream (re)connects per user; nil disables it.
	StreamLimiter *middleware.UserRateLimiter
	Log           *zap.Logger
}

func SetupRouter(h *handlers.Handlers, opts Options) *gin.Engine {
	router := gin.New()

	// --- Global middleware; CORS first ---
	router.Use(CORSMiddleware(opts.AllowedOrigin))
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(opts.Log))

	v1 := router.Group("/v1")
	{
		// --- Public Routes ---
		v1.GET("/ping", h.Ping)
		v1.GET("/health", h.Health)

		// --- Protected Routes (Login Required) ---
		authed := v1.Group("/")
		authed.Use(middleware.AuthMiddleware(opts.Tokens))
		{
			// --- Notification Routes ---
			streamChain := []gin.HandlerFunc{}
			if opts.StreamLimiter != nil {
				streamChain = append(streamChain, opts.StreamLimiter.Handler())
			}
			streamChain = append(streamChain, h.StreamNotifications)
			authed.GET("/notifications/stream", streamChain...)

			authed.GET("/notifications", h.GetMyNotifications)
			authed.GET("/notifications/stats", h.GetNotificationStats)
			authed.POST("/notifications/read-all", h.MarkAllNotificationsAsRead)
			authed.POST("/notifications/:id/read", h.MarkNotificationAsRead)
			authed.PATCH("/notifications/:id/read", h.MarkNotificationAsRead)
			authed.DELETE("/notifications/:id", h.DeleteNotification)

			// --- Project Routes ---
			authed.POST("/projects", h.CreateProject)
			authed.POST("/projects/:id/members", h.AddProjectMember)
			authed.POST("/projects/:id/tasks", h.CreateTask)

			// --- Task Workflow Routes ---
			tasks := authed.Group("/tasks/:id")
			{
				tasks.POST("/start", h.StartTask)
				tasks.POST("/submit", h.SubmitTask)
				tasks.POST("/approve", h.ApproveTask)
				tasks.POST("/reject", h.RejectTask)
			}
		}
	}

	return router
}
