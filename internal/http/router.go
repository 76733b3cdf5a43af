package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/handlers"
	httpMW "github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/middleware"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	// MediaDir is served read-only at MediaRoute when media lives on local disk.
	MediaRoute string
	MediaDir   string

	AuthMiddleware      *httpMW.AuthMiddleware
	RealtimeHandler     *httpH.RealtimeHandler
	GroupHandler        *httpH.GroupHandler
	MessageHandler      *httpH.MessageHandler
	NotificationHandler *httpH.NotificationHandler
	HealthHandler       *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(httpMW.Tracing(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}

	if cfg.MediaRoute != "" && cfg.MediaDir != "" {
		r.Static(cfg.MediaRoute, cfg.MediaDir)
	}

	protected := r.Group("/")
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
	}

	// Realtime (websocket)
	if cfg.RealtimeHandler != nil {
		protected.GET("/ws", cfg.RealtimeHandler.Socket)
	}

	api := protected.Group("/api")
	{
		if cfg.GroupHandler != nil {
			api.GET("/groups/:id/online", cfg.GroupHandler.Online)
			api.GET("/groups/:id/leaderboard", cfg.GroupHandler.Leaderboard)
			api.GET("/groups/:id/progress", cfg.GroupHandler.Progress)
			api.GET("/groups/:id/messages", cfg.GroupHandler.Messages)
		}

		if cfg.MessageHandler != nil {
			api.GET("/messages/:id", cfg.MessageHandler.GetMessage)
			api.GET("/threads/:id/messages", cfg.MessageHandler.ListThreadMessages)
			api.PUT("/threads/:id/messages/:messageId", cfg.MessageHandler.AttachToThread)
		}

		if cfg.NotificationHandler != nil {
			api.GET("/notifications", cfg.NotificationHandler.List)
			api.POST("/notifications/read", cfg.NotificationHandler.MarkRead)
		}
	}

	return r
}
