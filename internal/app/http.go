package app

import (
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http"
	httpH "github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/handlers"
	httpMW "github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/middleware"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health       *httpH.HealthHandler
	Realtime     *httpH.RealtimeHandler
	Group        *httpH.GroupHandler
	Message      *httpH.MessageHandler
	Notification *httpH.NotificationHandler
}

func wireHandlers(log *logger.Logger, cfg Config, clients Clients, repos Repos, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:       httpH.NewHealthHandler(clients.DB.DB(), clients.Store),
		Realtime:     httpH.NewRealtimeHandler(log, services.Gateway, httpH.SocketConfig{AllowedOrigins: cfg.AllowedOrigins}),
		Group:        httpH.NewGroupHandler(services.Presence, services.Gamification, services.Moderation, services.Messages),
		Message:      httpH.NewMessageHandler(services.Messages, services.Moderation),
		Notification: httpH.NewNotificationHandler(repos.Notification),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Verifier),
	}
}

func wireServer(log *logger.Logger, cfg Config, clients Clients, handlers Handlers, middleware Middleware) *http.Server {
	rc := http.RouterConfig{
		Log:                 log,
		ServiceName:         cfg.Tracing.ServiceName,
		AllowedOrigins:      cfg.AllowedOrigins,
		AuthMiddleware:      middleware.Auth,
		RealtimeHandler:     handlers.Realtime,
		GroupHandler:        handlers.Group,
		MessageHandler:      handlers.Message,
		NotificationHandler: handlers.Notification,
		HealthHandler:       handlers.Health,
	}
	if clients.LocalMedia != nil {
		rc.MediaRoute = cfg.MediaRoute
		rc.MediaDir = clients.LocalMedia.Dir()
	}
	return http.NewServer(rc)
}
