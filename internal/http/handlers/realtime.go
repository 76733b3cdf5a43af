package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/gateway"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/response"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/ctxutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/realtime"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type SocketConfig struct {
	ReadLimit int64
	PongWait  time.Duration
	// AllowedOrigins empty accepts any origin.
	AllowedOrigins []string
}

func (c SocketConfig) withDefaults() SocketConfig {
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	return c
}

type RealtimeHandler struct {
	log      *logger.Logger
	gateway  *gateway.Gateway
	upgrader websocket.Upgrader
	cfg      SocketConfig
}

func NewRealtimeHandler(log *logger.Logger, gw *gateway.Gateway, cfg SocketConfig) *RealtimeHandler {
	cfg = cfg.withDefaults()
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = struct{}{}
	}
	return &RealtimeHandler{
		log:     log.With("handler", "RealtimeHandler"),
		gateway: gw,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// Socket upgrades an authenticated request and pumps frames into the
// gateway until the client goes away.
func (h *RealtimeHandler) Socket(c *gin.Context) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID <= 0 {
		response.RespondError(c, http.StatusUnauthorized, "unauthorized", errors.New("not authenticated"))
		return
	}
	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		h.log.Debug("websocket upgrade failed", "user_id", rd.UserID, "error", err)
		return
	}

	conn := realtime.NewConnection(rd.UserID, ws)
	conn.Start()
	ctx := context.WithoutCancel(c.Request.Context())
	session := h.gateway.Open(ctx, conn, services.Identity{UserID: rd.UserID, DisplayName: rd.DisplayName})
	h.log.Info("socket open", "user_id", rd.UserID, "connection_id", conn.ID())
	defer func() {
		session.Close(ctx)
		conn.Close(websocket.CloseNormalClosure, "session closed")
		h.log.Info("socket closed", "user_id", rd.UserID, "connection_id", conn.ID())
	}()

	ws.SetReadLimit(h.cfg.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		kind, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Warn("socket read failed", "connection_id", conn.ID(), "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
		session.HandleRaw(ctx, payload)
	}
}
