package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

type HealthHandler struct {
	db    *gorm.DB
	store kv.Store
}

func NewHealthHandler(db *gorm.DB, store kv.Store) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Ready pings both stores; either being down fails readiness.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"db": "ok", "kv": "ok"}
	status := http.StatusOK
	if h.db != nil {
		sqlDB, err := h.db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			checks["db"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			checks["kv"] = "down"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, checks)
}
