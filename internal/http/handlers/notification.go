package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/response"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
)

type NotificationHandler struct {
	repo repos.NotificationRepo
}

func NewNotificationHandler(repo repos.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// GET /api/notifications?unread=true&limit=50
func (h *NotificationHandler) List(c *gin.Context) {
	dbc := dbctx.Context{Ctx: c.Request.Context()}
	unread := c.Query("unread") == "true" || c.Query("unread") == "1"
	rows, err := h.repo.ListByUser(dbc, callerID(c), unread, queryLimit(c, 50, 200))
	if err != nil {
		response.RespondAPIError(c, apierr.Dependency("list notifications", err))
		return
	}
	response.RespondOK(c, gin.H{"notifications": rows})
}

type markReadReq struct {
	IDs []int64 `json:"ids"`
}

// POST /api/notifications/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	var req markReadReq
	if err := c.ShouldBindJSON(&req); err != nil || len(req.IDs) == 0 {
		response.RespondAPIError(c, apierr.Validation("ids are required"))
		return
	}
	n, err := h.repo.MarkRead(dbctx.Context{Ctx: c.Request.Context()}, callerID(c), req.IDs)
	if err != nil {
		response.RespondAPIError(c, apierr.Dependency("mark notifications read", err))
		return
	}
	response.RespondOK(c, gin.H{"updated": n})
}
