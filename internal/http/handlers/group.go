package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/response"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type GroupHandler struct {
	presence     services.PresenceStore
	gamification services.GamificationService
	moderation   services.ModerationService
	messages     services.MessageService
}

func NewGroupHandler(presence services.PresenceStore, gamification services.GamificationService, moderation services.ModerationService, messages services.MessageService) *GroupHandler {
	return &GroupHandler{presence: presence, gamification: gamification, moderation: moderation, messages: messages}
}

// GET /api/groups/:id/online
func (h *GroupHandler) Online(c *gin.Context) {
	groupID, ok := h.memberGroup(c)
	if !ok {
		return
	}
	ids, err := h.presence.ListOnline(c.Request.Context(), groupID)
	if err != nil {
		response.RespondAPIError(c, apierr.Dependency("list online", err))
		return
	}
	response.RespondOK(c, gin.H{"chatGroupId": groupID, "onlineUsers": ids})
}

// GET /api/groups/:id/leaderboard?limit=10
func (h *GroupHandler) Leaderboard(c *gin.Context) {
	groupID, ok := h.memberGroup(c)
	if !ok {
		return
	}
	entries, err := h.gamification.Leaderboard(c.Request.Context(), groupID, queryLimit(c, 10, 100))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"chatGroupId": groupID, "leaderboard": entries})
}

// GET /api/groups/:id/messages?limit=50
func (h *GroupHandler) Messages(c *gin.Context) {
	groupID, ok := h.memberGroup(c)
	if !ok {
		return
	}
	views, err := h.messages.ListGroupMessages(c.Request.Context(), groupID, queryLimit(c, 50, 200))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"chatGroupId": groupID, "messages": views})
}

// GET /api/groups/:id/progress
func (h *GroupHandler) Progress(c *gin.Context) {
	groupID, ok := h.memberGroup(c)
	if !ok {
		return
	}
	p, err := h.gamification.GetProgress(c.Request.Context(), callerID(c), groupID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, p)
}

func (h *GroupHandler) memberGroup(c *gin.Context) (int64, bool) {
	groupID, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return 0, false
	}
	if err := requireGroupAccess(c.Request.Context(), h.moderation, callerID(c), groupID, services.ActionJoinGroup); err != nil {
		response.RespondAPIError(c, err)
		return 0, false
	}
	return groupID, true
}

func requireGroupAccess(ctx context.Context, mod services.ModerationService, userID, groupID int64, action services.Action) error {
	ok, err := mod.CheckPermission(ctx, userID, groupID, action)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.Forbidden("you are not allowed to view this group")
	}
	return nil
}
