package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http/response"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type MessageHandler struct {
	messages   services.MessageService
	moderation services.ModerationService
}

func NewMessageHandler(messages services.MessageService, moderation services.ModerationService) *MessageHandler {
	return &MessageHandler{messages: messages, moderation: moderation}
}

// GET /api/messages/:id
func (h *MessageHandler) GetMessage(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	ctx := c.Request.Context()
	view, err := h.messages.GetMessageByID(ctx, id)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if view == nil {
		response.RespondAPIError(c, apierr.NotFound("message not found"))
		return
	}
	if err := requireGroupAccess(ctx, h.moderation, callerID(c), view.ChatGroupID, services.ActionReadThread); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, view)
}

// GET /api/threads/:id/messages
func (h *MessageHandler) ListThreadMessages(c *gin.Context) {
	threadID, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	ctx := c.Request.Context()
	thread, err := h.messages.GetThread(ctx, threadID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if thread == nil {
		response.RespondAPIError(c, apierr.NotFound("thread not found"))
		return
	}
	if err := requireGroupAccess(ctx, h.moderation, callerID(c), thread.ChatGroupID, services.ActionReadThread); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	msgs, err := h.messages.GetThreadMessages(ctx, threadID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"threadId": threadID, "messages": msgs})
}

// PUT /api/threads/:id/messages/:messageId attaches an existing message to a
// thread in the same group. Only the sender or a group admin may do it.
func (h *MessageHandler) AttachToThread(c *gin.Context) {
	threadID, err := pathID(c, "id")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	messageID, err := pathID(c, "messageId")
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	ctx := c.Request.Context()
	uid := callerID(c)

	thread, err := h.messages.GetThread(ctx, threadID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if thread == nil {
		response.RespondAPIError(c, apierr.NotFound("thread not found"))
		return
	}
	msg, err := h.messages.GetMessageRow(ctx, messageID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if msg == nil {
		response.RespondAPIError(c, apierr.NotFound("message not found"))
		return
	}
	if msg.ChatGroupID != thread.ChatGroupID {
		response.RespondAPIError(c, apierr.Validation("message and thread belong to different groups"))
		return
	}
	if msg.SenderID != uid {
		isAdmin, err := h.moderation.IsGroupAdmin(ctx, uid, thread.ChatGroupID)
		if err != nil {
			response.RespondAPIError(c, err)
			return
		}
		if !isAdmin {
			response.RespondAPIError(c, apierr.Forbidden("only the sender or an admin can move this message"))
			return
		}
	}
	if err := h.messages.AddMessageToThread(ctx, threadID, messageID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	view, err := h.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, view)
}
