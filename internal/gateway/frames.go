package gateway

import (
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

// Client-emitted event names.
const (
	InJoinGroup         = "joinGroup"
	InLeaveGroup        = "leaveGroup"
	InSendMessage       = "sendMessage"
	InStartTyping       = "startTyping"
	InStopTyping        = "stopTyping"
	InAddReaction       = "addReaction"
	InCreateThread      = "createThread"
	InGetThreadMessages = "getThreadMessages"
	InAdminAction       = "adminAction"
	InStartCountdown    = "startCountdown"
	InSendQuoteMacro    = "sendQuoteMacro"
	InJoinVoiceRoom     = "joinVoiceRoom"
	InLeaveVoiceRoom    = "leaveVoiceRoom"
)

type groupRequest struct {
	ChatGroupID int64 `json:"chatGroupId"`
}

type sendMessageRequest struct {
	ChatGroupID int64    `json:"chatGroupId"`
	Message     *string  `json:"message"`
	Media       []string `json:"media"`
	ReplyTo     *int64   `json:"replyTo"`
	Audio       *string  `json:"audio"`
	ThreadID    *int64   `json:"threadId"`
	Spoiler     bool     `json:"spoiler"`
}

type addReactionRequest struct {
	MessageID    int64   `json:"messageId"`
	ReactionType string  `json:"reactionType"`
	CustomEmote  *string `json:"customEmote"`
}

type createThreadRequest struct {
	ParentMessageID int64   `json:"parentMessageId"`
	InitialMessage  *string `json:"initialMessage"`
	ChatGroupID     int64   `json:"chatGroupId"`
}

type threadRequest struct {
	ThreadID int64 `json:"threadId"`
}

type adminActionRequest struct {
	ChatGroupID  int64  `json:"chatGroupId"`
	Action       string `json:"action"`
	TargetUserID int64  `json:"targetUserId"`
	Duration     int64  `json:"duration"`
	Cooldown     int64  `json:"cooldown"`
	Reason       string `json:"reason"`
}

type countdownRequest struct {
	ChatGroupID int64  `json:"chatGroupId"`
	Duration    int64  `json:"duration"`
	Title       string `json:"title"`
}

type quoteMacroRequest struct {
	ChatGroupID int64  `json:"chatGroupId"`
	MacroID     string `json:"macroId"`
	CustomText  string `json:"customText"`
}

type presenceFrame struct {
	Action      string  `json:"action"`
	UserID      int64   `json:"userId"`
	ChatGroupID int64   `json:"chatGroupId"`
	OnlineUsers []int64 `json:"onlineUsers"`
}

type typingFrame struct {
	UserID      int64  `json:"userId"`
	UserName    string `json:"userName"`
	ChatGroupID int64  `json:"chatGroupId"`
	IsTyping    bool   `json:"isTyping"`
}

type reactionFrame struct {
	ID           int64     `json:"id"`
	MessageID    int64     `json:"messageId"`
	ChatGroupID  int64     `json:"chatGroupId"`
	UserID       int64     `json:"userId"`
	ReactionType string    `json:"reactionType,omitempty"`
	CustomEmote  *string   `json:"customEmote,omitempty"`
	Replaced     bool      `json:"replaced"`
	CreatedAt    time.Time `json:"createdAt"`
}

type threadMessagesFrame struct {
	ThreadID int64                   `json:"threadId"`
	Messages []*services.MessageView `json:"messages"`
}

type adminActionFrame struct {
	ChatGroupID  int64  `json:"chatGroupId"`
	Action       string `json:"action"`
	AdminID      int64  `json:"adminId"`
	TargetUserID *int64 `json:"targetUserId,omitempty"`
	Active       bool   `json:"active"`
	Duration     int64  `json:"duration"`
	Reason       string `json:"reason,omitempty"`
}

type countdownFrame struct {
	CountdownID string    `json:"countdownId"`
	ChatGroupID int64     `json:"chatGroupId"`
	Title       string    `json:"title"`
	Duration    int64     `json:"duration"`
	StartedBy   int64     `json:"startedBy"`
	EndsAt      time.Time `json:"endsAt"`
}

type quoteMacroFrame struct {
	ChatGroupID int64     `json:"chatGroupId"`
	UserID      int64     `json:"userId"`
	UserName    string    `json:"userName"`
	MacroID     string    `json:"macroId"`
	Title       string    `json:"title,omitempty"`
	Text        string    `json:"text"`
	Source      string    `json:"source,omitempty"`
	Character   string    `json:"character,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type voiceRoomFrame struct {
	Action       string  `json:"action"`
	ChatGroupID  int64   `json:"chatGroupId"`
	UserID       int64   `json:"userId"`
	Participants []int64 `json:"participants"`
}

type levelUpFrame struct {
	ChatGroupID int64 `json:"chatGroupId"`
	Level       int   `json:"level"`
	TotalPoints int64 `json:"totalPoints"`
}

type errorFrame struct {
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
