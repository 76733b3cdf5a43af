// Package events is the in-process publish/subscribe seam between the chat
// core and its side-effecting consumers. Delivery is at-most-once and
// nothing is persisted.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	MessageCreated   = "message.created"
	UserMentioned    = "user.mentioned"
	ReactionAdded    = "reaction.added"
	ThreadCreated    = "thread.created"
	UserLevelUp      = "user.levelup"
	UserRemoved      = "user.removed"
	UserDisconnected = "user.disconnected"
	AdminAction      = "admin.action"

	MuteToggled          = "moderation.mute_toggled"
	ExileToggled         = "moderation.exile_toggled"
	SlowModeToggled      = "moderation.slowmode_toggled"
	GroupSlowModeToggled = "moderation.group_slowmode_toggled"

	CommunityAdminChanged = "community.admin_changed"
)

// Event is the envelope handed to subscribers. Data is the JSON form of the
// payload so local and broker-backed buses deliver the same shape.
type Event struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	OccurredAt time.Time       `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

// Decode unmarshals Data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("event %s: empty payload", e.Name)
	}
	return json.Unmarshal(e.Data, v)
}

func NewEvent(name string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", name, err)
	}
	return Event{
		ID:         uuid.NewString(),
		Name:       name,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

type Handler func(ctx context.Context, ev Event)

type SubscriptionID uint64

type Bus interface {
	// Publish fans out to current subscribers and returns once every local
	// handler has run. The only error is a payload that cannot be encoded.
	Publish(ctx context.Context, name string, payload any) error
	Subscribe(name string, h Handler) SubscriptionID
	Unsubscribe(name string, id SubscriptionID)
	Close() error
}

type MessageCreatedPayload struct {
	MessageID   int64     `json:"messageId"`
	ChatGroupID int64     `json:"chatGroupId"`
	SenderID    int64     `json:"senderId"`
	ThreadID    *int64    `json:"threadId,omitempty"`
	HasMedia    bool      `json:"hasMedia"`
	HasAudio    bool      `json:"hasAudio"`
	Timestamp   time.Time `json:"timestamp"`
}

type UserMentionedPayload struct {
	MessageID        int64     `json:"messageId"`
	ChatGroupID      int64     `json:"chatGroupId"`
	SenderID         int64     `json:"senderId"`
	SenderName       string    `json:"senderName"`
	MentionedUserIDs []int64   `json:"mentionedUserIds"`
	Timestamp        time.Time `json:"timestamp"`
}

type ReactionAddedPayload struct {
	ReactionID      int64     `json:"reactionId"`
	MessageID       int64     `json:"messageId"`
	MessageAuthorID int64     `json:"messageAuthorId"`
	ChatGroupID     int64     `json:"chatGroupId"`
	UserID          int64     `json:"userId"`
	ReactionType    string    `json:"reactionType,omitempty"`
	CustomEmote     *string   `json:"customEmote,omitempty"`
	Replaced        bool      `json:"replaced"`
	Timestamp       time.Time `json:"timestamp"`
}

type ThreadCreatedPayload struct {
	ThreadID        int64     `json:"threadId"`
	ParentMessageID int64     `json:"parentMessageId"`
	ChatGroupID     int64     `json:"chatGroupId"`
	CreatorID       int64     `json:"creatorId"`
	Timestamp       time.Time `json:"timestamp"`
}

type LevelUpPayload struct {
	UserID        int64     `json:"userId"`
	GroupID       int64     `json:"groupId"`
	NewLevel      int       `json:"newLevel"`
	PreviousLevel int       `json:"previousLevel"`
	TotalPoints   int64     `json:"totalPoints"`
	Timestamp     time.Time `json:"timestamp"`
}

// ModerationToggledPayload covers mute, exile and both slow-mode scopes.
// TargetUserID is nil for the group-wide toggle.
type ModerationToggledPayload struct {
	Action          string    `json:"action"`
	ChatGroupID     int64     `json:"chatGroupId"`
	TargetUserID    *int64    `json:"targetUserId,omitempty"`
	AdminID         int64     `json:"adminId"`
	Active          bool      `json:"active"`
	DurationSeconds int64     `json:"durationSeconds"`
	Timestamp       time.Time `json:"timestamp"`
}

type UserRemovedPayload struct {
	ChatGroupID int64     `json:"chatGroupId"`
	UserID      int64     `json:"userId"`
	AdminID     int64     `json:"adminId"`
	Timestamp   time.Time `json:"timestamp"`
}

type AdminActionPayload struct {
	ChatGroupID     int64     `json:"chatGroupId"`
	AdminID         int64     `json:"adminId"`
	Action          string    `json:"action"`
	TargetUserID    *int64    `json:"targetUserId,omitempty"`
	DurationSeconds int64     `json:"durationSeconds"`
	Reason          string    `json:"reason,omitempty"`
	Active          bool      `json:"active"`
	Timestamp       time.Time `json:"timestamp"`
}

type UserDisconnectedPayload struct {
	UserID       int64     `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	GroupIDs     []int64   `json:"groupIds"`
	Timestamp    time.Time `json:"timestamp"`
}

type CommunityAdminChangedPayload struct {
	CommunityID int64 `json:"communityId"`
	UserID      int64 `json:"userId"`
	Granted     bool  `json:"granted"`
}
