package chat

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type Message struct {
	ID          int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	SenderID    int64 `gorm:"column:sender_id;not null;index" json:"sender_id"`
	ChatGroupID int64 `gorm:"column:chat_group_id;not null;index:idx_message_group_created,priority:1" json:"chat_group_id"`

	Text  *string `gorm:"column:text;type:text" json:"text,omitempty"`
	Media string  `gorm:"column:media;type:text;not null;default:''" json:"-"`
	Audio *string `gorm:"column:audio" json:"audio,omitempty"`

	// ReplyToMessageID is a weak reference; the target may be gone at read time.
	ReplyToMessageID *int64 `gorm:"column:reply_to_message_id;index" json:"reply_to_message_id,omitempty"`
	// ThreadID is the only field written after creation.
	ThreadID *int64 `gorm:"column:thread_id;index" json:"thread_id,omitempty"`

	Spoiler  bool           `gorm:"column:spoiler;not null;default:false" json:"spoiler"`
	Mentions datatypes.JSON `gorm:"column:mentions" json:"-"`

	CreatedAt time.Time `gorm:"not null;index:idx_message_group_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "messages" }

type Mention struct {
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
}

// JoinMedia serializes media keys into the comma-joined column form.
func JoinMedia(keys []string) string {
	clean := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			clean = append(clean, k)
		}
	}
	return strings.Join(clean, ",")
}

// SplitMedia is the inverse of JoinMedia.
func SplitMedia(col string) []string {
	if strings.TrimSpace(col) == "" {
		return []string{}
	}
	parts := strings.Split(col, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EncodeMentions(m []Mention) datatypes.JSON {
	if len(m) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return datatypes.JSON([]byte("[]"))
	}
	return datatypes.JSON(raw)
}

func DecodeMentions(raw datatypes.JSON) []Mention {
	out := []Mention{}
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return []Mention{}
	}
	return out
}

// HasContent reports whether at least one of text, media or audio is set.
func (m *Message) HasContent() bool {
	if m == nil {
		return false
	}
	if m.Text != nil && strings.TrimSpace(*m.Text) != "" {
		return true
	}
	if m.Audio != nil && strings.TrimSpace(*m.Audio) != "" {
		return true
	}
	return strings.TrimSpace(m.Media) != ""
}

// Reaction is unique per (message, user); a new one replaces the old.
type Reaction struct {
	ID           int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID    int64   `gorm:"column:message_id;not null;uniqueIndex:idx_reaction_message_user,priority:1" json:"message_id"`
	UserID       int64   `gorm:"column:user_id;not null;uniqueIndex:idx_reaction_message_user,priority:2" json:"user_id"`
	ReactionType string  `gorm:"column:reaction_type;not null;default:''" json:"reaction_type,omitempty"`
	CustomEmote  *string `gorm:"column:custom_emote" json:"custom_emote,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Reaction) TableName() string { return "message_reactions" }
