package chat

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app notice produced from bus events.
// DedupeKey makes redelivered queue tasks idempotent per recipient.
type Notification struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID      int64          `gorm:"column:user_id;not null;uniqueIndex:idx_notification_dedupe,priority:1;index" json:"user_id"`
	DedupeKey   string         `gorm:"column:dedupe_key;not null;uniqueIndex:idx_notification_dedupe,priority:2" json:"-"`
	Kind        string         `gorm:"column:kind;not null" json:"kind"`
	ChatGroupID *int64         `gorm:"column:chat_group_id" json:"chat_group_id,omitempty"`
	ActorID     *int64         `gorm:"column:actor_id" json:"actor_id,omitempty"`
	Payload     datatypes.JSON `gorm:"column:payload" json:"payload,omitempty"`
	ReadAt      *time.Time     `gorm:"column:read_at" json:"read_at,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }
