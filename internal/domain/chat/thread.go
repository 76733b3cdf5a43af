package chat

import "time"

// Thread is anchored to a parent message by id only. Messages join a thread
// through Message.ThreadID; a thread with no messages is valid.
type Thread struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ParentMessageID int64     `gorm:"column:parent_message_id;not null;index" json:"parent_message_id"`
	CreatorID       int64     `gorm:"column:creator_id;not null;index" json:"creator_id"`
	ChatGroupID     int64     `gorm:"column:chat_group_id;not null;index" json:"chat_group_id"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`
}

func (Thread) TableName() string { return "threads" }
