package chat

import "time"

const (
	ModActionMute          = "mute"
	ModActionExile         = "exile"
	ModActionSlowMode      = "slowmode"
	ModActionGroupSlowMode = "groupSlowmode"
	ModActionRemove        = "remove"
)

// ModerationAuditLog is append-only; the runtime never deletes rows.
type ModerationAuditLog struct {
	ID              int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	AdminID         int64     `gorm:"column:admin_id;not null;index" json:"admin_id"`
	TargetUserID    *int64    `gorm:"column:target_user_id;index" json:"target_user_id,omitempty"`
	ChatGroupID     int64     `gorm:"column:chat_group_id;not null;index" json:"chat_group_id"`
	Action          string    `gorm:"column:action;not null" json:"action"`
	Active          bool      `gorm:"column:active;not null" json:"active"`
	DurationSeconds int64     `gorm:"column:duration_seconds;not null;default:0" json:"duration_seconds"`
	Reason          string    `gorm:"column:reason;type:text;not null;default:''" json:"reason,omitempty"`
	CreatedAt       time.Time `gorm:"not null;index" json:"created_at"`
}

func (ModerationAuditLog) TableName() string { return "moderation_audit_log" }
