package chat

import "time"

type ActivityKind string

const (
	ActivityMessage    ActivityKind = "message"
	ActivityReaction   ActivityKind = "reaction"
	ActivityThread     ActivityKind = "thread"
	ActivityVoiceRoom  ActivityKind = "voiceRoom"
	ActivityQuoteMacro ActivityKind = "quoteMacro"
)

// ActivityStats is the durable per (user, group) point tally. The stats
// cache only accelerates reads of this row.
type ActivityStats struct {
	UserID      int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	ChatGroupID int64 `gorm:"primaryKey;autoIncrement:false;index" json:"chat_group_id"`

	TotalPoints int64 `gorm:"column:total_points;not null;default:0" json:"total_points"`
	Level       int   `gorm:"column:level;not null;default:1" json:"level"`

	MessageCount    int64 `gorm:"column:message_count;not null;default:0" json:"message_count"`
	ReactionCount   int64 `gorm:"column:reaction_count;not null;default:0" json:"reaction_count"`
	ThreadCount     int64 `gorm:"column:thread_count;not null;default:0" json:"thread_count"`
	VoiceRoomCount  int64 `gorm:"column:voice_room_count;not null;default:0" json:"voice_room_count"`
	QuoteMacroCount int64 `gorm:"column:quote_macro_count;not null;default:0" json:"quote_macro_count"`

	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ActivityStats) TableName() string { return "activity_stats" }

// CounterColumn maps an activity kind to its counter column.
func CounterColumn(kind ActivityKind) (string, bool) {
	switch kind {
	case ActivityMessage:
		return "message_count", true
	case ActivityReaction:
		return "reaction_count", true
	case ActivityThread:
		return "thread_count", true
	case ActivityVoiceRoom:
		return "voice_room_count", true
	case ActivityQuoteMacro:
		return "quote_macro_count", true
	default:
		return "", false
	}
}

type LevelHistory struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64     `gorm:"column:user_id;not null;index:idx_level_history_user_group,priority:1" json:"user_id"`
	ChatGroupID   int64     `gorm:"column:chat_group_id;not null;index:idx_level_history_user_group,priority:2" json:"chat_group_id"`
	PreviousLevel int       `gorm:"column:previous_level;not null" json:"previous_level"`
	NewLevel      int       `gorm:"column:new_level;not null" json:"new_level"`
	TotalPoints   int64     `gorm:"column:total_points;not null" json:"total_points"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

func (LevelHistory) TableName() string { return "level_history" }
