package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/user"
)

// Models is every table the service owns, in creation order.
func Models() []any {
	return []any{
		// Identity
		&user.User{},

		// Communities + membership
		&chat.Community{},
		&chat.CommunityAdmin{},
		&chat.ChatGroup{},
		&chat.GroupMember{},

		// Messaging
		&chat.Message{},
		&chat.Reaction{},
		&chat.Thread{},

		// Moderation
		&chat.ModerationAuditLog{},

		// Gamification
		&chat.ActivityStats{},
		&chat.LevelHistory{},

		// Notifications
		&chat.Notification{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	if db.Dialector.Name() == "postgres" {
		if err := EnsurePostgresIndexes(db); err != nil {
			return err
		}
	}
	return nil
}

// EnsurePostgresIndexes adds indexes GORM tags cannot express.
func EnsurePostgresIndexes(db *gorm.DB) error {
	// Leaderboard scan per group.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_activity_stats_group_rank
		ON activity_stats (chat_group_id, level DESC, total_points DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_activity_stats_group_rank: %w", err)
	}

	// Thread reads are ordered by creation then id.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_message_thread_created
		ON messages (thread_id, created_at, id)
		WHERE thread_id IS NOT NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_message_thread_created: %w", err)
	}

	// Unread notification listing.
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_notifications_user_unread
		ON notifications (user_id, created_at DESC)
		WHERE read_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_notifications_user_unread: %w", err)
	}
	return nil
}
