package repos

import (
	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos/user"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type UserRepo = user.UserRepo

type GroupRepo = chat.GroupRepo
type MessageRepo = chat.MessageRepo
type ReactionRepo = chat.ReactionRepo
type ThreadRepo = chat.ThreadRepo
type ModerationAuditRepo = chat.ModerationAuditRepo
type ActivityStatsRepo = chat.ActivityStatsRepo
type LevelHistoryRepo = chat.LevelHistoryRepo
type NotificationRepo = chat.NotificationRepo

type LeaderboardRow = chat.LeaderboardRow

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }

func NewGroupRepo(db *gorm.DB, baseLog *logger.Logger) GroupRepo {
	return chat.NewGroupRepo(db, baseLog)
}
func NewMessageRepo(db *gorm.DB, baseLog *logger.Logger) MessageRepo {
	return chat.NewMessageRepo(db, baseLog)
}
func NewReactionRepo(db *gorm.DB, baseLog *logger.Logger) ReactionRepo {
	return chat.NewReactionRepo(db, baseLog)
}
func NewThreadRepo(db *gorm.DB, baseLog *logger.Logger) ThreadRepo {
	return chat.NewThreadRepo(db, baseLog)
}
func NewModerationAuditRepo(db *gorm.DB, baseLog *logger.Logger) ModerationAuditRepo {
	return chat.NewModerationAuditRepo(db, baseLog)
}
func NewActivityStatsRepo(db *gorm.DB, baseLog *logger.Logger) ActivityStatsRepo {
	return chat.NewActivityStatsRepo(db, baseLog)
}
func NewLevelHistoryRepo(db *gorm.DB, baseLog *logger.Logger) LevelHistoryRepo {
	return chat.NewLevelHistoryRepo(db, baseLog)
}
func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	return chat.NewNotificationRepo(db, baseLog)
}
