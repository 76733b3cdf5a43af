package app

import (
	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type Repos struct {
	User          repos.UserRepo
	Group         repos.GroupRepo
	Message       repos.MessageRepo
	Reaction      repos.ReactionRepo
	Thread        repos.ThreadRepo
	Audit         repos.ModerationAuditRepo
	ActivityStats repos.ActivityStatsRepo
	LevelHistory  repos.LevelHistoryRepo
	Notification  repos.NotificationRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:          repos.NewUserRepo(db, log),
		Group:         repos.NewGroupRepo(db, log),
		Message:       repos.NewMessageRepo(db, log),
		Reaction:      repos.NewReactionRepo(db, log),
		Thread:        repos.NewThreadRepo(db, log),
		Audit:         repos.NewModerationAuditRepo(db, log),
		ActivityStats: repos.NewActivityStatsRepo(db, log),
		LevelHistory:  repos.NewLevelHistoryRepo(db, log),
		Notification:  repos.NewNotificationRepo(db, log),
	}
}
