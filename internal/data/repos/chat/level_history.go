package chat

import (
	"time"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type LevelHistoryRepo interface {
	Create(dbc dbctx.Context, row *chat.LevelHistory) error
	ListByUserGroup(dbc dbctx.Context, userID, groupID int64) ([]*chat.LevelHistory, error)
}

type levelHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLevelHistoryRepo(db *gorm.DB, log *logger.Logger) LevelHistoryRepo {
	return &levelHistoryRepo{db: db, log: log.With("repo", "LevelHistoryRepo")}
}

func (r *levelHistoryRepo) Create(dbc dbctx.Context, row *chat.LevelHistory) error {
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(row).Error
}

func (r *levelHistoryRepo) ListByUserGroup(dbc dbctx.Context, userID, groupID int64) ([]*chat.LevelHistory, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*chat.LevelHistory
	if err := txx.WithContext(dbc.Ctx).
		Where("user_id = ? AND chat_group_id = ?", userID, groupID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
