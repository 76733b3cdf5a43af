package chat

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type ThreadRepo interface {
	Create(dbc dbctx.Context, row *chat.Thread) (*chat.Thread, error)
	// GetByID returns (nil, nil) for a miss.
	GetByID(dbc dbctx.Context, id int64) (*chat.Thread, error)
	ListByParent(dbc dbctx.Context, parentMessageID int64) ([]*chat.Thread, error)
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, log *logger.Logger) ThreadRepo {
	return &threadRepo{db: db, log: log.With("repo", "ThreadRepo")}
}

func (r *threadRepo) Create(dbc dbctx.Context, row *chat.Thread) (*chat.Thread, error) {
	if row == nil || row.ParentMessageID <= 0 || row.ChatGroupID <= 0 || row.CreatorID <= 0 {
		return nil, fmt.Errorf("missing parent_message_id, chat_group_id or creator_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}

func (r *threadRepo) GetByID(dbc dbctx.Context, id int64) (*chat.Thread, error) {
	if id <= 0 {
		return nil, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out chat.Thread
	err := txx.WithContext(dbc.Ctx).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) ListByParent(dbc dbctx.Context, parentMessageID int64) ([]*chat.Thread, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*chat.Thread
	if err := txx.WithContext(dbc.Ctx).
		Where("parent_message_id = ?", parentMessageID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
