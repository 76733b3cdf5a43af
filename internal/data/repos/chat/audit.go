package chat

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

// ModerationAuditRepo is insert and read only.
type ModerationAuditRepo interface {
	Create(dbc dbctx.Context, row *chat.ModerationAuditLog) error
	ListByGroup(dbc dbctx.Context, groupID int64, limit int) ([]*chat.ModerationAuditLog, error)
	CountByTarget(dbc dbctx.Context, groupID, targetUserID int64, action string) (int64, error)
}

type moderationAuditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewModerationAuditRepo(db *gorm.DB, log *logger.Logger) ModerationAuditRepo {
	return &moderationAuditRepo{db: db, log: log.With("repo", "ModerationAuditRepo")}
}

func (r *moderationAuditRepo) Create(dbc dbctx.Context, row *chat.ModerationAuditLog) error {
	if row == nil || row.AdminID <= 0 || row.ChatGroupID <= 0 || row.Action == "" {
		return fmt.Errorf("missing admin_id, chat_group_id or action")
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).Create(row).Error
}

func (r *moderationAuditRepo) ListByGroup(dbc dbctx.Context, groupID int64, limit int) ([]*chat.ModerationAuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*chat.ModerationAuditLog
	if err := txx.WithContext(dbc.Ctx).
		Where("chat_group_id = ?", groupID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *moderationAuditRepo) CountByTarget(dbc dbctx.Context, groupID, targetUserID int64, action string) (int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var n int64
	q := txx.WithContext(dbc.Ctx).
		Model(&chat.ModerationAuditLog{}).
		Where("chat_group_id = ? AND target_user_id = ?", groupID, targetUserID)
	if action != "" {
		q = q.Where("action = ?", action)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, err
	}
	return n, nil
}
