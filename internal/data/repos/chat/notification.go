package chat

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type NotificationRepo interface {
	// CreateIgnoreDuplicates skips rows whose (user_id, dedupe_key) already exists
	// and returns how many were inserted.
	CreateIgnoreDuplicates(dbc dbctx.Context, rows []*chat.Notification) (int64, error)
	ListByUser(dbc dbctx.Context, userID int64, unreadOnly bool, limit int) ([]*chat.Notification, error)
	MarkRead(dbc dbctx.Context, userID int64, ids []int64) (int64, error)
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, log *logger.Logger) NotificationRepo {
	return &notificationRepo{db: db, log: log.With("repo", "NotificationRepo")}
}

func (r *notificationRepo) CreateIgnoreDuplicates(dbc dbctx.Context, rows []*chat.Notification) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "dedupe_key"}},
			DoNothing: true,
		}).
		Create(&rows)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *notificationRepo) ListByUser(dbc dbctx.Context, userID int64, unreadOnly bool, limit int) ([]*chat.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).Where("user_id = ?", userID)
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var out []*chat.Notification
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *notificationRepo) MarkRead(dbc dbctx.Context, userID int64, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&chat.Notification{}).
		Where("user_id = ? AND id IN ? AND read_at IS NULL", userID, ids).
		Update("read_at", time.Now().UTC())
	return res.RowsAffected, res.Error
}
