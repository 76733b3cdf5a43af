package chat

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, row *chat.Message) (*chat.Message, error)
	// GetByID returns (nil, nil) for a miss.
	GetByID(dbc dbctx.Context, id int64) (*chat.Message, error)
	// SetThreadID backfills thread_id. It reports false when no such message exists.
	SetThreadID(dbc dbctx.Context, messageID, threadID int64) (bool, error)
	// ListByThread orders by created_at then id, both ascending. afterID > 0 pages forward.
	ListByThread(dbc dbctx.Context, threadID int64, afterID int64, limit int) ([]*chat.Message, error)
	ListRecentByGroup(dbc dbctx.Context, groupID int64, limit int) ([]*chat.Message, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, row *chat.Message) (*chat.Message, error) {
	if row == nil {
		return nil, fmt.Errorf("missing message")
	}
	if row.ChatGroupID <= 0 || row.SenderID <= 0 {
		return nil, fmt.Errorf("missing chat_group_id or sender_id")
	}
	if !row.HasContent() {
		return nil, fmt.Errorf("message has no text, media or audio")
	}
	if len(row.Mentions) == 0 {
		row.Mentions = chat.EncodeMentions(nil)
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

func (r *messageRepo) GetByID(dbc dbctx.Context, id int64) (*chat.Message, error) {
	if id <= 0 {
		return nil, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out chat.Message
	err := txx.WithContext(dbc.Ctx).Where("id = ?", id).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) SetThreadID(dbc dbctx.Context, messageID, threadID int64) (bool, error) {
	if messageID <= 0 || threadID <= 0 {
		return false, fmt.Errorf("missing message_id or thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Model(&chat.Message{}).
		Where("id = ?", messageID).
		Update("thread_id", threadID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *messageRepo) ListByThread(dbc dbctx.Context, threadID int64, afterID int64, limit int) ([]*chat.Message, error) {
	if threadID <= 0 {
		return nil, fmt.Errorf("missing thread_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Model(&chat.Message{}).
		Where("thread_id = ?", threadID)
	if afterID > 0 {
		q = q.Where("id > ?", afterID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*chat.Message
	if err := q.Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) ListRecentByGroup(dbc dbctx.Context, groupID int64, limit int) ([]*chat.Message, error) {
	if groupID <= 0 {
		return nil, fmt.Errorf("missing chat_group_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*chat.Message
	if err := txx.WithContext(dbc.Ctx).
		Model(&chat.Message{}).
		Where("chat_group_id = ?", groupID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	// Oldest first for display.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
