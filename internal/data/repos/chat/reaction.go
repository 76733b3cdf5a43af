package chat

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/db"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type ReactionRepo interface {
	// Upsert keeps one reaction per (message, user). replaced is true when an
	// earlier reaction by the same user was overwritten.
	Upsert(dbc dbctx.Context, row *chat.Reaction) (out *chat.Reaction, replaced bool, err error)
	ListByMessage(dbc dbctx.Context, messageID int64) ([]*chat.Reaction, error)
}

type reactionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReactionRepo(db *gorm.DB, log *logger.Logger) ReactionRepo {
	return &reactionRepo{db: db, log: log.With("repo", "ReactionRepo")}
}

func (r *reactionRepo) Upsert(dbc dbctx.Context, row *chat.Reaction) (*chat.Reaction, bool, error) {
	if row == nil || row.MessageID <= 0 || row.UserID <= 0 {
		return nil, false, fmt.Errorf("missing message_id or user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	// Two attempts: a concurrent first insert by the same user surfaces as a
	// unique violation, after which the row exists and the update path wins.
	for attempt := 0; attempt < 2; attempt++ {
		var existing chat.Reaction
		err := txx.WithContext(dbc.Ctx).
			Where("message_id = ? AND user_id = ?", row.MessageID, row.UserID).
			Take(&existing).Error
		switch {
		case err == nil:
			now := time.Now().UTC()
			if err := txx.WithContext(dbc.Ctx).
				Model(&chat.Reaction{}).
				Where("id = ?", existing.ID).
				Updates(map[string]any{
					"reaction_type": row.ReactionType,
					"custom_emote":  row.CustomEmote,
					"updated_at":    now,
				}).Error; err != nil {
				return nil, false, err
			}
			existing.ReactionType = row.ReactionType
			existing.CustomEmote = row.CustomEmote
			existing.UpdatedAt = now
			return &existing, true, nil
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := txx.WithContext(dbc.Ctx).Create(row).Error; err != nil {
				if db.IsUniqueViolation(err) && attempt == 0 {
					continue
				}
				return nil, false, err
			}
			return row, false, nil
		default:
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("reaction upsert: conflicting writers")
}

func (r *reactionRepo) ListByMessage(dbc dbctx.Context, messageID int64) ([]*chat.Reaction, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out []*chat.Reaction
	if err := txx.WithContext(dbc.Ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
