package chat

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type GroupRepo interface {
	// GetByID returns (nil, nil) for a miss.
	GetByID(dbc dbctx.Context, groupID int64) (*chat.ChatGroup, error)
	IsMember(dbc dbctx.Context, groupID, userID int64) (bool, error)
	AddMember(dbc dbctx.Context, groupID, userID int64) error
	// RemoveMember reports false when there was no membership row.
	RemoveMember(dbc dbctx.Context, groupID, userID int64) (bool, error)
	ListMemberIDs(dbc dbctx.Context, groupID int64) ([]int64, error)
	// IsCommunityAdmin resolves admin rights through the group's parent community.
	IsCommunityAdmin(dbc dbctx.Context, groupID, userID int64) (bool, error)
	ListGroupIDsByCommunity(dbc dbctx.Context, communityID int64) ([]int64, error)
}

type groupRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGroupRepo(db *gorm.DB, log *logger.Logger) GroupRepo {
	return &groupRepo{db: db, log: log.With("repo", "GroupRepo")}
}

func (r *groupRepo) GetByID(dbc dbctx.Context, groupID int64) (*chat.ChatGroup, error) {
	if groupID <= 0 {
		return nil, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out chat.ChatGroup
	err := txx.WithContext(dbc.Ctx).Where("id = ?", groupID).Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *groupRepo) IsMember(dbc dbctx.Context, groupID, userID int64) (bool, error) {
	if groupID <= 0 || userID <= 0 {
		return false, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&chat.GroupMember{}).
		Where("chat_group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *groupRepo) AddMember(dbc dbctx.Context, groupID, userID int64) error {
	if groupID <= 0 || userID <= 0 {
		return fmt.Errorf("missing chat_group_id or user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	row := &chat.GroupMember{ChatGroupID: groupID, UserID: userID, JoinedAt: time.Now().UTC()}
	return txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(row).Error
}

func (r *groupRepo) RemoveMember(dbc dbctx.Context, groupID, userID int64) (bool, error) {
	if groupID <= 0 || userID <= 0 {
		return false, fmt.Errorf("missing chat_group_id or user_id")
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	res := txx.WithContext(dbc.Ctx).
		Where("chat_group_id = ? AND user_id = ?", groupID, userID).
		Delete(&chat.GroupMember{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *groupRepo) ListMemberIDs(dbc dbctx.Context, groupID int64) ([]int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var ids []int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&chat.GroupMember{}).
		Where("chat_group_id = ?", groupID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *groupRepo) IsCommunityAdmin(dbc dbctx.Context, groupID, userID int64) (bool, error) {
	if groupID <= 0 || userID <= 0 {
		return false, nil
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var count int64
	if err := txx.WithContext(dbc.Ctx).
		Table("community_admins AS ca").
		Joins("JOIN chat_groups AS g ON g.community_id = ca.community_id").
		Where("g.id = ? AND ca.user_id = ?", groupID, userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *groupRepo) ListGroupIDsByCommunity(dbc dbctx.Context, communityID int64) ([]int64, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var ids []int64
	if err := txx.WithContext(dbc.Ctx).
		Model(&chat.ChatGroup{}).
		Where("community_id = ?", communityID).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
