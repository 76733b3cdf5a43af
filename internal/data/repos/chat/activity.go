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

type LeaderboardRow struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Level       int    `json:"level"`
	TotalPoints int64  `json:"totalPoints"`
}

type ActivityStatsRepo interface {
	// Get returns (nil, nil) when the pair has never earned points.
	Get(dbc dbctx.Context, userID, groupID int64) (*chat.ActivityStats, error)
	// Increment atomically adds points and bumps the kind's counter, creating
	// the row on first use, and returns the row as stored afterwards.
	Increment(dbc dbctx.Context, userID, groupID int64, kind chat.ActivityKind, points int64) (*chat.ActivityStats, error)
	// RaiseLevel never lowers a stored level.
	RaiseLevel(dbc dbctx.Context, userID, groupID int64, level int) error
	// Leaderboard lists every member of the group, absent stats reading as level 1 with 0 points.
	Leaderboard(dbc dbctx.Context, groupID int64, limit int) ([]LeaderboardRow, error)
}

type activityStatsRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityStatsRepo(db *gorm.DB, log *logger.Logger) ActivityStatsRepo {
	return &activityStatsRepo{db: db, log: log.With("repo", "ActivityStatsRepo")}
}

func (r *activityStatsRepo) Get(dbc dbctx.Context, userID, groupID int64) (*chat.ActivityStats, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	var out chat.ActivityStats
	err := txx.WithContext(dbc.Ctx).
		Where("user_id = ? AND chat_group_id = ?", userID, groupID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *activityStatsRepo) Increment(dbc dbctx.Context, userID, groupID int64, kind chat.ActivityKind, points int64) (*chat.ActivityStats, error) {
	if userID <= 0 || groupID <= 0 {
		return nil, fmt.Errorf("missing user_id or chat_group_id")
	}
	col, ok := chat.CounterColumn(kind)
	if !ok {
		return nil, fmt.Errorf("unknown activity kind %q", kind)
	}
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}

	now := time.Now().UTC()
	row := &chat.ActivityStats{
		UserID:      userID,
		ChatGroupID: groupID,
		TotalPoints: points,
		Level:       1,
		UpdatedAt:   now,
	}
	setCounter(row, kind, 1)

	err := txx.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "chat_group_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"total_points": gorm.Expr("activity_stats.total_points + ?", points),
				col:            gorm.Expr("activity_stats." + col + " + 1"),
				"updated_at":   now,
			}),
		}).
		Create(row).Error
	if err != nil {
		return nil, err
	}

	var out chat.ActivityStats
	if err := txx.WithContext(dbc.Ctx).
		Where("user_id = ? AND chat_group_id = ?", userID, groupID).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *activityStatsRepo) RaiseLevel(dbc dbctx.Context, userID, groupID int64, level int) error {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	return txx.WithContext(dbc.Ctx).
		Model(&chat.ActivityStats{}).
		Where("user_id = ? AND chat_group_id = ? AND level < ?", userID, groupID, level).
		Update("level", level).Error
}

func (r *activityStatsRepo) Leaderboard(dbc dbctx.Context, groupID int64, limit int) ([]LeaderboardRow, error) {
	txx := dbc.Tx
	if txx == nil {
		txx = r.db
	}
	q := txx.WithContext(dbc.Ctx).
		Table("chat_group_members AS m").
		Select(`m.user_id AS user_id,
			COALESCE(u.username, '') AS username,
			COALESCE(u.first_name, '') AS first_name,
			COALESCE(u.last_name, '') AS last_name,
			COALESCE(s.level, 1) AS level,
			COALESCE(s.total_points, 0) AS total_points`).
		Joins("LEFT JOIN activity_stats AS s ON s.user_id = m.user_id AND s.chat_group_id = m.chat_group_id").
		Joins("LEFT JOIN users AS u ON u.id = m.user_id").
		Where("m.chat_group_id = ?", groupID).
		Order("level DESC").
		Order("total_points DESC").
		Order("m.user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []LeaderboardRow
	if err := q.Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func setCounter(row *chat.ActivityStats, kind chat.ActivityKind, n int64) {
	switch kind {
	case chat.ActivityMessage:
		row.MessageCount = n
	case chat.ActivityReaction:
		row.ReactionCount = n
	case chat.ActivityThread:
		row.ThreadCount = n
	case chat.ActivityVoiceRoom:
		row.VoiceRoomCount = n
	case chat.ActivityQuoteMacro:
		row.QuoteMacroCount = n
	}
}
