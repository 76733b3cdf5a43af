package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

var ActivityPoints = map[chat.ActivityKind]int64{
	chat.ActivityMessage:    10,
	chat.ActivityReaction:   2,
	chat.ActivityThread:     15,
	chat.ActivityVoiceRoom:  20,
	chat.ActivityQuoteMacro: 5,
}

// LevelThresholds[i] is the minimum total for level i+1.
var LevelThresholds = [...]int64{0, 100, 300, 600, 1000, 1500, 2500, 4000, 6000, 10000}

const MaxLevel = len(LevelThresholds)

func LevelFor(totalPoints int64) int {
	level := 1
	for i, th := range LevelThresholds {
		if totalPoints >= th {
			level = i + 1
		}
	}
	return level
}

type Progress struct {
	Level            int    `json:"level"`
	TotalPoints      int64  `json:"totalPoints"`
	CurrentThreshold int64  `json:"currentThreshold"`
	NextThreshold    *int64 `json:"nextThreshold"`
	ProgressPercent  int    `json:"progressPercent"`
	PointsToNext     int64  `json:"pointsToNext"`
	IsMaxLevel       bool   `json:"isMaxLevel"`
}

func ComputeProgress(totalPoints int64) Progress {
	if totalPoints < 0 {
		totalPoints = 0
	}
	level := LevelFor(totalPoints)
	p := Progress{
		Level:            level,
		TotalPoints:      totalPoints,
		CurrentThreshold: LevelThresholds[level-1],
	}
	if level == MaxLevel {
		p.IsMaxLevel = true
		p.ProgressPercent = 100
		return p
	}
	next := LevelThresholds[level]
	p.NextThreshold = &next
	p.PointsToNext = next - totalPoints
	pct := int((totalPoints - p.CurrentThreshold) * 100 / (next - p.CurrentThreshold))
	if pct > 99 {
		pct = 99
	}
	p.ProgressPercent = pct
	return p
}

type StatsSnapshot struct {
	UserID          int64 `json:"userId"`
	ChatGroupID     int64 `json:"chatGroupId"`
	TotalPoints     int64 `json:"totalPoints"`
	Level           int   `json:"level"`
	MessageCount    int64 `json:"messageCount"`
	ReactionCount   int64 `json:"reactionCount"`
	ThreadCount     int64 `json:"threadCount"`
	VoiceRoomCount  int64 `json:"voiceRoomCount"`
	QuoteMacroCount int64 `json:"quoteMacroCount"`
	// LeveledUp is set only on the snapshot returned by the increment that crossed a threshold.
	LeveledUp bool `json:"leveledUp,omitempty"`
}

type LeaderboardEntry struct {
	Rank int `json:"rank"`
	repos.LeaderboardRow
}

type GamificationService interface {
	IncrementActivity(ctx context.Context, userID, groupID int64, kind chat.ActivityKind) (*StatsSnapshot, error)
	GetStats(ctx context.Context, userID, groupID int64) (*StatsSnapshot, error)
	GetProgress(ctx context.Context, userID, groupID int64) (Progress, error)
	Leaderboard(ctx context.Context, groupID int64, limit int) ([]LeaderboardEntry, error)
}

type GamificationConfig struct {
	StatsCacheTTL time.Duration
}

type gamificationService struct {
	db        *gorm.DB
	log       *logger.Logger
	cache     jsonCache
	statsRepo repos.ActivityStatsRepo
	levelRepo repos.LevelHistoryRepo
	bus       events.Bus
	locks     *keyedMutex
	cfg       GamificationConfig
}

func NewGamificationService(
	db *gorm.DB,
	log *logger.Logger,
	store kv.Store,
	statsRepo repos.ActivityStatsRepo,
	levelRepo repos.LevelHistoryRepo,
	bus events.Bus,
	cfg GamificationConfig,
) GamificationService {
	if cfg.StatsCacheTTL <= 0 {
		cfg.StatsCacheTTL = 1800 * time.Second
	}
	serviceLog := log.With("service", "GamificationService")
	return &gamificationService{
		db:        db,
		log:       serviceLog,
		cache:     jsonCache{store: store, log: serviceLog},
		statsRepo: statsRepo,
		levelRepo: levelRepo,
		bus:       bus,
		locks:     newKeyedMutex(),
		cfg:       cfg,
	}
}

func statsCacheKey(userID, groupID int64) string { return fmt.Sprintf("stats:%d:%d", userID, groupID) }

// IncrementActivity runs the point upsert as a single atomic statement, so
// concurrent increments for the same pair never lose an update. The keyed
// lock only orders this process's cache writes for the pair.
func (s *gamificationService) IncrementActivity(ctx context.Context, userID, groupID int64, kind chat.ActivityKind) (*StatsSnapshot, error) {
	points, ok := ActivityPoints[kind]
	if !ok {
		return nil, apierr.Validation("unknown activity kind %q", kind)
	}
	if userID <= 0 || groupID <= 0 {
		return nil, apierr.Validation("userId and groupId are required")
	}

	unlock := s.locks.Lock(statsCacheKey(userID, groupID))
	defer unlock()

	var (
		row       *chat.ActivityStats
		prevLevel int
		newLevel  int
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		var err error
		row, err = s.statsRepo.Increment(dbc, userID, groupID, kind, points)
		if err != nil {
			return err
		}
		prevLevel = LevelFor(row.TotalPoints - points)
		newLevel = LevelFor(row.TotalPoints)
		if newLevel > row.Level {
			if err := s.statsRepo.RaiseLevel(dbc, userID, groupID, newLevel); err != nil {
				return err
			}
			row.Level = newLevel
		}
		if newLevel > prevLevel {
			return s.levelRepo.Create(dbc, &chat.LevelHistory{
				UserID:        userID,
				ChatGroupID:   groupID,
				PreviousLevel: prevLevel,
				NewLevel:      newLevel,
				TotalPoints:   row.TotalPoints,
			})
		}
		return nil
	})
	if err != nil {
		return nil, apierr.Dependency("persist activity points", err)
	}

	snap := snapshotOf(row)
	s.cache.set(ctx, statsCacheKey(userID, groupID), snap, s.cfg.StatsCacheTTL)

	if newLevel > prevLevel {
		snap.LeveledUp = true
		if s.bus != nil {
			if err := s.bus.Publish(ctx, events.UserLevelUp, events.LevelUpPayload{
				UserID:        userID,
				GroupID:       groupID,
				NewLevel:      newLevel,
				PreviousLevel: prevLevel,
				TotalPoints:   row.TotalPoints,
				Timestamp:     time.Now().UTC(),
			}); err != nil {
				s.log.Warn("levelup publish failed", "user_id", userID, "group_id", groupID, "error", err)
			}
		}
	}
	return snap, nil
}

// GetStats reads cache, then the durable row, then zero-state defaults.
func (s *gamificationService) GetStats(ctx context.Context, userID, groupID int64) (*StatsSnapshot, error) {
	key := statsCacheKey(userID, groupID)
	var cached StatsSnapshot
	if s.cache.get(ctx, key, &cached) {
		return &cached, nil
	}
	row, err := s.statsRepo.Get(dbctx.Context{Ctx: ctx}, userID, groupID)
	if err != nil {
		return nil, apierr.Dependency("load activity stats", err)
	}
	if row == nil {
		return &StatsSnapshot{UserID: userID, ChatGroupID: groupID, Level: 1}, nil
	}
	snap := snapshotOf(row)
	s.cache.set(ctx, key, snap, s.cfg.StatsCacheTTL)
	return snap, nil
}

func (s *gamificationService) GetProgress(ctx context.Context, userID, groupID int64) (Progress, error) {
	stats, err := s.GetStats(ctx, userID, groupID)
	if err != nil {
		return Progress{}, err
	}
	return ComputeProgress(stats.TotalPoints), nil
}

func (s *gamificationService) Leaderboard(ctx context.Context, groupID int64, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.statsRepo.Leaderboard(dbctx.Context{Ctx: ctx}, groupID, limit)
	if err != nil {
		return nil, apierr.Dependency("load leaderboard", err)
	}
	out := make([]LeaderboardEntry, 0, len(rows))
	for i, r := range rows {
		out = append(out, LeaderboardEntry{Rank: i + 1, LeaderboardRow: r})
	}
	return out, nil
}

func snapshotOf(row *chat.ActivityStats) *StatsSnapshot {
	return &StatsSnapshot{
		UserID:          row.UserID,
		ChatGroupID:     row.ChatGroupID,
		TotalPoints:     row.TotalPoints,
		Level:           LevelFor(row.TotalPoints),
		MessageCount:    row.MessageCount,
		ReactionCount:   row.ReactionCount,
		ThreadCount:     row.ThreadCount,
		VoiceRoomCount:  row.VoiceRoomCount,
		QuoteMacroCount: row.QuoteMacroCount,
	}
}
