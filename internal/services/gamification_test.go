package services

import (
	"context"
	"sync"
	"testing"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos/testutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
)

func TestLevelFor(t *testing.T) {
	cases := []struct {
		points int64
		want   int
	}{
		{0, 1}, {99, 1}, {100, 2}, {299, 2}, {300, 3}, {9999, 9}, {10000, 10}, {1 << 40, 10},
	}
	for _, c := range cases {
		if got := LevelFor(c.points); got != c.want {
			t.Fatalf("LevelFor(%d): want=%d got=%d", c.points, c.want, got)
		}
	}
}

func TestComputeProgress(t *testing.T) {
	p := ComputeProgress(150)
	if p.Level != 2 || p.CurrentThreshold != 100 || p.NextThreshold == nil || *p.NextThreshold != 300 {
		t.Fatalf("ComputeProgress(150): got=%+v", p)
	}
	if p.ProgressPercent != 25 || p.PointsToNext != 150 || p.IsMaxLevel {
		t.Fatalf("ComputeProgress(150) progress: got=%+v", p)
	}

	top := ComputeProgress(12000)
	if !top.IsMaxLevel || top.NextThreshold != nil || top.ProgressPercent != 100 || top.Level != MaxLevel {
		t.Fatalf("ComputeProgress(12000): got=%+v", top)
	}
}

func TestGamification_LevelUpCrossingThreshold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	g := h.gamification(t)
	rec := record(h.bus, events.UserLevelUp)

	for i := 0; i < 9; i++ {
		if _, err := g.IncrementActivity(ctx, fx.Member.ID, fx.Group.ID, chat.ActivityMessage); err != nil {
			t.Fatalf("IncrementActivity message %d: %v", i, err)
		}
	}
	snap, err := g.IncrementActivity(ctx, fx.Member.ID, fx.Group.ID, chat.ActivityQuoteMacro)
	if err != nil || snap.TotalPoints != 95 || snap.Level != 1 || snap.LeveledUp {
		t.Fatalf("at 95: got=%+v err=%v", snap, err)
	}
	if got := len(rec.named(events.UserLevelUp)); got != 0 {
		t.Fatalf("levelup events before threshold: want=0 got=%d", got)
	}

	snap, err = g.IncrementActivity(ctx, fx.Member.ID, fx.Group.ID, chat.ActivityMessage)
	if err != nil || snap.TotalPoints != 105 || snap.Level != 2 || !snap.LeveledUp {
		t.Fatalf("at 105: got=%+v err=%v", snap, err)
	}
	ups := rec.named(events.UserLevelUp)
	if len(ups) != 1 {
		t.Fatalf("levelup events: want=1 got=%d", len(ups))
	}
	var p events.LevelUpPayload
	if err := ups[0].Decode(&p); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if p.PreviousLevel != 1 || p.NewLevel != 2 || p.TotalPoints != 105 || p.UserID != fx.Member.ID {
		t.Fatalf("levelup payload: got=%+v", p)
	}

	hist, err := h.levels.ListByUserGroup(dbctx.Context{Ctx: ctx}, fx.Member.ID, fx.Group.ID)
	if err != nil || len(hist) != 1 || hist[0].NewLevel != 2 {
		t.Fatalf("level history: got=%v err=%v", hist, err)
	}

	if _, err := g.IncrementActivity(ctx, fx.Member.ID, fx.Group.ID, chat.ActivityKind("nap")); err == nil {
		t.Fatalf("IncrementActivity unknown kind: want error")
	}
}

func TestGamification_ConcurrentIncrementsLoseNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	g := h.gamification(t)
	rec := record(h.bus, events.UserLevelUp)

	const workers, each = 8, 5
	var wg sync.WaitGroup
	errs := make(chan error, workers*each)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if _, err := g.IncrementActivity(ctx, fx.Member.ID, fx.Group.ID, chat.ActivityMessage); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("IncrementActivity: %v", err)
	}

	row, err := h.stats.Get(dbctx.Context{Ctx: ctx}, fx.Member.ID, fx.Group.ID)
	if err != nil || row == nil {
		t.Fatalf("stats Get: row=%v err=%v", row, err)
	}
	if want := int64(workers * each * 10); row.TotalPoints != want || row.MessageCount != workers*each {
		t.Fatalf("stats: want total=%d got=%+v", want, row)
	}
	if row.Level != 3 {
		t.Fatalf("stored level: want=3 got=%d", row.Level)
	}
	if got := len(rec.named(events.UserLevelUp)); got != 2 {
		t.Fatalf("levelup events: want=2 got=%d", got)
	}
}

func TestGamification_StatsDefaultsAndLeaderboard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	g := h.gamification(t)

	snap, err := g.GetStats(ctx, fx.Member.ID, fx.Group.ID)
	if err != nil || snap.Level != 1 || snap.TotalPoints != 0 {
		t.Fatalf("GetStats zero state: got=%+v err=%v", snap, err)
	}

	if _, err := g.IncrementActivity(ctx, fx.Member.ID, fx.Group.ID, chat.ActivityVoiceRoom); err != nil {
		t.Fatalf("IncrementActivity: %v", err)
	}
	if _, err := g.IncrementActivity(ctx, fx.Admin.ID, fx.Group.ID, chat.ActivityReaction); err != nil {
		t.Fatalf("IncrementActivity admin: %v", err)
	}

	snap, _ = g.GetStats(ctx, fx.Member.ID, fx.Group.ID)
	if snap.TotalPoints != 20 || snap.VoiceRoomCount != 1 {
		t.Fatalf("GetStats after increment: got=%+v", snap)
	}
	prog, err := g.GetProgress(ctx, fx.Member.ID, fx.Group.ID)
	if err != nil || prog.PointsToNext != 80 {
		t.Fatalf("GetProgress: got=%+v err=%v", prog, err)
	}

	board, err := g.Leaderboard(ctx, fx.Group.ID, 10)
	if err != nil || len(board) != 2 {
		t.Fatalf("Leaderboard: got=%v err=%v", board, err)
	}
	if board[0].Rank != 1 || board[0].UserID != fx.Member.ID || board[1].UserID != fx.Admin.ID {
		t.Fatalf("Leaderboard order: got=%+v", board)
	}
}
