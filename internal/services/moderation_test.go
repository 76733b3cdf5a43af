package services

import (
	"context"
	"testing"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos/testutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
)

func TestModeration_IsGroupAdminInheritsCommunity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	mod := h.moderation(t)

	ok, err := mod.IsGroupAdmin(ctx, fx.Admin.ID, fx.Group.ID)
	if err != nil || !ok {
		t.Fatalf("IsGroupAdmin admin: want=true got=%v err=%v", ok, err)
	}
	ok, err = mod.IsGroupAdmin(ctx, fx.Member.ID, fx.Group.ID)
	if err != nil || ok {
		t.Fatalf("IsGroupAdmin member: want=false got=%v err=%v", ok, err)
	}

	// Granting admin is seen once the community change event invalidates the cache.
	testutil.SeedAdmin(t, ctx, h.db, fx.Community.ID, fx.Member.ID)
	if ok, _ := mod.IsGroupAdmin(ctx, fx.Member.ID, fx.Group.ID); ok {
		t.Fatalf("IsGroupAdmin cached: want=false before invalidation")
	}
	if err := h.bus.Publish(ctx, events.CommunityAdminChanged, events.CommunityAdminChangedPayload{
		CommunityID: fx.Community.ID, UserID: fx.Member.ID, Granted: true,
	}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if ok, _ := mod.IsGroupAdmin(ctx, fx.Member.ID, fx.Group.ID); !ok {
		t.Fatalf("IsGroupAdmin after invalidation: want=true")
	}
}

func TestModeration_ToggleSymmetryWritesOneAuditPerCall(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	mod := h.moderation(t)
	rec := record(h.bus, events.MuteToggled)

	in := ToggleInput{TargetUserID: fx.Member.ID, ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID, DurationSeconds: 60}
	on, err := mod.ToggleMute(ctx, in)
	if err != nil || !on.Active || on.DurationSeconds != 60 {
		t.Fatalf("ToggleMute on: got=%+v err=%v", on, err)
	}
	allowed, _ := mod.CheckPermission(ctx, fx.Member.ID, fx.Group.ID, ActionSendMessage)
	if allowed {
		t.Fatalf("CheckPermission muted sendMessage: want=false")
	}
	allowed, _ = mod.CheckPermission(ctx, fx.Member.ID, fx.Group.ID, ActionCreateThread)
	if !allowed {
		t.Fatalf("CheckPermission muted createThread: want=true")
	}

	off, err := mod.ToggleMute(ctx, ToggleInput{TargetUserID: fx.Member.ID, ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID})
	if err != nil || off.Active {
		t.Fatalf("ToggleMute off: got=%+v err=%v", off, err)
	}
	allowed, _ = mod.CheckPermission(ctx, fx.Member.ID, fx.Group.ID, ActionSendMessage)
	if !allowed {
		t.Fatalf("CheckPermission after unmute: want=true")
	}

	n, err := h.audit.CountByTarget(dbctx.Context{Ctx: ctx}, fx.Group.ID, fx.Member.ID, chat.ModActionMute)
	if err != nil || n != 2 {
		t.Fatalf("audit rows: want=2 got=%d err=%v", n, err)
	}
	if got := len(rec.named(events.MuteToggled)); got != 2 {
		t.Fatalf("mute events: want=2 got=%d", got)
	}
}

func TestModeration_ActivationNeedsDurationAndWritesNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	mod := h.moderation(t)

	_, err := mod.ToggleExile(ctx, ToggleInput{TargetUserID: fx.Member.ID, ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID})
	if !apierr.IsCode(err, apierr.CodeValidation) {
		t.Fatalf("ToggleExile zero duration: want validation got=%v", err)
	}
	if _, ok, _ := h.store.Get(ctx, FlagKey(FlagExile, fx.Group.ID, fx.Member.ID)); ok {
		t.Fatalf("exile flag: want absent")
	}
	n, _ := h.audit.CountByTarget(dbctx.Context{Ctx: ctx}, fx.Group.ID, fx.Member.ID, chat.ModActionExile)
	if n != 0 {
		t.Fatalf("audit rows: want=0 got=%d", n)
	}
}

func TestModeration_ExileDeniesEveryAction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	mod := h.moderation(t)

	if _, err := mod.ToggleExile(ctx, ToggleInput{TargetUserID: fx.Member.ID, ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID, DurationSeconds: 300}); err != nil {
		t.Fatalf("ToggleExile: %v", err)
	}
	for _, a := range []Action{ActionJoinGroup, ActionSendMessage, ActionSendReaction, ActionCreateThread, ActionReadThread, ActionJoinVoice, ActionQuoteMacro, ActionCountdown} {
		ok, err := mod.CheckPermission(ctx, fx.Member.ID, fx.Group.ID, a)
		if err != nil || ok {
			t.Fatalf("CheckPermission(%s): want=false got=%v err=%v", a, ok, err)
		}
	}

	stranger := testutil.SeedUser(t, ctx, h.db, "stranger")
	if ok, _ := mod.CheckPermission(ctx, stranger.ID, fx.Group.ID, ActionJoinGroup); ok {
		t.Fatalf("CheckPermission non-member: want=false")
	}
}

func TestModeration_SlowModeCooldownPrecedence(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	mod := h.moderation(t)

	d, err := mod.ArmCooldown(ctx, fx.Group.ID, fx.Member.ID)
	if err != nil || d != 0 {
		t.Fatalf("ArmCooldown without slow mode: want=0 got=%v err=%v", d, err)
	}

	if _, err := mod.ToggleSlowMode(ctx, ToggleInput{
		TargetUserID: fx.Member.ID, ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID,
		DurationSeconds: 600, CooldownSeconds: 5,
	}); err != nil {
		t.Fatalf("ToggleSlowMode: %v", err)
	}
	if _, err := mod.ToggleGroupWideSlowMode(ctx, ToggleInput{ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID, DurationSeconds: 30}); err != nil {
		t.Fatalf("ToggleGroupWideSlowMode: %v", err)
	}

	d, err = mod.ArmCooldown(ctx, fx.Group.ID, fx.Member.ID)
	if err != nil || d != 30*time.Second {
		t.Fatalf("ArmCooldown: want=30s got=%v err=%v", d, err)
	}
	active, _ := mod.CooldownActive(ctx, fx.Group.ID, fx.Member.ID)
	if !active {
		t.Fatalf("CooldownActive: want=true")
	}

	// Turning personal slow mode off releases the armed cooldown.
	if res, err := mod.ToggleSlowMode(ctx, ToggleInput{TargetUserID: fx.Member.ID, ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID}); err != nil || res.Active {
		t.Fatalf("ToggleSlowMode off: got=%+v err=%v", res, err)
	}
	active, _ = mod.CooldownActive(ctx, fx.Group.ID, fx.Member.ID)
	if active {
		t.Fatalf("CooldownActive after off: want=false")
	}
}

func TestModeration_RemoveMember(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fx := testutil.SeedGroupFixture(t, ctx, h.db)
	mod := h.moderation(t)
	rec := record(h.bus, events.UserRemoved)

	if _, err := mod.ToggleMute(ctx, ToggleInput{TargetUserID: fx.Member.ID, ChatGroupID: fx.Group.ID, AdminID: fx.Admin.ID, DurationSeconds: 60}); err != nil {
		t.Fatalf("ToggleMute: %v", err)
	}
	res, err := mod.RemoveMember(ctx, fx.Member.ID, fx.Group.ID, fx.Admin.ID)
	if err != nil || !res.Removed {
		t.Fatalf("RemoveMember: got=%+v err=%v", res, err)
	}
	if _, ok, _ := h.store.Get(ctx, FlagKey(FlagMute, fx.Group.ID, fx.Member.ID)); ok {
		t.Fatalf("mute flag after removal: want cleared")
	}
	if got := len(rec.named(events.UserRemoved)); got != 1 {
		t.Fatalf("user.removed events: want=1 got=%d", got)
	}

	res, err = mod.RemoveMember(ctx, fx.Member.ID, fx.Group.ID, fx.Admin.ID)
	if err != nil || !res.AlreadyAbsent || res.Removed {
		t.Fatalf("RemoveMember again: got=%+v err=%v", res, err)
	}
	if got := len(rec.named(events.UserRemoved)); got != 1 {
		t.Fatalf("user.removed events after repeat: want=1 got=%d", got)
	}
}
