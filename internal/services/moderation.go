package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/dbctx"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

// Action names a permission-gated client operation.
type Action string

const (
	ActionJoinGroup    Action = "joinGroup"
	ActionSendMessage  Action = "sendMessage"
	ActionSendReaction Action = "sendReaction"
	ActionCreateThread Action = "createThread"
	ActionReadThread   Action = "getThreadMessages"
	ActionJoinVoice    Action = "joinVoiceRoom"
	ActionQuoteMacro   Action = "sendQuoteMacro"
	ActionCountdown    Action = "startCountdown"
)

type ToggleInput struct {
	TargetUserID    int64
	ChatGroupID     int64
	AdminID         int64
	DurationSeconds int64
	// CooldownSeconds applies to slow mode only; zero means the cooldown equals the duration.
	CooldownSeconds int64
	Reason          string
}

type ToggleResult struct {
	Action          string `json:"action"`
	Active          bool   `json:"active"`
	DurationSeconds int64  `json:"duration"`
}

type RemoveResult struct {
	Removed       bool `json:"removed"`
	AlreadyAbsent bool `json:"alreadyAbsent"`
}

type ModerationService interface {
	IsGroupAdmin(ctx context.Context, userID, groupID int64) (bool, error)
	InvalidateAdminCache(ctx context.Context, userID, groupID int64)
	// CheckPermission is the gate in front of every write-producing action.
	CheckPermission(ctx context.Context, userID, groupID int64, action Action) (bool, error)

	// CooldownActive reports whether the user must wait before sending again.
	CooldownActive(ctx context.Context, groupID, userID int64) (bool, error)
	// ArmCooldown starts the post-send cooldown from whichever slow mode is
	// longer, per-user or group-wide. It returns the armed length, zero when none applies.
	ArmCooldown(ctx context.Context, groupID, userID int64) (time.Duration, error)

	ToggleMute(ctx context.Context, in ToggleInput) (ToggleResult, error)
	ToggleExile(ctx context.Context, in ToggleInput) (ToggleResult, error)
	ToggleSlowMode(ctx context.Context, in ToggleInput) (ToggleResult, error)
	// ToggleGroupWideSlowMode ignores TargetUserID.
	ToggleGroupWideSlowMode(ctx context.Context, in ToggleInput) (ToggleResult, error)
	RemoveMember(ctx context.Context, userID, groupID, adminID int64) (RemoveResult, error)
}

type ModerationConfig struct {
	AdminCacheTTL time.Duration
}

type moderationService struct {
	log       *logger.Logger
	state     ModerationState
	cache     jsonCache
	groupRepo repos.GroupRepo
	auditRepo repos.ModerationAuditRepo
	bus       events.Bus
	cfg       ModerationConfig
}

func NewModerationService(
	log *logger.Logger,
	store kv.Store,
	groupRepo repos.GroupRepo,
	auditRepo repos.ModerationAuditRepo,
	bus events.Bus,
	cfg ModerationConfig,
) ModerationService {
	if cfg.AdminCacheTTL <= 0 {
		cfg.AdminCacheTTL = 300 * time.Second
	}
	serviceLog := log.With("service", "ModerationService")
	s := &moderationService{
		log:       serviceLog,
		state:     NewModerationState(store),
		cache:     jsonCache{store: store, log: serviceLog},
		groupRepo: groupRepo,
		auditRepo: auditRepo,
		bus:       bus,
		cfg:       cfg,
	}
	if bus != nil {
		bus.Subscribe(events.CommunityAdminChanged, s.onAdminChanged)
	}
	return s
}

func adminCacheKey(groupID, userID int64) string { return fmt.Sprintf("admin:%d:%d", groupID, userID) }

func (s *moderationService) IsGroupAdmin(ctx context.Context, userID, groupID int64) (bool, error) {
	if userID <= 0 || groupID <= 0 {
		return false, nil
	}
	key := adminCacheKey(groupID, userID)
	var cached bool
	if s.cache.get(ctx, key, &cached) {
		return cached, nil
	}
	isAdmin, err := s.groupRepo.IsCommunityAdmin(dbctx.Context{Ctx: ctx}, groupID, userID)
	if err != nil {
		return false, apierr.Dependency("resolve admin status", err)
	}
	s.cache.set(ctx, key, isAdmin, s.cfg.AdminCacheTTL)
	return isAdmin, nil
}

func (s *moderationService) InvalidateAdminCache(ctx context.Context, userID, groupID int64) {
	s.cache.del(ctx, adminCacheKey(groupID, userID))
}

func (s *moderationService) CheckPermission(ctx context.Context, userID, groupID int64, action Action) (bool, error) {
	if userID <= 0 || groupID <= 0 {
		return false, nil
	}
	exiled, err := s.flagSet(ctx, FlagKey(FlagExile, groupID, userID))
	if err != nil {
		return false, err
	}
	if exiled {
		return false, nil
	}
	if action == ActionSendMessage || action == ActionSendReaction {
		muted, err := s.flagSet(ctx, FlagKey(FlagMute, groupID, userID))
		if err != nil {
			return false, err
		}
		if muted {
			return false, nil
		}
	}
	isMember, err := s.groupRepo.IsMember(dbctx.Context{Ctx: ctx}, groupID, userID)
	if err != nil {
		return false, apierr.Dependency("check membership", err)
	}
	return isMember, nil
}

func (s *moderationService) CooldownActive(ctx context.Context, groupID, userID int64) (bool, error) {
	return s.flagSet(ctx, FlagKey(FlagCooldown, groupID, userID))
}

func (s *moderationService) ArmCooldown(ctx context.Context, groupID, userID int64) (time.Duration, error) {
	personal, err := s.flagSeconds(ctx, FlagKey(FlagSlowMode, groupID, userID))
	if err != nil {
		return 0, err
	}
	groupWide, err := s.flagSeconds(ctx, GroupFlagKey(FlagSlowMode, groupID))
	if err != nil {
		return 0, err
	}
	secs := personal
	if groupWide > secs {
		secs = groupWide
	}
	if secs <= 0 {
		return 0, nil
	}
	d := time.Duration(secs) * time.Second
	if err := s.state.SetFlag(ctx, FlagKey(FlagCooldown, groupID, userID), strconv.FormatInt(secs, 10), d); err != nil {
		return 0, apierr.Dependency("arm slow mode cooldown", err)
	}
	return d, nil
}

func (s *moderationService) ToggleMute(ctx context.Context, in ToggleInput) (ToggleResult, error) {
	if err := requireTarget(in); err != nil {
		return ToggleResult{}, err
	}
	return s.toggle(ctx, in, chat.ModActionMute, events.MuteToggled, FlagKey(FlagMute, in.ChatGroupID, in.TargetUserID), "1", nil)
}

func (s *moderationService) ToggleExile(ctx context.Context, in ToggleInput) (ToggleResult, error) {
	if err := requireTarget(in); err != nil {
		return ToggleResult{}, err
	}
	return s.toggle(ctx, in, chat.ModActionExile, events.ExileToggled, FlagKey(FlagExile, in.ChatGroupID, in.TargetUserID), "1", nil)
}

func (s *moderationService) ToggleSlowMode(ctx context.Context, in ToggleInput) (ToggleResult, error) {
	if err := requireTarget(in); err != nil {
		return ToggleResult{}, err
	}
	// Turning personal slow mode off also releases an armed cooldown.
	offExtra := []string{FlagKey(FlagCooldown, in.ChatGroupID, in.TargetUserID)}
	return s.toggle(ctx, in, chat.ModActionSlowMode, events.SlowModeToggled,
		FlagKey(FlagSlowMode, in.ChatGroupID, in.TargetUserID), cooldownValue(in), offExtra)
}

func (s *moderationService) ToggleGroupWideSlowMode(ctx context.Context, in ToggleInput) (ToggleResult, error) {
	in.TargetUserID = 0
	if in.ChatGroupID <= 0 || in.AdminID <= 0 {
		return ToggleResult{}, apierr.Validation("chatGroupId and adminId are required")
	}
	return s.toggle(ctx, in, chat.ModActionGroupSlowMode, events.GroupSlowModeToggled,
		GroupFlagKey(FlagSlowMode, in.ChatGroupID), cooldownValue(in), nil)
}

// toggle inverts the presence of key. Activation needs a positive duration
// and is validated before anything is written.
func (s *moderationService) toggle(ctx context.Context, in ToggleInput, action, eventName, key, value string, clearOnOff []string) (ToggleResult, error) {
	active, err := s.flagSet(ctx, key)
	if err != nil {
		return ToggleResult{}, err
	}

	res := ToggleResult{Action: action}
	if active {
		if err := s.state.ClearFlag(ctx, append([]string{key}, clearOnOff...)...); err != nil {
			return ToggleResult{}, apierr.Dependency("clear moderation flag", err)
		}
		res.Active = false
	} else {
		if in.DurationSeconds <= 0 {
			return ToggleResult{}, apierr.Validation("duration must be greater than 0 to enable %s", action)
		}
		if err := s.state.SetFlag(ctx, key, value, time.Duration(in.DurationSeconds)*time.Second); err != nil {
			return ToggleResult{}, apierr.Dependency("set moderation flag", err)
		}
		res.Active = true
		res.DurationSeconds = in.DurationSeconds
	}

	s.audit(ctx, in, action, res)

	var target *int64
	if in.TargetUserID > 0 {
		t := in.TargetUserID
		target = &t
	}
	s.publish(ctx, eventName, events.ModerationToggledPayload{
		Action:          action,
		ChatGroupID:     in.ChatGroupID,
		TargetUserID:    target,
		AdminID:         in.AdminID,
		Active:          res.Active,
		DurationSeconds: res.DurationSeconds,
		Timestamp:       time.Now().UTC(),
	})
	return res, nil
}

func (s *moderationService) RemoveMember(ctx context.Context, userID, groupID, adminID int64) (RemoveResult, error) {
	if userID <= 0 || groupID <= 0 || adminID <= 0 {
		return RemoveResult{}, apierr.Validation("targetUserId, chatGroupId and adminId are required")
	}
	removed, err := s.groupRepo.RemoveMember(dbctx.Context{Ctx: ctx}, groupID, userID)
	if err != nil {
		return RemoveResult{}, apierr.Dependency("remove member", err)
	}
	if !removed {
		return RemoveResult{AlreadyAbsent: true}, nil
	}

	if err := s.state.ClearFlag(ctx,
		FlagKey(FlagMute, groupID, userID),
		FlagKey(FlagExile, groupID, userID),
		FlagKey(FlagSlowMode, groupID, userID),
		FlagKey(FlagCooldown, groupID, userID),
	); err != nil {
		// Leftover flags expire on their own; membership is already gone.
		s.log.Warn("clear flags after removal failed", "group_id", groupID, "user_id", userID, "error", err)
	}
	s.InvalidateAdminCache(ctx, userID, groupID)

	s.audit(ctx, ToggleInput{TargetUserID: userID, ChatGroupID: groupID, AdminID: adminID}, chat.ModActionRemove, ToggleResult{Active: true})
	s.publish(ctx, events.UserRemoved, events.UserRemovedPayload{
		ChatGroupID: groupID,
		UserID:      userID,
		AdminID:     adminID,
		Timestamp:   time.Now().UTC(),
	})
	return RemoveResult{Removed: true}, nil
}

func (s *moderationService) onAdminChanged(ctx context.Context, ev events.Event) {
	var p events.CommunityAdminChangedPayload
	if err := ev.Decode(&p); err != nil {
		s.log.Warn("bad admin change event", "event_id", ev.ID, "error", err)
		return
	}
	groupIDs, err := s.groupRepo.ListGroupIDsByCommunity(dbctx.Context{Ctx: ctx}, p.CommunityID)
	if err != nil {
		s.log.Warn("list community groups failed", "community_id", p.CommunityID, "error", err)
		return
	}
	keys := make([]string, 0, len(groupIDs))
	for _, gid := range groupIDs {
		keys = append(keys, adminCacheKey(gid, p.UserID))
	}
	s.cache.del(ctx, keys...)
}

// audit is best effort; the flag change already happened.
func (s *moderationService) audit(ctx context.Context, in ToggleInput, action string, res ToggleResult) {
	var target *int64
	if in.TargetUserID > 0 {
		t := in.TargetUserID
		target = &t
	}
	row := &chat.ModerationAuditLog{
		AdminID:         in.AdminID,
		TargetUserID:    target,
		ChatGroupID:     in.ChatGroupID,
		Action:          action,
		Active:          res.Active,
		DurationSeconds: res.DurationSeconds,
		Reason:          strings.TrimSpace(in.Reason),
	}
	if err := s.auditRepo.Create(dbctx.Context{Ctx: ctx}, row); err != nil {
		s.log.Warn("moderation audit write failed",
			"action", action,
			"group_id", in.ChatGroupID,
			"target_user_id", in.TargetUserID,
			"admin_id", in.AdminID,
			"error", err,
		)
	}
}

func (s *moderationService) publish(ctx context.Context, name string, payload any) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, name, payload); err != nil {
		s.log.Warn("event publish failed", "event", name, "error", err)
	}
}

func (s *moderationService) flagSet(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.state.GetFlag(ctx, key)
	if err != nil {
		return false, apierr.Dependency("read moderation flag", err)
	}
	return ok, nil
}

func (s *moderationService) flagSeconds(ctx context.Context, key string) (int64, error) {
	v, ok, err := s.state.GetFlag(ctx, key)
	if err != nil {
		return 0, apierr.Dependency("read slow mode", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil || n < 0 {
		return 0, nil
	}
	return n, nil
}

func requireTarget(in ToggleInput) error {
	if in.TargetUserID <= 0 || in.ChatGroupID <= 0 || in.AdminID <= 0 {
		return apierr.Validation("targetUserId, chatGroupId and adminId are required")
	}
	return nil
}

func cooldownValue(in ToggleInput) string {
	secs := in.CooldownSeconds
	if secs <= 0 {
		secs = in.DurationSeconds
	}
	return strconv.FormatInt(secs, 10)
}
