package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/realtime"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

func (s *Session) adminAction(ctx context.Context, raw json.RawMessage) error {
	var in adminActionRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	in.Action = strings.TrimSpace(in.Action)
	if in.ChatGroupID <= 0 || in.Action == "" {
		return apierr.Validation("chatGroupId and action are required")
	}
	adminID := s.identity.UserID
	isAdmin, err := s.g.moderation.IsGroupAdmin(ctx, adminID, in.ChatGroupID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return apierr.Forbidden("admin privileges required")
	}
	if in.Action != chat.ModActionGroupSlowMode {
		if in.TargetUserID <= 0 {
			return apierr.Validation("targetUserId is required")
		}
		if in.TargetUserID == adminID {
			return apierr.Validation("admins cannot moderate themselves")
		}
	}

	toggle := services.ToggleInput{
		TargetUserID:    in.TargetUserID,
		ChatGroupID:     in.ChatGroupID,
		AdminID:         adminID,
		DurationSeconds: in.Duration,
		CooldownSeconds: in.Cooldown,
		Reason:          in.Reason,
	}
	var res services.ToggleResult
	switch in.Action {
	case chat.ModActionMute:
		res, err = s.g.moderation.ToggleMute(ctx, toggle)
	case chat.ModActionExile:
		res, err = s.g.moderation.ToggleExile(ctx, toggle)
	case chat.ModActionSlowMode:
		res, err = s.g.moderation.ToggleSlowMode(ctx, toggle)
	case chat.ModActionGroupSlowMode:
		res, err = s.g.moderation.ToggleGroupWideSlowMode(ctx, toggle)
	case chat.ModActionRemove:
		var rm services.RemoveResult
		rm, err = s.g.moderation.RemoveMember(ctx, in.TargetUserID, in.ChatGroupID, adminID)
		res = services.ToggleResult{Action: chat.ModActionRemove, Active: rm.Removed}
		if err == nil && rm.AlreadyAbsent {
			s.reply(realtime.EventAdminActionPerformed, s.adminFrame(in, res))
			return nil
		}
	default:
		return apierr.Validation("unknown admin action %q", in.Action)
	}
	if err != nil {
		return err
	}

	s.g.toGroup(ctx, in.ChatGroupID, realtime.EventAdminActionPerformed, s.adminFrame(in, res))
	var target *int64
	if in.Action != chat.ModActionGroupSlowMode {
		target = &in.TargetUserID
	}
	s.g.publish(ctx, events.AdminAction, events.AdminActionPayload{
		ChatGroupID:     in.ChatGroupID,
		AdminID:         adminID,
		Action:          res.Action,
		TargetUserID:    target,
		DurationSeconds: res.DurationSeconds,
		Reason:          strings.TrimSpace(in.Reason),
		Active:          res.Active,
		Timestamp:       time.Now().UTC(),
	})
	return nil
}

func (s *Session) adminFrame(in adminActionRequest, res services.ToggleResult) adminActionFrame {
	f := adminActionFrame{
		ChatGroupID: in.ChatGroupID,
		Action:      res.Action,
		AdminID:     s.identity.UserID,
		Active:      res.Active,
		Duration:    res.DurationSeconds,
		Reason:      strings.TrimSpace(in.Reason),
	}
	if in.Action != chat.ModActionGroupSlowMode {
		t := in.TargetUserID
		f.TargetUserID = &t
	}
	return f
}
