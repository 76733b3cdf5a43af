package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/domain/chat"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/realtime"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

const maxCountdownTitle = 100

func (s *Session) startCountdown(ctx context.Context, raw json.RawMessage) error {
	var in countdownRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if err := s.requireGroup(in.ChatGroupID); err != nil {
		return err
	}
	d := time.Duration(in.Duration) * time.Second
	if d <= 0 || d > s.g.cfg.MaxCountdown {
		return apierr.Validation("duration must be between 1 and %d seconds", int64(s.g.cfg.MaxCountdown/time.Second))
	}
	if err := s.requirePermission(ctx, in.ChatGroupID, services.ActionCountdown); err != nil {
		return err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = "Countdown"
	}
	if r := []rune(title); len(r) > maxCountdownTitle {
		title = string(r[:maxCountdownTitle])
	}

	f := countdownFrame{
		CountdownID: uuid.NewString(),
		ChatGroupID: in.ChatGroupID,
		Title:       title,
		Duration:    in.Duration,
		StartedBy:   s.identity.UserID,
		EndsAt:      time.Now().UTC().Add(d),
	}
	s.g.toGroup(ctx, in.ChatGroupID, realtime.EventCountdownStarted, f)
	s.g.countdowns.schedule(f.CountdownID, d, func() {
		s.g.toGroup(context.Background(), f.ChatGroupID, realtime.EventCountdownEnded, f)
	})
	return nil
}

func (s *Session) sendQuoteMacro(ctx context.Context, raw json.RawMessage) error {
	var in quoteMacroRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if err := s.requireGroup(in.ChatGroupID); err != nil {
		return err
	}
	macro, known := s.g.macros.Get(in.MacroID)
	text := strings.TrimSpace(in.CustomText)
	if text == "" {
		if !known {
			return apierr.Validation("unknown quote macro %q", in.MacroID)
		}
		text = macro.Text
	}
	if err := s.requirePermission(ctx, in.ChatGroupID, services.ActionQuoteMacro); err != nil {
		return err
	}

	s.g.toGroup(ctx, in.ChatGroupID, realtime.EventQuoteMacro, quoteMacroFrame{
		ChatGroupID: in.ChatGroupID,
		UserID:      s.identity.UserID,
		UserName:    s.identity.DisplayName,
		MacroID:     strings.TrimSpace(in.MacroID),
		Title:       macro.Title,
		Text:        text,
		Source:      macro.Source,
		Character:   macro.Character,
		Timestamp:   time.Now().UTC(),
	})
	return s.award(ctx, in.ChatGroupID, chat.ActivityQuoteMacro)
}

func (s *Session) joinVoiceRoom(ctx context.Context, raw json.RawMessage) error {
	var in groupRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if err := s.requireGroup(in.ChatGroupID); err != nil {
		return err
	}
	if err := s.requirePermission(ctx, in.ChatGroupID, services.ActionJoinVoice); err != nil {
		return err
	}
	parts, added := s.g.voice.join(in.ChatGroupID, s.identity.UserID)
	f := voiceRoomFrame{Action: "userJoined", ChatGroupID: in.ChatGroupID, UserID: s.identity.UserID, Participants: parts}
	if !added {
		s.reply(realtime.EventVoiceRoomUpdate, f)
		return nil
	}
	s.g.toGroup(ctx, in.ChatGroupID, realtime.EventVoiceRoomUpdate, f)
	return s.award(ctx, in.ChatGroupID, chat.ActivityVoiceRoom)
}

func (s *Session) leaveVoiceRoom(ctx context.Context, raw json.RawMessage) error {
	var in groupRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if in.ChatGroupID <= 0 {
		return apierr.Validation("chatGroupId is required")
	}
	if parts, removed := s.g.voice.leave(in.ChatGroupID, s.identity.UserID); removed {
		s.g.toGroup(ctx, in.ChatGroupID, realtime.EventVoiceRoomUpdate, voiceRoomFrame{
			Action: "userLeft", ChatGroupID: in.ChatGroupID, UserID: s.identity.UserID, Participants: parts,
		})
	}
	return nil
}
