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

func (s *Session) joinGroup(ctx context.Context, raw json.RawMessage) error {
	var in groupRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if in.ChatGroupID <= 0 {
		return apierr.Validation("chatGroupId is required")
	}
	if err := s.requirePermission(ctx, in.ChatGroupID, services.ActionJoinGroup); err != nil {
		return err
	}
	if !s.g.hub.Join(in.ChatGroupID, s.sink) {
		online, err := s.g.presence.ListOnline(ctx, in.ChatGroupID)
		if err != nil {
			online = []int64{}
		}
		s.reply(realtime.EventUserPresence, presenceFrame{
			Action: "joined", UserID: s.identity.UserID, ChatGroupID: in.ChatGroupID, OnlineUsers: online,
		})
		return nil
	}
	if err := s.g.presence.Join(ctx, in.ChatGroupID, s.identity.UserID); err != nil {
		s.log.Warn("presence join failed", "group_id", in.ChatGroupID, "error", err)
	}
	s.g.broadcastPresence(ctx, in.ChatGroupID, s.identity.UserID, "joined")
	return nil
}

func (s *Session) leaveGroup(ctx context.Context, raw json.RawMessage) error {
	var in groupRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if err := s.requireGroup(in.ChatGroupID); err != nil {
		return err
	}
	s.g.dropFromGroup(ctx, s.sink, in.ChatGroupID)
	return nil
}

func (s *Session) sendMessage(ctx context.Context, raw json.RawMessage) error {
	var in sendMessageRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	groupID := in.ChatGroupID
	if err := s.requireGroup(groupID); err != nil {
		return err
	}
	userID := s.identity.UserID
	s.g.clearTyping(ctx, groupID, userID)

	if err := s.requirePermission(ctx, groupID, services.ActionSendMessage); err != nil {
		return err
	}
	if err := s.requireNoCooldown(ctx, groupID); err != nil {
		return err
	}

	save := services.SaveMessageInput{
		SenderID:    userID,
		ChatGroupID: groupID,
		Text:        in.Message,
		Media:       in.Media,
		Spoiler:     in.Spoiler,
	}
	if in.Message != nil {
		save.Mentions = services.ParseMentions(*in.Message)
	}
	if in.ThreadID != nil && *in.ThreadID > 0 {
		th, err := s.g.messages.GetThread(ctx, *in.ThreadID)
		if err != nil {
			return err
		}
		if th == nil {
			return apierr.NotFound("thread not found")
		}
		if th.ChatGroupID != groupID {
			return apierr.Validation("thread does not belong to this group")
		}
		save.ThreadID = &th.ID
	}
	// Upload last so a rejected send leaves no orphaned object.
	if in.Audio != nil && strings.TrimSpace(*in.Audio) != "" {
		key, err := s.g.messages.StoreInlineAudio(ctx, *in.Audio)
		if err != nil {
			return err
		}
		save.Audio = &key
	}
	save.ReplyToMessageID = s.resolveReply(ctx, groupID, in.ReplyTo)

	msg, err := s.g.messages.SaveMessage(ctx, save)
	if err != nil {
		return err
	}
	view, err := s.g.messages.BuildView(ctx, msg)
	if err != nil {
		return err
	}
	s.g.toGroup(ctx, groupID, realtime.EventNewMessage, view)

	s.armCooldown(ctx, groupID)
	incErr := s.award(ctx, groupID, chat.ActivityMessage)
	s.publishMessage(ctx, msg, save.Mentions)
	return incErr
}

func (s *Session) requireNoCooldown(ctx context.Context, groupID int64) error {
	cooling, err := s.g.moderation.CooldownActive(ctx, groupID, s.identity.UserID)
	if err != nil {
		return err
	}
	if cooling {
		return apierr.Forbidden("slow mode is active, wait before sending another message")
	}
	return nil
}

func (s *Session) armCooldown(ctx context.Context, groupID int64) {
	if _, err := s.g.moderation.ArmCooldown(ctx, groupID, s.identity.UserID); err != nil {
		s.log.Warn("arm slow mode cooldown failed", "group_id", groupID, "error", err)
	}
}

// resolveReply keeps the reference unless the target provably sits in
// another group. Lookup failures keep the id and let read time degrade.
func (s *Session) resolveReply(ctx context.Context, groupID int64, replyTo *int64) *int64 {
	if replyTo == nil || *replyTo <= 0 {
		return nil
	}
	parent, err := s.g.messages.GetMessageRow(ctx, *replyTo)
	if err != nil {
		s.log.Warn("reply target lookup failed", "message_id", *replyTo, "error", err)
		return replyTo
	}
	if parent != nil && parent.ChatGroupID != groupID {
		return nil
	}
	return replyTo
}

func (s *Session) publishMessage(ctx context.Context, msg *chat.Message, mentions []chat.Mention) {
	now := time.Now().UTC()
	s.g.publish(ctx, events.MessageCreated, events.MessageCreatedPayload{
		MessageID:   msg.ID,
		ChatGroupID: msg.ChatGroupID,
		SenderID:    msg.SenderID,
		ThreadID:    msg.ThreadID,
		HasMedia:    msg.Media != "",
		HasAudio:    msg.Audio != nil,
		Timestamp:   now,
	})
	if len(mentions) == 0 {
		return
	}
	seen := make(map[int64]bool, len(mentions))
	ids := make([]int64, 0, len(mentions))
	for _, m := range mentions {
		if !seen[m.UserID] {
			seen[m.UserID] = true
			ids = append(ids, m.UserID)
		}
	}
	s.g.publish(ctx, events.UserMentioned, events.UserMentionedPayload{
		MessageID:        msg.ID,
		ChatGroupID:      msg.ChatGroupID,
		SenderID:         msg.SenderID,
		SenderName:       s.identity.DisplayName,
		MentionedUserIDs: ids,
		Timestamp:        now,
	})
}

// award increments the activity and tells the user when they level up.
func (s *Session) award(ctx context.Context, groupID int64, kind chat.ActivityKind) error {
	snap, err := s.g.gamification.IncrementActivity(ctx, s.identity.UserID, groupID, kind)
	if err != nil {
		return err
	}
	if snap.LeveledUp {
		if err := s.g.emitter.ToUser(ctx, s.identity.UserID, realtime.EventLevelUp, levelUpFrame{
			ChatGroupID: groupID, Level: snap.Level, TotalPoints: snap.TotalPoints,
		}); err != nil {
			s.log.Warn("levelup emit failed", "group_id", groupID, "error", err)
		}
	}
	return nil
}

func (s *Session) startTyping(ctx context.Context, raw json.RawMessage) error {
	var in groupRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if err := s.requireGroup(in.ChatGroupID); err != nil {
		return err
	}
	groupID, userID := in.ChatGroupID, s.identity.UserID
	started := s.g.typing.start(memberKey{groupID: groupID, userID: userID}, func() {
		s.g.toGroup(context.Background(), groupID, realtime.EventUserTyping, typingFrame{
			UserID: userID, UserName: s.identity.DisplayName, ChatGroupID: groupID, IsTyping: false,
		})
	})
	if started {
		s.g.toGroup(ctx, groupID, realtime.EventUserTyping, typingFrame{
			UserID: userID, UserName: s.identity.DisplayName, ChatGroupID: groupID, IsTyping: true,
		})
	}
	return nil
}

func (s *Session) stopTyping(ctx context.Context, raw json.RawMessage) error {
	var in groupRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if in.ChatGroupID <= 0 {
		return apierr.Validation("chatGroupId is required")
	}
	s.g.clearTyping(ctx, in.ChatGroupID, s.identity.UserID)
	return nil
}

func (s *Session) addReaction(ctx context.Context, raw json.RawMessage) error {
	var in addReactionRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if in.MessageID <= 0 {
		return apierr.Validation("messageId is required")
	}
	target, err := s.g.messages.GetMessageRow(ctx, in.MessageID)
	if err != nil {
		return err
	}
	if target == nil {
		return apierr.NotFound("message not found")
	}
	groupID := target.ChatGroupID
	if err := s.requirePermission(ctx, groupID, services.ActionSendReaction); err != nil {
		return err
	}

	r, replaced, err := s.g.messages.AddReaction(ctx, services.ReactionInput{
		MessageID:    in.MessageID,
		UserID:       s.identity.UserID,
		ReactionType: in.ReactionType,
		CustomEmote:  in.CustomEmote,
	})
	if err != nil {
		return err
	}
	s.g.toGroup(ctx, groupID, realtime.EventNewReaction, reactionFrame{
		ID:           r.ID,
		MessageID:    r.MessageID,
		ChatGroupID:  groupID,
		UserID:       r.UserID,
		ReactionType: r.ReactionType,
		CustomEmote:  r.CustomEmote,
		Replaced:     replaced,
		CreatedAt:    r.UpdatedAt,
	})

	// Swapping an existing reaction earns nothing.
	var incErr error
	if !replaced {
		incErr = s.award(ctx, groupID, chat.ActivityReaction)
	}
	s.g.publish(ctx, events.ReactionAdded, events.ReactionAddedPayload{
		ReactionID:      r.ID,
		MessageID:       r.MessageID,
		MessageAuthorID: target.SenderID,
		ChatGroupID:     groupID,
		UserID:          r.UserID,
		ReactionType:    r.ReactionType,
		CustomEmote:     r.CustomEmote,
		Replaced:        replaced,
		Timestamp:       time.Now().UTC(),
	})
	return incErr
}

func (s *Session) createThread(ctx context.Context, raw json.RawMessage) error {
	var in createThreadRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if in.ParentMessageID <= 0 {
		return apierr.Validation("parentMessageId is required")
	}
	groupID := in.ChatGroupID
	if err := s.requireGroup(groupID); err != nil {
		return err
	}
	if err := s.requirePermission(ctx, groupID, services.ActionCreateThread); err != nil {
		return err
	}

	var first *services.SaveMessageInput
	if in.InitialMessage != nil && strings.TrimSpace(*in.InitialMessage) != "" {
		// The opening post is a message, so the send gate applies to it too.
		if err := s.requirePermission(ctx, groupID, services.ActionSendMessage); err != nil {
			return err
		}
		if err := s.requireNoCooldown(ctx, groupID); err != nil {
			return err
		}
		first = &services.SaveMessageInput{
			SenderID:    s.identity.UserID,
			ChatGroupID: groupID,
			Text:        in.InitialMessage,
			Mentions:    services.ParseMentions(*in.InitialMessage),
		}
	}

	parent, err := s.g.messages.GetMessageRow(ctx, in.ParentMessageID)
	if err != nil {
		return err
	}
	if parent == nil {
		return apierr.NotFound("parent message not found")
	}
	if parent.ChatGroupID != groupID {
		return apierr.Validation("parent message does not belong to this group")
	}

	th, msg, err := s.g.messages.StartThread(ctx, services.CreateThreadInput{
		ParentMessageID: parent.ID,
		CreatorID:       s.identity.UserID,
		ChatGroupID:     groupID,
	}, first)
	if err != nil {
		return err
	}

	view := &services.ThreadView{
		ID:              th.ID,
		ParentMessageID: th.ParentMessageID,
		ChatGroupID:     th.ChatGroupID,
		CreatorID:       th.CreatorID,
		CreatedAt:       th.CreatedAt,
	}
	if msg != nil {
		s.armCooldown(ctx, groupID)
		mv, err := s.g.messages.BuildView(ctx, msg)
		if err != nil {
			s.log.Warn("initial message view failed", "thread_id", th.ID, "error", err)
		}
		view.InitialMessage = mv
	}
	s.g.toGroup(ctx, groupID, realtime.EventThreadCreated, view)

	incErr := s.award(ctx, groupID, chat.ActivityThread)
	s.g.publish(ctx, events.ThreadCreated, events.ThreadCreatedPayload{
		ThreadID:        th.ID,
		ParentMessageID: th.ParentMessageID,
		ChatGroupID:     groupID,
		CreatorID:       th.CreatorID,
		Timestamp:       time.Now().UTC(),
	})
	if msg != nil {
		s.publishMessage(ctx, msg, first.Mentions)
	}
	return incErr
}

func (s *Session) getThreadMessages(ctx context.Context, raw json.RawMessage) error {
	var in threadRequest
	if err := decode(raw, &in); err != nil {
		return err
	}
	if in.ThreadID <= 0 {
		return apierr.Validation("threadId is required")
	}
	th, err := s.g.messages.GetThread(ctx, in.ThreadID)
	if err != nil {
		return err
	}
	if th == nil {
		return apierr.NotFound("thread not found")
	}
	if err := s.requirePermission(ctx, th.ChatGroupID, services.ActionReadThread); err != nil {
		return err
	}
	msgs, err := s.g.messages.GetThreadMessages(ctx, th.ID)
	if err != nil {
		return err
	}
	s.reply(realtime.EventThreadMessages, threadMessagesFrame{ThreadID: th.ID, Messages: msgs})
	return nil
}
