package services

import (
	"context"
	"encoding/json"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/jobs/notify"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

// NotificationDispatcher maps bus events to notification deliveries.
// Enqueue failures are logged and dropped; the chat path never waits on them.
type NotificationDispatcher struct {
	log      *logger.Logger
	bus      events.Bus
	enqueuer notify.Enqueuer
	subs     map[string]events.SubscriptionID
}

func NewNotificationDispatcher(log *logger.Logger, bus events.Bus, enqueuer notify.Enqueuer) *NotificationDispatcher {
	return &NotificationDispatcher{
		log:      log.With("service", "NotificationDispatcher"),
		bus:      bus,
		enqueuer: enqueuer,
		subs:     map[string]events.SubscriptionID{},
	}
}

// Start subscribes to every event that produces a notification.
func (d *NotificationDispatcher) Start() {
	handlers := map[string]events.Handler{
		events.UserMentioned:   d.onMentioned,
		events.ReactionAdded:   d.onReaction,
		events.UserLevelUp:     d.onLevelUp,
		events.MuteToggled:     d.onModeration,
		events.ExileToggled:    d.onModeration,
		events.SlowModeToggled: d.onModeration,
		events.UserRemoved:     d.onRemoved,
	}
	for name, h := range handlers {
		d.subs[name] = d.bus.Subscribe(name, h)
	}
}

func (d *NotificationDispatcher) Stop() {
	for name, id := range d.subs {
		d.bus.Unsubscribe(name, id)
	}
	d.subs = map[string]events.SubscriptionID{}
}

func (d *NotificationDispatcher) onMentioned(ctx context.Context, ev events.Event) {
	var p events.UserMentionedPayload
	if !d.decode(ev, &p) {
		return
	}
	recipients := make([]int64, 0, len(p.MentionedUserIDs))
	for _, uid := range p.MentionedUserIDs {
		if uid != p.SenderID {
			recipients = append(recipients, uid)
		}
	}
	d.enqueue(ctx, ev, recipients, &p.ChatGroupID, &p.SenderID)
}

func (d *NotificationDispatcher) onReaction(ctx context.Context, ev events.Event) {
	var p events.ReactionAddedPayload
	if !d.decode(ev, &p) {
		return
	}
	if p.MessageAuthorID == 0 || p.MessageAuthorID == p.UserID {
		return
	}
	d.enqueue(ctx, ev, []int64{p.MessageAuthorID}, &p.ChatGroupID, &p.UserID)
}

func (d *NotificationDispatcher) onLevelUp(ctx context.Context, ev events.Event) {
	var p events.LevelUpPayload
	if !d.decode(ev, &p) {
		return
	}
	d.enqueue(ctx, ev, []int64{p.UserID}, &p.GroupID, nil)
}

func (d *NotificationDispatcher) onModeration(ctx context.Context, ev events.Event) {
	var p events.ModerationToggledPayload
	if !d.decode(ev, &p) {
		return
	}
	if p.TargetUserID == nil {
		return
	}
	d.enqueue(ctx, ev, []int64{*p.TargetUserID}, &p.ChatGroupID, &p.AdminID)
}

func (d *NotificationDispatcher) onRemoved(ctx context.Context, ev events.Event) {
	var p events.UserRemovedPayload
	if !d.decode(ev, &p) {
		return
	}
	d.enqueue(ctx, ev, []int64{p.UserID}, &p.ChatGroupID, &p.AdminID)
}

func (d *NotificationDispatcher) decode(ev events.Event, v any) bool {
	if err := ev.Decode(v); err != nil {
		d.log.Warn("undecodable event", "event", ev.Name, "event_id", ev.ID, "error", err)
		return false
	}
	return true
}

func (d *NotificationDispatcher) enqueue(ctx context.Context, ev events.Event, recipients []int64, groupID, actorID *int64) {
	if len(recipients) == 0 {
		return
	}
	err := d.enqueuer.Enqueue(ctx, notify.Delivery{
		EventID:      ev.ID,
		Kind:         ev.Name,
		RecipientIDs: recipients,
		ChatGroupID:  groupID,
		ActorID:      actorID,
		Payload:      json.RawMessage(ev.Data),
	})
	if err != nil {
		d.log.Warn("enqueue notification failed", "event", ev.Name, "event_id", ev.ID, "error", err)
	}
}
