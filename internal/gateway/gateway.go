// Package gateway is the socket session state machine. Each connection
// moves from Connected through zero or more joined groups to Disconnected,
// and every client event is gated, persisted, broadcast and published here.
package gateway

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/realtime"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type Config struct {
	TypingTimeout  time.Duration
	RequestTimeout time.Duration
	MaxCountdown   time.Duration
}

func (c Config) withDefaults() Config {
	if c.TypingTimeout <= 0 {
		c.TypingTimeout = 3 * time.Second
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxCountdown <= 0 {
		c.MaxCountdown = time.Hour
	}
	return c
}

type Deps struct {
	Log          *logger.Logger
	Hub          *realtime.Hub
	Emitter      realtime.Emitter
	Bus          events.Bus
	Presence     services.PresenceStore
	Moderation   services.ModerationService
	Messages     services.MessageService
	Gamification services.GamificationService
	Macros       *services.QuoteMacroCatalog
	// Tracer defaults to the global provider.
	Tracer trace.Tracer
}

type Gateway struct {
	log          *logger.Logger
	hub          *realtime.Hub
	emitter      realtime.Emitter
	bus          events.Bus
	presence     services.PresenceStore
	moderation   services.ModerationService
	messages     services.MessageService
	gamification services.GamificationService
	macros       *services.QuoteMacroCatalog
	tracer       trace.Tracer
	cfg          Config

	typing     *typingTracker
	voice      *voiceRooms
	countdowns *countdowns
	removedSub events.SubscriptionID
}

func New(d Deps, cfg Config) *Gateway {
	cfg = cfg.withDefaults()
	tracer := d.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/gateway")
	}
	return &Gateway{
		log:          d.Log.With("component", "ChatGateway"),
		hub:          d.Hub,
		emitter:      d.Emitter,
		bus:          d.Bus,
		presence:     d.Presence,
		moderation:   d.Moderation,
		messages:     d.Messages,
		gamification: d.Gamification,
		macros:       d.Macros,
		tracer:       tracer,
		cfg:          cfg,
		typing:       newTypingTracker(cfg.TypingTimeout),
		voice:        newVoiceRooms(),
		countdowns:   newCountdowns(),
	}
}

// Start subscribes to membership removals so removed users lose their
// local sockets' room subscriptions.
func (g *Gateway) Start() {
	g.removedSub = g.bus.Subscribe(events.UserRemoved, g.onUserRemoved)
}

// Stop cancels pending typing and countdown timers.
func (g *Gateway) Stop() {
	if g.removedSub != 0 {
		g.bus.Unsubscribe(events.UserRemoved, g.removedSub)
		g.removedSub = 0
	}
	g.typing.stopAll()
	g.countdowns.stopAll()
}

// Open registers an authenticated sink and returns its session.
func (g *Gateway) Open(ctx context.Context, sink realtime.Sink, id services.Identity) *Session {
	s := &Session{
		g:        g,
		sink:     sink,
		identity: id,
		log:      g.log.With("connection_id", sink.ID(), "user_id", id.UserID),
	}
	if s.identity.DisplayName == "" {
		if info, err := g.messages.GetUserInfo(ctx, id.UserID); err == nil && info != nil {
			s.identity.DisplayName = info.DisplayName()
		}
	}
	g.hub.Register(sink)
	s.reply(realtime.EventConnected, map[string]any{"userId": id.UserID, "connectionId": sink.ID()})
	return s
}

func (g *Gateway) onUserRemoved(ctx context.Context, ev events.Event) {
	var p events.UserRemovedPayload
	if err := ev.Decode(&p); err != nil {
		g.log.Warn("bad user.removed event", "event_id", ev.ID, "error", err)
		return
	}
	for _, sink := range g.hub.SinksForUserInRoom(p.ChatGroupID, p.UserID) {
		if payload, err := realtime.EncodeFrame(realtime.EventMemberRemoved, groupRequest{ChatGroupID: p.ChatGroupID}); err == nil {
			_ = sink.Send(payload)
		}
		g.dropFromGroup(ctx, sink, p.ChatGroupID)
	}
}

// dropFromGroup is the per-group teardown shared by leave, removal and
// disconnect. Group-visible effects run only when the user's last local
// connection leaves the group.
func (g *Gateway) dropFromGroup(ctx context.Context, sink realtime.Sink, groupID int64) {
	userID := sink.UserID()
	g.hub.Leave(groupID, sink)
	if g.hub.UserConnectionsInRoom(groupID, userID) > 0 {
		return
	}
	g.clearTyping(ctx, groupID, userID)

	if parts, left := g.voice.leave(groupID, userID); left {
		g.toGroup(ctx, groupID, realtime.EventVoiceRoomUpdate, voiceRoomFrame{
			Action: "userLeft", ChatGroupID: groupID, UserID: userID, Participants: parts,
		})
	}
	if err := g.presence.Leave(ctx, groupID, userID); err != nil {
		g.log.Warn("presence leave failed", "group_id", groupID, "user_id", userID, "error", err)
	}
	g.broadcastPresence(ctx, groupID, userID, "left")
}

func (g *Gateway) broadcastPresence(ctx context.Context, groupID, userID int64, action string) {
	online, err := g.presence.ListOnline(ctx, groupID)
	if err != nil {
		g.log.Warn("presence snapshot failed", "group_id", groupID, "error", err)
		online = []int64{}
	}
	g.toGroup(ctx, groupID, realtime.EventUserPresence, presenceFrame{
		Action: action, UserID: userID, ChatGroupID: groupID, OnlineUsers: online,
	})
}

func (g *Gateway) clearTyping(ctx context.Context, groupID, userID int64) {
	if g.typing.stop(memberKey{groupID: groupID, userID: userID}) {
		g.toGroup(ctx, groupID, realtime.EventUserTyping, typingFrame{UserID: userID, ChatGroupID: groupID, IsTyping: false})
	}
}

func (g *Gateway) toGroup(ctx context.Context, groupID int64, event string, data any) {
	if err := g.emitter.ToGroup(ctx, groupID, event, data); err != nil {
		g.log.Warn("group emit failed", "group_id", groupID, "event", event, "error", err)
	}
}

func (g *Gateway) publish(ctx context.Context, name string, payload any) {
	if err := g.bus.Publish(ctx, name, payload); err != nil {
		g.log.Warn("event publish failed", "event", name, "error", err)
	}
}
