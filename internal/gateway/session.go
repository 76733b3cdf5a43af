package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/apierr"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/realtime"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

// Session is one authenticated socket. Handle must be called from a single
// goroutine so a connection's events run in order.
type Session struct {
	g        *Gateway
	sink     realtime.Sink
	identity services.Identity
	log      *logger.Logger
	closed   atomic.Bool
}

type handlerFunc func(s *Session, ctx context.Context, raw json.RawMessage) error

var handlers = map[string]handlerFunc{
	InJoinGroup:         (*Session).joinGroup,
	InLeaveGroup:        (*Session).leaveGroup,
	InSendMessage:       (*Session).sendMessage,
	InStartTyping:       (*Session).startTyping,
	InStopTyping:        (*Session).stopTyping,
	InAddReaction:       (*Session).addReaction,
	InCreateThread:      (*Session).createThread,
	InGetThreadMessages: (*Session).getThreadMessages,
	InAdminAction:       (*Session).adminAction,
	InStartCountdown:    (*Session).startCountdown,
	InSendQuoteMacro:    (*Session).sendQuoteMacro,
	InJoinVoiceRoom:     (*Session).joinVoiceRoom,
	InLeaveVoiceRoom:    (*Session).leaveVoiceRoom,
}

func (s *Session) UserID() int64 { return s.identity.UserID }

// Handle runs one client frame. Failures become an error frame to this
// connection only.
func (s *Session) Handle(ctx context.Context, f realtime.Frame) {
	if s.closed.Load() {
		return
	}
	h, ok := handlers[f.Event]
	if !ok {
		s.replyError(f.Event, apierr.Validation("unknown event %q", f.Event))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.g.cfg.RequestTimeout)
	defer cancel()
	ctx, span := s.g.tracer.Start(ctx, "socket."+f.Event,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.Int64("user.id", s.identity.UserID),
			attribute.String("connection.id", s.sink.ID()),
		),
	)
	defer span.End()

	start := time.Now()
	err := h(s, ctx, f.Data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apierr.PublicMessage(err))
		s.replyError(f.Event, err)
	}
	s.log.Debug("socket event handled", "event", f.Event, "duration_ms", time.Since(start).Milliseconds(), "ok", err == nil)
}

// HandleRaw decodes one socket text message and runs it.
func (s *Session) HandleRaw(ctx context.Context, payload []byte) {
	f, err := realtime.DecodeFrame(payload)
	if err != nil || f.Event == "" {
		s.replyError("", apierr.Validation("malformed frame"))
		return
	}
	s.Handle(ctx, f)
}

// Close is the disconnect transition. Each group is torn down on its own so
// one failing group never skips the rest.
func (s *Session) Close(ctx context.Context) {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	rooms := s.g.hub.Unregister(s.sink)
	for _, groupID := range rooms {
		s.teardownGroup(ctx, groupID)
	}
	s.g.publish(ctx, events.UserDisconnected, events.UserDisconnectedPayload{
		UserID:       s.identity.UserID,
		ConnectionID: s.sink.ID(),
		GroupIDs:     rooms,
		Timestamp:    time.Now().UTC(),
	})
}

func (s *Session) teardownGroup(ctx context.Context, groupID int64) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("group teardown panicked", "group_id", groupID, "panic", r)
		}
	}()
	s.g.dropFromGroup(ctx, s.sink, groupID)
}

func (s *Session) inGroup(groupID int64) bool {
	return groupID > 0 && s.g.hub.InRoom(groupID, s.sink)
}

func (s *Session) requireGroup(groupID int64) error {
	if groupID <= 0 {
		return apierr.Validation("chatGroupId is required")
	}
	if !s.inGroup(groupID) {
		return apierr.Forbidden("join the group first")
	}
	return nil
}

func (s *Session) requirePermission(ctx context.Context, groupID int64, action services.Action) error {
	ok, err := s.g.moderation.CheckPermission(ctx, s.identity.UserID, groupID, action)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.Forbidden("you are not allowed to do that in this group")
	}
	return nil
}

func (s *Session) reply(event string, data any) {
	payload, err := realtime.EncodeFrame(event, data)
	if err != nil {
		s.log.Error("encode reply failed", "event", event, "error", err)
		return
	}
	if err := s.sink.Send(payload); err != nil {
		s.log.Debug("reply dropped", "event", event, "error", err)
	}
}

func (s *Session) replyError(event string, err error) {
	if _, ok := apierr.As(err); !ok {
		s.log.Error("unclassified socket error", "event", event, "error", err)
	} else if apierr.IsCode(err, apierr.CodeDependency) {
		s.log.Warn("socket dependency failure", "event", event, "error", err)
	}
	s.reply(realtime.EventError, errorFrame{Message: apierr.PublicMessage(err), Event: event})
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return apierr.Validation("missing payload")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return apierr.Validation("invalid payload")
	}
	return nil
}
