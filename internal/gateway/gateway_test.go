package gateway

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/repos/testutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/realtime"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type fakeSink struct {
	id     string
	userID int64

	mu     sync.Mutex
	frames []realtime.Frame
}

func (s *fakeSink) ID() string    { return s.id }
func (s *fakeSink) UserID() int64 { return s.userID }
func (s *fakeSink) Send(payload []byte) error {
	f, err := realtime.DecodeFrame(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) named(event string) []realtime.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []realtime.Frame
	for _, f := range s.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (s *fakeSink) reset() {
	s.mu.Lock()
	s.frames = nil
	s.mu.Unlock()
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type env struct {
	t     *testing.T
	gw    *Gateway
	bus   *events.LocalBus
	clock *clock
	fx    testutil.GroupFixture

	gamification services.GamificationService
	presence     services.PresenceStore
}

func newEnv(t *testing.T, cfg Config) *env {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	clk := &clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := kv.NewMemoryStoreWithClock(clk.Now)
	bus := events.NewLocalBus(log)
	hub := realtime.NewHub(log)

	groupRepo := repos.NewGroupRepo(db, log)
	moderation := services.NewModerationService(log, store, groupRepo, repos.NewModerationAuditRepo(db, log), bus, services.ModerationConfig{})
	gamification := services.NewGamificationService(db, log, store, repos.NewActivityStatsRepo(db, log), repos.NewLevelHistoryRepo(db, log), bus, services.GamificationConfig{})
	messages := services.NewMessageService(db, log, store, nil, repos.NewUserRepo(db, log), repos.NewMessageRepo(db, log),
		repos.NewThreadRepo(db, log), repos.NewReactionRepo(db, log), services.MessageConfig{})
	macros, err := services.LoadQuoteMacros("")
	if err != nil {
		t.Fatalf("LoadQuoteMacros: %v", err)
	}
	presence := services.NewPresenceStore(log, store)

	gw := New(Deps{
		Log:          log,
		Hub:          hub,
		Emitter:      realtime.NewLocalEmitter(hub),
		Bus:          bus,
		Presence:     presence,
		Moderation:   moderation,
		Messages:     messages,
		Gamification: gamification,
		Macros:       macros,
	}, cfg)
	gw.Start()
	t.Cleanup(gw.Stop)

	return &env{
		t:            t,
		gw:           gw,
		bus:          bus,
		clock:        clk,
		fx:           testutil.SeedGroupFixture(t, ctx, db),
		gamification: gamification,
		presence:     presence,
	}
}

func (e *env) open(id string, userID int64) (*Session, *fakeSink) {
	sink := &fakeSink{id: id, userID: userID}
	return e.gw.Open(context.Background(), sink, services.Identity{UserID: userID, DisplayName: id}), sink
}

func send(t *testing.T, s *Session, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	s.Handle(context.Background(), realtime.Frame{Event: event, Data: raw})
}

func decodeData(t *testing.T, f realtime.Frame, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("decode %s: %v", f.Event, err)
	}
}

func lastError(t *testing.T, sink *fakeSink) string {
	t.Helper()
	errs := sink.named(realtime.EventError)
	if len(errs) == 0 {
		return ""
	}
	var ef errorFrame
	decodeData(t, errs[len(errs)-1], &ef)
	return ef.Message
}

func (e *env) joinBoth() (admin *Session, adminSink *fakeSink, member *Session, memberSink *fakeSink) {
	e.t.Helper()
	admin, adminSink = e.open("admin-conn", e.fx.Admin.ID)
	member, memberSink = e.open("member-conn", e.fx.Member.ID)
	send(e.t, admin, InJoinGroup, groupRequest{ChatGroupID: e.fx.Group.ID})
	send(e.t, member, InJoinGroup, groupRequest{ChatGroupID: e.fx.Group.ID})
	if msg := lastError(e.t, memberSink); msg != "" {
		e.t.Fatalf("join: unexpected error %q", msg)
	}
	adminSink.reset()
	memberSink.reset()
	return
}

func TestGateway_SendMessageBroadcastsAndAwards(t *testing.T) {
	e := newEnv(t, Config{})
	_, adminSink, member, memberSink := e.joinBoth()

	text := "hello"
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("sendMessage: unexpected error %q", msg)
	}

	got := adminSink.named(realtime.EventNewMessage)
	if len(got) != 1 {
		t.Fatalf("admin newMessage frames: want=1 got=%d", len(got))
	}
	var view services.MessageView
	decodeData(t, got[0], &view)
	if view.SenderID != e.fx.Member.ID || view.Message == nil || *view.Message != "hello" {
		t.Fatalf("newMessage: got=%+v", view)
	}
	if len(memberSink.named(realtime.EventNewMessage)) != 1 {
		t.Fatalf("sender should receive its own newMessage")
	}

	stats, err := e.gamification.GetStats(context.Background(), e.fx.Member.ID, e.fx.Group.ID)
	if err != nil || stats.TotalPoints != 10 {
		t.Fatalf("stats: want=10 got=%+v err=%v", stats, err)
	}
}

func TestGateway_MuteBlocksUntilExpiry(t *testing.T) {
	e := newEnv(t, Config{})
	admin, adminSink, member, memberSink := e.joinBoth()

	send(t, admin, InAdminAction, adminActionRequest{ChatGroupID: e.fx.Group.ID, Action: "mute", TargetUserID: e.fx.Member.ID, Duration: 60})
	if msg := lastError(t, adminSink); msg != "" {
		t.Fatalf("adminAction: unexpected error %q", msg)
	}
	performed := memberSink.named(realtime.EventAdminActionPerformed)
	if len(performed) != 1 {
		t.Fatalf("adminActionPerformed frames: want=1 got=%d", len(performed))
	}
	adminSink.reset()

	text := "let me talk"
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if lastError(t, memberSink) == "" {
		t.Fatalf("muted sendMessage: want error frame")
	}
	if n := len(adminSink.named(realtime.EventNewMessage)); n != 0 {
		t.Fatalf("muted sendMessage: want no broadcast got=%d", n)
	}

	e.clock.Advance(61 * time.Second)
	memberSink.reset()
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("after expiry: unexpected error %q", msg)
	}
	if n := len(adminSink.named(realtime.EventNewMessage)); n != 1 {
		t.Fatalf("after expiry: want one broadcast got=%d", n)
	}
}

func TestGateway_NonAdminCannotModerate(t *testing.T) {
	e := newEnv(t, Config{})
	_, _, member, memberSink := e.joinBoth()

	send(t, member, InAdminAction, adminActionRequest{ChatGroupID: e.fx.Group.ID, Action: "exile", TargetUserID: e.fx.Admin.ID, Duration: 60})
	if msg := lastError(t, memberSink); msg != "admin privileges required" {
		t.Fatalf("adminAction by member: want permission error got=%q", msg)
	}
}

func TestGateway_ExiledUserIsShutOut(t *testing.T) {
	e := newEnv(t, Config{})
	admin, _, member, memberSink := e.joinBoth()
	send(t, admin, InAdminAction, adminActionRequest{ChatGroupID: e.fx.Group.ID, Action: "exile", TargetUserID: e.fx.Member.ID, Duration: 600})

	text := "hi"
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if lastError(t, memberSink) == "" {
		t.Fatalf("exiled sendMessage: want error")
	}
	memberSink.reset()
	send(t, member, InJoinVoiceRoom, groupRequest{ChatGroupID: e.fx.Group.ID})
	if lastError(t, memberSink) == "" {
		t.Fatalf("exiled joinVoiceRoom: want error")
	}

	// Toggling again lifts the exile.
	send(t, admin, InAdminAction, adminActionRequest{ChatGroupID: e.fx.Group.ID, Action: "exile", TargetUserID: e.fx.Member.ID})
	memberSink.reset()
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("after unexile: unexpected error %q", msg)
	}
}

func TestGateway_GroupSlowModeArmsCooldown(t *testing.T) {
	e := newEnv(t, Config{})
	admin, adminSink, member, memberSink := e.joinBoth()

	send(t, admin, InAdminAction, adminActionRequest{ChatGroupID: e.fx.Group.ID, Action: "groupSlowmode", Duration: 300, Cooldown: 10})
	if msg := lastError(t, adminSink); msg != "" {
		t.Fatalf("groupSlowmode: unexpected error %q", msg)
	}

	text := "one"
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("first send: unexpected error %q", msg)
	}
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, memberSink); msg == "" {
		t.Fatalf("second send inside cooldown: want error")
	}
	e.clock.Advance(11 * time.Second)
	memberSink.reset()
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("send after cooldown: unexpected error %q", msg)
	}
}

func TestGateway_SlowModeGatesThreadOpeningPosts(t *testing.T) {
	e := newEnv(t, Config{})
	admin, adminSink, member, memberSink := e.joinBoth()

	text := "parent"
	send(t, admin, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	var parent services.MessageView
	decodeData(t, adminSink.named(realtime.EventNewMessage)[0], &parent)
	send(t, admin, InAdminAction, adminActionRequest{ChatGroupID: e.fx.Group.ID, Action: "groupSlowmode", Duration: 300, Cooldown: 60})
	if msg := lastError(t, adminSink); msg != "" {
		t.Fatalf("groupSlowmode: unexpected error %q", msg)
	}
	adminSink.reset()

	opening := "opening"
	send(t, member, InCreateThread, createThreadRequest{ParentMessageID: parent.ID, ChatGroupID: e.fx.Group.ID, InitialMessage: &opening})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("first thread: unexpected error %q", msg)
	}
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, memberSink); !strings.Contains(msg, "slow mode is active") {
		t.Fatalf("send after opening post: want slow mode error got=%q", msg)
	}

	spam := "spam"
	for i := 0; i < 3; i++ {
		memberSink.reset()
		send(t, member, InCreateThread, createThreadRequest{ParentMessageID: parent.ID, ChatGroupID: e.fx.Group.ID, InitialMessage: &spam})
		if msg := lastError(t, memberSink); !strings.Contains(msg, "slow mode is active") {
			t.Fatalf("thread %d inside cooldown: want slow mode error got=%q", i, msg)
		}
	}
	if n := len(adminSink.named(realtime.EventThreadCreated)); n != 1 {
		t.Fatalf("threadCreated frames during cooldown: want=1 got=%d", n)
	}

	memberSink.reset()
	send(t, member, InCreateThread, createThreadRequest{ParentMessageID: parent.ID, ChatGroupID: e.fx.Group.ID})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("empty thread inside cooldown: unexpected error %q", msg)
	}

	e.clock.Advance(61 * time.Second)
	send(t, member, InCreateThread, createThreadRequest{ParentMessageID: parent.ID, ChatGroupID: e.fx.Group.ID, InitialMessage: &opening})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("thread after cooldown: unexpected error %q", msg)
	}
	if n := len(adminSink.named(realtime.EventThreadCreated)); n != 3 {
		t.Fatalf("threadCreated frames: want=3 got=%d", n)
	}
}

func TestGateway_CreateThreadWithInitialMessage(t *testing.T) {
	e := newEnv(t, Config{})
	admin, adminSink, member, memberSink := e.joinBoth()

	text := "parent"
	send(t, admin, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	var parent services.MessageView
	decodeData(t, adminSink.named(realtime.EventNewMessage)[0], &parent)

	first := "first"
	send(t, member, InCreateThread, createThreadRequest{ParentMessageID: parent.ID, ChatGroupID: e.fx.Group.ID, InitialMessage: &first})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("createThread: unexpected error %q", msg)
	}
	created := adminSink.named(realtime.EventThreadCreated)
	if len(created) != 1 {
		t.Fatalf("threadCreated frames: want=1 got=%d", len(created))
	}
	var tv services.ThreadView
	decodeData(t, created[0], &tv)
	if tv.ID == 0 || tv.InitialMessage == nil || tv.InitialMessage.Message == nil || *tv.InitialMessage.Message != "first" {
		t.Fatalf("threadCreated payload: got=%+v", tv)
	}

	send(t, member, InGetThreadMessages, threadRequest{ThreadID: tv.ID})
	replies := memberSink.named(realtime.EventThreadMessages)
	if len(replies) != 1 {
		t.Fatalf("threadMessages frames: want=1 got=%d", len(replies))
	}
	if len(adminSink.named(realtime.EventThreadMessages)) != 0 {
		t.Fatalf("threadMessages must go to the requester only")
	}
	var tm threadMessagesFrame
	decodeData(t, replies[0], &tm)
	if len(tm.Messages) != 1 || *tm.Messages[0].Message != "first" {
		t.Fatalf("thread messages: got=%+v", tm.Messages)
	}

	send(t, member, InCreateThread, createThreadRequest{ParentMessageID: 987654, ChatGroupID: e.fx.Group.ID})
	if msg := lastError(t, memberSink); msg != "parent message not found" {
		t.Fatalf("createThread missing parent: want not found got=%q", msg)
	}
}

func TestGateway_ReactionReplacementAwardsOnce(t *testing.T) {
	e := newEnv(t, Config{})
	admin, adminSink, member, memberSink := e.joinBoth()

	text := "react here"
	send(t, admin, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	var msg services.MessageView
	decodeData(t, adminSink.named(realtime.EventNewMessage)[0], &msg)

	send(t, member, InAddReaction, addReactionRequest{MessageID: msg.ID, ReactionType: "fire"})
	send(t, member, InAddReaction, addReactionRequest{MessageID: msg.ID, ReactionType: "heart"})
	if m := lastError(t, memberSink); m != "" {
		t.Fatalf("addReaction: unexpected error %q", m)
	}
	frames := adminSink.named(realtime.EventNewReaction)
	if len(frames) != 2 {
		t.Fatalf("newReaction frames: want=2 got=%d", len(frames))
	}
	var second reactionFrame
	decodeData(t, frames[1], &second)
	if !second.Replaced || second.ReactionType != "heart" {
		t.Fatalf("second reaction: got=%+v", second)
	}
	stats, _ := e.gamification.GetStats(context.Background(), e.fx.Member.ID, e.fx.Group.ID)
	if stats.TotalPoints != 2 || stats.ReactionCount != 1 {
		t.Fatalf("reaction points: got=%+v", stats)
	}

	send(t, member, InAddReaction, addReactionRequest{MessageID: 424242, ReactionType: "fire"})
	if m := lastError(t, memberSink); m != "message not found" {
		t.Fatalf("addReaction missing: want not found got=%q", m)
	}
}

func TestGateway_TypingDebounce(t *testing.T) {
	e := newEnv(t, Config{TypingTimeout: 30 * time.Millisecond})
	_, adminSink, member, _ := e.joinBoth()

	send(t, member, InStartTyping, groupRequest{ChatGroupID: e.fx.Group.ID})
	send(t, member, InStartTyping, groupRequest{ChatGroupID: e.fx.Group.ID})
	frames := adminSink.named(realtime.EventUserTyping)
	if len(frames) != 1 {
		t.Fatalf("typing start frames: want=1 got=%d", len(frames))
	}

	deadline := time.Now().Add(time.Second)
	for len(adminSink.named(realtime.EventUserTyping)) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	frames = adminSink.named(realtime.EventUserTyping)
	if len(frames) != 2 {
		t.Fatalf("typing frames after timeout: want=2 got=%d", len(frames))
	}
	var tf typingFrame
	decodeData(t, frames[1], &tf)
	if tf.IsTyping {
		t.Fatalf("expiry frame: want isTyping=false")
	}

	send(t, member, InStopTyping, groupRequest{ChatGroupID: e.fx.Group.ID})
	if n := len(adminSink.named(realtime.EventUserTyping)); n != 2 {
		t.Fatalf("stop when idle: want no frame got=%d", n)
	}
}

func TestGateway_DisconnectCleansUp(t *testing.T) {
	e := newEnv(t, Config{})
	_, adminSink, member, _ := e.joinBoth()
	var disconnected []events.Event
	e.bus.Subscribe(events.UserDisconnected, func(_ context.Context, ev events.Event) {
		disconnected = append(disconnected, ev)
	})

	send(t, member, InJoinVoiceRoom, groupRequest{ChatGroupID: e.fx.Group.ID})
	send(t, member, InStartTyping, groupRequest{ChatGroupID: e.fx.Group.ID})
	adminSink.reset()

	member.Close(context.Background())
	member.Close(context.Background())

	online, _ := e.presence.ListOnline(context.Background(), e.fx.Group.ID)
	if len(online) != 1 || online[0] != e.fx.Admin.ID {
		t.Fatalf("online after disconnect: got=%v", online)
	}
	var pf presenceFrame
	left := adminSink.named(realtime.EventUserPresence)
	if len(left) != 1 {
		t.Fatalf("presence frames: want=1 got=%d", len(left))
	}
	decodeData(t, left[0], &pf)
	if pf.Action != "left" || pf.UserID != e.fx.Member.ID {
		t.Fatalf("presence frame: got=%+v", pf)
	}
	if n := len(adminSink.named(realtime.EventVoiceRoomUpdate)); n != 1 {
		t.Fatalf("voice left frames: want=1 got=%d", n)
	}
	if n := len(adminSink.named(realtime.EventUserTyping)); n != 1 {
		t.Fatalf("typing cleared frames: want=1 got=%d", n)
	}
	if len(disconnected) != 1 {
		t.Fatalf("user.disconnected events: want=1 got=%d", len(disconnected))
	}
}

func TestGateway_SecondConnectionKeepsPresence(t *testing.T) {
	e := newEnv(t, Config{})
	_, adminSink, member, _ := e.joinBoth()
	second, _ := e.open("member-conn-2", e.fx.Member.ID)
	send(t, second, InJoinGroup, groupRequest{ChatGroupID: e.fx.Group.ID})
	adminSink.reset()

	member.Close(context.Background())
	online, _ := e.presence.ListOnline(context.Background(), e.fx.Group.ID)
	if len(online) != 2 {
		t.Fatalf("online with one connection left: want=2 got=%v", online)
	}
	if n := len(adminSink.named(realtime.EventUserPresence)); n != 0 {
		t.Fatalf("presence frames: want=0 got=%d", n)
	}
}

func TestGateway_RemoveMemberDropsSockets(t *testing.T) {
	e := newEnv(t, Config{})
	admin, adminSink, member, memberSink := e.joinBoth()

	send(t, admin, InAdminAction, adminActionRequest{ChatGroupID: e.fx.Group.ID, Action: "remove", TargetUserID: e.fx.Member.ID})
	if msg := lastError(t, adminSink); msg != "" {
		t.Fatalf("remove: unexpected error %q", msg)
	}
	if n := len(memberSink.named(realtime.EventMemberRemoved)); n != 1 {
		t.Fatalf("memberRemoved frames: want=1 got=%d", n)
	}
	if n := len(adminSink.named(realtime.EventAdminActionPerformed)); n != 1 {
		t.Fatalf("adminActionPerformed frames: want=1 got=%d", n)
	}

	text := "still here?"
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if lastError(t, memberSink) == "" {
		t.Fatalf("send after removal: want error")
	}
	memberSink.reset()
	send(t, member, InJoinGroup, groupRequest{ChatGroupID: e.fx.Group.ID})
	if lastError(t, memberSink) == "" {
		t.Fatalf("rejoin after removal: want error")
	}
}

func TestGateway_CountdownAndQuoteMacro(t *testing.T) {
	e := newEnv(t, Config{})
	_, adminSink, member, memberSink := e.joinBoth()

	send(t, member, InStartCountdown, countdownRequest{ChatGroupID: e.fx.Group.ID, Duration: 0})
	if lastError(t, memberSink) == "" {
		t.Fatalf("countdown zero duration: want error")
	}
	send(t, member, InStartCountdown, countdownRequest{ChatGroupID: e.fx.Group.ID, Duration: 120, Title: "Episode drop"})
	if n := len(adminSink.named(realtime.EventCountdownStarted)); n != 1 {
		t.Fatalf("countdownStarted frames: want=1 got=%d", n)
	}
	if e.gw.countdowns.pending() != 1 {
		t.Fatalf("pending countdowns: want=1 got=%d", e.gw.countdowns.pending())
	}

	memberSink.reset()
	send(t, member, InSendQuoteMacro, quoteMacroRequest{ChatGroupID: e.fx.Group.ID, MacroID: "nope"})
	if lastError(t, memberSink) == "" {
		t.Fatalf("unknown macro: want error")
	}
	send(t, member, InSendQuoteMacro, quoteMacroRequest{ChatGroupID: e.fx.Group.ID, MacroID: "believe"})
	frames := adminSink.named(realtime.EventQuoteMacro)
	if len(frames) != 1 {
		t.Fatalf("quoteMacro frames: want=1 got=%d", len(frames))
	}
	var qf quoteMacroFrame
	decodeData(t, frames[0], &qf)
	if qf.Text == "" || qf.MacroID != "believe" {
		t.Fatalf("quoteMacro frame: got=%+v", qf)
	}
	stats, _ := e.gamification.GetStats(context.Background(), e.fx.Member.ID, e.fx.Group.ID)
	if stats.QuoteMacroCount != 1 || stats.TotalPoints != 5 {
		t.Fatalf("quote macro points: got=%+v", stats)
	}
}

func TestGateway_RequiresJoinAndKnownEvents(t *testing.T) {
	e := newEnv(t, Config{})
	member, sink := e.open("solo", e.fx.Member.ID)

	text := "hi"
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Message: &text})
	if msg := lastError(t, sink); msg != "join the group first" {
		t.Fatalf("send before join: got=%q", msg)
	}
	member.Handle(context.Background(), realtime.Frame{Event: "teleport"})
	if msg := lastError(t, sink); msg == "" {
		t.Fatalf("unknown event: want error")
	}
	member.Handle(context.Background(), realtime.Frame{Event: InJoinGroup, Data: json.RawMessage(`{"chatGroupId":"x"}`)})
	if msg := lastError(t, sink); msg != "invalid payload" {
		t.Fatalf("bad payload: got=%q", msg)
	}
	if n := len(sink.named(realtime.EventConnected)); n != 1 {
		t.Fatalf("connected frames: want=1 got=%d", n)
	}
}

func TestGateway_HandleRawRejectsMalformedFrames(t *testing.T) {
	e := newEnv(t, Config{})
	s, sink := e.open("raw", e.fx.Member.ID)

	s.HandleRaw(context.Background(), []byte("not json"))
	if msg := lastError(t, sink); msg != "malformed frame" {
		t.Fatalf("malformed: want=%q got=%q", "malformed frame", msg)
	}
	s.HandleRaw(context.Background(), []byte(`{"event":"joinGroup","data":{"chatGroupId":`+strconv.FormatInt(e.fx.Group.ID, 10)+`}}`))
	if n := len(sink.named(realtime.EventUserPresence)); n != 1 {
		t.Fatalf("joinGroup via raw frame: want one presence frame got=%d", n)
	}
}

func TestGateway_VoiceRoomAndLeaveGroup(t *testing.T) {
	e := newEnv(t, Config{})
	_, adminSink, member, memberSink := e.joinBoth()

	send(t, member, InJoinVoiceRoom, groupRequest{ChatGroupID: e.fx.Group.ID})
	send(t, member, InJoinVoiceRoom, groupRequest{ChatGroupID: e.fx.Group.ID})
	updates := adminSink.named(realtime.EventVoiceRoomUpdate)
	if len(updates) != 1 {
		t.Fatalf("voice broadcasts: want=1 got=%d", len(updates))
	}
	var vf voiceRoomFrame
	decodeData(t, updates[0], &vf)
	if vf.Action != "userJoined" || len(vf.Participants) != 1 || vf.Participants[0] != e.fx.Member.ID {
		t.Fatalf("voice frame: got=%+v", vf)
	}
	if n := len(memberSink.named(realtime.EventVoiceRoomUpdate)); n != 2 {
		t.Fatalf("member voice frames (broadcast + rejoin reply): want=2 got=%d", n)
	}
	stats, err := e.gamification.GetStats(context.Background(), e.fx.Member.ID, e.fx.Group.ID)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.VoiceRoomCount != 1 || stats.TotalPoints != 20 {
		t.Fatalf("voice stats: want=1/20 got=%d/%d", stats.VoiceRoomCount, stats.TotalPoints)
	}

	adminSink.reset()
	send(t, member, InLeaveGroup, groupRequest{ChatGroupID: e.fx.Group.ID})
	if msg := lastError(t, memberSink); msg != "" {
		t.Fatalf("leaveGroup: unexpected error %q", msg)
	}
	left := adminSink.named(realtime.EventVoiceRoomUpdate)
	if len(left) != 1 {
		t.Fatalf("voice left frames: want=1 got=%d", len(left))
	}
	decodeData(t, left[0], &vf)
	if vf.Action != "userLeft" || len(vf.Participants) != 0 {
		t.Fatalf("voice left frame: got=%+v", vf)
	}
	var pf presenceFrame
	presence := adminSink.named(realtime.EventUserPresence)
	if len(presence) != 1 {
		t.Fatalf("presence frames: want=1 got=%d", len(presence))
	}
	decodeData(t, presence[0], &pf)
	if pf.Action != "left" || len(pf.OnlineUsers) != 1 || pf.OnlineUsers[0] != e.fx.Admin.ID {
		t.Fatalf("presence frame: got=%+v", pf)
	}

	send(t, member, InSendMessage, map[string]any{"chatGroupId": e.fx.Group.ID, "message": "still here?"})
	if msg := lastError(t, memberSink); msg != "join the group first" {
		t.Fatalf("send after leave: want=%q got=%q", "join the group first", msg)
	}
	send(t, member, InLeaveGroup, groupRequest{ChatGroupID: e.fx.Group.ID})
	if msg := lastError(t, memberSink); msg != "join the group first" {
		t.Fatalf("second leave: want=%q got=%q", "join the group first", msg)
	}
}

func TestGateway_BadThreadRejectedBeforeAudioUpload(t *testing.T) {
	e := newEnv(t, Config{})
	_, _, member, memberSink := e.joinBoth()

	// No media store is wired here, so reaching the upload would surface a
	// dependency failure instead of the thread lookup error.
	audio := "data:audio/webm;base64,AAAA"
	missing := int64(999999)
	send(t, member, InSendMessage, sendMessageRequest{ChatGroupID: e.fx.Group.ID, Audio: &audio, ThreadID: &missing})
	if msg := lastError(t, memberSink); msg != "thread not found" {
		t.Fatalf("bad thread with audio: want=%q got=%q", "thread not found", msg)
	}
}
