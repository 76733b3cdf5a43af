package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type memSink struct {
	id     string
	userID int64

	mu     sync.Mutex
	frames []Frame
	fail   bool
}

func (s *memSink) ID() string    { return s.id }
func (s *memSink) UserID() int64 { return s.userID }
func (s *memSink) Send(payload []byte) error {
	if s.fail {
		return errors.New("closed")
	}
	f, err := DecodeFrame(payload)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.frames = append(s.frames, f)
	s.mu.Unlock()
	return nil
}

func (s *memSink) events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f.Event)
	}
	return out
}

func TestHubRoomsAndOrdering(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := &memSink{id: "a", userID: 1}
	b := &memSink{id: "b", userID: 2}
	a2 := &memSink{id: "a2", userID: 1}
	for _, s := range []*memSink{a, b, a2} {
		hub.Register(s)
	}
	if !hub.Join(7, a) || hub.Join(7, a) {
		t.Fatalf("Join: want first=true second=false")
	}
	hub.Join(7, b)
	hub.Join(7, a2)
	hub.Join(8, a)

	if n := hub.UserConnectionsInRoom(7, 1); n != 2 {
		t.Fatalf("UserConnectionsInRoom: want=2 got=%d", n)
	}

	em := NewLocalEmitter(hub)
	ctx := context.Background()
	_ = em.ToGroup(ctx, 7, EventNewMessage, map[string]any{"seq": 1})
	_ = em.ToGroup(ctx, 7, EventUserTyping, map[string]any{"seq": 2})
	_ = em.ToGroup(ctx, 8, EventQuoteMacro, nil)

	if got := b.events(); len(got) != 2 || got[0] != EventNewMessage || got[1] != EventUserTyping {
		t.Fatalf("b events: got=%v", got)
	}
	if got := a.events(); len(got) != 3 {
		t.Fatalf("a events: want=3 got=%v", got)
	}

	rooms := hub.Unregister(a)
	if len(rooms) != 2 {
		t.Fatalf("Unregister rooms: want=2 got=%v", rooms)
	}
	if hub.InRoom(7, a) || hub.UserConnectionsInRoom(7, 1) != 1 {
		t.Fatalf("after Unregister: a still counted")
	}
	if hub.Join(7, a) {
		t.Fatalf("Join after Unregister: want=false")
	}

	if n := hub.SendToUser(1, []byte(`{"event":"x"}`)); n != 1 {
		t.Fatalf("SendToUser: want=1 got=%d", n)
	}
}

func TestHubBroadcastSkipsFailingSink(t *testing.T) {
	hub := NewHub(logger.Nop())
	bad := &memSink{id: "bad", userID: 1, fail: true}
	good := &memSink{id: "good", userID: 2}
	hub.Register(bad)
	hub.Register(good)
	hub.Join(3, bad)
	hub.Join(3, good)

	payload, _ := EncodeFrame(EventNewMessage, map[string]int{"id": 1})
	if n := hub.Broadcast(3, payload); n != 1 {
		t.Fatalf("Broadcast delivered: want=1 got=%d", n)
	}
	if !hub.Leave(3, good) || hub.Leave(3, good) {
		t.Fatalf("Leave: want first=true second=false")
	}
}
