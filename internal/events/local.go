package events

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

// LocalBus dispatches synchronously on the publisher's goroutine. A panicking
// handler is recovered and logged; the remaining handlers still run.
type LocalBus struct {
	log *logger.Logger

	mu     sync.RWMutex
	nextID SubscriptionID
	subs   map[string]map[SubscriptionID]Handler
}

func NewLocalBus(log *logger.Logger) *LocalBus {
	return &LocalBus{
		log:  log.With("service", "LocalEventBus"),
		subs: make(map[string]map[SubscriptionID]Handler),
	}
}

func (b *LocalBus) Publish(ctx context.Context, name string, payload any) error {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	b.Dispatch(ctx, ev)
	return nil
}

// Dispatch delivers an already-built envelope. Broker bridges call it for
// events that arrive from other processes.
func (b *LocalBus) Dispatch(ctx context.Context, ev Event) {
	for _, h := range b.handlers(ev.Name) {
		b.invoke(ctx, ev, h)
	}
}

func (b *LocalBus) Subscribe(name string, h Handler) SubscriptionID {
	if h == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	m := b.subs[name]
	if m == nil {
		m = make(map[SubscriptionID]Handler)
		b.subs[name] = m
	}
	m[id] = h
	return id
}

func (b *LocalBus) Unsubscribe(name string, id SubscriptionID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m := b.subs[name]
	if m == nil {
		return
	}
	delete(m, id)
	if len(m) == 0 {
		delete(b.subs, name)
	}
}

func (b *LocalBus) Close() error { return nil }

// handlers snapshots subscribers in subscription order so a handler may
// subscribe or unsubscribe without deadlocking the dispatch.
func (b *LocalBus) handlers(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m := b.subs[name]
	if len(m) == 0 {
		return nil
	}
	ids := make([]SubscriptionID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Handler, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (b *LocalBus) invoke(ctx context.Context, ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				"event", ev.Name,
				"event_id", ev.ID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	h(ctx, ev)
}
