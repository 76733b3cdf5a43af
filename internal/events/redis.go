package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type wireEvent struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBus keeps local delivery synchronous and mirrors every event onto a
// Redis channel so other processes' subscribers see it too. Events that come
// back from this process are skipped.
type RedisBus struct {
	*LocalBus

	log     *logger.Logger
	rdb     *goredis.Client
	channel string
	origin  string
}

func NewRedisBus(log *logger.Logger, rdb *goredis.Client, channel string) (*RedisBus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	ch := strings.TrimSpace(channel)
	if ch == "" {
		ch = "events"
	}
	return &RedisBus{
		LocalBus: NewLocalBus(log),
		log:      log.With("service", "RedisEventBus"),
		rdb:      rdb,
		channel:  ch,
		origin:   uuid.NewString(),
	}, nil
}

func (b *RedisBus) Publish(ctx context.Context, name string, payload any) error {
	ev, err := NewEvent(name, payload)
	if err != nil {
		return err
	}
	b.LocalBus.Dispatch(ctx, ev)

	raw, err := json.Marshal(wireEvent{Origin: b.origin, Event: ev})
	if err != nil {
		return err
	}
	// Cross-process fan-out is best effort, same as local delivery.
	if err := b.rdb.Publish(ctx, b.channel, raw).Err(); err != nil {
		b.log.Warn("redis event publish failed", "event", name, "error", err)
	}
	return nil
}

// StartForwarder subscribes to the channel and dispatches foreign events
// locally until ctx is done.
func (b *RedisBus) StartForwarder(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)

	// ensures subscription actually started
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var w wireEvent
				if err := json.Unmarshal([]byte(m.Payload), &w); err != nil {
					b.log.Warn("bad redis event payload", "error", err)
					continue
				}
				if w.Origin == b.origin {
					continue
				}
				b.LocalBus.Dispatch(ctx, w.Event)
			}
		}
	}()
	return nil
}

// Close does not close the shared Redis client.
func (b *RedisBus) Close() error { return nil }
