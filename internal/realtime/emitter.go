package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

// Emitter fans frames out to group rooms or users, wherever their sockets live.
type Emitter interface {
	ToGroup(ctx context.Context, groupID int64, event string, data any) error
	ToUser(ctx context.Context, userID int64, event string, data any) error
}

type LocalEmitter struct {
	hub *Hub
}

func NewLocalEmitter(hub *Hub) *LocalEmitter { return &LocalEmitter{hub: hub} }

func (e *LocalEmitter) ToGroup(_ context.Context, groupID int64, event string, data any) error {
	payload, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	e.hub.Broadcast(groupID, payload)
	return nil
}

func (e *LocalEmitter) ToUser(_ context.Context, userID int64, event string, data any) error {
	payload, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	e.hub.SendToUser(userID, payload)
	return nil
}

type routedFrame struct {
	Origin  string          `json:"origin"`
	GroupID int64           `json:"groupId,omitempty"`
	UserID  int64           `json:"userId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// RedisEmitter delivers to the local hub and mirrors each frame on a Redis
// channel so other processes can deliver to their own sockets.
type RedisEmitter struct {
	log     *logger.Logger
	hub     *Hub
	rdb     *goredis.Client
	channel string
	origin  string
}

func NewRedisEmitter(log *logger.Logger, hub *Hub, rdb *goredis.Client, channel, origin string) *RedisEmitter {
	if channel == "" {
		channel = "chat-frames"
	}
	return &RedisEmitter{
		log:     log.With("service", "RedisEmitter"),
		hub:     hub,
		rdb:     rdb,
		channel: channel,
		origin:  origin,
	}
}

func (e *RedisEmitter) ToGroup(ctx context.Context, groupID int64, event string, data any) error {
	payload, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	e.hub.Broadcast(groupID, payload)
	return e.publish(ctx, routedFrame{Origin: e.origin, GroupID: groupID, Payload: payload})
}

func (e *RedisEmitter) ToUser(ctx context.Context, userID int64, event string, data any) error {
	payload, err := EncodeFrame(event, data)
	if err != nil {
		return err
	}
	e.hub.SendToUser(userID, payload)
	return e.publish(ctx, routedFrame{Origin: e.origin, UserID: userID, Payload: payload})
}

func (e *RedisEmitter) publish(ctx context.Context, f routedFrame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if err := e.rdb.Publish(ctx, e.channel, raw).Err(); err != nil {
		// Local sockets already got the frame.
		e.log.Warn("redis frame publish failed", "channel", e.channel, "error", err)
	}
	return nil
}

// StartForwarder subscribes to the frame channel and delivers frames from
// other processes to local sockets until ctx is done.
func (e *RedisEmitter) StartForwarder(ctx context.Context) error {
	sub := e.rdb.Subscribe(ctx, e.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var f routedFrame
				if err := json.Unmarshal([]byte(m.Payload), &f); err != nil {
					e.log.Warn("bad redis frame payload", "error", err)
					continue
				}
				if f.Origin == e.origin {
					continue
				}
				switch {
				case f.GroupID > 0:
					e.hub.Broadcast(f.GroupID, f.Payload)
				case f.UserID > 0:
					e.hub.SendToUser(f.UserID, f.Payload)
				}
			}
		}
	}()
	return nil
}
