package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
)

// jsonCache is the read-through accelerator over kv. Every failure is
// logged and reported as a miss; callers fall back to the durable store.
type jsonCache struct {
	store kv.Store
	log   *logger.Logger
}

func (c jsonCache) get(ctx context.Context, key string, out any) bool {
	if c.store == nil {
		return false
	}
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.Warn("cache get failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		c.log.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}
	return true
}

func (c jsonCache) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c.store == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, string(raw), ttl); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c jsonCache) del(ctx context.Context, keys ...string) {
	if c.store == nil || len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.log.Warn("cache delete failed", "keys", keys, "error", err)
	}
}
