// Package kv is the transient key-value store used for presence sets,
// moderation flags and read-through caches. Nothing stored here is a source
// of truth; every key may vanish at any time.
package kv

import (
	"context"
	"time"
)

type Store interface {
	// Get reports ok=false when the key is absent or expired.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	// Set writes value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	Ping(ctx context.Context) error
	Close() error
}
