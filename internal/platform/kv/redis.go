package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects and pings Redis. The returned client is shared by the KV
// store, the event bridge and the realtime forwarder.
func Dial(ctx context.Context, cfg RedisConfig) (*goredis.Client, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

type redisStore struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewRedisStore(log *logger.Logger, rdb *goredis.Client) Store {
	return &redisStore{log: log.With("service", "RedisKV"), rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *redisStore) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.rdb.SAdd(ctx, key, toAny(members)...).Err()
}

func (s *redisStore) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.rdb.SRem(ctx, key, toAny(members)...).Err()
}

func (s *redisStore) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.rdb.SMembers(ctx, key).Result()
}

func (s *redisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *redisStore) Close() error { return s.rdb.Close() }

func toAny(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
