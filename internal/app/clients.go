package app

import (
	"context"
	"fmt"
	"io"

	"github.com/hibiken/asynq"
	goredis "github.com/redis/go-redis/v9"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/db"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/gcp"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/kv"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/platform/localmedia"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

type Clients struct {
	DB    *db.Service
	Redis *goredis.Client
	Store kv.Store
	// Memory is set only in standalone mode and needs its TTL sweeper.
	Memory *kv.MemoryStore

	Media      services.MediaStore
	LocalMedia *localmedia.Store
	Asynq      *asynq.Client

	closers []io.Closer
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	dbs, err := db.NewService(log, cfg.DB)
	if err != nil {
		return Clients{}, fmt.Errorf("init db: %w", err)
	}
	if err := db.AutoMigrateAll(dbs.DB()); err != nil {
		_ = dbs.Close()
		return Clients{}, fmt.Errorf("db automigrate: %w", err)
	}
	c.DB = dbs
	c.closers = append(c.closers, dbs)

	// Redis
	if cfg.Distributed() {
		rdb, err := kv.Dial(ctx, kv.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		c.Redis = rdb
		c.Store = kv.NewRedisStore(log, rdb)
		c.closers = append(c.closers, c.Store)

		c.Asynq = asynq.NewClient(asynqRedisOpt(cfg))
		c.closers = append(c.closers, c.Asynq)
	} else {
		log.Warn("REDIS_ADDR not set; running standalone with in-memory state")
		c.Memory = kv.NewMemoryStore()
		c.Store = c.Memory
	}

	// Media
	if cfg.MediaBucket != "" {
		bucket, err := gcp.NewMediaBucket(ctx, log, gcp.MediaConfig{
			Bucket:          cfg.MediaBucket,
			Prefix:          cfg.MediaPrefix,
			URLTTL:          cfg.MediaURLTTL,
			EmulatorHost:    cfg.StorageEmulatorHost,
			CredentialsFile: cfg.GCSCredentialsFile,
		})
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init media bucket: %w", err)
		}
		c.Media = bucket
		c.closers = append(c.closers, bucket)
	} else {
		store, err := localmedia.New(log, cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init local media: %w", err)
		}
		c.Media = store
		c.LocalMedia = store
	}

	return c, nil
}

func asynqRedisOpt(cfg Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
}

// Close releases clients in reverse order of creation.
func (c *Clients) Close() {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i].Close()
	}
	c.closers = nil
}
