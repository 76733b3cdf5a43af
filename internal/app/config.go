package app

import (
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/data/db"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/observability"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/envutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type Config struct {
	Port        string
	Environment string
	Version     string

	DB db.Config

	// RedisAddr empty runs the process standalone: in-memory KV, local bus
	// and hub, inline notification delivery.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RealtimeChannel string
	EventsChannel   string

	JWTSecretKey   string
	AllowedOrigins []string

	MediaBucket         string
	MediaPrefix         string
	MediaURLTTL         time.Duration
	StorageEmulatorHost string
	GCSCredentialsFile  string
	MediaDir            string
	MediaBaseURL        string
	MediaRoute          string

	AdminCacheTTL   time.Duration
	UserCacheTTL    time.Duration
	MessageCacheTTL time.Duration
	StatsCacheTTL   time.Duration

	TypingTimeout  time.Duration
	RequestTimeout time.Duration
	MaxCountdown   time.Duration
	SweepInterval  time.Duration

	QuoteMacrosPath  string
	AsynqConcurrency int

	Tracing observability.TracingConfig
}

func LoadConfig(log *logger.Logger) Config {
	env := envutil.String("APP_ENV", "development")
	version := envutil.String("APP_VERSION", "dev")
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		Environment: env,
		Version:     version,

		DB: db.ConfigFromEnv(),

		RedisAddr:       envutil.String("REDIS_ADDR", ""),
		RedisPassword:   envutil.String("REDIS_PASSWORD", ""),
		RedisDB:         envutil.Int("REDIS_DB", 0),
		RealtimeChannel: envutil.String("REDIS_CHANNEL", "realtime"),
		EventsChannel:   envutil.String("EVENTS_CHANNEL", "events"),

		JWTSecretKey:   envutil.String("JWT_SECRET_KEY", ""),
		AllowedOrigins: envutil.List("CORS_ALLOWED_ORIGINS"),

		MediaBucket:         envutil.String("MEDIA_GCS_BUCKET_NAME", ""),
		MediaPrefix:         envutil.String("MEDIA_PREFIX", "chat-media"),
		MediaURLTTL:         envutil.Duration("MEDIA_URL_TTL", 15*time.Minute),
		StorageEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		GCSCredentialsFile:  envutil.String("GCS_CREDENTIALS_FILE", ""),
		MediaDir:            envutil.String("MEDIA_DIR", "./media"),
		MediaBaseURL:        envutil.String("MEDIA_BASE_URL", "/media"),
		MediaRoute:          envutil.String("MEDIA_ROUTE", "/media"),

		AdminCacheTTL:   envutil.Duration("ADMIN_CACHE_TTL", 300*time.Second),
		UserCacheTTL:    envutil.Duration("USER_CACHE_TTL", 300*time.Second),
		MessageCacheTTL: envutil.Duration("MESSAGE_CACHE_TTL", 300*time.Second),
		StatsCacheTTL:   envutil.Duration("STATS_CACHE_TTL", 1800*time.Second),

		TypingTimeout:  envutil.Duration("TYPING_TIMEOUT", 3*time.Second),
		RequestTimeout: envutil.Duration("SOCKET_REQUEST_TIMEOUT", 10*time.Second),
		MaxCountdown:   envutil.Duration("MAX_COUNTDOWN", time.Hour),
		SweepInterval:  envutil.Duration("KV_SWEEP_INTERVAL", 30*time.Second),

		QuoteMacrosPath:  envutil.String("QUOTE_MACROS_PATH", ""),
		AsynqConcurrency: envutil.Int("ASYNQ_CONCURRENCY", 10),

		Tracing: observability.TracingConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "weebform-chat"),
			Environment: env,
			Version:     version,
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", ""),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1),
		},
	}
	log.Info("Config loaded",
		"env", cfg.Environment,
		"db_driver", cfg.DB.Driver,
		"redis", cfg.RedisAddr != "",
		"media_bucket", cfg.MediaBucket,
		"otel", cfg.Tracing.Enabled,
	)
	return cfg
}

// Distributed reports whether cross-process fan-out is configured.
func (c Config) Distributed() bool { return c.RedisAddr != "" }
