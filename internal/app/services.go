package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/events"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/gateway"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/jobs/notify"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/realtime"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/services"
)

// Realtime holds the fan-out plumbing. Forwarders are non-nil only when
// Redis bridges several processes.
type Realtime struct {
	Bus     events.Bus
	Hub     *realtime.Hub
	Emitter realtime.Emitter

	forwarders []func(ctx context.Context) error
}

func wireRealtime(log *logger.Logger, cfg Config, clients Clients) (Realtime, error) {
	log.Info("Wiring realtime...")
	hub := realtime.NewHub(log)
	if clients.Redis == nil {
		return Realtime{
			Bus:     events.NewLocalBus(log),
			Hub:     hub,
			Emitter: realtime.NewLocalEmitter(hub),
		}, nil
	}

	bus, err := events.NewRedisBus(log, clients.Redis, cfg.EventsChannel)
	if err != nil {
		return Realtime{}, fmt.Errorf("init redis event bus: %w", err)
	}
	emitter := realtime.NewRedisEmitter(log, hub, clients.Redis, cfg.RealtimeChannel, uuid.NewString())
	return Realtime{
		Bus:        bus,
		Hub:        hub,
		Emitter:    emitter,
		forwarders: []func(context.Context) error{bus.StartForwarder, emitter.StartForwarder},
	}, nil
}

type Services struct {
	Presence     services.PresenceStore
	Moderation   services.ModerationService
	Gamification services.GamificationService
	Messages     services.MessageService
	Verifier     services.IdentityVerifier
	Macros       *services.QuoteMacroCatalog

	NotifyHandler *notify.Handler
	Dispatcher    *services.NotificationDispatcher
	// NotifyWorker is nil in standalone mode, where deliveries run inline.
	NotifyWorker *notify.Worker

	Gateway *gateway.Gateway
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, repos Repos, clients Clients, rt Realtime) (Services, error) {
	log.Info("Wiring services...")

	verifier, err := services.NewJWTVerifier(log, cfg.JWTSecretKey)
	if err != nil {
		return Services{}, fmt.Errorf("init identity verifier: %w", err)
	}
	macros, err := services.LoadQuoteMacros(cfg.QuoteMacrosPath)
	if err != nil {
		return Services{}, fmt.Errorf("load quote macros: %w", err)
	}

	presence := services.NewPresenceStore(log, clients.Store)
	moderation := services.NewModerationService(log, clients.Store, repos.Group, repos.Audit, rt.Bus, services.ModerationConfig{
		AdminCacheTTL: cfg.AdminCacheTTL,
	})
	gamification := services.NewGamificationService(db, log, clients.Store, repos.ActivityStats, repos.LevelHistory, rt.Bus, services.GamificationConfig{
		StatsCacheTTL: cfg.StatsCacheTTL,
	})
	messages := services.NewMessageService(db, log, clients.Store, clients.Media, repos.User, repos.Message, repos.Thread, repos.Reaction, services.MessageConfig{
		UserCacheTTL:    cfg.UserCacheTTL,
		MessageCacheTTL: cfg.MessageCacheTTL,
	})

	notifyHandler := notify.NewHandler(log, repos.Notification)
	var (
		enqueuer notify.Enqueuer
		worker   *notify.Worker
	)
	if clients.Asynq != nil {
		enqueuer = notify.NewAsynqEnqueuer(clients.Asynq)
		worker = notify.NewWorker(log, notify.WorkerConfig{Redis: asynqRedisOpt(cfg), Concurrency: cfg.AsynqConcurrency}, notifyHandler)
	} else {
		enqueuer = notify.InlineEnqueuer{Handler: notifyHandler}
	}

	gw := gateway.New(gateway.Deps{
		Log:          log,
		Hub:          rt.Hub,
		Emitter:      rt.Emitter,
		Bus:          rt.Bus,
		Presence:     presence,
		Moderation:   moderation,
		Messages:     messages,
		Gamification: gamification,
		Macros:       macros,
	}, gateway.Config{
		TypingTimeout:  cfg.TypingTimeout,
		RequestTimeout: cfg.RequestTimeout,
		MaxCountdown:   cfg.MaxCountdown,
	})

	return Services{
		Presence:      presence,
		Moderation:    moderation,
		Gamification:  gamification,
		Messages:      messages,
		Verifier:      verifier,
		Macros:        macros,
		NotifyHandler: notifyHandler,
		Dispatcher:    services.NewNotificationDispatcher(log, rt.Bus, enqueuer),
		NotifyWorker:  worker,
		Gateway:       gw,
	}, nil
}
