package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/http"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/observability"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/envutil"
	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Realtime Realtime
	Services Services
	Server   *http.Server

	shutdownTracing func(context.Context) error
	cancel          context.CancelFunc
	wg              sync.WaitGroup
}

func New(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	shutdownTracing, err := observability.InitTracing(ctx, log, cfg.Tracing)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}
	theDB := clients.DB.DB()

	rt, err := wireRealtime(log, cfg, clients)
	if err != nil {
		clients.Close()
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, rt)
	if err != nil {
		clients.Close()
		_ = shutdownTracing(ctx)
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, clients, reposet, serviceset)
	middleware := wireMiddleware(log, serviceset)
	server := wireServer(log, cfg, clients, handlerset, middleware)

	return &App{
		Log:             log,
		Cfg:             cfg,
		Clients:         clients,
		Repos:           reposet,
		Realtime:        rt,
		Services:        serviceset,
		Server:          server,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Start launches subscribers, forwarders and workers. Forwarder subscribe
// failures are fatal since the process would otherwise miss peer traffic.
func (a *App) Start() error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.Services.Gateway.Start()
	a.Services.Dispatcher.Start()

	for _, start := range a.Realtime.forwarders {
		if err := start(ctx); err != nil {
			return fmt.Errorf("start redis forwarder: %w", err)
		}
	}

	if a.Clients.Memory != nil {
		a.Clients.Memory.StartSweeper(ctx, a.Cfg.SweepInterval)
	}

	if w := a.Services.NotifyWorker; w != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := w.Run(ctx); err != nil {
				a.Log.Error("notification worker stopped", "error", err)
			}
		}()
	}
	return nil
}

func (a *App) Run() error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(addr)
}

// Close drains HTTP first so sockets run their disconnect path while the
// stores are still open.
func (a *App) Close() {
	if a == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if a.Server != nil {
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			a.Log.Warn("http shutdown", "error", err)
		}
	}
	a.Services.Dispatcher.Stop()
	a.Services.Gateway.Stop()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.wg.Wait()
	a.Clients.Close()
	if a.shutdownTracing != nil {
		_ = a.shutdownTracing(shutdownCtx)
	}
	a.Log.Sync()
}
