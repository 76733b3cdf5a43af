package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/pkg/logger"
)

const Queue = "notifications"

type AsynqEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func NewAsynqEnqueuer(client *asynq.Client) *AsynqEnqueuer {
	return &AsynqEnqueuer{client: client, maxRetry: 5}
}

func (e *AsynqEnqueuer) Enqueue(ctx context.Context, d Delivery) error {
	if err := d.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeDeliver, raw)
	_, err = e.client.EnqueueContext(ctx, task,
		asynq.Queue(Queue),
		asynq.MaxRetry(e.maxRetry),
		asynq.TaskID(d.DedupeKey()),
		asynq.Retention(time.Hour),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

// ProcessTask is the asynq entry point for TypeDeliver.
func (h *Handler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var d Delivery
	if err := json.Unmarshal(t.Payload(), &d); err != nil {
		return fmt.Errorf("decode delivery: %v: %w", err, asynq.SkipRetry)
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return h.Deliver(ctx, d)
}

type WorkerConfig struct {
	Redis       asynq.RedisClientOpt
	Concurrency int
}

type Worker struct {
	log    *logger.Logger
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewWorker(log *logger.Logger, cfg WorkerConfig, h *Handler) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	wlog := log.With("component", "NotifyWorker")
	srv := asynq.NewServer(cfg.Redis, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{Queue: 1},
		Logger:      asynqLogger{log: wlog},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			wlog.Warn("notification task failed", "type", task.Type(), "error", err)
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeDeliver, h.ProcessTask)
	return &Worker{log: wlog, server: srv, mux: mux}
}

// Run blocks until ctx is done, then drains in-flight tasks.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.log.Info("notification worker started")
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}

type asynqLogger struct{ log *logger.Logger }

func (l asynqLogger) Debug(args ...interface{}) { l.log.Debug(fmt.Sprint(args...)) }
func (l asynqLogger) Info(args ...interface{})  { l.log.Info(fmt.Sprint(args...)) }
func (l asynqLogger) Warn(args ...interface{})  { l.log.Warn(fmt.Sprint(args...)) }
func (l asynqLogger) Error(args ...interface{}) { l.log.Error(fmt.Sprint(args...)) }
func (l asynqLogger) Fatal(args ...interface{}) { l.log.Fatal(fmt.Sprint(args...)) }
