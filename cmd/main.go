package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/WEEBFORM/WEEBFORM-V1-sub001/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Start(); err != nil {
		a.Log.Error("failed to start background services", "error", err)
		return
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run() }()

	select {
	case <-ctx.Done():
		a.Log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			a.Log.Error("server exited", "error", err)
		}
	}
}
