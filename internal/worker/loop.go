package worker

import (
	"context"
	"log/slog"
	"time"
)

// runLoop executes step immediately, then once per interval tick, until the
// context is cancelled. Step failures are logged and do not stop the loop.
func runLoop(ctx context.Context, name string, interval time.Duration, step func(ctx context.Context) error) {
	slog.Info(name + ": starting")

	runStep(ctx, name, step)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info(name + ": shutting down")
			return
		case <-ticker.C:
			runStep(ctx, name, step)
		}
	}
}

func runStep(ctx context.Context, name string, step func(ctx context.Context) error) {
	if err := step(ctx); err != nil {
		slog.Error(name+": run failed", "error", err)
		return
	}
	slog.Info(name + ": run completed")
}
