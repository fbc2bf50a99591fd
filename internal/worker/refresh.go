package worker

import (
	"context"
	"time"
)

// Refresher defines the interface for refreshing every vault's venues and
// APR measurements.
type Refresher interface {
	RefreshAndUpdateAllVaults(caller string) error
}

// RefreshWorker periodically refreshes venue yields and APR samples on
// behalf of the configured operator principal.
type RefreshWorker struct {
	refresher Refresher
	operator  string
	interval  time.Duration
}

// NewRefreshWorker creates a new RefreshWorker.
func NewRefreshWorker(refresher Refresher, operator string, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{refresher: refresher, operator: operator, interval: interval}
}

// Run blocks until the context is cancelled.
func (w *RefreshWorker) Run(ctx context.Context) {
	runLoop(ctx, "RefreshWorker", w.interval, func(context.Context) error {
		return w.refresher.RefreshAndUpdateAllVaults(w.operator)
	})
}
