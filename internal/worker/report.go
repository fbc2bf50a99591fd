package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/muchofi/vault/internal/domain"
)

// SnapshotGenerator defines the interface for generating report snapshots.
type SnapshotGenerator interface {
	Generate(ctx context.Context, date time.Time) (domain.Report, error)
}

// AfterSnapshotHook is called after each successful snapshot generation.
type AfterSnapshotHook interface {
	Export(ctx context.Context, report domain.Report) error
}

// ReportWorker periodically generates engine report snapshots.
type ReportWorker struct {
	generator SnapshotGenerator
	interval  time.Duration
	hook      AfterSnapshotHook // optional
}

// NewReportWorker creates a new ReportWorker with an optional post-generation hook.
func NewReportWorker(generator SnapshotGenerator, interval time.Duration, hook AfterSnapshotHook) *ReportWorker {
	return &ReportWorker{generator: generator, interval: interval, hook: hook}
}

// Run blocks until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) {
	runLoop(ctx, "ReportWorker", w.interval, func(ctx context.Context) error {
		report, err := w.generator.Generate(ctx, utcDate())
		if err != nil {
			return err
		}
		w.runHook(ctx, report)
		return nil
	})
}

// runHook calls the post-generation hook if one is configured.
func (w *ReportWorker) runHook(ctx context.Context, report domain.Report) {
	if w.hook == nil {
		return
	}
	if err := w.hook.Export(ctx, report); err != nil {
		slog.Error("ReportWorker: export hook failed", "error", err)
		return
	}
	slog.Info("ReportWorker: export hook completed")
}

// utcDate returns the current date normalized to midnight UTC.
func utcDate() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
