package worker

import (
	"context"
	"testing"
	"time"

	"github.com/muchofi/vault/internal/domain"
)

type countingFetcher struct {
	calls  int
	cancel context.CancelFunc
}

func (f *countingFetcher) FetchAndStoreQuotes(context.Context) error {
	f.calls++
	if f.calls >= 2 {
		f.cancel()
	}
	return nil
}

func TestQuoteWorkerFetchesImmediatelyAndOnTick(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fetcher := &countingFetcher{cancel: cancel}
	w := NewQuoteWorker(fetcher, 10*time.Millisecond)
	w.Run(ctx)

	if fetcher.calls < 2 {
		t.Errorf("calls = %d, want at least 2 (startup + tick)", fetcher.calls)
	}
}

type countingRefresher struct {
	calls   int
	callers []string
	cancel  context.CancelFunc
}

func (r *countingRefresher) RefreshAndUpdateAllVaults(caller string) error {
	r.calls++
	r.callers = append(r.callers, caller)
	if r.calls >= 2 {
		r.cancel()
	}
	return nil
}

func TestRefreshWorkerUsesOperatorPrincipal(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	refresher := &countingRefresher{cancel: cancel}
	w := NewRefreshWorker(refresher, "operator", 10*time.Millisecond)
	w.Run(ctx)

	if refresher.calls < 2 {
		t.Fatalf("calls = %d, want at least 2", refresher.calls)
	}
	for _, caller := range refresher.callers {
		if caller != "operator" {
			t.Errorf("caller = %s, want operator", caller)
		}
	}
}

type countingGenerator struct {
	calls  int
	cancel context.CancelFunc
}

func (g *countingGenerator) Generate(_ context.Context, date time.Time) (domain.Report, error) {
	g.calls++
	if g.calls >= 2 {
		g.cancel()
	}
	return domain.Report{GeneratedAt: date}, nil
}

type countingHook struct {
	exports int
}

func (h *countingHook) Export(context.Context, domain.Report) error {
	h.exports++
	return nil
}

func TestReportWorkerRunsHookAfterGeneration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	gen := &countingGenerator{cancel: cancel}
	hook := &countingHook{}
	w := NewReportWorker(gen, 10*time.Millisecond, hook)
	w.Run(ctx)

	if gen.calls < 2 {
		t.Fatalf("generations = %d, want at least 2", gen.calls)
	}
	if hook.exports != gen.calls {
		t.Errorf("exports = %d, want %d (one per generation)", hook.exports, gen.calls)
	}
}
