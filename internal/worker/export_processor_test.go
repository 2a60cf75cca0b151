package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (r *countingReconciler) ProcessPendingPurchases(context.Context) (int, error) {
	r.calls.Add(1)
	return 0, r.err
}

func TestDefaultExportProcessorConfig(t *testing.T) {
	if got := DefaultExportProcessorConfig().Interval; got != 30*time.Second {
		t.Errorf("expected Interval 30s, got %v", got)
	}
}

func TestExportProcessor_RunsPeriodically(t *testing.T) {
	rec := &countingReconciler{err: errors.New("sheets unavailable")}
	p := NewExportProcessor(rec, ExportProcessorConfig{Interval: 5 * time.Millisecond})

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !p.IsRunning() {
		t.Error("processor should be running after Start")
	}

	deadline := time.Now().Add(time.Second)
	for rec.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.calls.Load() < 2 {
		t.Fatalf("reconciler called %d times, want at least 2", rec.calls.Load())
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
}

func TestExportProcessor_StartTwice(t *testing.T) {
	p := NewExportProcessor(&countingReconciler{}, ExportProcessorConfig{Interval: time.Hour})
	ctx := context.Background()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer p.Stop(ctx)

	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
}

func TestExportProcessor_StopNotRunning(t *testing.T) {
	p := NewExportProcessor(&countingReconciler{}, DefaultExportProcessorConfig())
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}
