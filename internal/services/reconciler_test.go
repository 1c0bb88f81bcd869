package services

import (
	"context"
	"testing"
	"time"

	"simplemoney/internal/core"
	"simplemoney/internal/storage/memory"
)

func TestDefaultReconcilerConfig(t *testing.T) {
	config := DefaultReconcilerConfig()
	if config.Interval != 5*time.Minute {
		t.Errorf("expected Interval 5m, got %v", config.Interval)
	}
	if config.Concurrency != 4 {
		t.Errorf("expected Concurrency 4, got %d", config.Concurrency)
	}
}

func TestReconciler_IsRunning(t *testing.T) {
	svc, _ := newTestService(t)
	r := NewReconciler(svc, DefaultReconcilerConfig())
	if r.IsRunning() {
		t.Error("reconciler should not be running initially")
	}
}

func TestReconciler_StartTwice(t *testing.T) {
	svc, _ := newTestService(t)
	r := NewReconciler(svc, ReconcilerConfig{Interval: 50 * time.Millisecond, Concurrency: 2})
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("first start: %v", err)
	}
	if err := r.Start(ctx); err == nil {
		t.Error("second start should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if r.IsRunning() {
		t.Error("reconciler should be stopped")
	}
}

func TestReconciler_StopWhenNotRunning(t *testing.T) {
	svc, _ := newTestService(t)
	r := NewReconciler(svc, DefaultReconcilerConfig())
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("stop on idle reconciler should be a no-op: %v", err)
	}
}

func TestReconciler_ConcurrentStop(t *testing.T) {
	svc, _ := newTestService(t)
	r := NewReconciler(svc, ReconcilerConfig{Interval: 50 * time.Millisecond, Concurrency: 2})
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- r.Stop(ctx) }()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("stop %d: %v", i, err)
		}
	}
	if r.IsRunning() {
		t.Error("reconciler should be stopped")
	}

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("restart after stop: %v", err)
	}
	if err := r.Stop(ctx); err != nil {
		t.Errorf("second stop: %v", err)
	}
}

func TestReconcileAll_RepairsEveryUser(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	// Entries written behind the service's back leave derived state stale.
	for _, id := range []string{"a", "b", "c"} {
		tx := core.Transaction{
			ID: "tx-" + id, UserID: id, Name: "n", Value: core.MoneyFromCents(1000),
			Type: core.Income, Category: "c", Date: core.DateOf(fixedNow), CreatedAt: fixedNow,
		}
		if err := store.InsertTransaction(ctx, tx); err != nil {
			t.Fatalf("InsertTransaction: %v", err)
		}
	}

	svc := NewLedgerService(store, nil, LedgerConfig{Now: func() time.Time { return fixedNow }})
	r := NewReconciler(svc, ReconcilerConfig{Concurrency: 2})

	stats, err := r.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if stats.Users != 3 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
	for _, id := range []string{"a", "b", "c"} {
		p, _ := store.GetProfile(ctx, id)
		if p.Balance.String() != "10.00" {
			t.Errorf("user %s: expected balance 10.00, got %s", id, p.Balance)
		}
	}
}
