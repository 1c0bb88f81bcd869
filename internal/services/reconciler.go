package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"simplemoney/internal/log"

	"golang.org/x/sync/errgroup"
)

// ReconcilerConfig holds configuration for the reconciler
type ReconcilerConfig struct {
	// Interval is how often every user is reconciled (default: 5m)
	Interval time.Duration

	// Concurrency is the number of users reconciled in parallel (default: 4)
	Concurrency int
}

// DefaultReconcilerConfig returns sensible defaults
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Interval:    5 * time.Minute,
		Concurrency: 4,
	}
}

// ReconcileStats summarizes one pass.
type ReconcileStats struct {
	Users    int
	Failed   int
	Advanced int
	Rewarded int
}

// Reconciler periodically repairs derived state left stale by a failed
// cascade stage.
type Reconciler struct {
	ledger *LedgerService
	config ReconcilerConfig
	logger *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewReconciler creates a new reconciler
func NewReconciler(ledger *LedgerService, config ReconcilerConfig) *Reconciler {
	defaults := DefaultReconcilerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	return &Reconciler{
		ledger: ledger,
		config: config,
		logger: log.ForComponent(log.ComponentReconciler),
	}
}

// Start begins the reconcile loop. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler is already running")
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	go r.runLoop(ctx, stopCh, doneCh)

	r.logger.InfoContext(ctx, "Reconciler started",
		"interval", r.config.Interval,
		"concurrency", r.config.Concurrency)
	return nil
}

// Stop signals the loop and waits for the current pass to finish. Only the
// first of several concurrent calls waits; the rest return nil at once.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	doneCh := r.doneCh
	r.mu.Unlock()

	select {
	case <-doneCh:
		r.logger.InfoContext(ctx, "Reconciler stopped gracefully")
	case <-ctx.Done():
		r.logger.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}
	return nil
}

// IsRunning returns whether the reconciler is currently running
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *Reconciler) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	// Reconcile immediately on startup
	r.pass(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.pass(ctx)
		}
	}
}

func (r *Reconciler) pass(ctx context.Context) {
	stats, err := r.ReconcileAll(ctx)
	if err != nil {
		r.logger.Fail(ctx, "Reconcile pass failed", log.OpReconcile, err, nil)
		return
	}
	if stats.Advanced > 0 || stats.Rewarded > 0 || stats.Failed > 0 {
		r.logger.InfoContext(ctx, "Reconcile pass finished",
			"users", stats.Users,
			"failed", stats.Failed,
			"advanced", stats.Advanced,
			"rewarded", stats.Rewarded)
	}
}

// ReconcileAll reconciles every known user. A failure for one user is logged
// and counted; it does not stop the pass.
func (r *Reconciler) ReconcileAll(ctx context.Context) (ReconcileStats, error) {
	ids, err := r.ledger.UserIDs(ctx)
	if err != nil {
		return ReconcileStats{}, err
	}

	var failed, advanced, rewarded atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.ledger.Reconcile(gctx, id)
			advanced.Add(int64(len(res.Advanced)))
			rewarded.Add(int64(len(res.Rewarded)))
			if err != nil {
				failed.Add(1)
				r.logger.Fail(gctx, "Failed to reconcile user", log.OpReconcile, err, log.NewFields().WithUser(id))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ReconcileStats{}, err
	}
	return ReconcileStats{
		Users:    len(ids),
		Failed:   int(failed.Load()),
		Advanced: int(advanced.Load()),
		Rewarded: int(rewarded.Load()),
	}, nil
}
