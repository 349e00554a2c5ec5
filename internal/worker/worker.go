package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/services"
)

// LockName is the distributed lock held for the duration of one sweep.
const LockName = "maintenance"

// Worker runs the maintenance sweep on an interval.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance sweeps per interval. Without a lock every instance sweeps; the
// version check on connection rows keeps concurrent refreshes safe, just
// wasteful.
type Worker struct {
	maintenance *services.Maintenance
	lock        driven.DistributedLock
	store       driven.ConnectionStore
	logger      *slog.Logger

	interval time.Duration
	lockTTL  time.Duration

	// Internal state
	mu         sync.RWMutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	lastRunAt  time.Time
	lastReport *services.MaintenanceReport
	lastErr    error
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Maintenance *services.Maintenance
	Lock        driven.DistributedLock // Optional
	Store       driven.ConnectionStore // Pinged by Health
	Logger      *slog.Logger
	Interval    time.Duration // How often to sweep (default: 1m)
	LockTTL     time.Duration // TTL for the lock (default: 2x interval)
}

// NewWorker creates a new maintenance worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}

	return &Worker{
		maintenance: cfg.Maintenance,
		lock:        cfg.Lock,
		store:       cfg.Store,
		logger:      logger,
		interval:    interval,
		lockTTL:     lockTTL,
	}
}

// Start begins the sweep loop.
// It runs until Stop is called or context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"interval", w.interval,
		"lock", w.lock != nil,
	)

	go w.run(ctx)

	return nil
}

// Stop gracefully stops the worker, waiting for an in-progress sweep.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on start
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker context cancelled")
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick runs one sweep if this instance wins the lock.
func (w *Worker) tick(ctx context.Context) {
	if w.lock != nil {
		acquired, err := w.lock.Acquire(ctx, LockName, w.lockTTL)
		if err != nil {
			w.logger.Warn("failed to acquire maintenance lock", "error", err)
			return
		}
		if !acquired {
			w.logger.Debug("maintenance lock held by another instance, skipping cycle")
			return
		}
		defer func() {
			if err := w.lock.Release(ctx, LockName); err != nil {
				w.logger.Warn("failed to release maintenance lock", "error", err)
			}
		}()
	}

	report, err := w.maintenance.RunOnce(ctx)
	if err != nil {
		w.logger.Error("maintenance run failed", "error", err)
	}

	w.mu.Lock()
	w.lastRunAt = time.Now()
	w.lastErr = err
	if report != nil {
		w.lastReport = report
	}
	w.mu.Unlock()
}

// Health describes the worker and its backends.
type Health struct {
	Running     bool                        `json:"running"`
	StoreHealth bool                        `json:"store_health"`
	LockHealth  bool                        `json:"lock_health"`
	LastRunAt   *time.Time                  `json:"last_run_at,omitempty"`
	LastReport  *services.MaintenanceReport `json:"last_report,omitempty"`
	Error       string                      `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	health := Health{
		Running:    w.running,
		LastReport: w.lastReport,
	}
	if !w.lastRunAt.IsZero() {
		at := w.lastRunAt
		health.LastRunAt = &at
	}
	if w.lastErr != nil {
		health.Error = w.lastErr.Error()
	}
	w.mu.RUnlock()

	health.StoreHealth = true
	if w.store != nil {
		if err := w.store.Ping(ctx); err != nil {
			health.StoreHealth = false
			health.Error = err.Error()
		}
	}

	health.LockHealth = true
	if w.lock != nil {
		if err := w.lock.Ping(ctx); err != nil {
			health.LockHealth = false
			health.Error = err.Error()
		}
	}

	return health
}
