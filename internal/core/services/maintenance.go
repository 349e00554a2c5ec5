package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Maintenance purges spent authorization state and refreshes tokens
// ahead of expiry so borrowers rarely wait on a provider.
type Maintenance struct {
	states      *StateIssuer
	connections driven.ConnectionStore
	refresher   *Refresher
	logger      *slog.Logger
	now         func() time.Time

	horizon     time.Duration
	batchSize   int
	concurrency int
}

// MaintenanceConfig holds configuration for Maintenance.
type MaintenanceConfig struct {
	States      driven.AuthorizationStateStore
	Connections driven.ConnectionStore
	Refresher   *Refresher
	Logger      *slog.Logger
	Now         func() time.Time

	Horizon     time.Duration // refresh tokens expiring within this window (default DefaultRefreshSkew)
	BatchSize   int           // connections examined per run (default 100)
	Concurrency int           // parallel refreshes (default 4)
}

// MaintenanceReport summarizes one run.
type MaintenanceReport struct {
	StatesPurged int64
	Refreshed    int
	NeedsReauth  int
	Failed       int
}

// NewMaintenance creates a Maintenance runner.
func NewMaintenance(cfg MaintenanceConfig) *Maintenance {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	horizon := cfg.Horizon
	if horizon <= 0 {
		horizon = DefaultRefreshSkew
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 100
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &Maintenance{
		states:      NewStateIssuer(StateIssuerConfig{Store: cfg.States, Now: now}),
		connections: cfg.Connections,
		refresher:   cfg.Refresher,
		logger:      logger,
		now:         now,
		horizon:     horizon,
		batchSize:   batch,
		concurrency: concurrency,
	}
}

// RunOnce performs one sweep. Individual refresh failures are counted,
// not returned; only store errors fail the run.
func (m *Maintenance) RunOnce(ctx context.Context) (*MaintenanceReport, error) {
	report := &MaintenanceReport{}

	purged, err := m.states.Purge(ctx)
	if err != nil {
		return nil, fmt.Errorf("purge authorization states: %w", err)
	}
	report.StatesPurged = purged

	expiring, err := m.connections.ListExpiring(ctx, m.now().Add(m.horizon), m.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list expiring connections: %w", err)
	}

	var refreshed, reauth, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for _, conn := range expiring {
		g.Go(func() error {
			_, err := m.refresher.Refresh(gctx, conn)
			switch {
			case err == nil:
				refreshed.Add(1)
			case errors.Is(err, domain.ErrNeedsReauth):
				reauth.Add(1)
			default:
				failed.Add(1)
				m.logger.Warn("background refresh failed",
					"user_id", conn.UserID,
					"platform", conn.Platform,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Refreshed = int(refreshed.Load())
	report.NeedsReauth = int(reauth.Load())
	report.Failed = int(failed.Load())

	m.logger.Info("maintenance run complete",
		"states_purged", report.StatesPurged,
		"refreshed", report.Refreshed,
		"needs_reauth", report.NeedsReauth,
		"failed", report.Failed,
	)
	return report, nil
}
