// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package services

import (
	"context"
	"time"

	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/realtime"
)

// EventSweeper is the store surface the retention sweep needs.
type EventSweeper interface {
	Sweep(ctx context.Context, olderThan time.Time) (int64, error)
}

// SweeperService periodically deletes events older than the retention
// horizon and evicts expired sessions from the realtime aggregator.
type SweeperService struct {
	store     EventSweeper
	agg       *realtime.Aggregator
	retention time.Duration
	interval  time.Duration
}

// NewSweeperService builds the sweeper. A zero retention disables the
// store sweep; the aggregator sweep always runs.
func NewSweeperService(store EventSweeper, agg *realtime.Aggregator, retention, interval time.Duration) *SweeperService {
	return &SweeperService{store: store, agg: agg, retention: retention, interval: interval}
}

// Serve implements suture.Service.
func (s *SweeperService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *SweeperService) sweep(ctx context.Context) {
	s.agg.Sweep()

	if s.retention <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-s.retention)
	removed, err := s.store.Sweep(ctx, cutoff)
	if err != nil {
		logging.Err(err).Msg("Retention sweep failed")
		return
	}
	if removed > 0 {
		logging.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("Retention sweep completed")
	}
}

// String identifies the service in supervisor logs.
func (s *SweeperService) String() string { return "retention-sweeper" }
