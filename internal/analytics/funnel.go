// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package analytics

import (
	"context"
	"fmt"

	"github.com/pagepulse/pagepulse/internal/models"
)

// RunFunnel counts, per funnel step, the distinct sessions that reached
// that step in order, and the conversion rate relative to step 1.
//
// A session reaches step i the first time an event matches pattern i at
// or after the moment it reached step i-1. Intervening unrelated events
// are allowed, revisits of earlier steps never un-reach anything, and a
// session is counted once per step no matter how often it matches. When
// the definition carries a time window, later steps are credited only
// while the elapsed time since the step-1 match stays within it; beyond
// the window the session is capped at the last step reached.
func (a *Analyzer) RunFunnel(ctx context.Context, def models.FunnelDefinition, tr models.TimeRange) ([]models.FunnelStep, error) {
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("%w: at least one step required", ErrInvalidFunnel)
	}
	for i, pattern := range def.Steps {
		if pattern == "" {
			return nil, fmt.Errorf("%w: step %d is empty", ErrInvalidFunnel, i+1)
		}
	}
	if def.Window < 0 {
		return nil, fmt.Errorf("%w: negative time window", ErrInvalidFunnel)
	}

	sessions, err := a.ReconstructSessions(ctx, tr, models.EventFilter{})
	if err != nil {
		return nil, err
	}

	counts := make([]int, len(def.Steps))
	for _, s := range sessions {
		advanceFunnel(def, s, counts)
	}

	steps := make([]models.FunnelStep, len(def.Steps))
	for i, pattern := range def.Steps {
		steps[i] = models.FunnelStep{
			Step:           i + 1,
			Pattern:        pattern,
			Sessions:       counts[i],
			ConversionRate: percentage(counts[i], counts[0]),
		}
	}
	return steps, nil
}

// advanceFunnel scans one session's ordered events with a cursor into
// the step list, incrementing counts for every step the session reaches.
func advanceFunnel(def models.FunnelDefinition, s models.Session, counts []int) {
	cursor := 0
	var reachedStart = s.Start // overwritten on the step-1 match

	for _, e := range s.Events {
		if cursor == len(def.Steps) {
			return
		}
		if cursor > 0 && def.Window > 0 && e.Timestamp.Sub(reachedStart) > def.Window {
			// Events are time-ordered, so nothing later can be inside
			// the window either: the session is capped here.
			return
		}
		if !models.MatchPage(def.Steps[cursor], e.Page) {
			continue
		}
		if cursor == 0 {
			reachedStart = e.Timestamp
		}
		counts[cursor]++
		cursor++
	}
}
