// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package analytics implements the cold-path engines: session
// reconstruction, ordered funnel matching, retention cohorts, and
// dimensional aggregation. All computations are read-only, synchronous
// single passes over the event stream supplied by an EventSource; a
// failure mid-computation leaves no partial state behind.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pagepulse/pagepulse/internal/models"
)

// Sentinel errors for rejected inputs. Store failures pass through
// unchanged so callers can test for store.ErrUnavailable.
var (
	ErrInvalidTimeRange  = errors.New("invalid time range")
	ErrInvalidFunnel     = errors.New("invalid funnel definition")
	ErrUnknownDimension  = errors.New("unknown dimension")
	ErrInvalidCohortSpec = errors.New("invalid cohort specification")
)

// EventSource streams stored events for a time range and filter. The
// sequence must be ordered by timestamp ascending and restartable per
// call. Satisfied by *store.Store.
type EventSource interface {
	Query(ctx context.Context, tr models.TimeRange, f models.EventFilter, fn func(models.Event) error) error
}

// Analyzer evaluates analytics queries against an event source.
type Analyzer struct {
	src      EventSource
	maxRange time.Duration
}

// NewAnalyzer creates an Analyzer. maxRange caps the queryable window;
// zero disables the cap.
func NewAnalyzer(src EventSource, maxRange time.Duration) *Analyzer {
	return &Analyzer{src: src, maxRange: maxRange}
}

// checkRange rejects inverted or oversized ranges up front, before any
// store work happens.
func (a *Analyzer) checkRange(tr models.TimeRange) error {
	if err := tr.Validate(a.maxRange); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTimeRange, err)
	}
	return nil
}

// round2 keeps reported rates stable across runs and readable in JSON.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// percentage returns part/whole as a percentage, zero when whole is zero.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}
