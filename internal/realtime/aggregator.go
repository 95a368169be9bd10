// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package realtime maintains the rolling in-memory view of live traffic
// and fans updates out to connected subscribers.
package realtime

import (
	"sync"
	"time"

	"github.com/pagepulse/pagepulse/internal/models"
)

// minuteBuckets is the size of the per-second ring counting the trailing
// minute of events.
const minuteBuckets = 60

// Aggregator keeps counters derived from the ingested event stream: the
// lifetime total, the active-session set, a trailing-minute rate and the
// most recent events. State is process-local and rebuilt empty on
// restart; durable history lives in the event store.
type Aggregator struct {
	mu sync.Mutex

	totalEvents uint64
	active      map[string]time.Time // session id -> last seen
	window      time.Duration

	// Per-second ring for the trailing minute. bucketSec pins each slot
	// to the unix second it counts, so stale slots are detectable
	// without a background reset.
	buckets   [minuteBuckets]int
	bucketSec [minuteBuckets]int64

	recent    []models.Event // most-recent-first
	recentCap int

	now func() time.Time
}

// NewAggregator returns an empty aggregator. activeWindow bounds how
// long a silent session stays in the active set, recentCap bounds the
// recent-events list.
func NewAggregator(activeWindow time.Duration, recentCap int) *Aggregator {
	return &Aggregator{
		active:    make(map[string]time.Time),
		window:    activeWindow,
		recentCap: recentCap,
		now:       time.Now,
	}
}

// Apply folds one durably stored event into the rolling state and
// returns the update to broadcast for it.
func (a *Aggregator) Apply(e models.Event) models.RealtimeUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()

	a.totalEvents++
	a.active[e.SessionID] = now
	a.evictExpired(now)
	a.recordSecond(now)

	a.recent = append([]models.Event{e}, a.recent...)
	if len(a.recent) > a.recentCap {
		a.recent = a.recent[:a.recentCap]
	}

	return models.RealtimeUpdate{
		Type:             models.UpdateTypeEvent,
		TotalEvents:      a.totalEvents,
		ActiveSessions:   len(a.active),
		EventsLastMinute: a.countLastMinute(now),
		Event:            &e,
	}
}

// Snapshot returns a consistent copy of the current state.
func (a *Aggregator) Snapshot() models.RealtimeSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	a.evictExpired(now)

	recent := make([]models.Event, len(a.recent))
	copy(recent, a.recent)

	return models.RealtimeSnapshot{
		TotalEvents:      a.totalEvents,
		ActiveSessions:   len(a.active),
		EventsLastMinute: a.countLastMinute(now),
		RecentEvents:     recent,
		GeneratedAt:      now,
	}
}

// StatsUpdate returns a bare stats refresh message with no event
// attached, for the periodic rebroadcast.
func (a *Aggregator) StatsUpdate() models.RealtimeUpdate {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now().UTC()
	a.evictExpired(now)

	return models.RealtimeUpdate{
		Type:             models.UpdateTypeStats,
		TotalEvents:      a.totalEvents,
		ActiveSessions:   len(a.active),
		EventsLastMinute: a.countLastMinute(now),
	}
}

// Sweep evicts expired active sessions. Apply and Snapshot already
// evict opportunistically; the periodic sweep keeps the set tight
// during quiet stretches.
func (a *Aggregator) Sweep() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.evictExpired(a.now().UTC())
}

func (a *Aggregator) evictExpired(now time.Time) {
	if a.window <= 0 {
		return
	}
	cutoff := now.Add(-a.window)
	for id, last := range a.active {
		if last.Before(cutoff) {
			delete(a.active, id)
		}
	}
}

func (a *Aggregator) recordSecond(now time.Time) {
	sec := now.Unix()
	idx := sec % minuteBuckets
	if a.bucketSec[idx] != sec {
		a.bucketSec[idx] = sec
		a.buckets[idx] = 0
	}
	a.buckets[idx]++
}

func (a *Aggregator) countLastMinute(now time.Time) int {
	oldest := now.Unix() - minuteBuckets + 1
	total := 0
	for i := range a.buckets {
		if a.bucketSec[i] >= oldest {
			total += a.buckets[i]
		}
	}
	return total
}
