// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package models

import "time"

// Update message types pushed to realtime subscribers.
const (
	UpdateTypeEvent = "event"
	UpdateTypeStats = "stats_update"
)

// RealtimeSnapshot is a consistent point-in-time copy of the rolling
// in-memory aggregate state. RecentEvents is most-recent-first.
type RealtimeSnapshot struct {
	TotalEvents      uint64    `json:"total_events"`
	ActiveSessions   int       `json:"active_sessions"`
	EventsLastMinute int       `json:"events_last_minute"`
	RecentEvents     []Event   `json:"recent_events"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// RealtimeUpdate is the lightweight message broadcast to subscribers
// after each ingested event (current totals plus the new event), or
// periodically as a bare stats refresh with Event nil.
type RealtimeUpdate struct {
	Type             string `json:"type"`
	TotalEvents      uint64 `json:"total_events"`
	ActiveSessions   int    `json:"active_sessions"`
	EventsLastMinute int    `json:"events_last_minute"`
	Event            *Event `json:"event,omitempty"`
}
