// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package models defines the immutable value types exchanged between the
// event store, the analytics engines, the realtime hub, and the service
// layer. There is no reflection-based schema mapping: the store reads and
// writes these structs explicitly.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is a single page-view record. The ID and Timestamp are assigned
// at ingestion and never mutated afterwards. Device, Browser and OS are
// derived from UserAgent at ingestion; empty means unparsed.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Page      string    `json:"page"`
	SessionID string    `json:"session_id"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Device    string    `json:"device,omitempty"`
	Browser   string    `json:"browser,omitempty"`
	OS        string    `json:"os,omitempty"`

	// Duration is the seconds spent on the page, zero if unknown.
	Duration int `json:"duration"`
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Duration returns the span of the range.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Validate rejects inverted ranges and ranges wider than max (when max > 0).
func (r TimeRange) Validate(max time.Duration) error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("end %s before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	if max > 0 && r.Duration() > max {
		return fmt.Errorf("range %s exceeds maximum %s", r.Duration(), max)
	}
	return nil
}

// LastHours is a convenience constructor for the trailing-window queries
// the dashboard issues.
func LastHours(now time.Time, hours int) TimeRange {
	return TimeRange{Start: now.Add(-time.Duration(hours) * time.Hour), End: now}
}

// EventFilter narrows a store query. Zero value matches everything.
type EventFilter struct {
	// Page matches exactly, unless it ends in "/*" in which case it
	// matches the prefix before the wildcard.
	Page string

	// SessionID restricts to a single session.
	SessionID string
}

// MatchPage reports whether a page satisfies a funnel or filter pattern.
// Patterns ending in "/*" are prefix matches; everything else is exact.
func MatchPage(pattern, page string) bool {
	if n := len(pattern); n >= 2 && pattern[n-2:] == "/*" {
		prefix := pattern[:n-2]
		return page == prefix || (len(page) > len(prefix) && page[:len(prefix)+1] == prefix+"/")
	}
	return pattern == page
}
