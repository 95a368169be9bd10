// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package models

import "time"

// Session is a derived grouping of events sharing a session id, ordered
// by timestamp. Sessions are recomputed on every query and have no
// independent lifecycle. When a query range clips a session, Start, End
// and TotalDuration reflect only the fetched events; the session is not
// completed from data outside the range.
type Session struct {
	ID            string    `json:"session_id"`
	Events        []Event   `json:"-"`
	Start         time.Time `json:"started_at"`
	End           time.Time `json:"ended_at"`
	FirstPage     string    `json:"first_page"`
	LastPage      string    `json:"last_page"`
	PageCount     int       `json:"page_count"`
	TotalDuration int       `json:"total_duration"`
	Bounced       bool      `json:"bounced"`
}

// FunnelDefinition is an ordered list of page patterns. Window, when
// positive, bounds the elapsed time between reaching step 1 and any
// later step; steps matched outside the window are not credited.
type FunnelDefinition struct {
	Steps  []string      `json:"steps"`
	Window time.Duration `json:"window,omitempty"`
}

// FunnelStep is the per-step result of a funnel run. ConversionRate is
// a percentage relative to step 1, zero when step 1 had no sessions.
type FunnelStep struct {
	Step           int     `json:"step"`
	Pattern        string  `json:"page"`
	Sessions       int     `json:"sessions"`
	ConversionRate float64 `json:"conversion_rate"`
}

// CohortCell is one offset column of a retention cohort row. Observable
// is false when the cell's period had not yet started at query time,
// distinguishing "not yet measurable" from true churn.
type CohortCell struct {
	Offset        int     `json:"offset"`
	ActiveCount   int     `json:"active"`
	RetentionRate float64 `json:"retention_rate"`
	Observable    bool    `json:"observable"`
}

// CohortRow is one cohort: the sessions first seen in the period starting
// at CohortStart, and their return activity per subsequent period.
type CohortRow struct {
	CohortStart time.Time    `json:"cohort_start"`
	Size        int          `json:"size"`
	Cells       []CohortCell `json:"cells"`
}

// CohortTable is the full retention report.
type CohortTable struct {
	PeriodLength time.Duration `json:"period_length"`
	Rows         []CohortRow   `json:"rows"`
}

// ReferrerCount is a referrer with its event count, used for the per-page
// top-referrer list.
type ReferrerCount struct {
	Referrer string `json:"referrer"`
	Count    int    `json:"count"`
}

// DimensionRow is one group of a dimensional aggregation. BounceRate and
// TopReferrers are populated for the page dimension only.
type DimensionRow struct {
	Group        string          `json:"group"`
	EventCount   int             `json:"events"`
	SessionCount int             `json:"sessions"`
	AvgDuration  float64         `json:"avg_duration"`
	Percentage   float64         `json:"percentage"`
	BounceRate   float64         `json:"bounce_rate,omitempty"`
	TopReferrers []ReferrerCount `json:"top_referrers,omitempty"`
}
