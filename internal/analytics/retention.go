// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/pagepulse/pagepulse/internal/models"
)

// ComputeRetention builds the cohort table for the range: each session
// is assigned to exactly one cohort by its earliest event timestamp
// truncated to the period boundary, and each subsequent period offset
// records how many of that cohort's sessions were seen again.
//
// Offset 0 is the cohort's defining activity and always equals the
// cohort size. Cells whose period had not started by the end of the
// range are marked not observable instead of zero, so true churn stays
// distinguishable from insufficient elapsed time.
//
// Sessions are the identity unit: events carry no user key, so the
// session id is the closest stable visitor proxy.
func (a *Analyzer) ComputeRetention(ctx context.Context, period time.Duration, lookback int, tr models.TimeRange) (models.CohortTable, error) {
	if period <= 0 {
		return models.CohortTable{}, fmt.Errorf("%w: period length must be positive", ErrInvalidCohortSpec)
	}
	if lookback < 1 {
		return models.CohortTable{}, fmt.Errorf("%w: lookback must be at least one period", ErrInvalidCohortSpec)
	}
	if err := a.checkRange(tr); err != nil {
		return models.CohortTable{}, err
	}

	// Single pass: first-seen timestamp and the set of active periods
	// per session. Period starts are epoch-aligned truncations so the
	// same instant always lands in the same bucket.
	firstSeen := make(map[string]time.Time)
	activity := make(map[string]map[int64]struct{})

	err := a.src.Query(ctx, tr, models.EventFilter{}, func(e models.Event) error {
		if first, ok := firstSeen[e.SessionID]; !ok || e.Timestamp.Before(first) {
			firstSeen[e.SessionID] = e.Timestamp
		}
		buckets := activity[e.SessionID]
		if buckets == nil {
			buckets = make(map[int64]struct{})
			activity[e.SessionID] = buckets
		}
		buckets[e.Timestamp.Truncate(period).Unix()] = struct{}{}
		return nil
	})
	if err != nil {
		return models.CohortTable{}, err
	}

	type cohortAccum struct {
		size   int
		active []int
	}
	cohorts := make(map[int64]*cohortAccum)

	for sessionID, first := range firstSeen {
		cohortStart := first.Truncate(period)
		key := cohortStart.Unix()
		c := cohorts[key]
		if c == nil {
			c = &cohortAccum{active: make([]int, lookback)}
			cohorts[key] = c
		}
		c.size++

		for offset := 0; offset < lookback; offset++ {
			periodStart := cohortStart.Add(time.Duration(offset) * period)
			if _, ok := activity[sessionID][periodStart.Unix()]; ok {
				c.active[offset]++
			}
		}
	}

	starts := make([]int64, 0, len(cohorts))
	for key := range cohorts {
		starts = append(starts, key)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	table := models.CohortTable{
		PeriodLength: period,
		Rows:         make([]models.CohortRow, 0, len(starts)),
	}
	for _, key := range starts {
		c := cohorts[key]
		cohortStart := time.Unix(key, 0).UTC()

		row := models.CohortRow{
			CohortStart: cohortStart,
			Size:        c.size,
			Cells:       make([]models.CohortCell, lookback),
		}
		for offset := 0; offset < lookback; offset++ {
			periodStart := cohortStart.Add(time.Duration(offset) * period)
			row.Cells[offset] = models.CohortCell{
				Offset:        offset,
				ActiveCount:   c.active[offset],
				RetentionRate: percentage(c.active[offset], c.size),
				Observable:    periodStart.Before(tr.End),
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
