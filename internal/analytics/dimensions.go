// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package analytics

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pagepulse/pagepulse/internal/models"
)

// Dimension selects the grouping key of a dimensional aggregation.
type Dimension string

// Supported dimensions.
const (
	DimensionPage     Dimension = "page"
	DimensionReferrer Dimension = "referrer"
	DimensionSource   Dimension = "source"
	DimensionDevice   Dimension = "device"
	DimensionBrowser  Dimension = "browser"
	DimensionOS       Dimension = "os"
)

// Reserved buckets for missing grouping values.
const (
	BucketDirect  = "direct"
	BucketUnknown = "unknown"
)

// topReferrerCount bounds the per-page referrer list.
const topReferrerCount = 3

// AggregateByDimension computes grouped metrics for the range: event
// count, distinct sessions, average duration and share of all events.
// For the page dimension it also reports the bounce rate (fraction of
// the page's sessions that visited no other page, as a percentage) and
// the top referrers.
//
// Results are ordered by event count descending, ties broken by group
// key, so output is deterministic for equal inputs.
func (a *Analyzer) AggregateByDimension(ctx context.Context, dim Dimension, tr models.TimeRange) ([]models.DimensionRow, error) {
	keyFn, err := groupKeyFunc(dim)
	if err != nil {
		return nil, err
	}
	if err := a.checkRange(tr); err != nil {
		return nil, err
	}

	type groupAccum struct {
		events      int
		durationSum int
		sessions    map[string]struct{}
		referrers   map[string]int
	}
	groups := make(map[string]*groupAccum)
	sessionPages := make(map[string]int) // total page views per session, for bounce
	total := 0

	err = a.src.Query(ctx, tr, models.EventFilter{}, func(e models.Event) error {
		total++
		sessionPages[e.SessionID]++

		key := keyFn(e)
		g := groups[key]
		if g == nil {
			g = &groupAccum{sessions: make(map[string]struct{})}
			if dim == DimensionPage {
				g.referrers = make(map[string]int)
			}
			groups[key] = g
		}
		g.events++
		g.durationSum += e.Duration
		g.sessions[e.SessionID] = struct{}{}
		if dim == DimensionPage && e.Referrer != "" {
			g.referrers[e.Referrer]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rows := make([]models.DimensionRow, 0, len(groups))
	for key, g := range groups {
		row := models.DimensionRow{
			Group:        key,
			EventCount:   g.events,
			SessionCount: len(g.sessions),
			AvgDuration:  round2(float64(g.durationSum) / float64(g.events)),
			Percentage:   percentage(g.events, total),
		}
		if dim == DimensionPage {
			bounced := 0
			for id := range g.sessions {
				if sessionPages[id] == 1 {
					bounced++
				}
			}
			row.BounceRate = percentage(bounced, len(g.sessions))
			row.TopReferrers = topReferrers(g.referrers)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].EventCount != rows[j].EventCount {
			return rows[i].EventCount > rows[j].EventCount
		}
		return rows[i].Group < rows[j].Group
	})
	return rows, nil
}

// groupKeyFunc maps a dimension to its grouping key extractor. Missing
// referrers group under "direct", missing classifications under
// "unknown".
func groupKeyFunc(dim Dimension) (func(models.Event) string, error) {
	switch dim {
	case DimensionPage:
		return func(e models.Event) string { return e.Page }, nil
	case DimensionReferrer:
		return func(e models.Event) string { return orBucket(e.Referrer, BucketDirect) }, nil
	case DimensionSource:
		return func(e models.Event) string { return ClassifySource(e.Referrer) }, nil
	case DimensionDevice:
		return func(e models.Event) string { return orBucket(e.Device, BucketUnknown) }, nil
	case DimensionBrowser:
		return func(e models.Event) string { return orBucket(e.Browser, BucketUnknown) }, nil
	case DimensionOS:
		return func(e models.Event) string { return orBucket(e.OS, BucketUnknown) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDimension, dim)
	}
}

func orBucket(value, bucket string) string {
	if value == "" {
		return bucket
	}
	return value
}

// ClassifySource buckets a referrer URL into a traffic source.
func ClassifySource(referrer string) string {
	if referrer == "" {
		return "Direct"
	}
	lower := strings.ToLower(referrer)
	switch {
	case strings.Contains(lower, "google"):
		return "Google"
	case strings.Contains(lower, "facebook"):
		return "Facebook"
	case strings.Contains(lower, "twitter"):
		return "Twitter"
	case strings.Contains(lower, "linkedin"):
		return "LinkedIn"
	default:
		return "Other"
	}
}

// topReferrers returns the most frequent referrers, count descending,
// ties broken lexically.
func topReferrers(counts map[string]int) []models.ReferrerCount {
	if len(counts) == 0 {
		return nil
	}
	all := make([]models.ReferrerCount, 0, len(counts))
	for ref, n := range counts {
		all = append(all, models.ReferrerCount{Referrer: ref, Count: n})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Count != all[j].Count {
			return all[i].Count > all[j].Count
		}
		return all[i].Referrer < all[j].Referrer
	})
	if len(all) > topReferrerCount {
		all = all[:topReferrerCount]
	}
	return all
}
