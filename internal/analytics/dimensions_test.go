// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/pagepulse/pagepulse/internal/models"
)

func TestAggregateByDimensionPage(t *testing.T) {
	home1 := ev("a", "/", 0)
	home1.Referrer = "https://google.com"
	home2 := ev("b", "/", 5)
	home2.Referrer = "https://google.com"
	home3 := ev("c", "/", 8)
	home3.Referrer = "https://news.ycombinator.com"
	pricing := ev("a", "/pricing", 10)

	a := newTestAnalyzer(home1, home2, home3, pricing)

	rows, err := a.AggregateByDimension(context.Background(), DimensionPage, rangeAround(60))
	if err != nil {
		t.Fatalf("AggregateByDimension: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	home := rows[0]
	if home.Group != "/" {
		t.Fatalf("top row = %q, want / first by count", home.Group)
	}
	if home.EventCount != 3 || home.SessionCount != 3 {
		t.Errorf("home events/sessions = %d/%d, want 3/3", home.EventCount, home.SessionCount)
	}
	// Sessions b and c only ever saw the home page.
	if home.BounceRate != 66.67 {
		t.Errorf("home bounceRate = %v, want 66.67", home.BounceRate)
	}
	if len(home.TopReferrers) != 2 {
		t.Fatalf("home topReferrers = %v, want 2 entries", home.TopReferrers)
	}
	if home.TopReferrers[0].Referrer != "https://google.com" || home.TopReferrers[0].Count != 2 {
		t.Errorf("top referrer = %+v, want google.com x2", home.TopReferrers[0])
	}

	if rows[1].Group != "/pricing" || rows[1].BounceRate != 0 {
		t.Errorf("pricing row = %+v, want zero bounce (session a saw two pages)", rows[1])
	}
}

func TestAggregateByDimensionCountsSumToTotal(t *testing.T) {
	events := []models.Event{
		ev("a", "/", 0),
		ev("a", "/pricing", 10),
		ev("b", "/", 5),
		ev("b", "/docs", 15),
		ev("c", "/docs", 20),
	}
	a := newTestAnalyzer(events...)

	for _, dim := range []Dimension{DimensionPage, DimensionReferrer, DimensionSource, DimensionDevice, DimensionBrowser, DimensionOS} {
		rows, err := a.AggregateByDimension(context.Background(), dim, rangeAround(60))
		if err != nil {
			t.Fatalf("dimension %s: %v", dim, err)
		}
		sum := 0
		pct := 0.0
		for _, r := range rows {
			sum += r.EventCount
			pct += r.Percentage
		}
		if sum != len(events) {
			t.Errorf("dimension %s: counts sum to %d, want %d", dim, sum, len(events))
		}
		if pct < 99.9 || pct > 100.1 {
			t.Errorf("dimension %s: percentages sum to %v, want ~100", dim, pct)
		}
	}
}

func TestAggregateByDimensionBuckets(t *testing.T) {
	direct := ev("a", "/", 0)
	referred := ev("b", "/", 5)
	referred.Referrer = "https://google.com"
	classified := ev("c", "/", 8)
	classified.Device = "Mobile"
	classified.Browser = "Safari"
	classified.OS = "iOS"

	a := newTestAnalyzer(direct, referred, classified)

	t.Run("missing referrer groups as direct", func(t *testing.T) {
		rows, err := a.AggregateByDimension(context.Background(), DimensionReferrer, rangeAround(60))
		if err != nil {
			t.Fatal(err)
		}
		if rows[0].Group != BucketDirect || rows[0].EventCount != 2 {
			t.Errorf("top row = %+v, want direct x2", rows[0])
		}
	})

	t.Run("missing device groups as unknown", func(t *testing.T) {
		rows, err := a.AggregateByDimension(context.Background(), DimensionDevice, rangeAround(60))
		if err != nil {
			t.Fatal(err)
		}
		if rows[0].Group != BucketUnknown || rows[0].EventCount != 2 {
			t.Errorf("top row = %+v, want unknown x2", rows[0])
		}
		if rows[1].Group != "Mobile" || rows[1].EventCount != 1 {
			t.Errorf("second row = %+v, want Mobile x1", rows[1])
		}
	})
}

func TestAggregateByDimensionDeterministicOrder(t *testing.T) {
	a := newTestAnalyzer(
		ev("a", "/zebra", 0),
		ev("b", "/alpha", 5),
		ev("c", "/alpha", 8),
		ev("d", "/zebra", 10),
	)

	rows, err := a.AggregateByDimension(context.Background(), DimensionPage, rangeAround(60))
	if err != nil {
		t.Fatal(err)
	}
	// Equal counts break ties on the group key.
	if rows[0].Group != "/alpha" || rows[1].Group != "/zebra" {
		t.Errorf("order = [%s %s], want [/alpha /zebra]", rows[0].Group, rows[1].Group)
	}
}

func TestAggregateByDimensionUnknown(t *testing.T) {
	a := newTestAnalyzer()
	if _, err := a.AggregateByDimension(context.Background(), Dimension("country"), rangeAround(60)); !errors.Is(err, ErrUnknownDimension) {
		t.Errorf("err = %v, want ErrUnknownDimension", err)
	}
}

func TestClassifySource(t *testing.T) {
	cases := []struct {
		referrer string
		want     string
	}{
		{"", "Direct"},
		{"https://www.google.com/search?q=pagepulse", "Google"},
		{"https://m.facebook.com/", "Facebook"},
		{"https://twitter.com/somebody", "Twitter"},
		{"https://www.linkedin.com/feed/", "LinkedIn"},
		{"https://news.ycombinator.com/", "Other"},
	}
	for _, tc := range cases {
		if got := ClassifySource(tc.referrer); got != tc.want {
			t.Errorf("ClassifySource(%q) = %q, want %q", tc.referrer, got, tc.want)
		}
	}
}

func TestTopReferrersCapped(t *testing.T) {
	counts := map[string]int{
		"https://a.example": 5,
		"https://b.example": 4,
		"https://c.example": 4,
		"https://d.example": 1,
	}
	top := topReferrers(counts)
	if len(top) != topReferrerCount {
		t.Fatalf("got %d referrers, want %d", len(top), topReferrerCount)
	}
	want := []string{"https://a.example", "https://b.example", "https://c.example"}
	for i, w := range want {
		if top[i].Referrer != w {
			t.Errorf("top[%d] = %q, want %q", i, top[i].Referrer, w)
		}
	}
}
