// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package store

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/models"
	"github.com/pagepulse/pagepulse/internal/useragent"
)

// Demo traffic vocabulary for the mock seeder.
var (
	seedReferrers = []string{
		"", "",
		"https://www.google.com/search",
		"https://www.google.com/search?q=analytics",
		"https://www.facebook.com/",
		"https://twitter.com/share",
		"https://www.linkedin.com/feed",
		"https://news.ycombinator.com",
		"https://www.reddit.com/r/webdev",
	}

	seedUserAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Safari/605.1.15",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
		"Mozilla/5.0 (Linux; Android 14) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.144 Mobile Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
		"Mozilla/5.0 (iPad; CPU OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1",
	}

	// Typical user journeys through the site.
	seedFlows = [][]string{
		{"/", "/pricing", "/signup"},
		{"/", "/about", "/contact"},
		{"/", "/products", "/products/pro", "/pricing", "/signup"},
		{"/", "/blog", "/blog/getting-started"},
		{"/", "/docs", "/faq"},
		{"/pricing"},
		{"/"},
		{"/blog/analytics-tips", "/blog", "/"},
		{"/", "/login", "/dashboard", "/settings"},
	}
)

// SeedMockData fills an empty store with generated sessions over the
// trailing 30 days. A non-empty store is left untouched so restarting a
// demo deployment does not duplicate traffic.
func (s *Store) SeedMockData(ctx context.Context, now time.Time) error {
	existing, err := s.CountEvents(ctx, models.TimeRange{Start: now.AddDate(-10, 0, 0), End: now.Add(time.Hour)})
	if err != nil {
		return err
	}
	if existing > 0 {
		logging.Info().Int64("events", existing).Msg("store not empty, skipping mock seed")
		return nil
	}

	rng := rand.New(rand.NewSource(now.UnixNano())) //nolint:gosec // demo data, not security-sensitive
	const sessions = 400

	var inserted int
	for i := 0; i < sessions; i++ {
		sessionID := uuid.NewString()
		flow := seedFlows[rng.Intn(len(seedFlows))]
		ua := seedUserAgents[rng.Intn(len(seedUserAgents))]
		referrer := seedReferrers[rng.Intn(len(seedReferrers))]
		cls := useragent.Classify(ua)

		// Session start anywhere in the trailing 30 days.
		ts := now.Add(-time.Duration(rng.Intn(30*24*60)) * time.Minute)

		for step, page := range flow {
			e := &models.Event{
				ID:        uuid.New(),
				Timestamp: ts,
				Page:      page,
				SessionID: sessionID,
				UserAgent: ua,
				Device:    cls.Device,
				Browser:   cls.Browser,
				OS:        cls.OS,
				Duration:  5 + rng.Intn(180),
			}
			if step == 0 {
				e.Referrer = referrer
			}
			if err := s.Append(ctx, e); err != nil {
				return fmt.Errorf("seed event: %w", err)
			}
			inserted++
			ts = ts.Add(time.Duration(e.Duration) * time.Second)
		}
	}

	logging.Info().Int("events", inserted).Int("sessions", sessions).Msg("seeded mock data")
	return nil
}
