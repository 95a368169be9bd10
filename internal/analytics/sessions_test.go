// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/pagepulse/pagepulse/internal/models"
)

func TestReconstructSessions(t *testing.T) {
	a := newTestAnalyzer(
		ev("a", "/", 0),
		ev("a", "/pricing", 10),
		ev("b", "/", 5),
	)

	sessions, err := a.ReconstructSessions(context.Background(), rangeAround(60), models.EventFilter{})
	if err != nil {
		t.Fatalf("ReconstructSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}

	byID := map[string]models.Session{}
	for _, s := range sessions {
		byID[s.ID] = s
	}

	sa := byID["a"]
	if sa.PageCount != 2 || sa.Bounced {
		t.Errorf("session a: pageCount=%d bounced=%v, want 2/false", sa.PageCount, sa.Bounced)
	}
	if sa.FirstPage != "/" || sa.LastPage != "/pricing" {
		t.Errorf("session a pages: %s..%s, want /../pricing", sa.FirstPage, sa.LastPage)
	}
	if sa.TotalDuration != 20 {
		t.Errorf("session a totalDuration = %d, want 20", sa.TotalDuration)
	}
	if sa.Start.After(sa.End) {
		t.Error("session a start after end")
	}

	sb := byID["b"]
	if sb.PageCount != 1 || !sb.Bounced {
		t.Errorf("session b: pageCount=%d bounced=%v, want 1/true", sb.PageCount, sb.Bounced)
	}
}

func TestReconstructSessionsOrderedNewestFirst(t *testing.T) {
	a := newTestAnalyzer(
		ev("early", "/", 0),
		ev("late", "/", 30),
	)

	sessions, err := a.ReconstructSessions(context.Background(), rangeAround(60), models.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if sessions[0].ID != "late" || sessions[1].ID != "early" {
		t.Errorf("order = [%s %s], want [late early]", sessions[0].ID, sessions[1].ID)
	}
}

func TestReconstructSessionsPartialView(t *testing.T) {
	// Session "x" has events at t=0 and t=100; the range only covers
	// t>=50, so the session must appear with the in-range view only.
	a := newTestAnalyzer(
		ev("x", "/", 0),
		ev("x", "/pricing", 100),
	)
	tr := models.TimeRange{Start: baseTime.Add(50 * time.Second), End: baseTime.Add(200 * time.Second)}

	sessions, err := a.ReconstructSessions(context.Background(), tr, models.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 {
		t.Fatalf("got %d sessions, want 1", len(sessions))
	}
	s := sessions[0]
	if s.PageCount != 1 {
		t.Errorf("pageCount = %d, want 1 (only the in-range event)", s.PageCount)
	}
	if !s.Start.Equal(baseTime.Add(100 * time.Second)) {
		t.Errorf("start = %s, want the in-range event time", s.Start)
	}
	if !s.Bounced {
		t.Error("partial view with one event must report bounced")
	}
}

func TestReconstructSessionsPageFilter(t *testing.T) {
	a := newTestAnalyzer(
		ev("a", "/", 0),
		ev("a", "/pricing", 10),
		ev("b", "/docs", 5),
	)

	sessions, err := a.ReconstructSessions(context.Background(), rangeAround(60), models.EventFilter{Page: "/pricing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != "a" {
		t.Fatalf("filtered sessions = %v, want just session a", sessions)
	}
	if sessions[0].PageCount != 1 {
		t.Errorf("pageCount = %d, want 1 (only the matching event is fetched)", sessions[0].PageCount)
	}
}

func TestReconstructSessionsEmptyRange(t *testing.T) {
	a := newTestAnalyzer()
	sessions, err := a.ReconstructSessions(context.Background(), rangeAround(60), models.EventFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 0 {
		t.Errorf("got %d sessions, want 0", len(sessions))
	}
}
