// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pagepulse/pagepulse/internal/models"
)

var aggBase = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// fakeClock advances the aggregator's notion of now from the test.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedAggregator(window time.Duration, recentCap int) (*Aggregator, *fakeClock) {
	clock := &fakeClock{t: aggBase}
	a := NewAggregator(window, recentCap)
	a.now = clock.now
	return a, clock
}

func sampleEvent(session, page string) models.Event {
	return models.Event{ID: uuid.New(), Timestamp: aggBase, Page: page, SessionID: session}
}

func TestAggregatorApply(t *testing.T) {
	a, _ := newClockedAggregator(30*time.Minute, 50)

	update := a.Apply(sampleEvent("s1", "/"))
	if update.Type != models.UpdateTypeEvent {
		t.Errorf("type = %q, want %q", update.Type, models.UpdateTypeEvent)
	}
	if update.TotalEvents != 1 || update.ActiveSessions != 1 || update.EventsLastMinute != 1 {
		t.Errorf("update = %+v, want totals of 1", update)
	}
	if update.Event == nil || update.Event.Page != "/" {
		t.Errorf("update.Event = %+v, want the applied event", update.Event)
	}

	update = a.Apply(sampleEvent("s2", "/pricing"))
	if update.TotalEvents != 2 || update.ActiveSessions != 2 {
		t.Errorf("update = %+v, want 2 events, 2 sessions", update)
	}
}

func TestAggregatorActiveSessionExpiry(t *testing.T) {
	a, clock := newClockedAggregator(30*time.Minute, 50)

	a.Apply(sampleEvent("old", "/"))
	clock.advance(31 * time.Minute)
	a.Apply(sampleEvent("fresh", "/"))

	snap := a.Snapshot()
	if snap.ActiveSessions != 1 {
		t.Errorf("activeSessions = %d, want 1 after expiry", snap.ActiveSessions)
	}
	if snap.TotalEvents != 2 {
		t.Errorf("totalEvents = %d, want 2 (lifetime total never decays)", snap.TotalEvents)
	}
}

func TestAggregatorRepeatSessionNotDoubleCounted(t *testing.T) {
	a, _ := newClockedAggregator(30*time.Minute, 50)

	a.Apply(sampleEvent("s1", "/"))
	a.Apply(sampleEvent("s1", "/pricing"))

	snap := a.Snapshot()
	if snap.ActiveSessions != 1 {
		t.Errorf("activeSessions = %d, want 1", snap.ActiveSessions)
	}
	if snap.TotalEvents != 2 {
		t.Errorf("totalEvents = %d, want 2", snap.TotalEvents)
	}
}

func TestAggregatorEventsLastMinute(t *testing.T) {
	a, clock := newClockedAggregator(30*time.Minute, 50)

	a.Apply(sampleEvent("s1", "/"))
	clock.advance(30 * time.Second)
	a.Apply(sampleEvent("s2", "/"))

	if got := a.Snapshot().EventsLastMinute; got != 2 {
		t.Errorf("eventsLastMinute = %d, want 2", got)
	}

	// The first event's second falls out of the trailing minute.
	clock.advance(45 * time.Second)
	if got := a.Snapshot().EventsLastMinute; got != 1 {
		t.Errorf("eventsLastMinute = %d, want 1 after decay", got)
	}

	clock.advance(2 * time.Minute)
	if got := a.Snapshot().EventsLastMinute; got != 0 {
		t.Errorf("eventsLastMinute = %d, want 0", got)
	}
}

func TestAggregatorRecentEventsCapped(t *testing.T) {
	a, _ := newClockedAggregator(30*time.Minute, 3)

	for _, page := range []string{"/a", "/b", "/c", "/d"} {
		a.Apply(sampleEvent("s", page))
	}

	snap := a.Snapshot()
	if len(snap.RecentEvents) != 3 {
		t.Fatalf("got %d recent events, want 3", len(snap.RecentEvents))
	}
	want := []string{"/d", "/c", "/b"}
	for i, w := range want {
		if snap.RecentEvents[i].Page != w {
			t.Errorf("recent[%d] = %q, want %q (most-recent-first)", i, snap.RecentEvents[i].Page, w)
		}
	}
}

func TestAggregatorSnapshotIsCopy(t *testing.T) {
	a, _ := newClockedAggregator(30*time.Minute, 50)
	a.Apply(sampleEvent("s1", "/"))

	snap := a.Snapshot()
	snap.RecentEvents[0].Page = "/mutated"

	if got := a.Snapshot().RecentEvents[0].Page; got != "/" {
		t.Errorf("internal state mutated through snapshot: page = %q", got)
	}
}

func TestAggregatorStatsUpdate(t *testing.T) {
	a, _ := newClockedAggregator(30*time.Minute, 50)
	a.Apply(sampleEvent("s1", "/"))

	update := a.StatsUpdate()
	if update.Type != models.UpdateTypeStats {
		t.Errorf("type = %q, want %q", update.Type, models.UpdateTypeStats)
	}
	if update.Event != nil {
		t.Errorf("stats update carries an event: %+v", update.Event)
	}
	if update.TotalEvents != 1 {
		t.Errorf("totalEvents = %d, want 1", update.TotalEvents)
	}
}

func TestAggregatorSweep(t *testing.T) {
	a, clock := newClockedAggregator(10*time.Minute, 50)
	a.Apply(sampleEvent("s1", "/"))

	clock.advance(11 * time.Minute)
	a.Sweep()

	a.mu.Lock()
	n := len(a.active)
	a.mu.Unlock()
	if n != 0 {
		t.Errorf("active set has %d entries after sweep, want 0", n)
	}
}
