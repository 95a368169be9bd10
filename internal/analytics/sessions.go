// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package analytics

import (
	"context"
	"sort"

	"github.com/pagepulse/pagepulse/internal/models"
)

// ReconstructSessions groups the events in the range by session id and
// derives one Session per group, newest first.
//
// A session whose events span the range boundary is included as long as
// one event falls inside the range, but its Start/End/TotalDuration
// reflect only the fetched events. This partial view is intentional:
// the reconstructor never reaches outside the requested range to
// "complete" a session.
func (a *Analyzer) ReconstructSessions(ctx context.Context, tr models.TimeRange, f models.EventFilter) ([]models.Session, error) {
	if err := a.checkRange(tr); err != nil {
		return nil, err
	}

	groups := make(map[string][]models.Event)
	err := a.src.Query(ctx, tr, f, func(e models.Event) error {
		groups[e.SessionID] = append(groups[e.SessionID], e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(groups))
	for id, events := range groups {
		sessions = append(sessions, buildSession(id, events))
	}

	// Newest session first; id breaks ties deterministically.
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].Start.Equal(sessions[j].Start) {
			return sessions[i].Start.After(sessions[j].Start)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions, nil
}

// buildSession derives a Session from one group of events, sorted into
// timestamp order first.
func buildSession(id string, events []models.Event) models.Session {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	s := models.Session{
		ID:        id,
		Events:    events,
		Start:     events[0].Timestamp,
		End:       events[len(events)-1].Timestamp,
		FirstPage: events[0].Page,
		LastPage:  events[len(events)-1].Page,
		PageCount: len(events),
		Bounced:   len(events) == 1,
	}
	for _, e := range events {
		s.TotalDuration += e.Duration
	}
	return s
}
