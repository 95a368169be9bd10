// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pagepulse/pagepulse/internal/models"
)

const day = 24 * time.Hour

// evAt builds a test event at an absolute day/second offset from baseTime.
func evAt(session, page string, days int, secs int) models.Event {
	e := ev(session, page, secs)
	e.Timestamp = e.Timestamp.Add(time.Duration(days) * day)
	return e
}

func TestComputeRetention(t *testing.T) {
	a := newTestAnalyzer(
		// Cohort day 0: two sessions, one returns on day 1.
		evAt("a", "/", 0, 0),
		evAt("a", "/pricing", 1, 10),
		evAt("b", "/", 0, 100),
		// Cohort day 1: one session, active on days 1 and 2.
		evAt("c", "/", 1, 0),
		evAt("c", "/docs", 2, 0),
	)
	tr := models.TimeRange{Start: baseTime, End: baseTime.Add(3 * day)}

	table, err := a.ComputeRetention(context.Background(), day, 3, tr)
	if err != nil {
		t.Fatalf("ComputeRetention: %v", err)
	}
	if table.PeriodLength != day {
		t.Errorf("periodLength = %s, want 24h", table.PeriodLength)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("got %d cohorts, want 2", len(table.Rows))
	}

	r0 := table.Rows[0]
	if !r0.CohortStart.Equal(baseTime) {
		t.Errorf("cohort 0 start = %s, want %s", r0.CohortStart, baseTime)
	}
	if r0.Size != 2 {
		t.Errorf("cohort 0 size = %d, want 2", r0.Size)
	}
	if got := r0.Cells[0]; got.ActiveCount != 2 || got.RetentionRate != 100 {
		t.Errorf("cohort 0 offset 0 = %+v, want full retention", got)
	}
	if got := r0.Cells[1]; got.ActiveCount != 1 || got.RetentionRate != 50 {
		t.Errorf("cohort 0 offset 1 = %+v, want 1 active at 50%%", got)
	}
	if got := r0.Cells[2]; got.ActiveCount != 0 || !got.Observable {
		t.Errorf("cohort 0 offset 2 = %+v, want observable zero", got)
	}

	r1 := table.Rows[1]
	if !r1.CohortStart.Equal(baseTime.Add(day)) {
		t.Errorf("cohort 1 start = %s, want day 1", r1.CohortStart)
	}
	if r1.Size != 1 {
		t.Errorf("cohort 1 size = %d, want 1", r1.Size)
	}
	if got := r1.Cells[1]; got.ActiveCount != 1 || got.RetentionRate != 100 {
		t.Errorf("cohort 1 offset 1 = %+v, want retained", got)
	}
}

func TestComputeRetentionOffsetZeroAlwaysFull(t *testing.T) {
	a := newTestAnalyzer(
		evAt("a", "/", 0, 0),
		evAt("b", "/", 0, 50),
		evAt("c", "/", 2, 0),
	)
	tr := models.TimeRange{Start: baseTime, End: baseTime.Add(4 * day)}

	table, err := a.ComputeRetention(context.Background(), day, 2, tr)
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range table.Rows {
		cell := row.Cells[0]
		if cell.ActiveCount != row.Size || cell.RetentionRate != 100 {
			t.Errorf("cohort %s offset 0 = %+v, want size=%d at 100%%",
				row.CohortStart, cell, row.Size)
		}
	}
}

func TestComputeRetentionUnobservableCells(t *testing.T) {
	// Range ends mid-way: offsets whose period starts at or after the
	// end are flagged not observable rather than reported as churn.
	a := newTestAnalyzer(evAt("a", "/", 0, 0))
	tr := models.TimeRange{Start: baseTime, End: baseTime.Add(2 * day)}

	table, err := a.ComputeRetention(context.Background(), day, 4, tr)
	if err != nil {
		t.Fatal(err)
	}
	row := table.Rows[0]
	wantObservable := []bool{true, true, false, false}
	for i, want := range wantObservable {
		if row.Cells[i].Observable != want {
			t.Errorf("offset %d observable = %v, want %v", i, row.Cells[i].Observable, want)
		}
	}
}

func TestComputeRetentionCohortsOrdered(t *testing.T) {
	a := newTestAnalyzer(
		evAt("late", "/", 3, 0),
		evAt("early", "/", 0, 0),
		evAt("mid", "/", 1, 0),
	)
	tr := models.TimeRange{Start: baseTime, End: baseTime.Add(5 * day)}

	table, err := a.ComputeRetention(context.Background(), day, 1, tr)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(table.Rows); i++ {
		if !table.Rows[i-1].CohortStart.Before(table.Rows[i].CohortStart) {
			t.Errorf("cohorts out of order at %d: %s then %s",
				i, table.Rows[i-1].CohortStart, table.Rows[i].CohortStart)
		}
	}
}

func TestComputeRetentionSpecValidation(t *testing.T) {
	a := newTestAnalyzer()
	tr := rangeAround(60)

	if _, err := a.ComputeRetention(context.Background(), 0, 2, tr); !errors.Is(err, ErrInvalidCohortSpec) {
		t.Errorf("zero period: err = %v, want ErrInvalidCohortSpec", err)
	}
	if _, err := a.ComputeRetention(context.Background(), day, 0, tr); !errors.Is(err, ErrInvalidCohortSpec) {
		t.Errorf("zero lookback: err = %v, want ErrInvalidCohortSpec", err)
	}
}

func TestComputeRetentionEmpty(t *testing.T) {
	a := newTestAnalyzer()
	table, err := a.ComputeRetention(context.Background(), day, 2, rangeAround(60))
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("got %d rows, want 0", len(table.Rows))
	}
}
