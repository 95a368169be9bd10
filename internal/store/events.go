// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/models"
)

// Append inserts one event. Inserts run behind a circuit breaker so a
// wedged database fails fast instead of stacking up ingest goroutines.
// A duplicate id is silently ignored (ON CONFLICT DO NOTHING), which
// keeps replayed ingests idempotent.
func (s *Store) Append(ctx context.Context, e *models.Event) error {
	start := time.Now()
	_, err := s.breaker.Execute(func() (any, error) {
		_, execErr := s.conn.ExecContext(ctx, `
			INSERT INTO events (id, ts, page, session_id, referrer, user_agent, device, browser, os, duration)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT DO NOTHING`,
			e.ID, e.Timestamp.UTC(), e.Page, e.SessionID,
			nullable(e.Referrer), nullable(e.UserAgent),
			nullable(e.Device), nullable(e.Browser), nullable(e.OS),
			e.Duration,
		)
		return nil, execErr
	})
	metrics.ObserveStoreQuery("append", start, err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open", ErrUnavailable)
		}
		return fmt.Errorf("%w: append: %v", ErrUnavailable, err)
	}
	return nil
}

// Query streams events in [tr.Start, tr.End) matching the filter to fn,
// ordered by timestamp then id. Iteration is lazy: rows are scanned one
// at a time, so large ranges never materialize in memory here. A non-nil
// error from fn aborts the scan and is returned unchanged.
func (s *Store) Query(ctx context.Context, tr models.TimeRange, f models.EventFilter, fn func(models.Event) error) error {
	start := time.Now()

	where := []string{"ts >= ?", "ts < ?"}
	args := []any{tr.Start.UTC(), tr.End.UTC()}

	if f.Page != "" {
		if strings.HasSuffix(f.Page, "/*") {
			prefix := strings.TrimSuffix(f.Page, "/*")
			where = append(where, "(page = ? OR page LIKE ?)")
			args = append(args, prefix, prefix+"/%")
		} else {
			where = append(where, "page = ?")
			args = append(args, f.Page)
		}
	}
	if f.SessionID != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.SessionID)
	}

	query := fmt.Sprintf(`
		SELECT id, ts, page, session_id, referrer, user_agent, device, browser, os, duration
		FROM events
		WHERE %s
		ORDER BY ts, id`, strings.Join(where, " AND "))

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.ObserveStoreQuery("query", start, err)
		return fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			e                                             models.Event
			referrer, userAgent, device, browser, osField sql.NullString
			duration                                      sql.NullInt32
		)
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Page, &e.SessionID,
			&referrer, &userAgent, &device, &browser, &osField, &duration); err != nil {
			metrics.ObserveStoreQuery("query", start, err)
			return fmt.Errorf("%w: scan: %v", ErrUnavailable, err)
		}
		e.Timestamp = e.Timestamp.UTC()
		e.Referrer = referrer.String
		e.UserAgent = userAgent.String
		e.Device = device.String
		e.Browser = browser.String
		e.OS = osField.String
		e.Duration = int(duration.Int32)

		if err := fn(e); err != nil {
			metrics.ObserveStoreQuery("query", start, nil)
			return err
		}
	}
	if err := rows.Err(); err != nil {
		metrics.ObserveStoreQuery("query", start, err)
		return fmt.Errorf("%w: rows: %v", ErrUnavailable, err)
	}

	metrics.ObserveStoreQuery("query", start, nil)
	return nil
}

// CountEvents returns the number of events in the range.
func (s *Store) CountEvents(ctx context.Context, tr models.TimeRange) (int64, error) {
	start := time.Now()
	var count int64
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE ts >= ? AND ts < ?",
		tr.Start.UTC(), tr.End.UTC(),
	).Scan(&count)
	metrics.ObserveStoreQuery("count", start, err)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrUnavailable, err)
	}
	return count, nil
}

// Sweep deletes events older than the cutoff and returns the number
// removed. The sweep owns time-based retention; nothing else deletes.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	start := time.Now()
	res, err := s.conn.ExecContext(ctx, "DELETE FROM events WHERE ts < ?", olderThan.UTC())
	metrics.ObserveStoreQuery("sweep", start, err)
	if err != nil {
		return 0, fmt.Errorf("%w: sweep: %v", ErrUnavailable, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // count is advisory; the delete succeeded
	}
	metrics.EventsSwept.Add(float64(removed))
	return removed, nil
}

// nullable maps "" to NULL so unparsed fields stay distinguishable from
// empty strings in the table.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
