// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/models"
)

// Error codes returned in the response envelope.
const (
	codeInvalidRequest   = "INVALID_REQUEST"
	codeInvalidTimeRange = "INVALID_TIME_RANGE"
	codeStoreUnavailable = "STORE_UNAVAILABLE"
	codeInternal         = "INTERNAL_ERROR"
)

// sanitizeLogValue strips control characters so request-derived strings
// cannot forge log entries.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteString(fmt.Sprintf("\\x%02x", r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// respondJSON sends the envelope with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Err(err).Msg("Marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Err(err).Msg("Write JSON response")
	}
}

// respondData sends a success envelope around data.
func respondData(w http.ResponseWriter, status int, data interface{}, started time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(started).Milliseconds(),
		},
	})
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// getIntParam extracts an integer query parameter with a default.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// parseTimeRange reads the query time range. Explicit RFC3339 start/end
// parameters win; otherwise a trailing hours window (default 24) ending
// now is used.
func parseTimeRange(r *http.Request, now time.Time) (models.TimeRange, error) {
	q := r.URL.Query()
	startParam, endParam := q.Get("start"), q.Get("end")

	if startParam != "" || endParam != "" {
		if startParam == "" || endParam == "" {
			return models.TimeRange{}, fmt.Errorf("start and end must be given together")
		}
		start, err := time.Parse(time.RFC3339, startParam)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("invalid start: %v", err)
		}
		end, err := time.Parse(time.RFC3339, endParam)
		if err != nil {
			return models.TimeRange{}, fmt.Errorf("invalid end: %v", err)
		}
		return models.TimeRange{Start: start.UTC(), End: end.UTC()}, nil
	}

	hours := getIntParam(r, "hours", 24)
	if hours < 1 {
		return models.TimeRange{}, fmt.Errorf("hours must be positive")
	}
	return models.LastHours(now, hours), nil
}
