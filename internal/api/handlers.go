// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gorillaws "github.com/gorilla/websocket"

	"github.com/pagepulse/pagepulse/internal/analytics"
	"github.com/pagepulse/pagepulse/internal/config"
	"github.com/pagepulse/pagepulse/internal/engine"
	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/models"
	"github.com/pagepulse/pagepulse/internal/store"
	ws "github.com/pagepulse/pagepulse/internal/websocket"
)

// maxIngestBody bounds the ingest request body.
const maxIngestBody = 16 * 1024

// Handler serves the HTTP API over the engine.
type Handler struct {
	engine   *engine.Engine
	cfg      *config.Config
	upgrader gorillaws.Upgrader
	now      func() time.Time
}

// NewHandler builds the API handler.
func NewHandler(eng *engine.Engine, cfg *config.Config) *Handler {
	return &Handler{
		engine:   eng,
		cfg:      cfg,
		upgrader: ws.NewUpgrader(cfg.Server.CORSOrigins),
		now:      time.Now,
	}
}

// TrackEvent ingests one event.
// POST /api/v1/events
func (h *Handler) TrackEvent(w http.ResponseWriter, r *http.Request) {
	started := h.now()

	var in engine.IngestInput
	r.Body = http.MaxBytesReader(w, r.Body, maxIngestBody)
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "malformed JSON body", err)
		return
	}

	ev, err := h.engine.Ingest(r.Context(), in)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondData(w, http.StatusCreated, ev, started)
}

// Sessions lists reconstructed sessions for the range.
// GET /api/v1/analytics/sessions
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	started := h.now()
	tr, err := parseTimeRange(r, h.now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidTimeRange, err.Error(), nil)
		return
	}
	filter := models.EventFilter{
		Page:      r.URL.Query().Get("page"),
		SessionID: r.URL.Query().Get("session_id"),
	}

	sessions, err := h.engine.Sessions(r.Context(), tr, filter)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	}, started)
}

// Funnel evaluates an ordered funnel. Steps come from repeated page
// parameters, the optional window from window_minutes.
// GET /api/v1/analytics/funnel?page=/&page=/pricing&window_minutes=30
func (h *Handler) Funnel(w http.ResponseWriter, r *http.Request) {
	started := h.now()
	tr, err := parseTimeRange(r, h.now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidTimeRange, err.Error(), nil)
		return
	}

	windowMinutes := getIntParam(r, "window_minutes", 0)
	def := models.FunnelDefinition{
		Steps:  r.URL.Query()["page"],
		Window: time.Duration(windowMinutes) * time.Minute,
	}

	steps, err := h.engine.Funnel(r.Context(), def, tr)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{"steps": steps}, started)
}

// Retention returns the cohort retention table.
// GET /api/v1/analytics/retention?period_days=1&lookback=7
func (h *Handler) Retention(w http.ResponseWriter, r *http.Request) {
	started := h.now()
	tr, err := parseTimeRange(r, h.now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidTimeRange, err.Error(), nil)
		return
	}

	periodDays := getIntParam(r, "period_days", 1)
	if periodDays < 1 || periodDays > h.cfg.Analytics.MaxCohortPeriodDays {
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "period_days out of range", nil)
		return
	}
	lookback := getIntParam(r, "lookback", 7)

	table, err := h.engine.Retention(r.Context(), time.Duration(periodDays)*24*time.Hour, lookback, tr)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondData(w, http.StatusOK, table, started)
}

// Pages returns per-page metrics with bounce rate and top referrers.
// GET /api/v1/analytics/pages
func (h *Handler) Pages(w http.ResponseWriter, r *http.Request) {
	h.breakdown(w, r, analytics.DimensionPage)
}

// TrafficSources returns the classified traffic-source breakdown.
// GET /api/v1/analytics/traffic-sources
func (h *Handler) TrafficSources(w http.ResponseWriter, r *http.Request) {
	h.breakdown(w, r, analytics.DimensionSource)
}

// Devices returns the device breakdown; by=browser or by=os selects
// the other user-agent dimensions.
// GET /api/v1/analytics/devices
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	dim := analytics.DimensionDevice
	switch r.URL.Query().Get("by") {
	case "", "device":
	case "browser":
		dim = analytics.DimensionBrowser
	case "os":
		dim = analytics.DimensionOS
	default:
		respondError(w, http.StatusBadRequest, codeInvalidRequest, "by must be device, browser or os", nil)
		return
	}
	h.breakdown(w, r, dim)
}

// Referrers returns the raw-referrer breakdown.
// GET /api/v1/analytics/referrers
func (h *Handler) Referrers(w http.ResponseWriter, r *http.Request) {
	h.breakdown(w, r, analytics.DimensionReferrer)
}

func (h *Handler) breakdown(w http.ResponseWriter, r *http.Request, dim analytics.Dimension) {
	started := h.now()
	tr, err := parseTimeRange(r, h.now().UTC())
	if err != nil {
		respondError(w, http.StatusBadRequest, codeInvalidTimeRange, err.Error(), nil)
		return
	}

	rows, err := h.engine.Breakdown(r.Context(), dim, tr)
	if err != nil {
		h.respondEngineError(w, err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"dimension": dim,
		"rows":      rows,
	}, started)
}

// RealtimeStats returns the rolling in-memory aggregate.
// GET /api/v1/realtime/stats
func (h *Handler) RealtimeStats(w http.ResponseWriter, r *http.Request) {
	respondData(w, http.StatusOK, h.engine.Snapshot(), h.now())
}

// WebSocket upgrades the connection and attaches it to the hub.
// GET /api/v1/realtime/ws
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Err(err).Msg("Websocket upgrade failed")
		return
	}
	sub, err := h.engine.Hub().Subscribe()
	if err != nil {
		_ = conn.WriteMessage(gorillaws.CloseMessage,
			gorillaws.FormatCloseMessage(gorillaws.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	ws.NewClient(h.engine.Hub(), sub, conn).Start()
}

// Health reports overall service health.
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := h.now()
	status := http.StatusOK
	storeStatus := "up"
	if err := h.engine.Ping(r.Context()); err != nil {
		status = http.StatusServiceUnavailable
		storeStatus = "down"
	}
	respondData(w, status, map[string]interface{}{
		"store":       storeStatus,
		"subscribers": h.engine.Hub().SubscriberCount(),
	}, started)
}

// HealthLive is the liveness probe.
// GET /api/v1/health/live
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondData(w, http.StatusOK, map[string]string{"status": "alive"}, h.now())
}

// HealthReady is the readiness probe; it requires a reachable store.
// GET /api/v1/health/ready
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "event store not ready", err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"status": "ready"}, h.now())
}

// respondEngineError maps engine and analytics errors onto HTTP status
// codes.
func (h *Handler) respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error(), nil)
	case errors.Is(err, analytics.ErrInvalidTimeRange):
		respondError(w, http.StatusBadRequest, codeInvalidTimeRange, err.Error(), nil)
	case errors.Is(err, analytics.ErrInvalidFunnel),
		errors.Is(err, analytics.ErrInvalidCohortSpec),
		errors.Is(err, analytics.ErrUnknownDimension):
		respondError(w, http.StatusBadRequest, codeInvalidRequest, err.Error(), nil)
	case errors.Is(err, store.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, codeStoreUnavailable, "event store unavailable", err)
	default:
		respondError(w, http.StatusInternalServerError, codeInternal, "internal error", err)
	}
}
