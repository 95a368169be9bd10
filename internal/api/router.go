// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package api is the HTTP service layer: chi routing, request
// validation and the JSON response envelope over the engine.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagepulse/pagepulse/internal/config"
)

// NewRouter assembles the full route tree.
func NewRouter(h *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestLogger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))

		r.Post("/events", h.TrackEvent)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/sessions", h.Sessions)
			r.Get("/funnel", h.Funnel)
			r.Get("/retention", h.Retention)
			r.Get("/pages", h.Pages)
			r.Get("/referrers", h.Referrers)
			r.Get("/traffic-sources", h.TrafficSources)
			r.Get("/devices", h.Devices)
		})

		r.Route("/realtime", func(r chi.Router) {
			r.Get("/stats", h.RealtimeStats)
			r.Get("/ws", h.WebSocket)
		})

		r.Route("/health", func(r chi.Router) {
			r.Get("/", h.Health)
			r.Get("/live", h.HealthLive)
			r.Get("/ready", h.HealthReady)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
