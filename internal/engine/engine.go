// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package engine wires the ingest hot path to the realtime hub and
// exposes the cold-path analytics operations over the event store.
//
// An ingested event is durable before it is visible: the store append
// happens first, and only on success does the event reach the rolling
// aggregate and the broadcast topic. A failed append therefore never
// inflates the realtime counters.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/pagepulse/pagepulse/internal/analytics"
	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/models"
	"github.com/pagepulse/pagepulse/internal/realtime"
	"github.com/pagepulse/pagepulse/internal/useragent"
)

// TopicUpdates carries one message per ingested event, consumed by the
// broadcaster and fanned out to realtime subscribers.
const TopicUpdates = "pagepulse.updates"

// EventStore is the persistence surface the engine needs.
type EventStore interface {
	Append(ctx context.Context, e *models.Event) error
	Query(ctx context.Context, tr models.TimeRange, f models.EventFilter, fn func(models.Event) error) error
	CountEvents(ctx context.Context, tr models.TimeRange) (int64, error)
	Sweep(ctx context.Context, olderThan time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// IngestInput is the caller-supplied portion of an event. The server
// assigns the id and timestamp and classifies the user agent.
type IngestInput struct {
	Page      string `json:"page" validate:"required,startswith=/,max=2048"`
	SessionID string `json:"session_id" validate:"required,max=128"`
	Referrer  string `json:"referrer" validate:"omitempty,max=2048"`
	UserAgent string `json:"user_agent" validate:"omitempty,max=1024"`
	Duration  int    `json:"duration" validate:"gte=0,lte=86400"`
}

// Engine composes the event store, the analytics engine, the realtime
// aggregator and the broadcast hub.
type Engine struct {
	store    EventStore
	analyzer *analytics.Analyzer
	agg      *realtime.Aggregator
	hub      *realtime.Hub
	pubSub   *gochannel.GoChannel
	updates  <-chan *message.Message
	validate *validator.Validate
	now      func() time.Time
}

// New builds an engine over the given store and realtime components.
// The update topic is subscribed here, before any event can be
// ingested, so no update published later is missed.
func New(store EventStore, analyzer *analytics.Analyzer, agg *realtime.Aggregator, hub *realtime.Hub) (*Engine, error) {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		newWatermillLogger(),
	)
	updates, err := pubSub.Subscribe(context.Background(), TopicUpdates)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", TopicUpdates, err)
	}
	return &Engine{
		store:    store,
		analyzer: analyzer,
		agg:      agg,
		hub:      hub,
		pubSub:   pubSub,
		updates:  updates,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}, nil
}

// Hub returns the broadcast hub for transport adapters.
func (e *Engine) Hub() *realtime.Hub { return e.hub }

// Ingest validates and persists one event, then folds it into the
// rolling aggregate and publishes the resulting update.
func (e *Engine) Ingest(ctx context.Context, in IngestInput) (models.Event, error) {
	if err := e.validate.Struct(in); err != nil {
		metrics.IngestFailures.WithLabelValues("invalid_event").Inc()
		return models.Event{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	cls := useragent.Classify(in.UserAgent)
	ev := models.Event{
		ID:        uuid.New(),
		Timestamp: e.now().UTC(),
		Page:      in.Page,
		SessionID: in.SessionID,
		Referrer:  in.Referrer,
		UserAgent: in.UserAgent,
		Device:    cls.Device,
		Browser:   cls.Browser,
		OS:        cls.OS,
		Duration:  in.Duration,
	}

	if err := e.store.Append(ctx, &ev); err != nil {
		metrics.IngestFailures.WithLabelValues("store_unavailable").Inc()
		return models.Event{}, fmt.Errorf("append event: %w", err)
	}
	metrics.EventsIngested.Inc()

	update := e.agg.Apply(ev)
	e.publishUpdate(update)

	return ev, nil
}

// publishUpdate puts the update on the broadcast topic. Publish failure
// is logged and swallowed: the event is already durable, losing one
// realtime frame is acceptable.
func (e *Engine) publishUpdate(update models.RealtimeUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		logging.Err(err).Msg("Marshal realtime update")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := e.pubSub.Publish(TopicUpdates, msg); err != nil {
		logging.Err(err).Msg("Publish realtime update")
	}
}

// RunBroadcaster consumes the update topic and fans each update out to
// the hub's subscribers until the context is cancelled. It satisfies
// the supervisor's service contract.
func (e *Engine) RunBroadcaster(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-e.updates:
			if !ok {
				return nil
			}
			var update models.RealtimeUpdate
			if err := json.Unmarshal(msg.Payload, &update); err != nil {
				logging.Err(err).Str("message_uuid", msg.UUID).Msg("Drop malformed realtime update")
				msg.Ack()
				continue
			}
			e.hub.Broadcast(update)
			msg.Ack()
		}
	}
}

// String identifies the broadcaster in supervisor logs.
func (e *Engine) String() string { return "broadcaster" }

// Serve runs the broadcaster; suture calls this.
func (e *Engine) Serve(ctx context.Context) error {
	return e.RunBroadcaster(ctx)
}

// Close releases the pub/sub resources.
func (e *Engine) Close() error {
	return e.pubSub.Close()
}

// Snapshot returns the current realtime aggregate.
func (e *Engine) Snapshot() models.RealtimeSnapshot {
	return e.agg.Snapshot()
}

// Ping reports event store health.
func (e *Engine) Ping(ctx context.Context) error {
	return e.store.Ping(ctx)
}

// Sessions reconstructs the sessions active in the range.
func (e *Engine) Sessions(ctx context.Context, tr models.TimeRange, f models.EventFilter) ([]models.Session, error) {
	return e.analyzer.ReconstructSessions(ctx, tr, f)
}

// Funnel evaluates an ordered funnel over the range.
func (e *Engine) Funnel(ctx context.Context, def models.FunnelDefinition, tr models.TimeRange) ([]models.FunnelStep, error) {
	return e.analyzer.RunFunnel(ctx, def, tr)
}

// Retention computes the cohort retention table for the range.
func (e *Engine) Retention(ctx context.Context, period time.Duration, lookback int, tr models.TimeRange) (models.CohortTable, error) {
	return e.analyzer.ComputeRetention(ctx, period, lookback, tr)
}

// Breakdown aggregates events by the given dimension over the range.
func (e *Engine) Breakdown(ctx context.Context, dim analytics.Dimension, tr models.TimeRange) ([]models.DimensionRow, error) {
	return e.analyzer.AggregateByDimension(ctx, dim, tr)
}

// CountEvents counts stored events inside the range.
func (e *Engine) CountEvents(ctx context.Context, tr models.TimeRange) (int64, error) {
	return e.store.CountEvents(ctx, tr)
}
