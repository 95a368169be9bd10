// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/metrics"
	"github.com/pagepulse/pagepulse/internal/models"
)

// ErrHubClosed is returned by Subscribe after Shutdown.
var ErrHubClosed = errors.New("realtime: hub closed")

// SubscriberState is the lifecycle state of a subscriber.
type SubscriberState int32

const (
	// StateConnected means subscribed but no update delivered yet.
	StateConnected SubscriberState = iota
	// StateStreaming means at least one update has been delivered.
	StateStreaming
	// StateDisconnected means removed from the hub; the update channel
	// is closed.
	StateDisconnected
)

// Subscriber is one registered consumer of realtime updates. Updates
// are delivered through a bounded channel; a consumer that stops
// draining it is disconnected rather than allowed to stall ingestion.
type Subscriber struct {
	id    string
	ch    chan models.RealtimeUpdate
	state SubscriberState // guarded by the hub mutex
}

// ID returns the subscriber's unique id.
func (s *Subscriber) ID() string { return s.id }

// Updates returns the delivery channel. It is closed when the
// subscriber is disconnected.
func (s *Subscriber) Updates() <-chan models.RealtimeUpdate { return s.ch }

// Hub fans realtime updates out to subscribers. Delivery is
// best-effort per subscriber and never blocks the caller.
type Hub struct {
	mu        sync.Mutex
	subs      map[string]*Subscriber
	queueSize int
	closed    bool

	// stats produces the periodic stats refresh broadcast by Serve.
	stats   func() models.RealtimeUpdate
	limiter *rate.Limiter
}

// NewHub returns a hub delivering through per-subscriber buffers of
// queueSize. stats supplies the periodic stats_update payload and
// statsPerSecond throttles how often Serve broadcasts it.
func NewHub(queueSize int, statsPerSecond float64, stats func() models.RealtimeUpdate) *Hub {
	return &Hub{
		subs:      make(map[string]*Subscriber),
		queueSize: queueSize,
		stats:     stats,
		limiter:   rate.NewLimiter(rate.Limit(statsPerSecond), 1),
	}
}

// Subscribe registers a new subscriber and returns it.
func (h *Hub) Subscribe() (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	s := &Subscriber{
		id:    uuid.NewString(),
		ch:    make(chan models.RealtimeUpdate, h.queueSize),
		state: StateConnected,
	}
	h.subs[s.id] = s
	metrics.SubscribersConnected.Set(float64(len(h.subs)))
	logging.Debug().Str("subscriber_id", s.id).Int("subscribers", len(h.subs)).Msg("Realtime subscriber connected")
	return s, nil
}

// Unsubscribe removes a subscriber and closes its channel. Unknown or
// already removed ids are a no-op.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(id)
}

// Broadcast delivers the update to every subscriber in id order. A
// subscriber whose buffer is full is disconnected; delivery to the
// rest continues.
func (h *Hub) Broadcast(update models.RealtimeUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subs) == 0 {
		return
	}

	ids := make([]string, 0, len(h.subs))
	for id := range h.subs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := h.subs[id]
		select {
		case s.ch <- update:
			s.state = StateStreaming
			metrics.BroadcastsSent.Inc()
		default:
			logging.Warn().Str("subscriber_id", id).Msg("Realtime subscriber queue full, dropping")
			metrics.SubscribersDropped.Inc()
			h.removeLocked(id)
		}
	}
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// State returns the subscriber's current lifecycle state.
func (h *Hub) State(s *Subscriber) SubscriberState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return s.state
}

// Shutdown disconnects all subscribers and rejects new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for id := range h.subs {
		h.removeLocked(id)
	}
}

// Serve broadcasts throttled stats refreshes until the context is
// cancelled, then shuts the hub down. It satisfies the supervisor's
// service contract.
func (h *Hub) Serve(ctx context.Context) error {
	defer h.Shutdown()
	for {
		if err := h.limiter.Wait(ctx); err != nil {
			return ctx.Err()
		}
		if h.SubscriberCount() == 0 {
			continue
		}
		h.Broadcast(h.stats())
	}
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string { return "realtime-hub" }

func (h *Hub) removeLocked(id string) {
	s, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	s.state = StateDisconnected
	close(s.ch)
	metrics.SubscribersConnected.Set(float64(len(h.subs)))
	logging.Debug().Str("subscriber_id", id).Int("subscribers", len(h.subs)).Msg("Realtime subscriber disconnected")
}
