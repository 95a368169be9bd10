// PagePulse - Web Usage Analytics and Realtime Dashboard Engine
// Copyright 2026 PagePulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pagepulse/pagepulse

// Package websocket bridges hub subscribers to gorilla websocket
// connections. Each connection pairs one realtime subscriber with a
// write pump; backpressure handling lives in the hub, not here.
package websocket

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/pagepulse/pagepulse/internal/logging"
	"github.com/pagepulse/pagepulse/internal/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client pumps one subscriber's updates over a websocket connection.
type Client struct {
	hub  *realtime.Hub
	sub  *realtime.Subscriber
	conn *websocket.Conn
}

// NewClient pairs a subscriber with an upgraded connection.
func NewClient(hub *realtime.Hub, sub *realtime.Subscriber, conn *websocket.Conn) *Client {
	return &Client{hub: hub, sub: sub, conn: conn}
}

// Start begins the read and write pumps. It returns immediately; the
// pumps run until the peer disconnects or the hub drops the subscriber.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump consumes control frames and detects peer disconnect.
// Incoming data frames are ignored; the realtime stream is one-way.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unsubscribe(c.sub.ID())
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Err(err).Msg("Set websocket read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Err(err).Str("subscriber_id", c.sub.ID()).Msg("Unexpected websocket close")
			}
			return
		}
	}
}

// writePump forwards updates to the peer and keeps the connection
// alive with periodic pings. A closed update channel means the hub
// dropped or shut down the subscriber.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case update, ok := <-c.sub.Updates():
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscriber dropped"))
				return
			}
			payload, err := json.Marshal(update)
			if err != nil {
				logging.Err(err).Msg("Marshal websocket update")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// NewUpgrader returns an upgrader that checks the Origin header against
// the allowed CORS origins. Requests without an Origin header are
// accepted; non-browser clients omit it.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		HandshakeTimeout: 10 * time.Second,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			logging.Warn().Str("origin", origin).Msg("Websocket connection rejected from unauthorized origin")
			return false
		},
	}
}
