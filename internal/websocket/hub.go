// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package websocket

import (
	"context"
	"time"

	"github.com/tomtom215/personafeed/internal/feed"
	"github.com/tomtom215/personafeed/internal/logging"
	"github.com/tomtom215/personafeed/internal/metrics"
)

// Message types.
const (
	MessageTypeFeedReady = "feed_ready"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// Message is the envelope of every WebSocket frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// FeedReadyData is the payload of a feed_ready message.
type FeedReadyData struct {
	UserID    string `json:"user_id"`
	Version   int64  `json:"version"`
	ItemCount int    `json:"item_count"`
	Timestamp string `json:"timestamp"`
}

type delivery struct {
	userID string
	msg    Message
}

// Hub routes per-user notifications to connected clients. It implements
// feed.Notifier and suture.Service.
type Hub struct {
	registerCh   chan *Client
	unregisterCh chan *Client
	deliverCh    chan delivery
	countCh      chan chan int

	pingInterval time.Duration
	writeTimeout time.Duration
}

// NewHub creates a hub. Non-positive durations fall back to 30s pings and a
// 10s write timeout.
func NewHub(pingInterval, writeTimeout time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	return &Hub{
		registerCh:   make(chan *Client),
		unregisterCh: make(chan *Client),
		deliverCh:    make(chan delivery, 256),
		countCh:      make(chan chan int),
		pingInterval: pingInterval,
		writeTimeout: writeTimeout,
	}
}

// Serve runs the hub loop until ctx is canceled, then closes every client.
func (h *Hub) Serve(ctx context.Context) error {
	clients := make(map[string]map[*Client]struct{})
	total := 0

	remove := func(c *Client) {
		set, ok := clients[c.userID]
		if !ok {
			return
		}
		if _, ok := set[c]; !ok {
			return
		}
		delete(set, c)
		if len(set) == 0 {
			delete(clients, c.userID)
		}
		close(c.send)
		total--
		metrics.WSConnections.Set(float64(total))
	}

	for {
		select {
		case <-ctx.Done():
			closed := total
			for _, set := range clients {
				for c := range set {
					close(c.send)
				}
			}
			metrics.WSConnections.Set(0)
			logging.Info().
				Str("component", "websocket-hub").
				Int("clients_closed", closed).
				Msg("websocket hub stopped")
			return ctx.Err()

		case c := <-h.registerCh:
			set, ok := clients[c.userID]
			if !ok {
				set = make(map[*Client]struct{})
				clients[c.userID] = set
			}
			set[c] = struct{}{}
			total++
			metrics.WSConnections.Set(float64(total))
			logging.Debug().Str("user_id", c.userID).Int("total_clients", total).Msg("websocket client connected")

		case c := <-h.unregisterCh:
			remove(c)

		case d := <-h.deliverCh:
			for c := range clients[d.userID] {
				select {
				case c.send <- d.msg:
					metrics.WSNotifications.Inc()
				default:
					logging.Warn().Str("user_id", c.userID).Msg("websocket client too slow, disconnecting")
					remove(c)
				}
			}

		case reply := <-h.countCh:
			reply <- total
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string {
	return "websocket-hub"
}

// register and unregister give up after writeTimeout so pumps never hang
// on a stopped hub.
func (h *Hub) register(c *Client) bool {
	select {
	case h.registerCh <- c:
		return true
	case <-time.After(h.writeTimeout):
		return false
	}
}

func (h *Hub) unregister(c *Client) {
	select {
	case h.unregisterCh <- c:
	case <-time.After(h.writeTimeout):
	}
}

// FeedReady implements feed.Notifier. It never blocks; notifications are
// dropped when the hub is saturated.
func (h *Hub) FeedReady(userID string, version int64, itemCount int) {
	msg := Message{
		Type: MessageTypeFeedReady,
		Data: FeedReadyData{
			UserID:    userID,
			Version:   version,
			ItemCount: itemCount,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
	select {
	case h.deliverCh <- delivery{userID: userID, msg: msg}:
	default:
		logging.Warn().Str("user_id", userID).Msg("websocket delivery queue full, dropping feed_ready")
	}
}

// ClientCount returns the number of connected clients. It blocks until the
// hub loop answers or ctx ends.
func (h *Hub) ClientCount(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.countCh <- reply:
	case <-ctx.Done():
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-ctx.Done():
		return 0
	}
}

var _ feed.Notifier = (*Hub)(nil)
