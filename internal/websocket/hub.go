// Navistream - Fleet Telemetry Streaming Bridge
// Copyright 2026 Navistream Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/navistreamio/navistream

// Package websocket pushes live updates to browser and integration
// clients: every latest-state replacement and every terminal command
// result is fanned out to all connected sockets. Delivery is
// best-effort; a client that cannot keep up is dropped, never waited
// on.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/navistreamio/navistream/internal/metrics"
	"github.com/navistreamio/navistream/internal/models"
)

// Message types pushed to clients.
const (
	MessageTypeStateChanged  = "state_changed"
	MessageTypeCommandResult = "command_result"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
)

// Message is one websocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// StateChangedData is the payload of a state_changed frame.
type StateChangedData struct {
	Account string               `json:"account"`
	State   *models.VehicleState `json:"state"`
}

// Hub maintains the set of active clients and broadcasts messages to
// them. It implements suture.Service via Serve.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	logger     zerolog.Logger
	mu         sync.Mutex
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// String names the service in supervision tree logs.
func (h *Hub) String() string { return "websocket-hub" }

// Serve runs the hub loop until ctx is cancelled, then closes every
// client so a supervisor restart never leaves orphaned connections.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			closed := h.closeAllClients()
			h.logger.Info().
				Str("component", "websocket-hub").
				Int("clients_closed", closed).
				Msg("Websocket hub stopped")
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			h.logger.Info().Int("total_clients", total).Msg("Websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebsocketClients.Set(float64(total))
			h.logger.Info().Int("total_clients", total).Msg("Websocket client disconnected")

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// broadcastToClients delivers one message to every client in ID order.
// Clients whose send buffer is full are dropped on the spot.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
	metrics.WebsocketClients.Set(float64(len(h.clients)))
}

func (h *Hub) closeAllClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebsocketClients.Set(0)
	return closed
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastStateChanged pushes a latest-state replacement to all
// clients. Non-blocking; a full broadcast queue drops the frame.
func (h *Hub) BroadcastStateChanged(account string, state *models.VehicleState) {
	h.enqueue(Message{
		Type: MessageTypeStateChanged,
		Data: StateChangedData{Account: account, State: state},
	})
}

// BroadcastCommandResult pushes a terminal command result to all clients.
func (h *Hub) BroadcastCommandResult(result *models.CommandResult) {
	h.enqueue(Message{
		Type: MessageTypeCommandResult,
		Data: result,
	})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn().Str("message_type", message.Type).Msg("Broadcast queue full, dropping frame")
	}
}
