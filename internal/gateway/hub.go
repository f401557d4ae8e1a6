// Package gateway fans orchestration events out to connected dashboard
// clients over WebSocket and relays their pump-control commands back to the
// core. The subscriber set is owned by a single hub goroutine; connects,
// disconnects and broadcasts are serialized over channels so iteration never
// races with membership changes.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

const (
	broadcastBuffer = 64
	pingInterval    = 30 * time.Second
)

// CommandHandler processes inbound control commands from subscribers.
type CommandHandler interface {
	HandleCommand(ctx context.Context, action telemetry.PumpAction, source telemetry.CommandSource) telemetry.CommandResult
}

// Hub maintains the set of live subscribers and broadcasts events to them.
type Hub struct {
	l       *slog.Logger
	handler CommandHandler

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan telemetry.Event
	done       chan struct{}

	upgrader websocket.Upgrader
}

// NewHub creates a hub; SetHandler and Run must both happen before clients
// connect.
func NewHub(l *slog.Logger) *Hub {
	return &Hub{
		l:          l.With(slog.String("component", "gateway")),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan telemetry.Event, broadcastBuffer),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard origins are not pinned; the hub carries no secrets
			// beyond what the status API already serves.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetHandler installs the inbound command handler. The hub and the core
// reference each other, so the handler is bound right after the core is
// constructed rather than in NewHub.
func (h *Hub) SetHandler(handler CommandHandler) {
	h.handler = handler
}

// Run owns the subscriber set until ctx is canceled. It also emits periodic
// ping envelopes so idle dashboards can detect a stalled feed.
func (h *Hub) Run(ctx context.Context) {
	if h.handler == nil {
		panic("gateway: command handler not set")
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Release anyone blocked on register/unregister before closing
			// the connections out from under them.
			close(h.done)

			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}

			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.l.Info("subscriber connected", slog.String("remote", client.remoteAddr), slog.Int("subscribers", len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.l.Info("subscriber disconnected", slog.String("remote", client.remoteAddr), slog.Int("subscribers", len(h.clients)))
			}

		case ev := <-h.broadcast:
			h.deliver(ev)

		case <-ticker.C:
			h.deliver(telemetry.NewEvent(telemetry.EventPing, nil))
		}
	}
}

// Broadcast queues an event for delivery to all subscribers. Delivery is
// best effort: when the hub's queue is full the event is dropped rather than
// blocking the orchestration pipeline.
func (h *Hub) Broadcast(ev telemetry.Event) {
	select {
	case h.broadcast <- ev:
	default:
		h.l.Warn("broadcast queue full, dropping event", slog.String("type", string(ev.Type)))
	}
}

// deliver marshals once and writes to every subscriber's send buffer.
// Subscribers that cannot keep up are evicted.
func (h *Hub) deliver(ev telemetry.Event) {
	payload, err := utils.ToJSON(ev)
	if err != nil {
		h.l.Error("failed to marshal broadcast event", slog.String("type", string(ev.Type)), utils.ErrAttr(err))

		return
	}

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			delete(h.clients, client)
			client.close()
			h.l.Warn("subscriber send buffer full, evicting", slog.String("remote", client.remoteAddr))
		}
	}
}

// ServeWS upgrades an HTTP request into a hub subscription.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Warn("websocket upgrade failed", utils.ErrAttr(err))

		return
	}

	client := newClient(h, conn)

	select {
	case h.register <- client:
	case <-h.done:
		client.close()

		return
	}

	go client.writePump()
	go client.readPump()
}
