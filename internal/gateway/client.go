package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pumphub/internal/telemetry"
	"pumphub/pkg/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// inboundCommand is the only message subscribers may send.
type inboundCommand struct {
	Type   string `json:"type"`
	Action string `json:"action"`
}

// Client bridges one WebSocket connection and the hub.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string

	closeOnce sync.Once
}

func newClient(h *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:        h,
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		remoteAddr: conn.RemoteAddr().String(),
	}
}

// close releases the connection; safe to call from both pumps and the hub.
// The send channel is left open so a racing reply can never panic; writePump
// exits on the next write against the closed socket.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		_ = c.conn.Close()
	})
}

// readPump consumes inbound messages until the connection drops. Only
// controlPump commands are honored; anything else is ignored with a log
// entry. Command results go back to this subscriber alone.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
			c.close()
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.l.Warn("subscriber read error", slog.String("remote", c.remoteAddr), utils.ErrAttr(err))
			}

			return
		}

		var cmd inboundCommand
		if err := json.Unmarshal(message, &cmd); err != nil || cmd.Type != "controlPump" {
			c.hub.l.Warn("ignoring unrecognized subscriber message", slog.String("remote", c.remoteAddr))

			continue
		}

		result := c.hub.handler.HandleCommand(context.Background(),
			telemetry.PumpAction(cmd.Action), telemetry.SourceRemote)

		c.reply(telemetry.NewEvent(telemetry.EventPumpStatus, result))
	}
}

// reply queues an event for this subscriber only.
func (c *Client) reply(ev telemetry.Event) {
	payload, err := utils.ToJSON(ev)
	if err != nil {
		c.hub.l.Error("failed to marshal reply", utils.ErrAttr(err))

		return
	}

	select {
	case c.send <- payload:
	default:
		// Buffer full; the hub will evict this subscriber on its next
		// broadcast attempt.
	}
}

// writePump drains the send buffer onto the wire and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
