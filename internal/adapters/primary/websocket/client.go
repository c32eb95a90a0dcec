package websocket

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 256
)

// Client is one authenticated dashboard connection. subscribedCallID is
// owned by the hub loop; the pumps never touch it.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Frame

	operatorID uuid.UUID
	role       string
	logger     *slog.Logger

	subscribedCallID *uuid.UUID
}

// NewClient wraps an upgraded connection. The caller registers it with the
// hub and starts both pumps.
func NewClient(hub *Hub, conn *websocket.Conn, operatorID uuid.UUID, role string, logger *slog.Logger) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan Frame, sendBufferSize),
		operatorID: operatorID,
		role:       role,
		logger:     logger.With("component", "ws_client", "operator_id", operatorID),
	}
}

// ReadPump pumps inbound frames from the connection to the hub. It runs
// until the connection errors or closes, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", "error", err)
			}
			return
		}
		c.handleFrame(message)
	}
}

// handleFrame parses one inbound frame and forwards it to the hub loop.
func (c *Client) handleFrame(message []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		c.hub.commands <- command{
			kind:   cmdReply,
			client: c,
			frame:  errorFrame("BAD_FRAME", "Malformed JSON frame"),
		}
		return
	}

	switch frame.Type {
	case FramePing:
		c.hub.commands <- command{kind: cmdPong, client: c}

	case FrameSubscribe:
		c.hub.commands <- command{kind: cmdResync, client: c}

	case FrameSubscribeTranscript:
		callID, err := uuid.Parse(frame.CallID)
		if err != nil {
			c.hub.commands <- command{
				kind:   cmdReply,
				client: c,
				frame:  errorFrame("INVALID_CALL_ID", "callId must be a UUID"),
			}
			return
		}
		c.hub.commands <- command{kind: cmdSubscribeTranscript, client: c, callID: callID}

	case FrameUnsubscribeTranscript:
		c.hub.commands <- command{kind: cmdUnsubscribeTranscript, client: c}

	default:
		c.logger.Warn("unknown frame type", "type", frame.Type)
	}
}

// WritePump pumps frames from the hub to the connection and keeps the
// transport alive with periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub dropped this client.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if err := json.NewEncoder(w).Encode(frame); err != nil {
				c.logger.Warn("frame encode failed", "error", err)
			}
			if err := w.Close(); err != nil {
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
