package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/model"
	"github.com/quocanhngo/delivertalk/pkg/logger"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 4096
)

// Actions a client may send
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionTyping      = "typing"
	ActionStopTyping  = "stop-typing"
	ActionPing        = "ping"
)

// Events the hub sends back to a single client
const (
	EventSubscribed        = "subscribed"
	EventUnsubscribed      = "unsubscribed"
	EventSubscriptionError = "subscription_error"
	EventError             = "error"
	EventPong              = "pong"
)

// ClientMessage is a frame received from a client
type ClientMessage struct {
	Action         string    `json:"action"`
	Channel        string    `json:"channel,omitempty"`
	ConversationID uuid.UUID `json:"conversation_id,omitempty"`
}

// Client represents a single WebSocket connection
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	UserID uuid.UUID
	Name   string
	Role   model.Role

	// guarded by hub.mu
	channels map[string]bool
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, name string, role model.Role) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		UserID:   userID,
		Name:     name,
		Role:     role,
		channels: make(map[string]bool),
	}
}

// Reply sends a direct frame to this client only
func (c *Client) Reply(channel, name string, data interface{}) {
	raw, err := json.Marshal(data)
	if err != nil {
		logger.Warn().Err(err).Str("event", name).Msg("error marshaling reply")
		return
	}
	frame, err := json.Marshal(event.Envelope{Channel: channel, Event: name, Data: raw})
	if err != nil {
		return
	}
	c.hub.Send(c, frame)
}

// MessageHandler is a callback for processing incoming WebSocket messages
type MessageHandler func(client *Client, msg ClientMessage)

// ReadPump pumps messages from the WebSocket connection to the handler
// Runs in a per-client goroutine
func (c *Client) ReadPump(handler MessageHandler) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn().Err(err).Str("user_id", c.UserID.String()).Msg("websocket error")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.Reply("", EventError, map[string]string{"message": "invalid frame"})
			continue
		}

		if handler != nil {
			handler(c, msg)
		}
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
// Runs in a per-client goroutine
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One envelope per frame so clients can parse each message on its own
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
