package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/quocanhngo/delivertalk/internal/event"
	"github.com/quocanhngo/delivertalk/internal/metrics"
	"github.com/quocanhngo/delivertalk/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// Hub manages all WebSocket connections on this instance and routes channel
// envelopes to the clients subscribed to them. Envelopes arrive over Redis
// Pub/Sub so every instance sees every event.
type Hub struct {
	// Map of userID -> set of client connections (one user can have multiple tabs/devices)
	clients map[uuid.UUID]map[*Client]bool

	// Map of channel -> subscribed clients
	subscriptions map[string]map[*Client]bool
	mu            sync.RWMutex

	// Channels for registering/unregistering clients
	register   chan *Client
	unregister chan *Client

	// Redis client for Pub/Sub (horizontal scaling)
	rdb *redis.Client

	// Callback when user comes online/offline on this instance
	onStatusChange func(userID uuid.UUID, online bool)
}

// NewHub creates a new WebSocket Hub
func NewHub(rdb *redis.Client, onStatusChange func(userID uuid.UUID, online bool)) *Hub {
	return &Hub{
		clients:        make(map[uuid.UUID]map[*Client]bool),
		subscriptions:  make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		rdb:            rdb,
		onStatusChange: onStatusChange,
	}
}

// Run starts the Hub's main event loop
func (h *Hub) Run(ctx context.Context) {
	// Start Redis subscriber in a goroutine
	go h.subscribeRedis(ctx)

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

// Register queues a client for registration with the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// addClient registers a connection and subscribes it to its owner's private channel
func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	first := false
	if _, ok := h.clients[client.UserID]; !ok {
		h.clients[client.UserID] = make(map[*Client]bool)
		first = true
	}
	h.clients[client.UserID][client] = true
	h.subscribeLocked(client, event.UserChannel(client.UserID))
	metrics.WSConnections.Inc()

	// User just came online (first connection)
	if first && h.onStatusChange != nil {
		go h.onStatusChange(client.UserID, true)
	}
	logger.Info().
		Str("user_id", client.UserID.String()).
		Int("connections", len(h.clients[client.UserID])).
		Msg("client connected")
}

// removeClient unregisters a client connection
func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.dropLocked(client) {
		logger.Info().Str("user_id", client.UserID.String()).Msg("client disconnected")
	}
}

// dropLocked detaches client from every map and closes its send channel.
// It reports false when the client was already gone.
func (h *Hub) dropLocked(client *Client) bool {
	clients, ok := h.clients[client.UserID]
	if !ok || !clients[client] {
		return false
	}

	for channel := range client.channels {
		h.unsubscribeLocked(client, channel)
	}
	delete(clients, client)
	close(client.send)
	metrics.WSConnections.Dec()

	if len(clients) == 0 {
		// User has no more connections (offline)
		delete(h.clients, client.UserID)
		if h.onStatusChange != nil {
			go h.onStatusChange(client.UserID, false)
		}
	}
	return true
}

// Subscribe attaches client to channel. Authorization happens before this call.
func (h *Hub) Subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subscribeLocked(client, channel)
}

// Unsubscribe detaches client from channel
func (h *Hub) Unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(client, channel)
}

func (h *Hub) subscribeLocked(client *Client, channel string) {
	subs, ok := h.subscriptions[channel]
	if !ok {
		subs = make(map[*Client]bool)
		h.subscriptions[channel] = subs
	}
	subs[client] = true
	client.channels[channel] = true
}

func (h *Hub) unsubscribeLocked(client *Client, channel string) {
	if subs, ok := h.subscriptions[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.subscriptions, channel)
		}
	}
	delete(client.channels, channel)
}

// Send queues a frame for one client. Clients whose buffer is full are disconnected.
func (h *Hub) Send(client *Client, frame []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sendLocked(client, frame)
}

func (h *Hub) sendLocked(client *Client, frame []byte) bool {
	if clients, ok := h.clients[client.UserID]; !ok || !clients[client] {
		return false
	}
	select {
	case client.send <- frame:
		return true
	default:
		// Client's send buffer is full, close connection
		logger.Warn().Str("user_id", client.UserID.String()).Msg("client too slow, disconnecting")
		h.dropLocked(client)
		return false
	}
}

// Deliver sends a raw envelope to every local subscriber of channel and returns how many got it
func (h *Hub) Deliver(channel string, frame []byte) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for client := range h.subscriptions[channel] {
		if h.sendLocked(client, frame) {
			delivered++
		}
	}
	return delivered
}

// IsUserOnline checks if a user has any active connections on this instance
func (h *Hub) IsUserOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// Subscribers returns the number of local clients subscribed to channel
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[channel])
}

// ========== Redis Pub/Sub for Horizontal Scaling ==========

// subscribeRedis receives every published envelope and routes it by channel
func (h *Hub) subscribeRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, event.RedisChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	logger.Info().Str("channel", event.RedisChannel).Msg("redis pub/sub subscriber started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env event.Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn().Err(err).Msg("error unmarshaling redis envelope")
				continue
			}
			h.Deliver(env.Channel, []byte(msg.Payload))
		}
	}
}
