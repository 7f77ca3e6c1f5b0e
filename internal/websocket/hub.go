package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"live-insights-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Hub struct {
	// Registered clients map: SessionID -> List of Clients (every meeting
	// participant with the panel open holds their own connection)
	clients map[uuid.UUID][]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Lock for safe map access
	mu sync.RWMutex

	// Redis connection for cross-instance communication
	rdb *redis.Client

	// Dedicated Logger
	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run() {
	// Start Redis Subscriber if Redis is available
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.SessionID] = append(h.clients[client.SessionID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Client registered", map[string]interface{}{"session_id": client.SessionID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.SessionID]; ok {
				for i, c := range clients {
					if c == client {
						// Remove from slice
						h.clients[client.SessionID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.SessionID]) == 0 {
					delete(h.clients, client.SessionID)
					h.logger.Info("Hub", "Session has no listeners left", map[string]interface{}{"session_id": client.SessionID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Send pushes one typed payload to every client watching the session, then
// relays it over Redis so instances holding other connections for the
// same meeting deliver it too.
func (h *Hub) Send(sessionID uuid.UUID, messageType string, payload interface{}) {
	// 1. Serialize
	data, _ := json.Marshal(map[string]interface{}{
		"type": messageType,
		"data": payload,
	})

	// 2. With Redis every delivery goes through the relay, including to
	// this instance's own clients via its subscriber. Without Redis,
	// deliver straight to the local map.
	if h.rdb != nil {
		relay := map[string]interface{}{
			"target_session_id": sessionID.String(),
			"message":           data,
		}
		jsonRelay, _ := json.Marshal(relay)
		h.rdb.Publish(context.Background(), "insight_events", jsonRelay)
		return
	}

	h.deliverLocal(sessionID, data)
}

func (h *Hub) deliverLocal(sessionID uuid.UUID, data []byte) {
	h.mu.RLock()
	clients, ok := h.clients[sessionID]
	h.mu.RUnlock()

	if !ok {
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			// Closing Send belongs to the unregister arm alone; closing it
			// here too would close the channel twice and panic.
			h.logger.Warn("Hub", "Client Send buffer full, dropping client", map[string]interface{}{"session_id": sessionID})
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	// Every instance subscribes to "insight_events" and filters by the
	// sessions it actually holds connections for. Messages for sessions
	// hosted elsewhere are dropped after the map lookup.
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, "insight_events")
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		var relay struct {
			TargetSessionID string          `json:"target_session_id"`
			Message         json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &relay); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		sid, err := uuid.Parse(relay.TargetSessionID)
		if err != nil {
			continue
		}

		h.deliverLocal(sid, relay.Message)
	}
}
