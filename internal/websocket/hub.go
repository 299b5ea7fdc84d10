package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"studymate-be/internal/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	hubModule = "WS_HUB"

	// clusterChannel carries pushes between instances: {target_user_id, message}.
	clusterChannel = "study_events"
)

// Hub tracks the open sockets of every user and pushes server events (ingestion status) to
// them. With Redis configured, pushes fan out to the sockets held by other instances.
type Hub struct {
	// UserID -> open sockets (multi-device)
	clients map[string][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	rdb    redis.UniversalClient
	logger logger.ILogger
}

func NewHub(rdb redis.UniversalClient, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string][]*Client),
		rdb:        rdb,
		logger:     log,
	}
}

func (h *Hub) Run(ctx context.Context) {
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.mu.Lock()
			clients := h.clients[client.UserID]
			for i, c := range clients {
				if c == client {
					h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
					close(client.Send)
					break
				}
			}
			if len(h.clients[client.UserID]) == 0 {
				delete(h.clients, client.UserID)
			}
			h.mu.Unlock()
		}
	}
}

// Connected reports how many sockets userID has open on this instance.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Send pushes payload to every socket of userID, here and on other instances.
func (h *Hub) Send(userID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode push", map[string]interface{}{"error": err})
		return
	}

	if h.rdb == nil {
		h.deliver(userID, data)
		return
	}
	// The local instance receives its own publish too, so it delivers from the subscriber.
	envelope, _ := json.Marshal(map[string]interface{}{
		"target_user_id": userID,
		"message":        json.RawMessage(data),
	})
	if err := h.rdb.Publish(context.Background(), clusterChannel, envelope).Err(); err != nil {
		h.logger.Warn(hubModule, "Redis publish failed, delivering locally only", map[string]interface{}{"error": err})
		h.deliver(userID, data)
	}
}

func (h *Hub) deliver(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn(hubModule, "Client send buffer full, dropping client", map[string]interface{}{"user_id": userID})
			go func(c *Client) { h.unregister <- c }(client)
		}
	}
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			TargetUserID string          `json:"target_user_id"`
			Message      json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			h.logger.Warn(hubModule, "Malformed cluster message", map[string]interface{}{"error": err})
			continue
		}
		h.deliver(payload.TargetUserID, payload.Message)
	}
}
