// Package websocket streams live score updates to spectating clients.
// Clients subscribe per beatmap hash and receive every new best score
// accepted on that map.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/osudroid-server/internal/domain"
)

// Message types
const (
	MessageTypeScoreUpdate = "score_update"
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
	MessageTypeError       = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	MapHash   string      `json:"map_hash,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ScoreUpdate is the payload broadcast when a new best lands on a map.
type ScoreUpdate struct {
	ScoreID  int64                   `json:"score_id"`
	PlayerID int64                   `json:"player_id"`
	Username string                  `json:"username"`
	MapHash  string                  `json:"map_hash"`
	Score    int64                   `json:"score"`
	MaxCombo int                     `json:"max_combo"`
	Accuracy float64                 `json:"accuracy"`
	Mods     string                  `json:"mods"`
	PP       float64                 `json:"pp"`
	Status   domain.SubmissionStatus `json:"status"`
	Rank     int64                   `json:"rank,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by beatmap hash
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound messages from clients
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	mapHash string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all map subscriptions
				for hash, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, hash)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.mapHash]; !ok {
				h.clients[req.mapHash] = make(map[*Client]bool)
			}
			h.clients[req.mapHash][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "map_hash", req.mapHash)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.mapHash]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.mapHash)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "map_hash", req.mapHash)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all subscribed clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// If the message targets a beatmap, only send to its subscribers
	if message.MapHash != "" {
		if clients, ok := h.clients[message.MapHash]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		// Broadcast to all clients
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// NotifyBest pushes a freshly accepted best score to the map's
// subscribers. Called from the submission path, so a full broadcast
// channel drops the update instead of blocking.
func (h *Hub) NotifyBest(score *domain.Score, username string) {
	message := &Message{
		Type:    MessageTypeScoreUpdate,
		MapHash: score.MapHash,
		Data: ScoreUpdate{
			ScoreID:  score.ID,
			PlayerID: score.PlayerID,
			Username: username,
			MapHash:  score.MapHash,
			Score:    score.Score,
			MaxCombo: score.MaxCombo,
			Accuracy: score.Accuracy,
			Mods:     score.Mods,
			PP:       score.PP,
			Status:   score.Status,
			Rank:     score.Rank,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a beatmap subscription
func (h *Hub) Subscribe(client *Client, mapHash string) {
	h.subscribe <- &subscriptionRequest{
		client:  client,
		mapHash: mapHash,
	}
}

// Unsubscribe removes a client from a beatmap subscription
func (h *Hub) Unsubscribe(client *Client, mapHash string) {
	h.unsubscribe <- &subscriptionRequest{
		client:  client,
		mapHash: mapHash,
	}
}

// GetSubscriberCount returns the number of subscribers for a beatmap
func (h *Hub) GetSubscriberCount(mapHash string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[mapHash]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
