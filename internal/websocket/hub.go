package websocket

import (
	"log"
	"sync"
)

// Hub maintains the set of active clients and fans counter events out to them
type Hub struct {
	// Registered clients by followed post ID; 0 follows every post
	clients map[uint]map[*Client]bool

	// Outbound messages for clients
	broadcast chan *Message

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	quit     chan struct{}
	stopOnce sync.Once

	// Mutex for thread-safe operations
	mu sync.RWMutex
}

// Message represents a WebSocket message
type Message struct {
	PostID  uint                   `json:"post_id,omitempty"`
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uint]map[*Client]bool),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run starts the hub; it returns after Stop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.PostID] == nil {
				h.clients[client.PostID] = make(map[*Client]bool)
			}
			h.clients[client.PostID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered: ID=%s, PostID=%d", client.ID, client.PostID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			h.mu.Unlock()
			log.Printf("Client unregistered: ID=%s", client.ID)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.deliverLocked(h.clients[message.PostID], message)
			if message.PostID != 0 {
				h.deliverLocked(h.clients[0], message)
			}
			h.mu.Unlock()

		case <-h.quit:
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					h.removeLocked(client)
				}
			}
			h.mu.Unlock()
			return
		}
	}
}

// Stop disconnects every client and ends Run
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
	})
}

func (h *Hub) deliverLocked(clients map[*Client]bool, message *Message) {
	for client := range clients {
		select {
		case client.send <- message:
		default:
			// Slow consumer
			h.removeLocked(client)
		}
	}
}

func (h *Hub) removeLocked(client *Client) {
	clients, ok := h.clients[client.PostID]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, client.PostID)
	}
}

// BroadcastToPost sends a counter update to clients following postID and to
// clients following everything
func (h *Hub) BroadcastToPost(postID uint, payload map[string]interface{}) {
	msgType := "counter"
	if t, ok := payload["type"].(string); ok && t != "" {
		msgType = t
	}
	message := &Message{
		PostID:  postID,
		Type:    msgType,
		Payload: payload,
	}

	select {
	case h.broadcast <- message:
	default:
		log.Printf("Broadcast channel full, dropping message for post: %d", postID)
	}
}

// GetTotalClientCount returns the total number of connected clients
func (h *Hub) GetTotalClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}

// reply sends a message to a single registered client
func (h *Hub) reply(client *Client, message *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client.PostID][client] {
		return
	}
	select {
	case client.send <- message:
	default:
	}
}
