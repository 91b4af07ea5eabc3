package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/songhatch/api/internal/model"
)

// Client represents a WebSocket client subscribed to one generation
type Client struct {
	GenerationID string
	Conn         *websocket.Conn
	Send         chan []byte
}

// Hub maintains active WebSocket connections
type Hub struct {
	// Clients grouped by generation ID
	clients map[string]map[*Client]bool

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Broadcast messages to generation subscribers
	broadcast chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	GenerationID string
	Message      []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.GenerationID] == nil {
				h.clients[client.GenerationID] = make(map[*Client]bool)
			}
			h.clients[client.GenerationID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for generation %s", client.GenerationID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.GenerationID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.GenerationID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("Client unregistered from generation %s", client.GenerationID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.GenerationID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastStatus pushes a status update to all generation subscribers
func (h *Hub) BroadcastStatus(generationID string, status model.GenerationStatus, processed, expected int) {
	msg := model.WSStatusMessage{
		Type:         model.WSMessageTypeStatus,
		GenerationID: generationID,
		Status:       status,
		Processed:    processed,
		Expected:     expected,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal status message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		GenerationID: generationID,
		Message:      data,
	}
}

// BroadcastComplete pushes a completion message to all generation subscribers
func (h *Hub) BroadcastComplete(generationID, songID, audioURL string) {
	msg := model.WSCompleteMessage{
		Type:         model.WSMessageTypeComplete,
		GenerationID: generationID,
		SongID:       songID,
		AudioURL:     audioURL,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal complete message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		GenerationID: generationID,
		Message:      data,
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, generationID string) {
	client := &Client{
		GenerationID: generationID,
		Conn:         c,
		Send:         make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		// Handle client messages (ping/pong)
		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
