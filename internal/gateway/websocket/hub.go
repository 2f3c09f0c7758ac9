package websocket

import (
	"encoding/json"
	"sync"

	"loom/pkg/logger"
)

// ApprovalResponseHandler handles approval responses from clients.
type ApprovalResponseHandler func(requestID string, approved, remember bool, message string) error

// ChatHandler handles chat messages from clients. The returned channel
// streams serialized events until the run ends.
type ChatHandler func(sessionID, message string) (<-chan []byte, error)

// Hub maintains the set of active clients and broadcasts messages.
type Hub struct {
	clients  map[*Client]bool
	sessions map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex

	approvalHandler ApprovalResponseHandler
	chatHandler     ChatHandler
}

// NewHub creates a hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		sessions:   make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// SetApprovalHandler sets the callback for approval responses.
func (h *Hub) SetApprovalHandler(handler ApprovalResponseHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.approvalHandler = handler
}

// SetChatHandler sets the callback for chat messages.
func (h *Hub) SetChatHandler(handler ChatHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chatHandler = handler
}

// HandleChat starts a run for a chat message received from a client.
func (h *Hub) HandleChat(sessionID, message string) (<-chan []byte, error) {
	h.mu.RLock()
	handler := h.chatHandler
	h.mu.RUnlock()

	if handler == nil {
		return nil, nil
	}
	return handler(sessionID, message)
}

// HandleApprovalResponse resolves a pending approval from a client.
func (h *Hub) HandleApprovalResponse(requestID string, approved, remember bool, message string) error {
	h.mu.RLock()
	handler := h.approvalHandler
	h.mu.RUnlock()

	if handler == nil {
		logger.Warn().Str("request_id", requestID).
			Msg("Approval response received but no handler configured")
		return nil
	}
	return handler(requestID, approved, remember, message)
}

// Run processes register, unregister and broadcast events. Call in a
// goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)

				for session := range client.sessions {
					if clients, ok := h.sessions[session]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.sessions, session)
						}
					}
				}
			}
			h.mu.Unlock()
			logger.Info().Str("client_id", client.id).Msg("WebSocket client disconnected")

		case msg := <-h.broadcast:
			h.mu.RLock()
			if msg.Session == "" {
				for client := range h.clients {
					select {
					case client.send <- msg.Data:
					default:
						// Client buffer full, skip.
					}
				}
			} else if clients, ok := h.sessions[msg.Session]; ok {
				for client := range clients {
					select {
					case client.send <- msg.Data:
					default:
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a session's subscriber list.
func (h *Hub) Subscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client.sessions[session] = true
	if h.sessions[session] == nil {
		h.sessions[session] = make(map[*Client]bool)
	}
	h.sessions[session][client] = true
}

// Unsubscribe removes a client from a session's subscriber list.
func (h *Hub) Unsubscribe(client *Client, session string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(client.sessions, session)
	if clients, ok := h.sessions[session]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.sessions, session)
		}
	}
}

// Broadcast sends a message to all clients subscribed to a session.
func (h *Hub) Broadcast(session string, data []byte) {
	h.broadcast <- &BroadcastMessage{Session: session, Data: data}
}

// BroadcastAll sends a message to every connected client.
func (h *Hub) BroadcastAll(data []byte) {
	h.broadcast <- &BroadcastMessage{Session: "", Data: data}
}

// BroadcastTyped marshals and broadcasts a typed message to every client.
func (h *Hub) BroadcastTyped(messageType string, payload any) error {
	msg := struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{
		Type: messageType,
		Data: payload,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error().Err(err).Str("type", messageType).Msg("Failed to marshal broadcast message")
		return err
	}

	h.broadcast <- &BroadcastMessage{Session: "", Data: data}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
