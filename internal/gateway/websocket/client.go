package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"loom/pkg/logger"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1024 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The gateway binds to loopback; cross-origin pages on the same
		// machine are trusted surfaces.
		return true
	},
}

// Client is one WebSocket connection.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	sessions    map[string]bool
	id          string
	connectedAt time.Time
}

// NewClient creates a client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, 256),
		sessions:    make(map[string]bool),
		id:          uuid.NewString(),
		connectedAt: time.Now(),
	}
}

// readPump pumps messages from the connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
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
				logger.Error().Err(err).Str("client_id", c.id).Msg("WebSocket read error")
			}
			break
		}
		c.handleMessage(message)
	}
}

// handleMessage processes one incoming message.
func (c *Client) handleMessage(message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.sendError("INVALID_MESSAGE", "failed to parse message")
		return
	}

	switch msg.Type {
	case TypeSubscribe:
		if msg.Session != "" {
			c.hub.Subscribe(c, msg.Session)
		}

	case TypeUnsubscribe:
		if msg.Session != "" {
			c.hub.Unsubscribe(c, msg.Session)
		}

	case TypePing:
		c.sendTyped(WSMessage{Type: TypePong})

	case TypeApprovalResponse:
		if msg.RequestID == "" {
			c.sendError("INVALID_REQUEST", "approval response requires request_id")
			return
		}
		if err := c.hub.HandleApprovalResponse(msg.RequestID, msg.Approved, msg.Remember, msg.Message); err != nil {
			logger.Error().Err(err).Str("client_id", c.id).
				Str("request_id", msg.RequestID).Msg("Failed to handle approval response")
			c.sendError("APPROVAL_ERROR", err.Error())
		}

	case TypeChat:
		if msg.Message == "" {
			c.sendError("INVALID_REQUEST", "chat message is required")
			return
		}
		sessionID := msg.Session
		if sessionID == "" {
			sessionID = c.id
		}
		c.hub.Subscribe(c, sessionID)

		events, err := c.hub.HandleChat(sessionID, msg.Message)
		if err != nil {
			c.sendError("CHAT_ERROR", err.Error())
			return
		}
		if events == nil {
			c.sendError("CHAT_ERROR", "chat handler not configured")
			return
		}

		go func() {
			for data := range events {
				select {
				case c.send <- data:
				default:
					// Buffer full, skip this event.
				}
			}
		}()

	default:
		logger.Debug().Str("client_id", c.id).Str("type", msg.Type).Msg("Unknown message type")
	}
}

// writePump pumps messages from the hub to the connection.
func (c *Client) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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

func (c *Client) sendTyped(msg WSMessage) {
	data, _ := json.Marshal(msg)
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	c.sendTyped(WSMessage{Type: TypeError, Code: code, Message: message})
}

// ServeWs upgrades an HTTP request and registers the connection.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := NewClient(hub, conn)
	hub.Register(client)

	go client.writePump()
	go client.readPump()
}
