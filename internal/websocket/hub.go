package websocket

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for dev simplicity
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Event is the wire envelope for workflow notifications.
type Event struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Client represents a single connected WebSocket client
type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	CompanyID uuid.UUID
}

type companyMessage struct {
	companyID uuid.UUID
	data      []byte
}

// Hub maintains the set of active clients and fans workflow events out
// to the clients of the company they belong to.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan companyMessage
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *zap.Logger
}

// NewHub initializes a new WS Hub instance
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.L()
	}
	return &Hub{
		broadcast:  make(chan companyMessage, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.Named("websocket.hub"),
	}
}

// Run starts the core dispatch loop for WebSocket events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("websocket client connected",
				zap.String("company_id", client.CompanyID.String()))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("websocket client disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.CompanyID != message.companyID {
					continue
				}
				select {
				case client.Send <- message.data:
				default:
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToCompany sends an event to every connected client of the
// company. Marshal failures are logged and dropped; notifications are
// best effort and never block the workflow.
func (h *Hub) BroadcastToCompany(companyID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(Event{Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- companyMessage{companyID: companyID, data: data}:
	default:
		h.logger.Warn("event dropped, broadcast buffer full", zap.String("event", event))
	}
}

// HubNotifier adapts the hub to the service layer's Notifier.
type HubNotifier struct {
	Hub *Hub
}

func (n HubNotifier) Publish(companyID uuid.UUID, event string, payload interface{}) {
	if n.Hub == nil {
		return
	}
	n.Hub.BroadcastToCompany(companyID, event, payload)
}

// writePump handles writing messages from the Hub to the WebSocket connection
func (c *Client) writePump() {
	defer func() {
		_ = c.Conn.Close()
	}()
	for message := range c.Send {
		w, err := c.Conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		_, _ = w.Write(message)

		// Fast track writing queued messages
		n := len(c.Send)
		for i := 0; i < n; i++ {
			_, _ = w.Write([]byte{'\n'})
			_, _ = w.Write(<-c.Send)
		}

		if err := w.Close(); err != nil {
			return
		}
	}
	_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.Hub.unregister <- c
		_ = c.Conn.Close()
	}()
	for {
		// Just reading to keep connection alive
		_, _, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}
	}
}

// ServeWs handles websocket requests from the peer
func ServeWs(hub *Hub, c *gin.Context, secret []byte) {
	// Authenticate via token query param; browsers cannot set headers on
	// websocket upgrades.
	tokenString := c.Query("token")
	if tokenString == "" {
		hub.logger.Warn("websocket connection rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return secret, nil
	})
	if err != nil || !token.Valid {
		hub.logger.Warn("websocket connection rejected: invalid token", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		hub.logger.Warn("websocket connection rejected: invalid claims")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	companyClaim, _ := claims["company_id"].(string)
	companyID, err := uuid.Parse(companyClaim)
	if err != nil {
		hub.logger.Warn("websocket connection rejected: missing company claim")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, 256), CompanyID: companyID}
	client.Hub.register <- client

	go client.writePump()
	go client.readPump()
}
