package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-insteon/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-insteon/internal/traffic"
)

// Stream channels.
const (
	ChannelTraffic = "traffic"
	ChannelAck     = "ack"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

const (
	wsSendBufferSize    = 256
	wsMaxMessageSize    = 4096
	defaultPingInterval = 30 * time.Second
)

// WSMessage is a message sent to or from a stream client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// Hub fans traffic frames and command acks out to WebSocket clients. It
// implements traffic.Sink.
type Hub struct {
	pingInterval time.Duration
	logger       *logging.Logger
	mu           sync.RWMutex
	clients      map[*wsClient]struct{}
}

type wsClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	mu            sync.RWMutex
	subscriptions map[string]struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Token auth guards the endpoint.
		return true
	},
}

// NewHub creates a hub. A non-positive pingInterval uses 30s.
func NewHub(pingInterval time.Duration, logger *logging.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = defaultPingInterval
	}
	return &Hub{
		pingInterval: pingInterval,
		logger:       logger,
		clients:      make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Record implements traffic.Sink.
func (h *Hub) Record(_ context.Context, f traffic.Frame) error {
	h.Broadcast(ChannelTraffic, viewOfFrame(f))
	return nil
}

// Broadcast sends payload to every client subscribed to channel. Slow
// clients miss messages rather than block the sender.
func (h *Hub) Broadcast(channel string, payload any) {
	h.mu.RLock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		Channel:   channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}
	for _, c := range clients {
		if c.isSubscribed(channel) {
			c.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("stream client connected", "clients", h.ClientCount())
}

// unregister removes a client. Only the caller that removes it closes the
// send channel.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, existed := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if existed {
		close(c.send)
	}
	h.logger.Debug("stream client disconnected", "clients", h.ClientCount())
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

// handleWebSocket upgrades the connection. The channels query parameter
// picks the initial subscriptions; both channels by default.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	channels := []string{ChannelTraffic, ChannelAck}
	if raw := r.URL.Query().Get("channels"); raw != "" {
		channels = strings.Split(raw, ",")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}, len(channels)),
	}
	for _, ch := range channels {
		c.subscriptions[strings.TrimSpace(ch)] = struct{}{}
	}
	s.hub.register(c)

	go c.writePump()
	go c.readPump()
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	wait := 2 * c.hub.pingInterval
	c.conn.SetReadLimit(wsMaxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(wait))
		c.handleMessage(message)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.pingInterval))
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.pingInterval))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		raw, err := json.Marshal(msg.Payload)
		if err != nil {
			c.sendError(msg.ID, "invalid payload")
			return
		}
		var sub WSSubscribePayload
		if err := json.Unmarshal(raw, &sub); err != nil {
			c.sendError(msg.ID, "invalid subscription payload")
			return
		}
		c.mu.Lock()
		for _, ch := range sub.Channels {
			if msg.Type == WSTypeSubscribe {
				c.subscriptions[ch] = struct{}{}
			} else {
				delete(c.subscriptions, ch)
			}
		}
		c.mu.Unlock()
		c.sendResponse(msg.ID, WSTypeResponse, map[string]any{msg.Type + "d": sub.Channels})
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// trySend queues data unless the buffer is full or the client is gone.
func (c *wsClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()
	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *wsClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *wsClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
