package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/metrics"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeSetProperty = "setProperty"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"

	// WSEventPropertyStatus carries committed property values.
	WSEventPropertyStatus = "propertyStatus"

	// WSChannelAll receives events for every thing.
	WSChannelAll = "*"

	// HubSinkName identifies the hub in logs and metrics.
	HubSinkName = "websocket"

	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256
)

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// WSPropertyPayload is the payload of propertyStatus events and
// setProperty requests: {"thing_id": "...", "data": {"level": 42.5}}.
type WSPropertyPayload struct {
	ThingID string             `json:"thing_id"`
	Data    map[string]float64 `json:"data"`
}

// ThingChannel returns the subscription channel for one thing.
func ThingChannel(thingID string) string {
	return "thing:" + thingID
}

// Hub manages WebSocket connections and broadcasts property changes.
type Hub struct {
	cfg      config.WebSocketConfig
	logger   *logging.Logger
	registry *thing.Registry
	metrics  *metrics.Metrics

	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient represents a connected WebSocket client.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a hub. registry resolves setProperty requests; m may be nil.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, registry *thing.Registry, m *metrics.Metrics) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  m,
		clients:  make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	h.observeClients(n)
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client from the hub.
// Only the goroutine that removes the client from the map closes the send
// channel, so shutdown and disconnect cannot double-close it.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
	}
	h.observeClients(n)
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// Name implements notify.Sink.
func (h *Hub) Name() string { return HubSinkName }

// Deliver implements notify.Sink. Slow clients drop messages rather than
// holding up delivery.
func (h *Hub) Deliver(_ context.Context, ev thing.Event) error {
	h.Broadcast(ev)
	return nil
}

// Broadcast sends a propertyStatus event to clients subscribed to the
// thing's channel or to "*".
func (h *Hub) Broadcast(ev thing.Event) {
	channel := ThingChannel(ev.ThingID)
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: WSEventPropertyStatus,
		Channel:   channel,
		Timestamp: ev.Time.UTC().Format(time.RFC3339Nano),
		Payload: WSPropertyPayload{
			ThingID: ev.ThingID,
			Data:    map[string]float64{ev.Property: ev.Value},
		},
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	// Snapshot under the hub lock; client locks are taken after release.
	h.mu.RLock()
	clients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if client.isSubscribed(channel) || client.isSubscribed(WSChannelAll) {
			client.trySend(data)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) observeClients(n int) {
	if h.metrics != nil {
		h.metrics.WebSocketClients.Set(float64(n))
	}
}

// closeAll disconnects all clients and closes their send channels
// so writePump goroutines can exit cleanly.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
	h.observeClients(0)
}

// handleWebSocket upgrades the HTTP connection to a WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// readPump reads messages from the WebSocket connection.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	extend := func() error {
		if deadline <= 0 {
			return nil
		}
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	}
	//nolint:errcheck // Best-effort deadline on connection setup
	extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		//nolint:errcheck // Best-effort deadline reset
		extend()
		c.handleMessage(message)
	}
}

// writePump writes queued messages and keepalive pings.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				//nolint:errcheck // Best-effort close message
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg struct {
		Type    string          `json:"type"`
		ID      string          `json:"id"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(msg.Payload, &sub); err != nil || len(sub.Channels) == 0 {
			c.sendError(msg.ID, "invalid "+msg.Type+" payload")
			return
		}
		c.updateSubscriptions(msg.ID, msg.Type == WSTypeSubscribe, sub.Channels)
	case WSTypeSetProperty:
		var req WSPropertyPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil || len(req.Data) == 0 {
			c.sendError(msg.ID, "invalid setProperty payload")
			return
		}
		c.handleSetProperty(msg.ID, req)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

func (c *WSClient) updateSubscriptions(id string, subscribe bool, channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		if subscribe {
			c.subscriptions[ch] = struct{}{}
		} else {
			delete(c.subscriptions, ch)
		}
	}
	c.mu.Unlock()

	key := "unsubscribed"
	if subscribe {
		key = "subscribed"
	}
	c.sendResponse(id, WSTypeResponse, map[string]any{key: channels})
}

// handleSetProperty applies each value in req.Data as an external write.
// Names are applied in sorted order and the first failure stops the batch.
func (c *WSClient) handleSetProperty(id string, req WSPropertyPayload) {
	h, err := c.hub.registry.Thing(req.ThingID)
	if err != nil {
		c.sendError(id, err.Error())
		return
	}

	names := make([]string, 0, len(req.Data))
	for name := range req.Data {
		names = append(names, name)
	}
	sort.Strings(names)

	stored := make(map[string]float64, len(names))
	for _, name := range names {
		v, err := h.WriteProperty(name, req.Data[name])
		if err != nil {
			if errors.Is(err, thing.ErrReadOnly) {
				c.hub.logger.Warn("rejected websocket write to read-only property",
					"thing_id", req.ThingID,
					"property", name,
				)
			}
			c.sendError(id, err.Error())
			return
		}
		stored[name] = v
	}

	c.sendResponse(id, WSTypeResponse, WSPropertyPayload{ThingID: req.ThingID, Data: stored})
}

// trySend queues data without blocking. A full buffer drops the message and
// a closed channel (client gone mid-broadcast) is absorbed.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
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

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
