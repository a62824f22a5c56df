package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-smartthings/internal/infrastructure/logging"
)

// Client-to-bridge and bridge-to-client message types.
const (
	msgSubscribe   = "subscribe"
	msgUnsubscribe = "unsubscribe"
	msgPing        = "ping"
	msgPong        = "pong"
	msgEvent       = "event"
	msgResponse    = "response"
	msgError       = "error"
)

// ChannelStateChanged carries directory attribute changes. It is the
// only broadcast channel today; clients subscribe to it by name.
const ChannelStateChanged = "device.state_changed"

// sendQueueSize bounds each client's outbound queue. A client that
// falls this far behind starts losing events rather than stalling
// the broadcast path.
const sendQueueSize = 256

// wsMessage is the envelope for everything crossing the socket.
type wsMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// wsChannels is the payload of subscribe and unsubscribe messages.
type wsChannels struct {
	Channels []string `json:"channels"`
}

// Hub tracks connected WebSocket clients and fans events out to them.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	mu       sync.RWMutex
	channels map[string]struct{}
}

// Origin checks happen in the CORS middleware, so the upgrader
// accepts everything that reaches it.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// NewHub creates an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until the context ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			c.conn.Close()
		}
		delete(h.clients, c)
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", h.ClientCount())
}

// unregister removes the client. Only the caller that actually removes
// it from the map closes the send channel, so a racing shutdown and
// read-loop exit cannot double-close.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	_, present := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if present {
		close(c.send)
	}
	h.logger.Debug("websocket client disconnected", "clients", h.ClientCount())
}

// Broadcast delivers payload to every client subscribed to channel.
// The client list is snapshotted under the hub lock and the lock
// released before any per-client work, so hub and client locks are
// never held together.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := json.Marshal(wsMessage{
		Type:      msgEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "error", err)
		return
	}

	h.mu.RLock()
	snapshot := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		snapshot = append(snapshot, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range snapshot {
		if c.subscribed(channel) {
			c.enqueue(data)
			delivered++
		}
	}
	if delivered > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", delivered)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// relayChanges forwards directory attribute changes to subscribed
// WebSocket clients. The directory is the single source of truth:
// every applied update, whether it arrived by event, poll or
// optimistic command echo, flows through its subscription.
func (s *Server) relayChanges(ctx context.Context) {
	ch, unsubscribe := s.directory.Subscribe(changeBuffer)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}
			s.hub.Broadcast(ChannelStateChanged, change)
		}
	}
}

// handleWebSocket upgrades the connection and starts the client's
// pumps. Auth already happened in the middleware chain (bearer header
// or token query parameter).
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &wsClient{
		hub:      s.hub,
		conn:     conn,
		send:     make(chan []byte, sendQueueSize),
		channels: make(map[string]struct{}),
	}
	s.hub.register(c)

	go c.writeLoop(s.wsCfg)
	go c.readLoop(s.wsCfg)
}

// readLoop consumes inbound frames until the connection dies. Any
// client message resets the read deadline, so a client that talks but
// never answers protocol pings stays connected.
func (c *wsClient) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	deadline := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "error", err)
			}
			return
		}
		//nolint:errcheck // best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(deadline))
		c.handleMessage(data)
	}
}

// writeLoop drains the send queue onto the wire and keeps the
// connection alive with protocol pings.
func (c *wsClient) writeLoop(cfg config.WebSocketConfig) {
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				// Hub closed the queue.
				//nolint:errcheck // best-effort close frame
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			//nolint:errcheck // write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) {
	var msg wsMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.replyError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case msgSubscribe:
		c.updateChannels(msg, true)
	case msgUnsubscribe:
		c.updateChannels(msg, false)
	case msgPing:
		c.reply(msg.ID, msgPong, nil)
	default:
		c.replyError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// updateChannels applies a subscribe or unsubscribe request to the
// client's channel set and acknowledges it.
func (c *wsClient) updateChannels(msg wsMessage, add bool) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		c.replyError(msg.ID, "invalid payload")
		return
	}
	var req wsChannels
	if err := json.Unmarshal(raw, &req); err != nil {
		c.replyError(msg.ID, "invalid "+msg.Type+" payload")
		return
	}

	c.mu.Lock()
	for _, name := range req.Channels {
		if add {
			c.channels[name] = struct{}{}
		} else {
			delete(c.channels, name)
		}
	}
	c.mu.Unlock()

	if add {
		c.hub.logger.Info("websocket client subscribed", "channels", req.Channels)
		c.reply(msg.ID, msgResponse, map[string]any{"subscribed": req.Channels})
		return
	}
	c.reply(msg.ID, msgResponse, map[string]any{"unsubscribed": req.Channels})
}

func (c *wsClient) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.channels[channel]
	return ok
}

// enqueue hands data to the write loop. A full queue drops the message
// (slow client); a closed queue means the client disconnected during
// broadcast, which the recover absorbs.
func (c *wsClient) enqueue(data []byte) {
	defer func() {
		recover() //nolint:errcheck // send on closed channel during disconnect
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *wsClient) reply(id, msgType string, payload any) {
	data, err := json.Marshal(wsMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.enqueue(data)
}

func (c *wsClient) replyError(id, message string) {
	c.reply(id, msgError, map[string]string{"message": message})
}
