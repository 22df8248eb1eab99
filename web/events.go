package web

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gekko3d/configurator"
	"github.com/gorilla/websocket"
)

const (
	pingPeriod   = 30 * time.Second
	writeTimeout = 40 * time.Second
	sendBuffer   = 32
)

const (
	EventAccessoryFound = "accessoryFound"
	EventConfig         = "config"
	EventState          = "state"
)

type accessoryMessage struct {
	Type        string `json:"type"`
	AccessoryID string `json:"accessoryId"`
}

type configMessage struct {
	Type       string             `json:"type"`
	Generation uint64             `json:"generation"`
	Field      configurator.Field `json:"field"`
}

type stateMessage struct {
	Type    string                  `json:"type"`
	State   string                  `json:"state"`
	Load    configurator.LoadStatus `json:"load"`
	SceneID string                  `json:"sceneId,omitempty"`
	Message string                  `json:"message,omitempty"`
	Hint    string                  `json:"hint,omitempty"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.logger.Debugf("ws write msg error: %v", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.logger.Debugf("ws write ping error: %v", err)
				return
			}
		}
	}
}

// readPump discards client messages; it exists to notice the close.
func (c *client) readPump() {
	defer c.hub.unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub fans events out to websocket clients. A client that cannot keep up
// loses messages rather than stalling the sender.
type Hub struct {
	logger   configurator.Logger
	upgrader websocket.Upgrader

	mu        sync.Mutex
	clients   map[*client]bool
	lastState []byte
	closed    bool
}

func NewHub(logger configurator.Logger) *Hub {
	if logger == nil {
		logger = configurator.NewNopLogger()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]bool),
	}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("ws upgrade failed: %v", err)
		return
	}

	c := &client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = true
	if h.lastState != nil {
		c.send <- h.lastState
	}
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Broadcast(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Errorf("ws marshal failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := msg.(stateMessage); ok {
		h.lastState = data
	}
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warnf("ws client too slow, dropping message")
		}
	}
}

func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) AccessoryFound(ev configurator.AccessoryEvent) {
	h.Broadcast(accessoryMessage{Type: EventAccessoryFound, AccessoryID: ev.AccessoryID})
}

func (h *Hub) ConfigChanged(ch configurator.Change) {
	h.Broadcast(configMessage{Type: EventConfig, Generation: ch.Generation, Field: ch.Field})
}

// BroadcastSurface wraps a renderer surface and announces every change of
// view state, load request or displayed scene to the hub.
type BroadcastSurface struct {
	Hub  *Hub
	Next configurator.Surface

	last stateMessage
}

func (s *BroadcastSurface) Present(frame configurator.Frame) {
	if s.Next != nil {
		s.Next.Present(frame)
	}

	msg := stateMessage{
		Type:    EventState,
		State:   frame.State,
		Load:    frame.Load,
		SceneID: frame.SceneID,
		Message: frame.Message,
		Hint:    frame.Hint,
	}
	if msg.State == s.last.State && msg.SceneID == s.last.SceneID &&
		msg.Load.Generation == s.last.Load.Generation && msg.Load.State == s.last.Load.State {
		return
	}
	s.last = msg
	s.Hub.Broadcast(msg)
}
