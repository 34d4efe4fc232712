package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prasenjit/firescope/internal/models"
)

// DefaultHeartbeatInterval is the protocol-level ping period
const DefaultHeartbeatInterval = 30 * time.Second

const writeWait = 10 * time.Second

// Listener is one attached display surface
type Listener interface {
	Send(msg Message) error
	Close() error
}

// Hub keeps one listener per tab context and fans records out to them.
// Delivery is at-most-once: a listener whose send fails is evicted.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]Listener

	upgrader          websocket.Upgrader
	heartbeatInterval time.Duration
	logger            *slog.Logger
}

// NewHub creates a hub. A zero heartbeat uses DefaultHeartbeatInterval.
func NewHub(heartbeat time.Duration, logger *slog.Logger) *Hub {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		listeners: make(map[string]Listener),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // listeners run on developer machines
			},
		},
		heartbeatInterval: heartbeat,
		logger:            logger,
	}
}

// Register attaches l for tab, replacing any previous listener for it
func (h *Hub) Register(tab string, l Listener) {
	h.mu.Lock()
	_, replaced := h.listeners[tab]
	h.listeners[tab] = l
	total := len(h.listeners)
	h.mu.Unlock()

	h.logger.Info("listener registered", "tab", tab, "replaced", replaced, "listeners", total)
}

// Deregister detaches l from tab. It is a no-op when tab has since been
// taken over by another listener.
func (h *Hub) Deregister(tab string, l Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.listeners[tab]; ok && cur == l {
		delete(h.listeners, tab)
	}
}

// Listeners returns the number of registered listeners
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

// Publish sends rec to the listener of its tab context and to any wildcard
// listener. Records for a tab with no listener are dropped.
func (h *Hub) Publish(rec *models.Record) {
	h.mu.RLock()
	targets := make(map[string]Listener, 2)
	if l, ok := h.listeners[rec.TabContext]; ok {
		targets[rec.TabContext] = l
	}
	if l, ok := h.listeners[WildcardTab]; ok {
		targets[WildcardTab] = l
	}
	h.mu.RUnlock()

	msg := Message{Type: TypeRequest, Payload: rec}
	for tab, l := range targets {
		if err := l.Send(msg); err != nil {
			h.logger.Warn("evicting stale listener", "tab", tab, "error", err)
			h.Deregister(tab, l)
			l.Close()
		}
	}
}

// Close detaches and closes every listener
func (h *Hub) Close() {
	h.mu.Lock()
	listeners := h.listeners
	h.listeners = make(map[string]Listener)
	h.mu.Unlock()

	for _, l := range listeners {
		l.Close()
	}
}

// ServeHTTP upgrades the connection and serves the listener protocol. The
// tab can be given up front with ?tab= or later with an init message.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	l := newConnListener(conn)
	defer l.Close()

	var tab string
	register := func(next string) {
		if tab != "" && tab != next {
			h.Deregister(tab, l)
		}
		tab = next
		h.Register(tab, l)
		l.Send(Message{Type: TypeEstablished, TabID: tab})
	}
	defer func() {
		if tab != "" {
			h.Deregister(tab, l)
		}
	}()

	if q := r.URL.Query().Get("tab"); q != "" {
		register(q)
	}

	done := make(chan struct{})
	defer close(done)
	go h.keepalive(l, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case TypeInit:
			if msg.TabID != "" {
				register(msg.TabID)
			}
		case TypePing:
			if err := l.Send(Message{Type: TypePong}); err != nil {
				return
			}
		}
	}
}

// keepalive writes protocol pings until done is closed
func (h *Hub) keepalive(l *connListener, done <-chan struct{}) {
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := l.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// connListener serializes writes to one websocket connection
type connListener struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newConnListener(conn *websocket.Conn) *connListener {
	return &connListener{conn: conn}
}

// Send writes msg as a JSON text frame
func (c *connListener) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *connListener) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close closes the underlying connection
func (c *connListener) Close() error {
	return c.conn.Close()
}
