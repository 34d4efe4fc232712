package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prasenjit/firescope/internal/models"
)

// Reconnect defaults
const (
	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = time.Second
)

// ErrReconnectExhausted is returned by Client.Run once the reconnect budget
// is spent
var ErrReconnectExhausted = errors.New("transport: reconnect attempts exhausted")

// errMissedPong ends a session whose heartbeat went unanswered
var errMissedPong = errors.New("transport: heartbeat not acknowledged")

// ClientOptions configures a Client
type ClientOptions struct {
	URL                  string
	TabID                string
	HeartbeatInterval    time.Duration
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	Dialer               *websocket.Dialer
	Logger               *slog.Logger
}

// Client is the listener side of the hub protocol. It keeps a session open,
// probes it with ping messages and reconnects with linearly growing delay.
type Client struct {
	opts     ClientOptions
	onRecord func(*models.Record)

	mu       sync.Mutex
	attempts int
}

// NewClient creates a client delivering every received record to onRecord
func NewClient(opts ClientOptions, onRecord func(*models.Record)) *Client {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.TabID == "" {
		opts.TabID = WildcardTab
	}
	return &Client{opts: opts, onRecord: onRecord}
}

// Attempts returns the number of consecutive failed sessions
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Run keeps a session alive until ctx is cancelled or the reconnect budget
// is exhausted. A pong from the hub resets the budget.
func (c *Client) Run(ctx context.Context) error {
	for {
		err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.mu.Lock()
		if c.attempts >= c.opts.MaxReconnectAttempts {
			c.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrReconnectExhausted, err)
		}
		c.attempts++
		delay := c.opts.ReconnectDelay * time.Duration(c.attempts)
		attempt := c.attempts
		c.mu.Unlock()

		c.opts.Logger.Warn("listener session ended, reconnecting", "error", err, "attempt", attempt, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// session runs one connection until it fails
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}
	defer conn.Close()

	l := newConnListener(conn)
	if err := l.Send(Message{Type: TypeInit, TabID: c.opts.TabID}); err != nil {
		return fmt.Errorf("send init: %w", err)
	}

	var (
		pongMu   sync.Mutex
		awaiting bool
	)
	errc := make(chan error, 2)

	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				errc <- err
				return
			}
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case TypePong:
				pongMu.Lock()
				awaiting = false
				pongMu.Unlock()
				c.mu.Lock()
				c.attempts = 0
				c.mu.Unlock()
			case TypeRequest:
				if msg.Payload != nil && c.onRecord != nil {
					c.onRecord(msg.Payload)
				}
			}
		}
	}()

	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	// First probe goes out immediately so a healthy hub resets the budget
	probe := func() error {
		pongMu.Lock()
		missed := awaiting
		awaiting = true
		pongMu.Unlock()
		if missed {
			return errMissedPong
		}
		return l.Send(Message{Type: TypePing})
	}
	if err := probe(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return ctx.Err()
		case err := <-errc:
			return err
		case <-ticker.C:
			if err := probe(); err != nil {
				return err
			}
		}
	}
}
