package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/yourusername/lucky-wheel/internal/config"
)

const (
	writeWait               = 10 * time.Second
	pongWait                = 30 * time.Second
	pingPeriod              = (pongWait * 9) / 10
	maxMessageSize          = 4096
	defaultClientBufferSize = 128

	// slow clients are evicted after this many consecutive full-buffer drops
	maxBufferWarnings = 3

	registrationTimeout = 5 * time.Second
)

var (
	newline = []byte{'\n'}
	space   = []byte{' '}
)

// Client roles. The role only selects what the connecting page renders;
// every role receives the same events.
const (
	RoleDisplay   = "display"
	RoleSpectator = "spectator"
	RoleAdmin     = "admin"
)

// ClientConfig holds per-connection settings
type ClientConfig struct {
	BufferSize     int
	PingInterval   time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig returns the default client configuration
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BufferSize:     defaultClientBufferSize,
		PingInterval:   pingPeriod,
		PongWait:       pongWait,
		WriteWait:      writeWait,
		MaxMessageSize: maxMessageSize,
	}
}

// ClientConfigFrom builds a client configuration from application settings,
// falling back to defaults for unset values.
func ClientConfigFrom(cfg config.WebSocketConfig) ClientConfig {
	c := DefaultClientConfig()
	if cfg.Buffers.ClientSendBuffer > 0 {
		c.BufferSize = cfg.Buffers.ClientSendBuffer
	}
	if cfg.Limits.PongWait > 0 {
		c.PongWait = time.Duration(cfg.Limits.PongWait) * time.Second
		c.PingInterval = (c.PongWait * 9) / 10
	}
	if cfg.Ping.Interval > 0 && time.Duration(cfg.Ping.Interval)*time.Second < c.PongWait {
		c.PingInterval = time.Duration(cfg.Ping.Interval) * time.Second
	}
	if cfg.Limits.WriteWait > 0 {
		c.WriteWait = time.Duration(cfg.Limits.WriteWait) * time.Second
	}
	if cfg.Limits.MaxMessageSize > 0 {
		c.MaxMessageSize = int64(cfg.Limits.MaxMessageSize)
	}
	return c
}

// Client sits between one WebSocket connection and the hub.
// Connections are anonymous; ConnectionID is the only identity.
type Client struct {
	ConnectionID string
	Role         string

	hub    *Hub
	conn   *websocket.Conn
	config ClientConfig

	send       chan []byte
	sendClosed atomic.Bool

	// unix nanoseconds
	lastActivity atomic.Int64

	registrationComplete chan struct{}

	bufferWarningCount atomic.Int32
}

// NewClient creates a client for an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, role string, cfg ClientConfig) *Client {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultClientBufferSize
	}
	if role == "" {
		role = RoleSpectator
	}
	c := &Client{
		ConnectionID:         uuid.New().String(),
		Role:                 role,
		hub:                  hub,
		conn:                 conn,
		config:               cfg,
		send:                 make(chan []byte, cfg.BufferSize),
		registrationComplete: make(chan struct{}, 1),
	}
	c.touch()
	return c
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last message or pong
func (c *Client) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// readPump reads client messages and passes them to the handler
func (c *Client) readPump(messageHandler func(message []byte, client *Client) error) {
	defer func() {
		log.Debug().Str("conn_id", c.ConnectionID).Msg("WebSocket read pump stopped")
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		c.touch()
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("conn_id", c.ConnectionID).Msg("WebSocket read error")
			} else {
				log.Debug().Err(err).Str("conn_id", c.ConnectionID).Msg("WebSocket connection closed")
			}
			break
		}

		c.touch()
		c.hub.metrics.AddMessageReceived()

		if handlerErr := safeHandleMessage(message, c, messageHandler); handlerErr != nil {
			log.Warn().Err(handlerErr).Str("conn_id", c.ConnectionID).Msg("WebSocket handler error, closing connection")
			break
		}

		c.resetBufferWarningCount()
	}
}

// safeHandleMessage calls the handler and turns a panic into an error
func safeHandleMessage(message []byte, client *Client, messageHandler func(message []byte, client *Client) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("conn_id", client.ConnectionID).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("Panic recovered in WebSocket message handler")
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	message = bytes.TrimSpace(bytes.Replace(message, newline, space, -1))
	if messageHandler != nil {
		err = messageHandler(message, client)
	}
	return err
}

// writePump writes queued messages and keepalive pings to the connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		log.Debug().Str("conn_id", c.ConnectionID).Msg("WebSocket write pump stopped")
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			if _, err := w.Write(message); err != nil {
				log.Warn().Err(err).Str("conn_id", c.ConnectionID).Msg("WebSocket write error")
			}
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// StartPumps registers the client and starts its read and write loops.
// onRegistered runs after registration and before any client message is
// read; use it to queue the initial snapshot.
func (c *Client) StartPumps(messageHandler func(message []byte, client *Client) error, onRegistered func(client *Client)) {
	if c.hub == nil {
		log.Warn().Str("conn_id", c.ConnectionID).Msg("WebSocket client has no hub, closing")
		c.conn.Close()
		return
	}

	c.hub.Register(c)

	select {
	case <-c.registrationComplete:
	case <-time.After(registrationTimeout):
		log.Warn().Str("conn_id", c.ConnectionID).Msg("Timed out waiting for WebSocket registration")
		c.conn.Close()
		return
	}

	go c.writePump()
	if onRegistered != nil {
		onRegistered(c)
	}
	go c.readPump(messageHandler)
}

func (c *Client) incrementBufferWarningCount() int32 {
	return c.bufferWarningCount.Add(1)
}

func (c *Client) resetBufferWarningCount() {
	c.bufferWarningCount.Store(0)
}

// CloseSend closes the send channel once. Returns true for the call that
// closed it.
func (c *Client) CloseSend() bool {
	if c.sendClosed.CompareAndSwap(false, true) {
		close(c.send)
		return true
	}
	return false
}

// IsSendClosed reports whether the send channel is closed
func (c *Client) IsSendClosed() bool {
	return c.sendClosed.Load()
}

// messageTypeFromBytes extracts the event type from a JSON message
func messageTypeFromBytes(message []byte) string {
	var event struct {
		Type string `json:"type"`
	}
	if json.Unmarshal(message, &event) == nil && event.Type != "" {
		return event.Type
	}
	return "unknown"
}
