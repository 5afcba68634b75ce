package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketConfig holds configuration for room WebSocket connections
type WebSocketConfig struct {
	BaseURL          string // e.g. ws://localhost:8000
	Token            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
}

// DefaultWebSocketConfig returns default WebSocket configuration
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		BaseURL:          "ws://localhost:8000",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
}

// WebSocketDialer dials {BaseURL}/api/bids/ws/{roomID}.
type WebSocketDialer struct {
	config WebSocketConfig
	dialer *websocket.Dialer
}

func NewWebSocketDialer(config WebSocketConfig) *WebSocketDialer {
	defaults := DefaultWebSocketConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = defaults.MaxMessageSize
	}
	return &WebSocketDialer{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
	}
}

// RoomURL returns the WebSocket URL for roomID.
func (d *WebSocketDialer) RoomURL(roomID string) string {
	u := strings.TrimRight(d.config.BaseURL, "/") + "/api/bids/ws/" + url.PathEscape(roomID)
	if d.config.Token != "" {
		u += "?token=" + url.QueryEscape(d.config.Token)
	}
	return u
}

func (d *WebSocketDialer) Dial(ctx context.Context, roomID string) (Conn, error) {
	ws, _, err := d.dialer.DialContext(ctx, d.RoomURL(roomID), nil)
	if err != nil {
		return nil, fmt.Errorf("dial room %s: %w", roomID, err)
	}

	c := &wsConn{
		ws:     ws,
		config: d.config,
		done:   make(chan struct{}),
	}
	ws.SetReadLimit(d.config.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(d.config.ReadTimeout))
	})

	go c.pingLoop()
	return c, nil
}

type wsConn struct {
	ws        *websocket.Conn
	config    WebSocketConfig
	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, message, err := c.ws.ReadMessage()
	if err != nil {
		select {
		case <-c.done:
			return nil, ErrConnClosed
		default:
		}
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			log.Error().Err(err).Msg("unexpected WebSocket close error")
		}
		return nil, err
	}
	c.ws.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	return message, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout),
		)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// pingLoop keeps the connection alive; a failed ping closes the socket so the
// reader observes the loss.
func (c *wsConn) pingLoop() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				log.Warn().Err(err).Msg("failed to send ping")
				c.ws.Close()
				return
			}
		}
	}
}
