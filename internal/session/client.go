package session

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second
	writeDeadline = 10 * time.Second
)

// Client represents one connected participant session. It owns the WebSocket
// connection, the outbound send queue, and the per-connection rate limiter.
// The display name is not stored here; the hub's Registry holds it once the
// connection registers.
type Client struct {
	id          string
	conn        *websocket.Conn
	send        chan []byte
	hub         *Hub
	addr        string
	closed      bool
	canModerate bool
	limiter     *rateLimiter
	log         *slog.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, addr string) *Client {
	cfg := hub.cfg
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	id := uuid.NewString()
	return &Client{
		id:          id,
		conn:        conn,
		send:        make(chan []byte, cfg.SendQueueSize),
		hub:         hub,
		addr:        addr,
		canModerate: hub.moderationAllowed(),
		limiter:     newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		log:         hub.log.With("conn", id, "addr", addr),
	}
}

// ID returns the server-assigned connection identifier. It is stable for the
// lifetime of the connection and surfaced to clients through the roster.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn("setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn("setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// handleReadError classifies a read failure and reports whether the read
// loop should stop. Every non-nil error ends the loop; the classification
// only decides the log level.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn("inbound frame exceeded maximum size", "limit", c.hub.cfg.MaxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug("client disconnected", "error", err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug("connection closed", "error", err)
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn("unexpected websocket error", "error", err)
		return true
	}

	c.log.Warn("websocket read error", "error", err)
	return true
}

// processFrame decodes one inbound frame and hands it to the hub. Malformed
// JSON and empty event names are dropped without closing the connection.
func (c *Client) processFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug("dropping malformed frame", "error", err)
		return
	}
	if env.Event == "" {
		c.log.Debug("dropping frame without event name")
		return
	}

	select {
	case c.hub.inbound <- inboundEvent{sender: c, env: env}:
	case <-c.hub.ctx.Done():
	}
}

func (c *Client) readPump() {
	defer func() {
		// During shutdown the event loop is gone; the hub has already
		// detached everyone.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("closing connection in read pump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				return
			}
			continue
		}

		if !c.limiter.allow() {
			c.log.Debug("rate limit exceeded, discarding event")
			continue
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Debug("closing connection in write pump", "error", err)
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				c.log.Warn("setting write deadline", "error", err)
				return
			}
			if !ok {
				// Hub closed the send queue; tell the peer and stop.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				if !isExpectedCloseError(err) {
					c.log.Debug("writing frame", "error", err)
				}
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				c.log.Warn("setting write deadline for ping", "error", err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("writing ping", "error", err)
				return
			}
		}
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
