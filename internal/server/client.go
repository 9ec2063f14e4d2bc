package server

import (
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/messenger-chat/messenger/internal/metrics"
	"github.com/messenger-chat/messenger/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendBufferSize = 256
)

// connState is the lifecycle of a connection: it starts connected
// (unauthenticated), may become authenticated, and ends closed.
type connState int

const (
	stateConnected connState = iota
	stateAuthenticated
	stateClosed
)

// Client represents one live WebSocket connection. The registry holds
// non-owning references to it; the transport goroutines own the socket.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
	addr    string
	limiter *rate.Limiter
	log     zerolog.Logger

	// closed is guarded by the registry mutex, like set membership.
	closed bool

	mu    sync.Mutex
	state connState
	user  *model.User
}

// NewClient creates a connection handle with a unique session id and a
// buffered send channel. The read limit and rate limiter come from the hub
// configuration.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	if conn != nil {
		conn.SetReadLimit(hub.maxMessageSize)
	}
	id := uuid.NewString()
	return &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		hub:     hub,
		addr:    addr,
		limiter: rate.NewLimiter(hub.rateLimit, hub.rateBurst),
		log:     hub.log.With().Str("session_id", id).Str("addr", addr).Logger(),
		state:   stateConnected,
	}
}

// SessionID returns the unique id assigned at connect time.
func (c *Client) SessionID() string {
	return c.id
}

// Authenticated reports whether an identity is attached to the connection.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateAuthenticated
}

// User returns the attached identity, or nil while unauthenticated.
func (c *Client) User() *model.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// setAuthenticated attaches the identity and moves the connection into the
// authenticated state. Re-authentication simply replaces the identity.
func (c *Client) setAuthenticated(user *model.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateAuthenticated
	c.user = user
}

func (c *Client) markClosed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = stateClosed
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

// setupReadConnection configures the read deadline and pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the error and reports whether the read loop should
// stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.log.Warn().Int64("limit", c.hub.maxMessageSize).Msg("inbound frame exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug().Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.log.Debug().Err(err).Msg("connection closed")
	default:
		c.log.Warn().Err(err).Msg("websocket read error")
	}
	return true
}

// readPump reads inbound frames and hands them to the auth gate. It owns
// registry cleanup for the connection: on any exit the connection is
// unregistered and the socket closed.
func (c *Client) readPump() {
	defer func() {
		c.markClosed()
		// During shutdown the hub loop has already drained; don't block on it.
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("error closing connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				break
			}
		}

		metrics.FramesReceived.Inc()

		if !c.limiter.Allow() {
			c.log.Debug().Msg("rate limit exceeded, discarding frame")
			continue
		}

		c.hub.gate.handleFrame(c.hub.ctx, c, raw)
	}
}

// writePump drains the send channel to the socket and keeps the connection
// alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("error closing connection in writePump")
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if !c.handleWrite(payload, ok) {
				return
			}
		case <-ticker.C:
			if !c.handlePing() {
				return
			}
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// handleWrite writes one payload plus anything already queued; a closed send
// channel turns into a close frame.
func (c *Client) handleWrite(payload []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			c.log.Debug().Err(err).Msg("error writing close message")
		}
		return false
	}

	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.Debug().Err(err).Msg("error creating frame writer")
		return false
	}
	if _, err := w.Write(payload); err != nil {
		c.log.Debug().Err(err).Msg("error writing frame")
		return false
	}

	// Flush queued frames into the same write, one JSON object per line.
	n := len(c.send)
	for i := 0; i < n; i++ {
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.log.Debug().Err(err).Msg("error writing frame separator")
			return false
		}
		if _, err := w.Write(<-c.send); err != nil {
			c.log.Debug().Err(err).Msg("error writing queued frame")
			return false
		}
	}

	if err := w.Close(); err != nil {
		c.log.Debug().Err(err).Msg("error closing frame writer")
		return false
	}
	return true
}

func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug().Err(err).Msg("error writing ping")
		return false
	}
	return true
}
