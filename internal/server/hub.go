package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/messenger-chat/messenger/internal/config"
	"github.com/messenger-chat/messenger/internal/metrics"
)

// Hub owns the registry and the per-connection goroutines. Connect and
// disconnect events flow through its channels; frame handling runs in each
// connection's reader goroutine against the mutex-guarded registry.
type Hub struct {
	registry *registry
	gate     *authGate
	router   *broadcastRouter
	presence *presenceNotifier

	register   chan *Client
	unregister chan *Client

	upgrader websocket.Upgrader
	origins  originPolicy

	maxMessageSize int64
	rateLimit      rate.Limit
	rateBurst      int

	log    zerolog.Logger
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub wires the registry, auth gate, broadcast router, and presence
// notifier around the given collaborators. The returned Hub is ready to run.
func NewHub(validator SessionValidator, store MessageStore, cfg config.WebSocketConfig, logger zerolog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		registry:       newRegistry(),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		origins:        newOriginPolicy(cfg.AllowedOrigins, logger),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimit:      rate.Limit(float64(cfg.RateLimit.Burst) / cfg.RateLimit.RefillInterval.Seconds()),
		rateBurst:      cfg.RateLimit.Burst,
		log:            logger.With().Str("component", "hub").Logger(),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	h.presence = &presenceNotifier{registry: h.registry, send: h.pushFrame}
	h.router = &broadcastRouter{
		store:    store,
		registry: h.registry,
		send:     h.pushFrame,
		log:      logger.With().Str("component", "router").Logger(),
	}
	h.gate = &authGate{
		validator: validator,
		registry:  h.registry,
		router:    h.router,
		presence:  h.presence,
		send:      h.pushFrame,
		log:       logger.With().Str("component", "gate").Logger(),
	}
	return h
}

// pushFrame marshals one outbound frame and enqueues it for a connection.
// An unreachable recipient is logged and skipped, never an error.
func (h *Hub) pushFrame(c *Client, frame any) bool {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error().Err(err).Msg("error encoding outbound frame")
		return false
	}
	if !h.registry.trySend(c, payload) {
		h.log.Debug().Str("session_id", c.SessionID()).Msg("recipient unreachable, frame dropped")
		return false
	}
	if _, ok := frame.(newMessageFrame); ok {
		metrics.DeliveriesTotal.Inc()
	}
	return true
}

// Run processes connect and disconnect events until the hub is shut down.
// Call it in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.register:
			if c == nil {
				h.log.Warn().Msg("nil client registration skipped")
				continue
			}
			h.registry.add(c)
			metrics.ConnectionsCurrent.Inc()
			h.log.Debug().
				Str("session_id", c.SessionID()).
				Str("addr", c.addr).
				Int("total", h.registry.count()).
				Msg("connection registered")

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				c.writePump()
			}()
			go func() {
				defer h.wg.Done()
				c.readPump()
			}()

		case c := <-h.unregister:
			if h.registry.unregister(c) {
				close(c.send)
				metrics.ConnectionsCurrent.Dec()
				h.log.Debug().
					Str("session_id", c.SessionID()).
					Int("total", h.registry.count()).
					Msg("connection unregistered")
			}
		}
	}
}

// shutdownClients closes every live socket so the pump goroutines unwind.
func (h *Hub) shutdownClients() {
	clients := h.registry.snapshot()
	for _, c := range clients {
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn().Err(err).Str("session_id", c.SessionID()).Msg("error closing connection during shutdown")
			}
		}
	}
	h.log.Info().Int("count", len(clients)).Msg("closed client connections")
}

// Shutdown stops the hub and waits for the pump goroutines to finish or the
// timeout to elapse.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("hub shutting down")
	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info().Msg("hub shutdown complete")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout reached")
		return context.DeadlineExceeded
	}
}
