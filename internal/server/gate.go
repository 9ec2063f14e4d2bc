package server

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/messenger-chat/messenger/internal/model"
)

// SessionValidator resolves an opaque session token to a verified user.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*model.User, error)
}

// authGate parses inbound frames and runs the per-connection state machine:
// auth frames may move the connection from connected to authenticated,
// message frames are forwarded to the router only once authenticated. Parse
// and auth failures answer with a frame and leave the connection open.
type authGate struct {
	validator SessionValidator
	registry  *registry
	router    *broadcastRouter
	presence  *presenceNotifier
	send      sendFunc
	log       zerolog.Logger
}

// handleFrame dispatches one inbound frame for a connection.
func (g *authGate) handleFrame(ctx context.Context, c *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil || frame.Type == "" {
		g.send(c, newErrorFrame("Invalid message format"))
		return
	}

	switch frame.Type {
	case frameTypeAuth:
		g.handleAuth(ctx, c, frame)
	case frameTypeMessage:
		if !c.Authenticated() {
			g.send(c, newErrorFrame("Not authenticated"))
			return
		}
		g.router.route(ctx, c, frame)
	default:
		g.send(c, newErrorFrame("Unknown message type"))
	}
}

// handleAuth validates the supplied token. On success the identity is
// attached, the connection registered, and the user's presence announced. On
// failure the connection stays open and may retry. A second auth frame on an
// already-authenticated connection behaves like the first.
func (g *authGate) handleAuth(ctx context.Context, c *Client, frame inboundFrame) {
	if frame.Token == "" {
		g.send(c, newAuthStatusFrame(false, "Token required"))
		return
	}

	user, err := g.validator.Validate(ctx, frame.Token)
	if err != nil {
		g.send(c, newAuthStatusFrame(false, "Invalid token"))
		return
	}

	c.setAuthenticated(user)
	g.registry.register(user.ID, c)
	g.send(c, newAuthStatusFrame(true, "Authentication successful"))
	g.presence.announce(user.ID, statusOnline)

	g.log.Info().
		Int64("user_id", user.ID).
		Str("username", user.Username).
		Str("session_id", c.SessionID()).
		Msg("user authenticated")
}
