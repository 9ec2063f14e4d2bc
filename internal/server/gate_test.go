package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messenger-chat/messenger/internal/model"
)

func TestGateRejectsMalformedFrames(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "invalid json", raw: `{not json`, want: "Invalid message format"},
		{name: "missing type", raw: `{"content":"hi"}`, want: "Invalid message format"},
		{name: "null frame", raw: `null`, want: "Invalid message format"},
		{name: "unknown type", raw: `{"type":"subscribe"}`, want: "Unknown message type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness()
			c := h.connect()

			h.gate.handleFrame(context.Background(), c, []byte(tt.raw))

			frames := h.recorder.framesFor(c)
			require.Len(t, frames, 1)
			errFrame, ok := frames[0].(errorFrame)
			require.True(t, ok)
			assert.Equal(t, tt.want, errFrame.Message)
			// The connection stays open and unauthenticated.
			assert.False(t, c.Authenticated())
		})
	}
}

func TestGateMessageBeforeAuth(t *testing.T) {
	h := newTestHarness()
	c := h.connect()

	h.gate.handleFrame(context.Background(), c, []byte(`{"type":"message","content":"hi","channel_id":1}`))

	frames := h.recorder.framesFor(c)
	require.Len(t, frames, 1)
	assert.Equal(t, newErrorFrame("Not authenticated"), frames[0])
	assert.Zero(t, h.store.persistCount(), "no persistence call may happen before auth")
}

func TestGateAuthMissingToken(t *testing.T) {
	h := newTestHarness()
	c := h.connect()

	h.gate.handleFrame(context.Background(), c, []byte(`{"type":"auth"}`))

	frames := h.recorder.framesFor(c)
	require.Len(t, frames, 1)
	assert.Equal(t, newAuthStatusFrame(false, "Token required"), frames[0])
	assert.False(t, c.Authenticated())
}

func TestGateAuthInvalidTokenThenRetry(t *testing.T) {
	h := newTestHarness()
	alice := h.store.addUser(1, "alice")
	h.validator.users["good-token"] = alice
	c := h.connect()

	h.gate.handleFrame(context.Background(), c, []byte(`{"type":"auth","token":"expired"}`))

	frames := h.recorder.framesFor(c)
	require.Len(t, frames, 1)
	assert.Equal(t, newAuthStatusFrame(false, "Invalid token"), frames[0])
	assert.False(t, c.Authenticated())

	// The failure is not fatal: the same connection may retry and succeed.
	h.gate.handleFrame(context.Background(), c, []byte(`{"type":"auth","token":"good-token"}`))

	frames = h.recorder.framesFor(c)
	require.Len(t, frames, 3)
	assert.Equal(t, newAuthStatusFrame(true, "Authentication successful"), frames[1])
	assert.Equal(t, newUserStatusFrame(1, "online"), frames[2])
	assert.True(t, c.Authenticated())

	registered, ok := h.registry.lookup(1)
	require.True(t, ok)
	assert.Same(t, c, registered)
}

func TestGateAuthAnnouncesPresenceToAllAuthenticated(t *testing.T) {
	h := newTestHarness()
	alice := h.store.addUser(1, "alice")
	bob := h.store.addUser(2, "bob")
	h.validator.users["bob-token"] = bob

	aliceConn := h.connectAuthenticated(alice)
	anonymous := h.connect()
	bobConn := h.connect()

	h.gate.handleFrame(context.Background(), bobConn, []byte(`{"type":"auth","token":"bob-token"}`))

	// Alice and Bob both see Bob come online; the unauthenticated
	// connection sees nothing.
	assert.Contains(t, h.recorder.framesFor(aliceConn), newUserStatusFrame(2, "online"))
	assert.Contains(t, h.recorder.framesFor(bobConn), newUserStatusFrame(2, "online"))
	assert.Empty(t, h.recorder.framesFor(anonymous))
}

func TestGateReauthenticationReplacesRegistryEntry(t *testing.T) {
	h := newTestHarness()
	alice := h.store.addUser(1, "alice")
	h.validator.users["alice-token"] = alice

	first := h.connect()
	h.gate.handleFrame(context.Background(), first, []byte(`{"type":"auth","token":"alice-token"}`))
	second := h.connect()
	h.gate.handleFrame(context.Background(), second, []byte(`{"type":"auth","token":"alice-token"}`))

	// Last-authenticated-wins; the first socket is orphaned silently.
	registered, ok := h.registry.lookup(1)
	require.True(t, ok)
	assert.Same(t, second, registered)
	for _, frame := range h.recorder.framesFor(first) {
		_, isError := frame.(errorFrame)
		assert.False(t, isError, "orphaned socket must not be notified of eviction")
	}
}

func TestGateReauthenticationOnSameConnection(t *testing.T) {
	h := newTestHarness()
	alice := h.store.addUser(1, "alice")
	h.validator.users["alice-token"] = alice
	c := h.connect()

	h.gate.handleFrame(context.Background(), c, []byte(`{"type":"auth","token":"alice-token"}`))
	h.gate.handleFrame(context.Background(), c, []byte(`{"type":"auth","token":"alice-token"}`))

	frames := h.recorder.framesFor(c)
	// Two full auth responses, each followed by a presence announcement.
	require.Len(t, frames, 4)
	assert.Equal(t, newAuthStatusFrame(true, "Authentication successful"), frames[2])

	registered, ok := h.registry.lookup(1)
	require.True(t, ok)
	assert.Same(t, c, registered)
}

func TestPresenceAnnounceIncludesSelf(t *testing.T) {
	h := newTestHarness()
	alice := &model.User{ID: 1, Username: "alice"}
	c := h.connectAuthenticated(alice)

	h.presence.announce(alice.ID, statusOnline)

	frames := h.recorder.framesFor(c)
	require.Len(t, frames, 1)
	assert.Equal(t, newUserStatusFrame(1, "online"), frames[0])
}
