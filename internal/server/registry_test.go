package server

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/messenger-chat/messenger/internal/model"
)

func TestRegistryLookupReturnsMostRecentRegistration(t *testing.T) {
	reg := newRegistry()
	first := newTestClient()
	second := newTestClient()
	reg.add(first)
	reg.add(second)

	reg.register(7, first)
	c, ok := reg.lookup(7)
	require.True(t, ok)
	assert.Same(t, first, c)

	// Last-authenticated-wins: the earlier connection is orphaned, not
	// removed from the all-connections set.
	reg.register(7, second)
	c, ok = reg.lookup(7)
	require.True(t, ok)
	assert.Same(t, second, c)
	assert.Equal(t, 2, reg.count())
}

func TestRegistryLookupAbsentUser(t *testing.T) {
	reg := newRegistry()
	_, ok := reg.lookup(42)
	assert.False(t, ok)
}

func TestRegistryUnregisterRemovesIdentityAndConnection(t *testing.T) {
	reg := newRegistry()
	c := newTestClient()
	reg.add(c)
	reg.register(7, c)

	require.True(t, reg.unregister(c))
	_, ok := reg.lookup(7)
	assert.False(t, ok)
	assert.Equal(t, 0, reg.count())

	// Second unregister is a no-op.
	assert.False(t, reg.unregister(c))
}

func TestRegistryUnregisterKeepsReplacementEntry(t *testing.T) {
	reg := newRegistry()
	old := newTestClient()
	replacement := newTestClient()
	reg.add(old)
	reg.add(replacement)
	reg.register(7, old)
	reg.register(7, replacement)

	// Dropping the orphaned connection must not remove the live entry.
	require.True(t, reg.unregister(old))
	c, ok := reg.lookup(7)
	require.True(t, ok)
	assert.Same(t, replacement, c)
}

func TestRegistryAllAuthenticated(t *testing.T) {
	reg := newRegistry()
	anonymous := newTestClient()
	reg.add(anonymous)

	authed := newTestClient()
	authed.setAuthenticated(&model.User{ID: 1, Username: "alice"})
	reg.add(authed)
	reg.register(1, authed)

	// An orphaned connection still has an identity attached and keeps
	// receiving presence updates.
	orphaned := newTestClient()
	orphaned.setAuthenticated(&model.User{ID: 1, Username: "alice"})
	reg.add(orphaned)

	all := reg.allAuthenticated()
	assert.Len(t, all, 2)
	assert.NotContains(t, all, anonymous)
}

func TestRegistryTrySend(t *testing.T) {
	reg := newRegistry()
	c := newTestClient()
	reg.add(c)

	require.True(t, reg.trySend(c, []byte("hello")))
	assert.Equal(t, []byte("hello"), <-c.send)

	// A connection that was never added, or already unregistered, is
	// unreachable.
	stranger := newTestClient()
	assert.False(t, reg.trySend(stranger, []byte("x")))

	reg.unregister(c)
	assert.False(t, reg.trySend(c, []byte("x")))
}

func TestRegistryTrySendFullBuffer(t *testing.T) {
	reg := newRegistry()
	c := newTestClient()
	reg.add(c)

	for i := 0; i < cap(c.send); i++ {
		require.True(t, reg.trySend(c, []byte("fill")))
	}
	assert.False(t, reg.trySend(c, []byte("overflow")))
}

func TestRegistryConcurrentAccess(t *testing.T) {
	reg := newRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			c := newTestClient()
			c.setAuthenticated(&model.User{ID: userID, Username: fmt.Sprintf("user-%d", userID)})
			reg.add(c)
			reg.register(userID, c)
			reg.lookup(userID)
			reg.allAuthenticated()
			reg.unregister(c)
		}(int64(i))
	}
	wg.Wait()

	assert.Equal(t, 0, reg.count())
	assert.Empty(t, reg.allAuthenticated())
}
