package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindReplacesPreviousConnection(t *testing.T) {
	m := NewConnManager(NewPendingReplies(), 10*time.Second)
	old := testConn("c-old")
	fresh := testConn("c-new")
	m.byConn[old.ConnID] = old
	m.byConn[fresh.ConnID] = fresh

	m.Bind(old, "alice", false)
	m.Bind(fresh, "alice", false)

	got, ok := m.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c-new", got.ConnID)
	select {
	case <-old.closed:
	default:
		t.Fatal("replaced connection must be closed")
	}
}

func TestRemoveKeepsRebindIntact(t *testing.T) {
	m := NewConnManager(NewPendingReplies(), 10*time.Second)
	old := testConn("c-old")
	fresh := testConn("c-new")
	m.Bind(old, "alice", false)
	m.Bind(fresh, "alice", false)

	m.Remove(old)
	got, ok := m.Lookup("alice")
	require.True(t, ok, "removing the stale connection must not unroute the user")
	assert.Equal(t, "c-new", got.ConnID)

	m.Remove(fresh)
	_, ok = m.Lookup("alice")
	assert.False(t, ok)
}

func TestHeartbeatDeadline(t *testing.T) {
	c := testConn("c-1")
	c.Touch(20 * time.Millisecond)
	assert.False(t, c.expired(time.Now()))
	assert.True(t, c.expired(time.Now().Add(30*time.Millisecond)))

	c.Touch(time.Minute)
	assert.False(t, c.expired(time.Now().Add(30*time.Millisecond)), "heartbeat pushes the deadline out")
}

func TestSendAfterCloseFails(t *testing.T) {
	c := testConn("c-1")
	c.Close()
	assert.Error(t, c.Send([]byte("{}")))
}

func TestReplyWithoutAckIDIsNoop(t *testing.T) {
	c := testConn("c-1")
	require.NoError(t, c.Reply("", map[string]any{"status": StatusSuccess}))
	assert.Empty(t, drainEvents(c))
}
