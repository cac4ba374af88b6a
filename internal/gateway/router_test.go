package gateway

import (
	"fmt"
	"testing"

	"community-gateway/internal/events"

	"github.com/stretchr/testify/require"
)

func TestRoomPublishIsFIFO(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	alice := newTestConn("alice")
	bob := newTestConn("bob")
	reg.Register(alice)
	reg.Register(bob)
	reg.Join(alice, "room-1", nil)
	reg.Join(bob, "room-1", nil)

	const n = 50
	for i := 0; i < n; i++ {
		err := router.PublishToRoom("room-1", events.PostDeleted{PostID: fmt.Sprintf("post-%d", i)}, "")
		require.NoError(t, err)
	}

	for _, c := range []*Conn{alice, bob} {
		for i := 0; i < n; i++ {
			payload, err := events.Decode(<-c.send)
			require.NoError(t, err)
			deleted, ok := payload.(*events.PostDeleted)
			require.True(t, ok)
			require.Equal(t, fmt.Sprintf("post-%d", i), deleted.PostID)
		}
	}
}

func TestRoomPublishExcludesOrigin(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	alice := newTestConn("alice")
	bob := newTestConn("bob")
	reg.Register(alice)
	reg.Register(bob)
	reg.Join(alice, "room-1", nil)
	reg.Join(bob, "room-1", nil)

	err := router.PublishToRoom("room-1", events.PostDeleted{PostID: "post-1"}, alice.ID)
	require.NoError(t, err)

	require.Len(t, bob.send, 1)
	require.Empty(t, alice.send)
}

func TestPublishToUserReachesAllTabs(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	tab1 := newTestConn("alice")
	tab2 := newTestConn("alice")
	bob := newTestConn("bob")
	reg.Register(tab1)
	reg.Register(tab2)
	reg.Register(bob)
	reg.Join(tab1, "room-1", nil)
	reg.Join(bob, "room-1", nil)

	delivered, err := router.PublishToUser("alice", events.NotificationNew{})
	require.NoError(t, err)
	require.Equal(t, 2, delivered)
	require.Len(t, tab1.send, 1)
	require.Len(t, tab2.send, 1)
	require.Empty(t, bob.send)
}

func TestPublishToOfflineUserIsNotAnError(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	delivered, err := router.PublishToUser("nobody", events.NotificationNew{})
	require.NoError(t, err)
	require.Zero(t, delivered)
}

func TestPublishToUnknownRoomIsNotAnError(t *testing.T) {
	reg := NewRegistry()
	router := NewRouter(reg)

	err := router.PublishToRoom("ghost-room", events.PostDeleted{PostID: "post-1"}, "")
	require.NoError(t, err)
}

func TestSlowConsumerDropsFrame(t *testing.T) {
	reg := NewRegistry()
	c := newConn(nil, "alice", "alice", Options{SendBufferSize: 1}.withDefaults(), nil)
	reg.Register(c)
	reg.Join(c, "room-1", nil)

	require.True(t, c.Enqueue([]byte("first")))
	// Buffer full: the frame is dropped rather than blocking the room.
	require.False(t, c.Enqueue([]byte("second")))
}
