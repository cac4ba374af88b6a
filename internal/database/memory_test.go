package database

import (
	"context"
	"testing"
	"time"

	"community-gateway/internal/models"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreListsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Create(ctx, &models.Notification{
			UserID:    "alice",
			Kind:      models.NotificationReply,
			Title:     "reply",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	list, err := store.ListForUser(ctx, "alice", 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.True(t, list[0].CreatedAt.After(list[1].CreatedAt))
}

func TestMemoryStoreMarkReadUnknownID(t *testing.T) {
	store := NewMemoryStore()
	err := store.MarkRead(context.Background(), "alice", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCopiesRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := &models.Notification{UserID: "alice", Kind: models.NotificationLike, Title: "liked"}
	require.NoError(t, store.Create(ctx, record))

	list, err := store.ListForUser(ctx, "alice", 10)
	require.NoError(t, err)
	list[0].Read = true

	// Mutating a listed copy must not touch the stored record.
	count, err := store.UnreadCount(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
