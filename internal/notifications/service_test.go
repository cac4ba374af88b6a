package notifications

import (
	"context"
	"testing"

	"community-gateway/internal/database"
	"community-gateway/internal/events"
	"community-gateway/internal/models"

	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	delivered int
	signals   []string
}

func (f *fakePublisher) PublishToUser(userID string, payload interface{}) (int, error) {
	if _, ok := payload.(events.NotificationNew); !ok {
		if _, ok := payload.(*events.NotificationNew); !ok {
			panic("notification fan-out must only push notification_new signals")
		}
	}
	f.signals = append(f.signals, userID)
	return f.delivered, nil
}

func TestNotifyPersistsThenSignals(t *testing.T) {
	store := database.NewMemoryStore()
	pub := &fakePublisher{delivered: 2}
	svc := NewService(store, pub)

	record := &models.Notification{
		UserID: "alice",
		Kind:   models.NotificationMention,
		Title:  "bob mentioned you",
		Link:   "/c/general/posts/post-1",
	}
	require.NoError(t, svc.Notify(context.Background(), record))
	require.NotEmpty(t, record.ID)
	require.Equal(t, []string{"alice"}, pub.signals)

	list, err := svc.List(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	require.Equal(t, 1, list.UnreadCount)
}

func TestNotifyOfflineUserPersistsWithoutPushOrError(t *testing.T) {
	store := database.NewMemoryStore()
	pub := &fakePublisher{delivered: 0}
	svc := NewService(store, pub)

	// The mention never reaches bob live; the record waits for his next pull.
	record := &models.Notification{UserID: "bob", Kind: models.NotificationMention, Title: "mentioned"}
	require.NoError(t, svc.Notify(context.Background(), record))

	list, err := svc.List(context.Background(), "bob")
	require.NoError(t, err)
	require.Len(t, list.Notifications, 1)
	require.False(t, list.Notifications[0].Read)
	require.Equal(t, 1, list.UnreadCount)
}

func TestNotifyRequiresUser(t *testing.T) {
	svc := NewService(database.NewMemoryStore(), &fakePublisher{})
	err := svc.Notify(context.Background(), &models.Notification{Title: "orphan"})
	require.Error(t, err)
}

func TestMarkReadAndMarkAllRead(t *testing.T) {
	store := database.NewMemoryStore()
	svc := NewService(store, &fakePublisher{delivered: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Notify(ctx, &models.Notification{
			UserID: "alice",
			Kind:   models.NotificationReply,
			Title:  "reply",
		}))
	}

	list, err := svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 3, list.UnreadCount)

	require.NoError(t, svc.MarkRead(ctx, "alice", list.Notifications[0].ID))
	list, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, 2, list.UnreadCount)

	require.NoError(t, svc.MarkAllRead(ctx, "alice"))
	list, err = svc.List(ctx, "alice")
	require.NoError(t, err)
	require.Zero(t, list.UnreadCount)
}

func TestMarkReadIsScopedToOwner(t *testing.T) {
	store := database.NewMemoryStore()
	svc := NewService(store, &fakePublisher{delivered: 1})
	ctx := context.Background()

	record := &models.Notification{UserID: "alice", Kind: models.NotificationLike, Title: "liked"}
	require.NoError(t, svc.Notify(ctx, record))

	err := svc.MarkRead(ctx, "mallory", record.ID)
	require.ErrorIs(t, err, database.ErrNotFound)
}
