package database

import (
	"context"
	"errors"

	"community-gateway/internal/models"
)

var ErrNotFound = errors.New("not found")

// NotificationStore persists notification records. The gateway pushes only a
// signal that a record exists; this store is what clients reconcile against.
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListForUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, userID string) error
	Close() error
}
