package notifications

import (
	"context"
	"fmt"

	"community-gateway/internal/database"
	"community-gateway/internal/events"
	"community-gateway/internal/models"
	"community-gateway/pkg/logger"
)

const defaultListLimit = 50

// Publisher is the slice of the event router the fan-out needs.
type Publisher interface {
	PublishToUser(userID string, payload interface{}) (int, error)
}

// Service persists notification records and signals the addressed user's
// live connections. The signal carries no payload: the store stays the source
// of truth and clients reconcile by pulling the list.
type Service struct {
	store  database.NotificationStore
	router Publisher
}

func NewService(store database.NotificationStore, router Publisher) *Service {
	return &Service{store: store, router: router}
}

// Notify persists the record, then pushes a notification_new signal to each
// of the user's connections. An offline user gets no push and no error; the
// persisted record is waiting for their next pull.
func (s *Service) Notify(ctx context.Context, n *models.Notification) error {
	if n.UserID == "" {
		return fmt.Errorf("notification requires a user id")
	}
	if err := s.store.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}

	delivered, err := s.router.PublishToUser(n.UserID, events.NotificationNew{})
	if err != nil {
		// The record is already durable; a failed push is recoverable by pull.
		logger.Error("Notification signal failed for user %s: %v", n.UserID, err)
		return nil
	}
	if delivered == 0 {
		logger.Debug("User %s offline, notification %s persisted without push", n.UserID, n.ID)
	}
	return nil
}

// List returns the user's notifications with their unread count, newest
// first. This is the reconciliation fetch clients issue after a push signal
// or a reconnect.
func (s *Service) List(ctx context.Context, userID string) (*models.NotificationList, error) {
	list, err := s.store.ListForUser(ctx, userID, defaultListLimit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	return &models.NotificationList{Notifications: list, UnreadCount: unread}, nil
}

func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	return s.store.MarkRead(ctx, userID, notificationID)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) error {
	return s.store.MarkAllRead(ctx, userID)
}
