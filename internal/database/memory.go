package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"community-gateway/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is the no-database fallback and the store used in tests.
type MemoryStore struct {
	mu     sync.Mutex
	byUser map[string][]*models.Notification
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUser: make(map[string][]*models.Notification)}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) Create(ctx context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *n
	if stored.ID == "" {
		stored.ID = uuid.NewString()
		n.ID = stored.ID
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
		n.CreatedAt = stored.CreatedAt
	}
	m.byUser[stored.UserID] = append(m.byUser[stored.UserID], &stored)
	return nil
}

func (m *MemoryStore) ListForUser(ctx context.Context, userID string, limit int) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.byUser[userID]
	list := make([]*models.Notification, 0, len(stored))
	for _, n := range stored {
		copied := *n
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemoryStore) UnreadCount(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, n := range m.byUser[userID] {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) MarkRead(ctx context.Context, userID, notificationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.byUser[userID] {
		if n.ID == notificationID {
			n.Read = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) MarkAllRead(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, n := range m.byUser[userID] {
		n.Read = true
	}
	return nil
}
