package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"community-gateway/internal/auth"
	"community-gateway/internal/database"
	"community-gateway/internal/notifications"
	"community-gateway/pkg/logger"
)

type NotificationHandlers struct {
	authService *auth.Service
	notifier    *notifications.Service
}

func NewNotificationHandlers(authService *auth.Service, notifier *notifications.Service) *NotificationHandlers {
	return &NotificationHandlers{
		authService: authService,
		notifier:    notifier,
	}
}

// ListNotifications serves the reconciliation fetch: the authoritative list
// and unread count for the authenticated user.
func (h *NotificationHandlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identityFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	list, err := h.notifier.List(r.Context(), identity.UserID)
	if err != nil {
		logger.Error("List notifications error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// MarkRead handles POST /notifications/{id}/read.
func (h *NotificationHandlers) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identityFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	notificationID, err := notificationIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid notification ID", http.StatusBadRequest)
		return
	}

	if err := h.notifier.MarkRead(r.Context(), identity.UserID, notificationID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			http.Error(w, "notification not found", http.StatusNotFound)
			return
		}
		logger.Error("Mark read error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /notifications/read-all.
func (h *NotificationHandlers) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identityFromToken(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.notifier.MarkAllRead(r.Context(), identity.UserID); err != nil {
		logger.Error("Mark all read error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandlers) identityFromToken(r *http.Request) (*auth.Identity, error) {
	tokenStr := bearerToken(r)
	if tokenStr == "" {
		return nil, auth.ErrInvalidToken
	}
	return h.authService.ValidateToken(tokenStr)
}

// notificationIDFromPath extracts {id} from /notifications/{id}/read.
func notificationIDFromPath(r *http.Request) (string, error) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) != 4 || parts[2] == "" {
		return "", errors.New("invalid path")
	}
	return parts[2], nil
}
