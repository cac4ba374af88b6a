package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"community-gateway/internal/events"
	"community-gateway/internal/gateway"
	"community-gateway/internal/models"
	"community-gateway/internal/notifications"
	"community-gateway/pkg/logger"
)

// IngestHandlers is the content layer's entry into the gateway: domain events
// to route, notification records to fan out, credentials to revoke.
type IngestHandlers struct {
	token    string
	router   *gateway.Router
	notifier *notifications.Service
	gw       *gateway.Gateway
}

func NewIngestHandlers(token string, router *gateway.Router, notifier *notifications.Service, gw *gateway.Gateway) *IngestHandlers {
	return &IngestHandlers{
		token:    token,
		router:   router,
		notifier: notifier,
		gw:       gw,
	}
}

type IngestRequest struct {
	// Exactly one of RoomID and UserID must be set.
	RoomID string `json:"room_id,omitempty"`
	UserID string `json:"user_id,omitempty"`
	// ExcludeConnID skips the originating connection on room broadcasts.
	ExcludeConnID string          `json:"exclude_conn_id,omitempty"`
	Event         events.Envelope `json:"event"`
}

func (h *IngestHandlers) HandleIngest(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if (req.RoomID == "") == (req.UserID == "") {
		http.Error(w, "exactly one of room_id and user_id is required", http.StatusBadRequest)
		return
	}

	// Decoding up front keeps the catalog closed: an unknown kind or a
	// malformed payload is rejected here, never half-delivered.
	payload, err := events.DecodeEnvelope(req.Event)
	if err != nil {
		logger.Debug("Rejected ingest event: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.RoomID != "" {
		if err := h.router.PublishToRoom(req.RoomID, payload, req.ExcludeConnID); err != nil {
			logger.Error("Ingest publish to room %s failed: %v", req.RoomID, err)
			http.Error(w, "publish failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		return
	}

	delivered, err := h.router.PublishToUser(req.UserID, payload)
	if err != nil {
		logger.Error("Ingest publish to user %s failed: %v", req.UserID, err)
		http.Error(w, "publish failed", http.StatusInternalServerError)
		return
	}

	// Mentions and DMs must outlive the push: the record is what an offline
	// target finds on their next pull.
	if record := notificationFor(req.UserID, payload); record != nil {
		if err := h.notifier.Notify(r.Context(), record); err != nil {
			logger.Error("Ingest notification for user %s failed: %v", req.UserID, err)
			http.Error(w, "notification failed", http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]int{"delivered": delivered})
}

// notificationFor derives the persisted record for the addressable event
// kinds; other kinds carry no record and return nil.
func notificationFor(userID string, payload interface{}) *models.Notification {
	switch p := payload.(type) {
	case *events.MentionReceived:
		return &models.Notification{
			UserID: userID,
			Kind:   models.NotificationMention,
			Title:  fmt.Sprintf("%s mentioned you in %s", p.MentionedBy, p.RoomName),
			Link:   p.Link,
		}
	case *events.DMNew:
		return &models.Notification{
			UserID: userID,
			Kind:   models.NotificationDirectMessage,
			Title:  fmt.Sprintf("New message from %s", p.Message.SenderName),
			Link:   "/dm/" + p.ConversationID,
		}
	}
	return nil
}

func (h *IngestHandlers) HandleNotify(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var record models.Notification
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	if err := h.notifier.Notify(r.Context(), &record); err != nil {
		logger.Error("Notify error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(&record)
}

// HandleRevoke force-closes a user's connections after their credential is
// invalidated elsewhere (e.g. logout on another device).
func (h *IngestHandlers) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	closed := h.gw.DisconnectUser(req.UserID)
	logger.Info("Revoked %d connection(s) for user %s", closed, req.UserID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"closed": closed})
}

func (h *IngestHandlers) authorized(r *http.Request) bool {
	token := bearerToken(r)
	return token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(h.token)) == 1
}
