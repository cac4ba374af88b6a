package gateway

import (
	"fmt"

	"community-gateway/internal/events"
	"community-gateway/pkg/logger"
)

// Router multicasts typed events to their targets. Delivery is best-effort:
// a send racing a disconnect may be dropped, and the content layer's
// persistence plus the client's reconnect re-fetch cover any loss.
type Router struct {
	reg *Registry
}

func NewRouter(reg *Registry) *Router {
	return &Router{reg: reg}
}

// PublishToRoom fans an event out to every member of a room, optionally
// excluding the originating connection. Events published to the same room are
// observed by each member in publish order.
func (r *Router) PublishToRoom(roomID string, payload interface{}, excludeConnID string) error {
	frame, err := events.Encode(payload)
	if err != nil {
		return fmt.Errorf("publish to room %s: %w", roomID, err)
	}
	delivered := r.reg.enqueueRoom(roomID, frame, excludeConnID)
	logger.Debug("Published %T to room %s (%d deliveries)", payload, roomID, delivered)
	return nil
}

// PublishToUser delivers an event to every connection the user currently
// holds. Zero connections is not an error; addressable events reach offline
// users through the notification store instead.
func (r *Router) PublishToUser(userID string, payload interface{}) (int, error) {
	frame, err := events.Encode(payload)
	if err != nil {
		return 0, fmt.Errorf("publish to user %s: %w", userID, err)
	}
	delivered := r.reg.enqueueUser(userID, frame)
	logger.Debug("Published %T to user %s (%d deliveries)", payload, userID, delivered)
	return delivered, nil
}
