package gateway

import (
	"community-gateway/internal/events"
	"community-gateway/pkg/logger"
)

// Presence derives the online-user set of each room from the registry and
// broadcasts a presence_update only when a user's in-room connection count
// crosses zero. A second tab joining, or the first of two tabs leaving,
// changes nothing and emits nothing. The update frame is encoded and enqueued
// by the registry inside the same critical section as the membership change,
// so members always observe snapshots in transition order.
type Presence struct {
	reg *Registry
}

func NewPresence(reg *Registry) *Presence {
	return &Presence{reg: reg}
}

// HandleJoin processes a join control message.
func (p *Presence) HandleJoin(c *Conn, roomID string) {
	res := p.reg.Join(c, roomID, p.announce)
	if !res.Joined {
		return
	}
	logger.Info("User %s joined room %s (conn %s)", c.UserID, roomID, c.ID)
}

// HandleLeave processes a leave control message.
func (p *Presence) HandleLeave(c *Conn, roomID string) {
	res := p.reg.Leave(c, roomID, p.announce)
	if !res.Left {
		return
	}
	logger.Info("User %s left room %s (conn %s)", c.UserID, roomID, c.ID)
}

// HandleDisconnect removes a closing connection from every room at once; a
// presence_update goes to each room where the user went offline.
func (p *Presence) HandleDisconnect(c *Conn) {
	p.reg.ConnectionClosed(c, p.announce)
}

// OnlineUsers exposes the current presence set for a room.
func (p *Presence) OnlineUsers(roomID string) []string {
	return p.reg.OnlineUsers(roomID)
}

// announce runs under the registry lock; it only encodes the frame.
func (p *Presence) announce(roomID string, online []string) []byte {
	frame, err := events.Encode(events.PresenceUpdate{RoomID: roomID, OnlineUserIDs: online})
	if err != nil {
		logger.Error("Presence encode failed for room %s: %v", roomID, err)
		return nil
	}
	return frame
}
