package gateway

import (
	"sync"
)

// JoinResult reports the net effect of a Join.
type JoinResult struct {
	// Joined is false when the connection was already a member (no-op).
	Joined bool
	// PresenceChanged is true when this was the user's first connection in
	// the room (0 -> 1 transition).
	PresenceChanged bool
	// Online is the room's online user-id set after the join, captured under
	// the same lock as the mutation.
	Online []string
}

// LeaveResult reports the net effect of a Leave.
type LeaveResult struct {
	Left            bool
	PresenceChanged bool
	Online          []string
}

// Departure is one room a closing connection was removed from.
type Departure struct {
	RoomID          string
	PresenceChanged bool
	Online          []string
}

type room struct {
	members   map[string]*Conn // connection id -> conn
	userConns map[string]int   // user id -> live connection count in this room
}

func newRoom() *room {
	return &room{
		members:   make(map[string]*Conn),
		userConns: make(map[string]int),
	}
}

func (r *room) online() []string {
	users := make([]string, 0, len(r.userConns))
	for userID := range r.userConns {
		users = append(users, userID)
	}
	return users
}

// Registry tracks live connections and room membership. A single lock guards
// all maps so removing a connection from every room is one atomic step: no
// ghost members, no ghost presence.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
	users map[string]map[string]*Conn // user id -> connection id -> conn
	conns map[string]map[string]bool  // connection id -> joined room ids
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		users: make(map[string]map[string]*Conn),
		conns: make(map[string]map[string]bool),
	}
}

// announceFunc builds the frame announcing a room's new online set. The
// registry calls it while still holding its lock and enqueues the frame to
// the room's members in the same critical section, so two presence
// transitions can never deliver their snapshots out of order. The callback
// must only encode; it must not call back into the registry.
type announceFunc func(roomID string, online []string) []byte

// Register adds a live connection. A connection can receive user-targeted
// events as soon as it is registered, before it joins any room.
func (reg *Registry) Register(c *Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.conns[c.ID]; ok {
		return
	}
	reg.conns[c.ID] = make(map[string]bool)
	if _, ok := reg.users[c.UserID]; !ok {
		reg.users[c.UserID] = make(map[string]*Conn)
	}
	reg.users[c.UserID][c.ID] = c
}

// Join adds the connection to a room, creating the room lazily. Joining a
// room the connection already belongs to is a no-op. On a presence transition
// the announce frame is enqueued to the room before the lock is released.
func (reg *Registry) Join(c *Conn, roomID string, announce announceFunc) JoinResult {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	joined, ok := reg.conns[c.ID]
	if !ok {
		// Unregistered (already closed) connections cannot join.
		return JoinResult{}
	}
	if joined[roomID] {
		return JoinResult{}
	}

	rm, ok := reg.rooms[roomID]
	if !ok {
		rm = newRoom()
		reg.rooms[roomID] = rm
	}
	joined[roomID] = true
	rm.members[c.ID] = c
	rm.userConns[c.UserID]++

	res := JoinResult{
		Joined:          true,
		PresenceChanged: rm.userConns[c.UserID] == 1,
		Online:          rm.online(),
	}
	if res.PresenceChanged && announce != nil {
		if frame := announce(roomID, res.Online); frame != nil {
			reg.enqueueRoomLocked(rm, frame, "")
		}
	}
	return res
}

// Leave removes the connection from a room. Leaving a room the connection is
// not a member of is a no-op.
func (reg *Registry) Leave(c *Conn, roomID string, announce announceFunc) LeaveResult {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.leaveLocked(c, roomID, announce)
}

func (reg *Registry) leaveLocked(c *Conn, roomID string, announce announceFunc) LeaveResult {
	joined, ok := reg.conns[c.ID]
	if !ok || !joined[roomID] {
		return LeaveResult{}
	}
	rm := reg.rooms[roomID]

	delete(joined, roomID)
	delete(rm.members, c.ID)
	rm.userConns[c.UserID]--
	changed := rm.userConns[c.UserID] == 0
	if changed {
		delete(rm.userConns, c.UserID)
	}

	res := LeaveResult{Left: true, PresenceChanged: changed, Online: rm.online()}
	if changed && announce != nil && len(rm.members) > 0 {
		if frame := announce(roomID, res.Online); frame != nil {
			reg.enqueueRoomLocked(rm, frame, "")
		}
	}
	if len(rm.members) == 0 {
		delete(reg.rooms, roomID)
	}
	return res
}

// ConnectionClosed removes the connection from every room it was a member of
// and from the user index, all under one lock acquisition. It is safe to call
// more than once; only the first call has any effect.
func (reg *Registry) ConnectionClosed(c *Conn, announce announceFunc) []Departure {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	joined, ok := reg.conns[c.ID]
	if !ok {
		return nil
	}

	departures := make([]Departure, 0, len(joined))
	for roomID := range joined {
		res := reg.leaveLocked(c, roomID, announce)
		departures = append(departures, Departure{
			RoomID:          roomID,
			PresenceChanged: res.PresenceChanged,
			Online:          res.Online,
		})
	}

	delete(reg.conns, c.ID)
	if userConns, ok := reg.users[c.UserID]; ok {
		delete(userConns, c.ID)
		if len(userConns) == 0 {
			delete(reg.users, c.UserID)
		}
	}
	return departures
}

// MembersOf returns the room's member connections.
func (reg *Registry) MembersOf(roomID string) []*Conn {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm, ok := reg.rooms[roomID]
	if !ok {
		return nil
	}
	members := make([]*Conn, 0, len(rm.members))
	for _, c := range rm.members {
		members = append(members, c)
	}
	return members
}

// OnlineUsers returns the room's derived presence set.
func (reg *Registry) OnlineUsers(roomID string) []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm, ok := reg.rooms[roomID]
	if !ok {
		return nil
	}
	return rm.online()
}

// ConnsOfUser returns every live connection owned by a user, across all tabs
// and devices. May be empty for an offline user.
func (reg *Registry) ConnsOfUser(userID string) []*Conn {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	userConns := reg.users[userID]
	conns := make([]*Conn, 0, len(userConns))
	for _, c := range userConns {
		conns = append(conns, c)
	}
	return conns
}

// enqueueRoom pushes a frame to every member's send queue under the registry
// lock. Two publishes to the same room therefore enqueue in call order on
// every member: room-scoped FIFO.
func (reg *Registry) enqueueRoom(roomID string, frame []byte, excludeConnID string) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm, ok := reg.rooms[roomID]
	if !ok {
		return 0
	}
	return reg.enqueueRoomLocked(rm, frame, excludeConnID)
}

func (reg *Registry) enqueueRoomLocked(rm *room, frame []byte, excludeConnID string) int {
	delivered := 0
	for _, c := range rm.members {
		if c.ID == excludeConnID {
			continue
		}
		if c.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}

func (reg *Registry) enqueueUser(userID string, frame []byte) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	delivered := 0
	for _, c := range reg.users[userID] {
		if c.Enqueue(frame) {
			delivered++
		}
	}
	return delivered
}
