package events

// CloseAuthInvalidated is the close code sent when a connection's credential
// stops being valid mid-session. Clients must not auto-reconnect after it.
const CloseAuthInvalidated = 4401

type ControlType string

const (
	ControlJoinCommunity  ControlType = "join_community"
	ControlLeaveCommunity ControlType = "leave_community"
)

// Control is a client-to-server message. Unknown types are dropped, never
// treated as errors.
type Control struct {
	Type   ControlType `json:"type"`
	RoomID string      `json:"room_id"`
}
