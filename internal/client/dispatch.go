package client

import (
	"encoding/json"

	"community-gateway/internal/events"
	"community-gateway/pkg/logger"
)

// Handlers is the application's callback set, one per event kind plus
// lifecycle hooks. Nil callbacks mean the event is ignored. Callbacks run on
// the delivery loop: enqueue state updates, never block.
type Handlers struct {
	OnNewPost         func(events.NewPost)
	OnPostDeleted     func(events.PostDeleted)
	OnPostPinned      func(events.PostPinned)
	OnNewComment      func(events.NewComment)
	OnCommentDeleted  func(events.CommentDeleted)
	OnLikeToggled     func(events.LikeToggled)
	OnReactionToggled func(events.ReactionToggled)
	OnMentionReceived func(events.MentionReceived)
	OnPresenceUpdate  func(events.PresenceUpdate)
	OnDMNew           func(events.DMNew)
	// OnNotificationNew carries nothing; the app re-fetches the list.
	OnNotificationNew func()

	OnConnect    func()
	OnDisconnect func(err error)
	// OnReconnect fires after rooms are re-joined on a fresh transport; the
	// app should re-fetch notifications and any room state here.
	OnReconnect func()
	// OnPaused fires when reconnecting has given up; the UI should degrade
	// to "live updates paused", typically falling back to polling.
	OnPaused func()
}

// dispatch decodes one frame and invokes the matching callback from the
// handler set current at delivery time.
func (h *Handle) dispatch(data []byte) {
	payload, err := events.Decode(data)
	if err != nil {
		logger.Debug("Dropping undecodable frame: %v", err)
		return
	}

	hs := h.snapshot()
	switch p := payload.(type) {
	case *events.NewPost:
		if hs.OnNewPost != nil {
			hs.OnNewPost(*p)
		}
	case *events.PostDeleted:
		if hs.OnPostDeleted != nil {
			hs.OnPostDeleted(*p)
		}
	case *events.PostPinned:
		if hs.OnPostPinned != nil {
			hs.OnPostPinned(*p)
		}
	case *events.NewComment:
		if hs.OnNewComment != nil {
			hs.OnNewComment(*p)
		}
	case *events.CommentDeleted:
		if hs.OnCommentDeleted != nil {
			hs.OnCommentDeleted(*p)
		}
	case *events.LikeToggled:
		if hs.OnLikeToggled != nil {
			hs.OnLikeToggled(*p)
		}
	case *events.ReactionToggled:
		if hs.OnReactionToggled != nil {
			hs.OnReactionToggled(*p)
		}
	case *events.MentionReceived:
		if hs.OnMentionReceived != nil {
			hs.OnMentionReceived(*p)
		}
	case *events.PresenceUpdate:
		if hs.OnPresenceUpdate != nil {
			hs.OnPresenceUpdate(*p)
		}
	case *events.DMNew:
		if hs.OnDMNew != nil {
			hs.OnDMNew(*p)
		}
	case *events.NotificationNew:
		if hs.OnNotificationNew != nil {
			hs.OnNotificationNew()
		}
	}
}

func encodeControl(typ events.ControlType, roomID string) ([]byte, error) {
	return json.Marshal(events.Control{Type: typ, RoomID: roomID})
}
