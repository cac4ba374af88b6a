package events

import (
	"encoding/json"
	"fmt"

	"community-gateway/internal/models"
)

// Kind tags every frame the gateway pushes. The catalog is closed: Encode and
// Decode both switch exhaustively, so a kind without a typed payload cannot be
// sent and an unknown kind cannot be delivered.
type Kind string

const (
	KindNewPost         Kind = "new_post"
	KindPostDeleted     Kind = "post_deleted"
	KindPostPinned      Kind = "post_pinned"
	KindNewComment      Kind = "new_comment"
	KindCommentDeleted  Kind = "comment_deleted"
	KindLikeToggled     Kind = "like_toggled"
	KindReactionToggled Kind = "reaction_toggled"
	KindMentionReceived Kind = "mention_received"
	KindPresenceUpdate  Kind = "presence_update"
	KindDMNew           Kind = "dm_new"
	KindNotificationNew Kind = "notification_new"
)

// Envelope is the wire frame: a kind tag plus the kind's payload.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type NewPost struct {
	Post models.Post `json:"post"`
}

type PostDeleted struct {
	PostID string `json:"post_id"`
}

type PostPinned struct {
	PostID string `json:"post_id"`
	Pinned bool   `json:"pinned"`
}

type NewComment struct {
	PostID  string         `json:"post_id"`
	Comment models.Comment `json:"comment"`
}

type CommentDeleted struct {
	PostID    string `json:"post_id"`
	CommentID string `json:"comment_id"`
	// DeletedCount is how many descendant comments were removed with it.
	DeletedCount int    `json:"deleted_count"`
	ParentID     string `json:"parent_id,omitempty"`
}

type LikeToggled struct {
	PostID    string `json:"post_id"`
	LikeCount int    `json:"like_count"`
	UserID    string `json:"user_id"`
	Liked     bool   `json:"liked"`
}

type ReactionToggled struct {
	CommentID string         `json:"comment_id"`
	Emoji     string         `json:"emoji"`
	Counts    map[string]int `json:"counts"`
	UserID    string         `json:"user_id"`
	Reacted   bool           `json:"reacted"`
}

type MentionReceived struct {
	PostID      string `json:"post_id"`
	RoomID      string `json:"room_id"`
	RoomName    string `json:"room_name"`
	MentionedBy string `json:"mentioned_by"`
	Link        string `json:"link"`
}

type PresenceUpdate struct {
	RoomID        string   `json:"room_id"`
	OnlineUserIDs []string `json:"online_user_ids"`
}

type DMNew struct {
	ConversationID string               `json:"conversation_id"`
	Message        models.DirectMessage `json:"message"`
}

// NotificationNew carries nothing: it only tells the client to re-fetch the
// notification list, which stays the source of truth.
type NotificationNew struct{}

// KindOf maps a typed payload to its wire kind.
func KindOf(payload interface{}) (Kind, error) {
	switch payload.(type) {
	case NewPost, *NewPost:
		return KindNewPost, nil
	case PostDeleted, *PostDeleted:
		return KindPostDeleted, nil
	case PostPinned, *PostPinned:
		return KindPostPinned, nil
	case NewComment, *NewComment:
		return KindNewComment, nil
	case CommentDeleted, *CommentDeleted:
		return KindCommentDeleted, nil
	case LikeToggled, *LikeToggled:
		return KindLikeToggled, nil
	case ReactionToggled, *ReactionToggled:
		return KindReactionToggled, nil
	case MentionReceived, *MentionReceived:
		return KindMentionReceived, nil
	case PresenceUpdate, *PresenceUpdate:
		return KindPresenceUpdate, nil
	case DMNew, *DMNew:
		return KindDMNew, nil
	case NotificationNew, *NotificationNew:
		return KindNotificationNew, nil
	default:
		return "", fmt.Errorf("events: unsupported payload type %T", payload)
	}
}

// Encode wraps a typed payload in its envelope and marshals the frame.
func Encode(payload interface{}) ([]byte, error) {
	kind, err := KindOf(payload)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events: marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Envelope{Kind: kind, Payload: raw})
}

// Decode parses a frame into its typed payload.
func Decode(data []byte) (interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("events: malformed frame: %w", err)
	}
	return DecodeEnvelope(env)
}

// DecodeEnvelope resolves an envelope to the typed payload for its kind.
func DecodeEnvelope(env Envelope) (interface{}, error) {
	var payload interface{}
	switch env.Kind {
	case KindNewPost:
		payload = &NewPost{}
	case KindPostDeleted:
		payload = &PostDeleted{}
	case KindPostPinned:
		payload = &PostPinned{}
	case KindNewComment:
		payload = &NewComment{}
	case KindCommentDeleted:
		payload = &CommentDeleted{}
	case KindLikeToggled:
		payload = &LikeToggled{}
	case KindReactionToggled:
		payload = &ReactionToggled{}
	case KindMentionReceived:
		payload = &MentionReceived{}
	case KindPresenceUpdate:
		payload = &PresenceUpdate{}
	case KindDMNew:
		payload = &DMNew{}
	case KindNotificationNew:
		return &NotificationNew{}, nil
	default:
		return nil, fmt.Errorf("events: unknown kind %q", env.Kind)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("events: missing payload for kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.Payload, payload); err != nil {
		return nil, fmt.Errorf("events: malformed %s payload: %w", env.Kind, err)
	}
	return payload, nil
}
