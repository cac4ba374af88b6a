package events

import (
	"testing"

	"community-gateway/internal/models"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeCommentDeleted(t *testing.T) {
	frame, err := Encode(CommentDeleted{
		PostID:       "post-1",
		CommentID:    "comment-9",
		DeletedCount: 3,
		ParentID:     "comment-2",
	})
	require.NoError(t, err)

	payload, err := Decode(frame)
	require.NoError(t, err)

	deleted, ok := payload.(*CommentDeleted)
	require.True(t, ok)
	require.Equal(t, "comment-9", deleted.CommentID)
	require.Equal(t, 3, deleted.DeletedCount, "subtree removal count must survive the wire")
	require.Equal(t, "comment-2", deleted.ParentID)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"post_exploded","payload":{}}`))
	require.Error(t, err)
}

func TestDecodeRejectsMissingPayload(t *testing.T) {
	_, err := Decode([]byte(`{"kind":"new_post"}`))
	require.Error(t, err)
}

func TestNotificationNewNeedsNoPayload(t *testing.T) {
	frame, err := Encode(NotificationNew{})
	require.NoError(t, err)

	payload, err := Decode(frame)
	require.NoError(t, err)
	require.IsType(t, &NotificationNew{}, payload)
}

func TestKindOfRejectsForeignTypes(t *testing.T) {
	_, err := KindOf(models.Post{})
	require.Error(t, err)

	_, err = Encode("just a string")
	require.Error(t, err)
}

func TestEncodeAcceptsPointerPayloads(t *testing.T) {
	frame, err := Encode(&PresenceUpdate{RoomID: "room-1", OnlineUserIDs: []string{"alice"}})
	require.NoError(t, err)

	payload, err := Decode(frame)
	require.NoError(t, err)
	update, ok := payload.(*PresenceUpdate)
	require.True(t, ok)
	require.Equal(t, []string{"alice"}, update.OnlineUserIDs)
}
