package models

import "time"

type NotificationKind string

const (
	NotificationMention       NotificationKind = "mention"
	NotificationReply         NotificationKind = "reply"
	NotificationLike          NotificationKind = "like"
	NotificationRoleChange    NotificationKind = "role_change"
	NotificationEventReminder NotificationKind = "event_reminder"
	NotificationDirectMessage NotificationKind = "dm"
	NotificationCoaching      NotificationKind = "coaching"
)

// Notification is the persisted record behind the bell. The push path only
// signals that one exists; clients fetch the record through the pull API.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	Title     string           `json:"title"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

type NotificationList struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int             `json:"unread_count"`
}
