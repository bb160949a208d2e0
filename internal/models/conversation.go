package models

import "time"

// DirectConversation is derived from the message store on every read; it is never persisted.
type DirectConversation struct {
	UserID      string            `json:"user_id"`
	DisplayName string            `json:"display_name"`
	Username    string            `json:"username"`
	PhotoURL    *string           `json:"photo_url,omitempty"`
	LastMessage DirectLastMessage `json:"last_message"`
	UnreadCount int64             `json:"unread_count"`
}

type DirectLastMessage struct {
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	IsFromSelf bool        `json:"is_from_self"`
	Type       MessageType `json:"type"`
}

type GroupConversation struct {
	GroupID     string           `json:"group_id"`
	GroupName   string           `json:"group_name"`
	GroupAvatar *string          `json:"group_avatar,omitempty"`
	MemberCount int              `json:"member_count"`
	LastMessage GroupLastMessage `json:"last_message"`
	UnreadCount int64            `json:"unread_count"`
	IsAdmin     bool             `json:"is_admin"`
}

type GroupLastMessage struct {
	Content    string      `json:"content"`
	Timestamp  time.Time   `json:"timestamp"`
	SenderName string      `json:"sender_name"`
	Type       MessageType `json:"type"`
}
