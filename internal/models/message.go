package models

import (
	"fmt"
	"strings"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

const MaxMessageLength = 10000

func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

// DirectMessage is immutable once stored except for Read, which only goes false to true.
type DirectMessage struct {
	ID         string      `json:"id" db:"id" bson:"_id"`
	SenderID   string      `json:"sender_id" db:"sender_id" bson:"sender_id"`
	ReceiverID string      `json:"receiver_id" db:"receiver_id" bson:"receiver_id"`
	Content    string      `json:"content" db:"content" bson:"content"`
	Type       MessageType `json:"type" db:"type" bson:"type"`
	ImageID    *string     `json:"image_id,omitempty" db:"image_id" bson:"image_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp" db:"timestamp" bson:"timestamp"`
	Read       bool        `json:"read" db:"read" bson:"read"`
}

// MessageContent is the payload shared by direct and group sends.
type MessageContent struct {
	Content string      `json:"content" binding:"required"`
	Type    MessageType `json:"type,omitempty"`
	ImageID *string     `json:"image_id,omitempty"`
}

// Normalize defaults the type to text and checks the content/image pairing.
func (m *MessageContent) Normalize() error {
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	if !m.Type.Valid() {
		return fmt.Errorf("Message type must be text or image")
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("Message content cannot be empty")
	}
	if len(m.Content) > MaxMessageLength {
		return fmt.Errorf("Message content must be at most %d characters long", MaxMessageLength)
	}
	hasImage := m.ImageID != nil && *m.ImageID != ""
	switch {
	case m.Type == MessageTypeImage && !hasImage:
		return fmt.Errorf("Image messages require an image_id")
	case m.Type == MessageTypeText && hasImage:
		return fmt.Errorf("Only image messages can carry an image_id")
	}
	return nil
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	MessageContent
}

type GetMessagesRequest struct {
	With string `form:"with" binding:"required"`
}

// MarkReadRequest marks everything SenderID sent to the caller as read.
type MarkReadRequest struct {
	SenderID string `json:"sender_id" binding:"required"`
}

type ClearMessagesRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type UploadImageResponse struct {
	Success bool   `json:"success"`
	ImageID string `json:"image_id"`
}
