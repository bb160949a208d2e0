package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

const (
	MinGroupNameLength = 3
	MinGroupSize       = 2
	MaxGroupSize       = 10
)

// Group keeps Admins a non-empty subset of Members while it has members.
type Group struct {
	ID          string    `json:"id" db:"id" bson:"_id"`
	Name        string    `json:"name" db:"name" bson:"name"`
	Description string    `json:"description,omitempty" db:"description" bson:"description,omitempty"`
	AvatarURL   *string   `json:"avatar_url,omitempty" db:"avatar_url" bson:"avatar_url,omitempty"`
	CreatedBy   string    `json:"created_by" db:"created_by" bson:"created_by"`
	Members     []string  `json:"members" db:"members" bson:"members"`
	Admins      []string  `json:"admins" db:"admins" bson:"admins"`
	MaxMembers  int       `json:"max_members" db:"max_members" bson:"max_members"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at" bson:"updated_at"`
}

func (g *Group) IsMember(uid string) bool {
	return slices.Contains(g.Members, uid)
}

func (g *Group) IsAdmin(uid string) bool {
	return slices.Contains(g.Admins, uid)
}

func (g *Group) AtCapacity() bool {
	return len(g.Members) >= g.MaxMembers
}

// IsLastAdmin reports whether removing uid would leave the group without an admin.
func (g *Group) IsLastAdmin(uid string) bool {
	return g.IsAdmin(uid) && len(g.Admins) == 1
}

// GroupMessage only ever gains readers; ReadBy is a set.
type GroupMessage struct {
	ID        string      `json:"id" db:"id" bson:"_id"`
	GroupID   string      `json:"group_id" db:"group_id" bson:"group_id"`
	SenderID  string      `json:"sender_id" db:"sender_id" bson:"sender_id"`
	Content   string      `json:"content" db:"content" bson:"content"`
	Type      MessageType `json:"type" db:"type" bson:"type"`
	ImageID   *string     `json:"image_id,omitempty" db:"image_id" bson:"image_id,omitempty"`
	Timestamp time.Time   `json:"timestamp" db:"timestamp" bson:"timestamp"`
	ReadBy    []string    `json:"read_by" db:"read_by" bson:"read_by"`
}

type CreateGroupRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	MemberIDs   []string `json:"member_ids"`
	MaxMembers  *int     `json:"max_members,omitempty"`
}

// Validate checks name length and the size bounds of a new group
func (r *CreateGroupRequest) Validate() error {
	if err := ValidateGroupName(r.Name); err != nil {
		return err
	}
	if r.MaxMembers != nil && (*r.MaxMembers < MinGroupSize || *r.MaxMembers > MaxGroupSize) {
		return fmt.Errorf("Group size must be between %d and %d members", MinGroupSize, MaxGroupSize)
	}
	return nil
}

// GroupUpdate holds the metadata fields an admin may overwrite. Nil means unchanged.
type GroupUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
}

func (u *GroupUpdate) Validate() error {
	if u.Name == nil && u.Description == nil && u.AvatarURL == nil {
		return fmt.Errorf("No valid updates provided")
	}
	if u.Name != nil {
		return ValidateGroupName(*u.Name)
	}
	return nil
}

type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type SendGroupMessageRequest struct {
	MessageContent
}

type GetGroupMessagesRequest struct {
	Limit  int    `form:"limit"`
	Before string `form:"before"`
}

// MarkGroupReadRequest marks one message read, or every message when MessageID is empty.
type MarkGroupReadRequest struct {
	MessageID string `json:"message_id"`
}

func ValidateGroupName(name string) error {
	if len([]rune(strings.TrimSpace(name))) < MinGroupNameLength {
		return fmt.Errorf("Group name must be at least %d characters long", MinGroupNameLength)
	}
	return nil
}
