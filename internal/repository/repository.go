package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nextmessage/backend/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUsernameTaken = errors.New("username already taken")
	// ErrConflict is returned when a conditional write finds the document
	// no longer matching its precondition.
	ErrConflict = errors.New("conflicting update")
)

type ProfileRepository interface {
	// Create inserts p, returning ErrUsernameTaken if another uid owns the username.
	Create(ctx context.Context, p *models.UserProfile) error
	GetByUID(ctx context.Context, uid string) (*models.UserProfile, error)
	GetByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	// GetByUIDs returns the profiles it can resolve, in no particular order.
	GetByUIDs(ctx context.Context, uids []string) ([]models.UserProfile, error)
	// Search matches query literally and case-insensitively against username,
	// display name and email.
	Search(ctx context.Context, query, excludeUID string, limit int) ([]models.UserProfile, error)
	UsernameTakenByOther(ctx context.Context, username, uid string) (bool, error)
	Update(ctx context.Context, uid string, u *models.ProfileUpdate, lastSeen time.Time) (*models.UserProfile, error)
	TouchLastSeen(ctx context.Context, uid string, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, m *models.DirectMessage) error
	// Between returns every message exchanged by a and b, oldest first.
	Between(ctx context.Context, a, b string) ([]models.DirectMessage, error)
	// Latest returns the newest message between a and b, or ErrNotFound.
	Latest(ctx context.Context, a, b string) (*models.DirectMessage, error)
	// Recipients lists the distinct receivers of messages sent by uid.
	Recipients(ctx context.Context, uid string) ([]string, error)
	// Senders lists the distinct senders of messages received by uid.
	Senders(ctx context.Context, uid string) ([]string, error)
	CountUnread(ctx context.Context, senderID, receiverID string) (int64, error)
	// MarkRead flips read to true on everything senderID sent to receiverID
	// and returns how many messages changed.
	MarkRead(ctx context.Context, senderID, receiverID string) (int64, error)
	ImageIDsBetween(ctx context.Context, a, b string) ([]string, error)
	DeleteBetween(ctx context.Context, a, b string) (int64, error)
}

type GroupRepository interface {
	Create(ctx context.Context, g *models.Group) error
	GetByID(ctx context.Context, id string) (*models.Group, error)
	// ListByMember returns the groups uid belongs to, most recently updated first.
	ListByMember(ctx context.Context, uid string) ([]models.Group, error)
	// Search matches name and description, skipping groups uid already belongs to.
	Search(ctx context.Context, query, uid string, limit int) ([]models.Group, error)
	// AddMember succeeds only while uid is not a member and the group has room.
	// Otherwise it returns ErrConflict, or ErrNotFound for a missing group.
	AddMember(ctx context.Context, groupID, uid string, at time.Time) error
	// RemoveMember succeeds only while uid is a member and is not the sole admin.
	RemoveMember(ctx context.Context, groupID, uid string, at time.Time) error
	UpdateInfo(ctx context.Context, groupID string, u *models.GroupUpdate, at time.Time) (*models.Group, error)
	Touch(ctx context.Context, groupID string, at time.Time) error
}

type GroupMessageRepository interface {
	Create(ctx context.Context, m *models.GroupMessage) error
	// List returns up to limit messages older than before (when set), oldest first.
	List(ctx context.Context, groupID string, limit int, before *time.Time) ([]models.GroupMessage, error)
	Latest(ctx context.Context, groupID string) (*models.GroupMessage, error)
	// CountUnreadSince counts messages newer than since that uid has not read.
	CountUnreadSince(ctx context.Context, groupID, uid string, since time.Time) (int64, error)
	MarkRead(ctx context.Context, groupID, messageID, uid string) error
	MarkAllRead(ctx context.Context, groupID, uid string) (int64, error)
}

// Set bundles one backend's repositories.
type Set struct {
	Profiles      ProfileRepository
	Messages      MessageRepository
	Groups        GroupRepository
	GroupMessages GroupMessageRepository
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
