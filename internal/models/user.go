package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultBannerColor = "#5865f2"
	MaxProfileLinks    = 5
	MaxUsernameLength  = 32
)

type Link struct {
	Title string `json:"title" bson:"title"`
	URL   string `json:"url" bson:"url"`
}

// UserProfile is keyed by the uid issued by the identity provider.
type UserProfile struct {
	UID         string    `json:"uid" db:"uid" bson:"uid"`
	Email       string    `json:"email" db:"email" bson:"email"`
	Username    string    `json:"username" db:"username" bson:"username"`
	DisplayName string    `json:"display_name" db:"display_name" bson:"display_name"`
	PhotoURL    *string   `json:"photo_url,omitempty" db:"photo_url" bson:"photo_url,omitempty"`
	BannerColor string    `json:"banner_color" db:"banner_color" bson:"banner_color"`
	Bio         *string   `json:"bio,omitempty" db:"bio" bson:"bio,omitempty"`
	Pronouns    *string   `json:"pronouns,omitempty" db:"pronouns" bson:"pronouns,omitempty"`
	Links       []Link    `json:"links" db:"links" bson:"links"`
	CreatedAt   time.Time `json:"created_at" db:"created_at" bson:"created_at"`
	LastSeen    time.Time `json:"last_seen" db:"last_seen" bson:"last_seen"`
}

// Name is what other users see: the display name, falling back to the username.
func (u *UserProfile) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// Identity is what the identity provider vouches for on every request.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

type SignupRequest struct {
	Username string `json:"username" binding:"required"`
}

// ProfileUpdate carries the optional fields of a profile edit. Nil means unchanged.
type ProfileUpdate struct {
	Username    *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Pronouns    *string `json:"pronouns,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Links       *[]Link `json:"links,omitempty"`
	BannerColor *string `json:"banner_color,omitempty"`
}

// Validate checks the shape of a profile update
func (p *ProfileUpdate) Validate() error {
	if p.Username != nil {
		if err := ValidateUsername(*p.Username); err != nil {
			return err
		}
	}
	if p.DisplayName != nil && strings.TrimSpace(*p.DisplayName) == "" {
		return fmt.Errorf("Display name cannot be empty")
	}
	if p.Links != nil {
		if len(*p.Links) > MaxProfileLinks {
			return fmt.Errorf("Maximum %d links allowed", MaxProfileLinks)
		}
		for _, l := range *p.Links {
			if strings.TrimSpace(l.Title) == "" || strings.TrimSpace(l.URL) == "" {
				return fmt.Errorf("Links need a title and a url")
			}
		}
	}
	return nil
}

// Empty reports whether the update would change nothing.
func (p *ProfileUpdate) Empty() bool {
	return p.Username == nil && p.DisplayName == nil && p.Pronouns == nil &&
		p.Bio == nil && p.Links == nil && p.BannerColor == nil
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("Username is required")
	}
	if len(username) > MaxUsernameLength {
		return fmt.Errorf("Username must be at most %d characters long", MaxUsernameLength)
	}
	return nil
}
