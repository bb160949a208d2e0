package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

const (
	SearchLimit      = 10
	LastSeenInterval = time.Minute
)

// SeenThrottle rate-limits last-seen writes across instances.
type SeenThrottle interface {
	MarkSeen(ctx context.Context, uid string, interval time.Duration) (bool, error)
}

type Profiles struct {
	repo     repository.ProfileRepository
	throttle SeenThrottle
	now      func() time.Time
}

// NewProfiles builds the profile service. throttle may be nil, in which case
// every authenticated request writes last seen.
func NewProfiles(repo repository.ProfileRepository, throttle SeenThrottle) *Profiles {
	return &Profiles{repo: repo, throttle: throttle, now: time.Now}
}

// Signup creates the caller's profile on first sign-in. Signing up again with
// the same uid returns the existing profile; created reports which case ran.
func (s *Profiles) Signup(ctx context.Context, id models.Identity, username string) (profile *models.UserProfile, created bool, err error) {
	existing, err := s.repo.GetByUID(ctx, id.UID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	username = strings.TrimSpace(username)
	if err := models.ValidateUsername(username); err != nil {
		return nil, false, asValidation(err)
	}

	taken, err := s.repo.UsernameTakenByOther(ctx, username, id.UID)
	if err != nil {
		return nil, false, err
	}
	if taken {
		return nil, false, conflict(msgUsernameTaken)
	}

	now := s.now()
	p := &models.UserProfile{
		UID:         id.UID,
		Email:       id.Email,
		Username:    username,
		DisplayName: id.DisplayName,
		BannerColor: models.DefaultBannerColor,
		Links:       []models.Link{},
		CreatedAt:   now,
		LastSeen:    now,
	}
	if p.DisplayName == "" {
		p.DisplayName = username
	}
	if id.PhotoURL != "" {
		photo := id.PhotoURL
		p.PhotoURL = &photo
	}

	if err := s.repo.Create(ctx, p); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, false, conflict(msgUsernameTaken)
		}
		return nil, false, err
	}

	slog.InfoContext(ctx, "profile created", "uid", p.UID, "username", p.Username)
	return p, true, nil
}

func (s *Profiles) Get(ctx context.Context, uid string) (*models.UserProfile, error) {
	p, err := s.repo.GetByUID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(msgUserNotFound)
	}
	return p, err
}

func (s *Profiles) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	p, err := s.repo.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, notFound(msgUserNotFound)
	}
	return p, err
}

// Bulk resolves uids in request order. Blank and repeated ids are dropped and
// unknown ids are left out of the result.
func (s *Profiles) Bulk(ctx context.Context, uids []string) ([]models.UserProfile, error) {
	seen := make(map[string]struct{}, len(uids))
	wanted := make([]string, 0, len(uids))
	for _, uid := range uids {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		wanted = append(wanted, uid)
	}
	if len(wanted) == 0 {
		return nil, validation(msgNoValidUserIDs)
	}

	found, err := s.repo.GetByUIDs(ctx, wanted)
	if err != nil {
		return nil, err
	}

	byUID := make(map[string]models.UserProfile, len(found))
	for _, p := range found {
		byUID[p.UID] = p
	}
	ordered := make([]models.UserProfile, 0, len(found))
	for _, uid := range wanted {
		if p, ok := byUID[uid]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

// Search finds other users by username, display name or email.
func (s *Profiles) Search(ctx context.Context, query, self string) ([]models.UserProfile, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validation(msgSearchRequired)
	}
	return s.repo.Search(ctx, query, self, SearchLimit)
}

func (s *Profiles) Update(ctx context.Context, uid string, u *models.ProfileUpdate) (*models.UserProfile, error) {
	if u.Username != nil {
		trimmed := strings.TrimSpace(*u.Username)
		u.Username = &trimmed
	}
	if err := u.Validate(); err != nil {
		return nil, asValidation(err)
	}

	if u.Username != nil {
		taken, err := s.repo.UsernameTakenByOther(ctx, *u.Username, uid)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflict(msgUsernameTaken)
		}
	}

	p, err := s.repo.Update(ctx, uid, u, s.now())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, notFound(msgUserNotFound)
	case errors.Is(err, repository.ErrUsernameTaken):
		return nil, conflict(msgUsernameTaken)
	case err != nil:
		return nil, err
	}
	return p, nil
}

// TouchLastSeen records activity for uid, at most once per LastSeenInterval
// when a throttle is configured. Users without a profile yet are ignored.
func (s *Profiles) TouchLastSeen(ctx context.Context, uid string) error {
	if s.throttle != nil {
		first, err := s.throttle.MarkSeen(ctx, uid, LastSeenInterval)
		if err != nil {
			slog.WarnContext(ctx, "last seen throttle unavailable", "uid", uid, "error", err)
		} else if !first {
			return nil
		}
	}

	err := s.repo.TouchLastSeen(ctx, uid, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}
