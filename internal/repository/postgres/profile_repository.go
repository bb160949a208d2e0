package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

const profileColumns = `uid, email, username, display_name, photo_url, banner_color, bio, pronouns, links, created_at, last_seen`

type ProfileRepository struct {
	db *database.DB
}

func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.UserProfile, error) {
	p := &models.UserProfile{}
	var links []byte
	err := row.Scan(
		&p.UID,
		&p.Email,
		&p.Username,
		&p.DisplayName,
		&p.PhotoURL,
		&p.BannerColor,
		&p.Bio,
		&p.Pronouns,
		&links,
		&p.CreatedAt,
		&p.LastSeen,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(links, &p.Links); err != nil {
		return nil, fmt.Errorf("failed to decode links: %w", err)
	}
	if p.Links == nil {
		p.Links = []models.Link{}
	}
	return p, nil
}

// Create inserts a new profile
func (r *ProfileRepository) Create(ctx context.Context, p *models.UserProfile) error {
	if p.Links == nil {
		p.Links = []models.Link{}
	}
	links, err := json.Marshal(p.Links)
	if err != nil {
		return fmt.Errorf("failed to encode links: %w", err)
	}

	query := `
		INSERT INTO users (` + profileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		p.UID,
		p.Email,
		p.Username,
		p.DisplayName,
		p.PhotoURL,
		p.BannerColor,
		p.Bio,
		p.Pronouns,
		string(links),
		p.CreatedAt,
		p.LastSeen,
	)
	if isUniqueViolation(err, "idx_users_username") {
		return repository.ErrUsernameTaken
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *ProfileRepository) getOne(ctx context.Context, where string, arg any) (*models.UserProfile, error) {
	query := `SELECT ` + profileColumns + ` FROM users WHERE ` + where
	p, err := scanProfile(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return p, nil
}

// GetByUID retrieves a profile by uid
func (r *ProfileRepository) GetByUID(ctx context.Context, uid string) (*models.UserProfile, error) {
	return r.getOne(ctx, "uid = $1", uid)
}

// GetByUsername retrieves a profile by username
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	return r.getOne(ctx, "username = $1", username)
}

func (r *ProfileRepository) list(ctx context.Context, query string, args ...any) ([]models.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	profiles := []models.UserProfile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		profiles = append(profiles, *p)
	}

	return profiles, rows.Err()
}

// GetByUIDs retrieves multiple profiles by uid
func (r *ProfileRepository) GetByUIDs(ctx context.Context, uids []string) ([]models.UserProfile, error) {
	if len(uids) == 0 {
		return []models.UserProfile{}, nil
	}
	return r.list(ctx, `SELECT `+profileColumns+` FROM users WHERE uid = ANY($1)`, pq.Array(uids))
}

// Search finds profiles whose username, display name or email contain query
func (r *ProfileRepository) Search(ctx context.Context, query, excludeUID string, limit int) ([]models.UserProfile, error) {
	return r.list(ctx, `
		SELECT `+profileColumns+`
		FROM users
		WHERE uid <> $1
		  AND (username ILIKE $2 OR display_name ILIKE $2 OR email ILIKE $2)
		ORDER BY username
		LIMIT $3
	`, excludeUID, containsPattern(query), limit)
}

func (r *ProfileRepository) UsernameTakenByOther(ctx context.Context, username, uid string) (bool, error) {
	var taken bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND uid <> $2)`,
		username, uid,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return taken, nil
}

// Update overwrites the provided fields and bumps last_seen
func (r *ProfileRepository) Update(ctx context.Context, uid string, u *models.ProfileUpdate, lastSeen time.Time) (*models.UserProfile, error) {
	var links any
	if u.Links != nil {
		encoded, err := json.Marshal(*u.Links)
		if err != nil {
			return nil, fmt.Errorf("failed to encode links: %w", err)
		}
		links = string(encoded)
	}

	query := `
		UPDATE users
		SET username = COALESCE($2, username),
		    display_name = COALESCE($3, display_name),
		    pronouns = COALESCE($4, pronouns),
		    bio = COALESCE($5, bio),
		    links = COALESCE($6::jsonb, links),
		    banner_color = COALESCE($7, banner_color),
		    last_seen = $8
		WHERE uid = $1
		RETURNING ` + profileColumns

	p, err := scanProfile(r.db.QueryRowContext(ctx, query,
		uid,
		u.Username,
		u.DisplayName,
		u.Pronouns,
		u.Bio,
		links,
		u.BannerColor,
		lastSeen,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if isUniqueViolation(err, "idx_users_username") {
		return nil, repository.ErrUsernameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	return p, nil
}

func (r *ProfileRepository) TouchLastSeen(ctx context.Context, uid string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE users SET last_seen = $2 WHERE uid = $1`, uid, at)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}

	return nil
}
