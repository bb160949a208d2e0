package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

const groupColumns = `id, name, description, avatar_url, created_by, members, admins, max_members, created_at, updated_at`

type GroupRepository struct {
	db *database.DB
}

func NewGroupRepository(db *database.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func scanGroup(row rowScanner) (*models.Group, error) {
	g := &models.Group{}
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.Description,
		&g.AvatarURL,
		&g.CreatedBy,
		pq.Array(&g.Members),
		pq.Array(&g.Admins),
		&g.MaxMembers,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	return g, err
}

// Create creates a new group
func (r *GroupRepository) Create(ctx context.Context, g *models.Group) error {
	query := `
		INSERT INTO groups (` + groupColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		g.ID,
		g.Name,
		g.Description,
		g.AvatarURL,
		g.CreatedBy,
		pq.Array(g.Members),
		pq.Array(g.Admins),
		g.MaxMembers,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}

	return nil
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

func (r *GroupRepository) list(ctx context.Context, query string, args ...any) ([]models.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, *g)
	}

	return groups, rows.Err()
}

// ListByMember retrieves all groups for a user
func (r *GroupRepository) ListByMember(ctx context.Context, uid string) ([]models.Group, error) {
	return r.list(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE $1 = ANY(members)
		ORDER BY updated_at DESC
	`, uid)
}

func (r *GroupRepository) Search(ctx context.Context, query, uid string, limit int) ([]models.Group, error) {
	return r.list(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE NOT ($1 = ANY(members))
		  AND (name ILIKE $2 OR description ILIKE $2)
		ORDER BY updated_at DESC
		LIMIT $3
	`, uid, containsPattern(query), limit)
}

// conditional runs a guarded UPDATE. When nothing matched it tells a missing
// group apart from a failed guard.
func (r *GroupRepository) conditional(ctx context.Context, groupID, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM groups WHERE id = $1)`, groupID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check group: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

// AddMember appends uid while the group has room and uid is not yet a member
func (r *GroupRepository) AddMember(ctx context.Context, groupID, uid string, at time.Time) error {
	return r.conditional(ctx, groupID, `
		UPDATE groups
		SET members = array_append(members, $2::text), updated_at = $3
		WHERE id = $1
		  AND NOT ($2::text = ANY(members))
		  AND cardinality(members) < max_members
	`, groupID, uid, at)
}

// RemoveMember drops uid from members and admins unless uid is the sole admin
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, uid string, at time.Time) error {
	return r.conditional(ctx, groupID, `
		UPDATE groups
		SET members = array_remove(members, $2::text),
		    admins = array_remove(admins, $2::text),
		    updated_at = $3
		WHERE id = $1
		  AND $2::text = ANY(members)
		  AND NOT ($2::text = ANY(admins) AND cardinality(admins) = 1)
	`, groupID, uid, at)
}

// UpdateInfo overwrites the provided metadata fields
func (r *GroupRepository) UpdateInfo(ctx context.Context, groupID string, u *models.GroupUpdate, at time.Time) (*models.Group, error) {
	query := `
		UPDATE groups
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    avatar_url = COALESCE($4, avatar_url),
		    updated_at = $5
		WHERE id = $1
		RETURNING ` + groupColumns

	g, err := scanGroup(r.db.QueryRowContext(ctx, query, groupID, u.Name, u.Description, u.AvatarURL, at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update group: %w", err)
	}

	return g, nil
}

func (r *GroupRepository) Touch(ctx context.Context, groupID string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE groups SET updated_at = $2 WHERE id = $1`, groupID, at)
	if err != nil {
		return fmt.Errorf("failed to touch group: %w", err)
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
