package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/lib/pq"
	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

const groupMessageColumns = `id, group_id, sender_id, content, type, image_id, timestamp, read_by`

type GroupMessageRepository struct {
	db *database.DB
}

func NewGroupMessageRepository(db *database.DB) *GroupMessageRepository {
	return &GroupMessageRepository{db: db}
}

func scanGroupMessage(row rowScanner) (*models.GroupMessage, error) {
	m := &models.GroupMessage{}
	err := row.Scan(
		&m.ID,
		&m.GroupID,
		&m.SenderID,
		&m.Content,
		&m.Type,
		&m.ImageID,
		&m.Timestamp,
		pq.Array(&m.ReadBy),
	)
	return m, err
}

// Create creates a new group message
func (r *GroupMessageRepository) Create(ctx context.Context, m *models.GroupMessage) error {
	query := `
		INSERT INTO group_messages (` + groupMessageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.GroupID,
		m.SenderID,
		m.Content,
		m.Type,
		m.ImageID,
		m.Timestamp,
		pq.Array(m.ReadBy),
	)
	if err != nil {
		return fmt.Errorf("failed to create group message: %w", err)
	}

	return nil
}

// List returns a page of the newest messages, oldest first
func (r *GroupMessageRepository) List(ctx context.Context, groupID string, limit int, before *time.Time) ([]models.GroupMessage, error) {
	query := `
		SELECT ` + groupMessageColumns + `
		FROM group_messages
		WHERE group_id = $1
		  AND ($2::timestamptz IS NULL OR timestamp < $2::timestamptz)
		ORDER BY timestamp DESC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get group messages: %w", err)
	}
	defer rows.Close()

	messages := []models.GroupMessage{}
	for rows.Next() {
		m, err := scanGroupMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read group messages: %w", err)
	}

	slices.Reverse(messages)
	return messages, nil
}

func (r *GroupMessageRepository) Latest(ctx context.Context, groupID string) (*models.GroupMessage, error) {
	query := `
		SELECT ` + groupMessageColumns + `
		FROM group_messages
		WHERE group_id = $1
		ORDER BY timestamp DESC
		LIMIT 1
	`

	m, err := scanGroupMessage(r.db.QueryRowContext(ctx, query, groupID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest group message: %w", err)
	}

	return m, nil
}

func (r *GroupMessageRepository) CountUnreadSince(ctx context.Context, groupID, uid string, since time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM group_messages
		WHERE group_id = $1 AND timestamp > $3 AND NOT ($2::text = ANY(read_by))
	`, groupID, uid, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread group messages: %w", err)
	}
	return n, nil
}

// MarkRead adds uid to the readers of one message
func (r *GroupMessageRepository) MarkRead(ctx context.Context, groupID, messageID, uid string) error {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE group_messages
			SET read_by = array_append(read_by, $3::text)
			WHERE id = $2 AND group_id = $1 AND NOT ($3::text = ANY(read_by))
		)
		SELECT EXISTS (SELECT 1 FROM group_messages WHERE id = $2 AND group_id = $1)
	`, groupID, messageID, uid).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to mark group message as read: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return nil
}

// MarkAllRead adds uid to the readers of every message in the group
func (r *GroupMessageRepository) MarkAllRead(ctx context.Context, groupID, uid string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE group_messages
		SET read_by = array_append(read_by, $2::text)
		WHERE group_id = $1 AND NOT ($2::text = ANY(read_by))
	`, groupID, uid)
	if err != nil {
		return 0, fmt.Errorf("failed to mark group messages as read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
