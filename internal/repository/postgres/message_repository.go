package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nextmessage/backend/internal/database"
	"github.com/nextmessage/backend/internal/models"
	"github.com/nextmessage/backend/internal/repository"
)

const messageColumns = `id, sender_id, receiver_id, content, type, image_id, timestamp, read`

// pairClause matches both directions between $1 and $2.
const pairClause = `((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`

type MessageRepository struct {
	db *database.DB
}

func NewMessageRepository(db *database.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func scanMessage(row rowScanner) (*models.DirectMessage, error) {
	m := &models.DirectMessage{}
	err := row.Scan(
		&m.ID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Content,
		&m.Type,
		&m.ImageID,
		&m.Timestamp,
		&m.Read,
	)
	return m, err
}

// Create stores a new message
func (r *MessageRepository) Create(ctx context.Context, m *models.DirectMessage) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.SenderID,
		m.ReceiverID,
		m.Content,
		m.Type,
		m.ImageID,
		m.Timestamp,
		m.Read,
	)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// Between returns the whole conversation between a and b, oldest first
func (r *MessageRepository) Between(ctx context.Context, a, b string) ([]models.DirectMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` + pairClause + ` ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []models.DirectMessage{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, *m)
	}

	return messages, rows.Err()
}

func (r *MessageRepository) Latest(ctx context.Context, a, b string) (*models.DirectMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE ` + pairClause + ` ORDER BY timestamp DESC LIMIT 1`

	m, err := scanMessage(r.db.QueryRowContext(ctx, query, a, b))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest message: %w", err)
	}

	return m, nil
}

func (r *MessageRepository) distinct(ctx context.Context, query, uid string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to get counterparts: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan counterpart: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *MessageRepository) Recipients(ctx context.Context, uid string) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT receiver_id FROM messages WHERE sender_id = $1`, uid)
}

func (r *MessageRepository) Senders(ctx context.Context, uid string) ([]string, error) {
	return r.distinct(ctx, `SELECT DISTINCT sender_id FROM messages WHERE receiver_id = $1`, uid)
}

func (r *MessageRepository) CountUnread(ctx context.Context, senderID, receiverID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE sender_id = $1 AND receiver_id = $2 AND NOT read`,
		senderID, receiverID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

// MarkRead marks everything senderID sent to receiverID as read
func (r *MessageRepository) MarkRead(ctx context.Context, senderID, receiverID string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read = TRUE WHERE sender_id = $1 AND receiver_id = $2 AND NOT read`,
		senderID, receiverID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages as read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}

func (r *MessageRepository) ImageIDsBetween(ctx context.Context, a, b string) ([]string, error) {
	query := `SELECT image_id FROM messages WHERE ` + pairClause + ` AND image_id IS NOT NULL AND image_id <> ''`

	rows, err := r.db.QueryContext(ctx, query, a, b)
	if err != nil {
		return nil, fmt.Errorf("failed to get image ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan image id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// DeleteBetween deletes the conversation between a and b in both directions
func (r *MessageRepository) DeleteBetween(ctx context.Context, a, b string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE `+pairClause, a, b)
	if err != nil {
		return 0, fmt.Errorf("failed to delete messages: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows, nil
}
