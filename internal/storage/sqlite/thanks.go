package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/models"
)

// CreateThankYou appends a thank-you message.
func (s *SQLiteStore) CreateThankYou(ctx context.Context, msg *models.ThankYou) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thanks (id, from_id, to_id, message, chore_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.FromID, msg.ToID, msg.Message, nullString(msg.ChoreID), toUnix(msg.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert thank you: %w", err)
	}
	return nil
}

// ListThankYous lists a user's messages in the filter's direction, newest first.
func (s *SQLiteStore) ListThankYous(ctx context.Context, filter models.ThankYouFilter) ([]*models.ThankYou, error) {
	var where string
	args := []any{}
	switch filter.Direction {
	case models.ThanksSent:
		where = "from_id = ?"
		args = append(args, filter.UserID)
	case models.ThanksReceived:
		where = "to_id = ?"
		args = append(args, filter.UserID)
	default:
		where = "(from_id = ? OR to_id = ?)"
		args = append(args, filter.UserID, filter.UserID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, from_id, to_id, message, chore_id, created_at FROM thanks
		 WHERE `+where+` ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list thank yous: %w", err)
	}
	defer rows.Close()

	var messages []*models.ThankYou
	for rows.Next() {
		msg := &models.ThankYou{}
		var choreID sql.NullString
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.FromID, &msg.ToID, &msg.Message, &choreID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan thank you: %w", err)
		}
		msg.ChoreID = stringPtr(choreID)
		msg.CreatedAt = fromUnix(createdAt)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate thank yous: %w", err)
	}
	return messages, nil
}

// CountThankYous counts sent and received messages for userID.
func (s *SQLiteStore) CountThankYous(ctx context.Context, userID string) (int, int, error) {
	var sent, received int
	err := s.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN from_id = ? THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN to_id = ? THEN 1 ELSE 0 END), 0)
		 FROM thanks WHERE from_id = ? OR to_id = ?`,
		userID, userID, userID, userID,
	).Scan(&sent, &received)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count thank yous: %w", err)
	}
	return sent, received, nil
}
