package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage"
)

const choreColumns = `id, owner_id, partner_id, title, done, created_at`

// CreateChore persists a new chore.
func (s *SQLiteStore) CreateChore(ctx context.Context, chore *models.Chore) error {
	if chore.ID == "" {
		chore.ID = uuid.New().String()
	}
	if chore.CreatedAt.IsZero() {
		chore.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chores (`+choreColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		chore.ID, chore.OwnerID, nullString(chore.PartnerID), chore.Title, chore.Done, toUnix(chore.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chore: %w", err)
	}
	return nil
}

// GetChore retrieves a chore by ID.
func (s *SQLiteStore) GetChore(ctx context.Context, id string) (*models.Chore, error) {
	chore, err := scanChore(s.db.QueryRowContext(ctx,
		`SELECT `+choreColumns+` FROM chores WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get chore %s: %w", id, err)
	}
	return chore, nil
}

// ListChores returns chores owned by or shared with userID.
func (s *SQLiteStore) ListChores(ctx context.Context, userID string) ([]*models.Chore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+choreColumns+` FROM chores
		 WHERE owner_id = ? OR partner_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chores: %w", err)
	}
	defer rows.Close()

	var chores []*models.Chore
	for rows.Next() {
		chore, err := scanChore(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan chore: %w", err)
		}
		chores = append(chores, chore)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chores: %w", err)
	}
	return chores, nil
}

// UpdateChoreTitle renames a chore.
func (s *SQLiteStore) UpdateChoreTitle(ctx context.Context, id, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE chores SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return fmt.Errorf("failed to update chore: %w", err)
	}
	return expectOne(res, id)
}

// SetChoreDone flips the done flag and records the completion, if any. The
// conditional UPDATE lets only one of several racing callers through.
func (s *SQLiteStore) SetChoreDone(ctx context.Context, id string, done bool, completion *models.ChoreCompletion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE chores SET done = ? WHERE id = ? AND done = ?`, done, id, !done)
	if err != nil {
		return fmt.Errorf("failed to update chore: %w", err)
	}
	if err := expectOne(res, id); err != nil {
		// Zero rows: either the chore is gone or another caller got there first.
		var exists int
		if qerr := tx.QueryRowContext(ctx, `SELECT 1 FROM chores WHERE id = ?`, id).Scan(&exists); qerr == nil {
			return fmt.Errorf("chore %s: %w", id, storage.ErrChoreStateChanged)
		}
		return err
	}

	if completion != nil {
		if completion.ID == "" {
			completion.ID = uuid.New().String()
		}
		if completion.CompletedAt.IsZero() {
			completion.CompletedAt = time.Now().UTC()
		}
		completion.ChoreID = id
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chore_completions (id, chore_id, completed_by, completed_at) VALUES (?, ?, ?, ?)`,
			completion.ID, completion.ChoreID, completion.CompletedBy, toUnix(completion.CompletedAt),
		); err != nil {
			return fmt.Errorf("failed to insert completion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteChore removes a chore and, via cascade, its completions.
func (s *SQLiteStore) DeleteChore(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete chore: %w", err)
	}
	return expectOne(res, id)
}

// CountOpenChores counts the owner's unfinished chores.
func (s *SQLiteStore) CountOpenChores(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chores WHERE owner_id = ? AND done = 0`, ownerID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count open chores: %w", err)
	}
	return n, nil
}

// GetCompletion retrieves a completion by ID.
func (s *SQLiteStore) GetCompletion(ctx context.Context, id string) (*models.ChoreCompletion, error) {
	c := &models.ChoreCompletion{}
	var completedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, chore_id, completed_by, completed_at FROM chore_completions WHERE id = ?`, id,
	).Scan(&c.ID, &c.ChoreID, &c.CompletedBy, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("completion %s: %w", id, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}
	c.CompletedAt = fromUnix(completedAt)
	return c, nil
}

// ListCompletionsByUsers returns completions made by any of userIDs.
func (s *SQLiteStore) ListCompletionsByUsers(ctx context.Context, userIDs []string) ([]*models.ChoreCompletion, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	query := `SELECT id, chore_id, completed_by, completed_at FROM chore_completions
	          WHERE completed_by IN (?` + strings.Repeat(", ?", len(userIDs)-1) + `)
	          ORDER BY completed_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	defer rows.Close()

	var completions []*models.ChoreCompletion
	for rows.Next() {
		c := &models.ChoreCompletion{}
		var completedAt int64
		if err := rows.Scan(&c.ID, &c.ChoreID, &c.CompletedBy, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		c.CompletedAt = fromUnix(completedAt)
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate completions: %w", err)
	}
	return completions, nil
}

func scanChore(row scanner) (*models.Chore, error) {
	chore := &models.Chore{}
	var partnerID sql.NullString
	var createdAt int64
	err := row.Scan(&chore.ID, &chore.OwnerID, &partnerID, &chore.Title, &chore.Done, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	chore.PartnerID = stringPtr(partnerID)
	chore.CreatedAt = fromUnix(createdAt)
	return chore, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("chore %s: %w", id, storage.ErrNotFound)
	}
	return nil
}
