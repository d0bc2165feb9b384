package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage"
)

// CreateProfile inserts a profile row.
func (s *SQLiteStore) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, display_name, email, partner_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		profile.ID, profile.DisplayName, profile.Email, nullString(profile.PartnerID), toUnix(profile.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by ID.
func (s *SQLiteStore) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	profile, err := getProfile(ctx, s.db, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return profile, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getProfile(ctx context.Context, q querier, id string) (*models.Profile, error) {
	profile := &models.Profile{}
	var partnerID sql.NullString
	var createdAt int64
	err := q.QueryRowContext(ctx,
		`SELECT id, display_name, email, partner_id, created_at FROM profiles WHERE id = ?`, id,
	).Scan(&profile.ID, &profile.DisplayName, &profile.Email, &partnerID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	profile.PartnerID = stringPtr(partnerID)
	profile.CreatedAt = fromUnix(createdAt)
	return profile, nil
}

// UnlinkPartners clears both sides of the partner link in one transaction.
func (s *SQLiteStore) UnlinkPartners(ctx context.Context, userID string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	profile, err := getProfile(ctx, tx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	if !profile.HasPartner() {
		return "", storage.ErrNoPartner
	}
	partnerID := *profile.PartnerID

	// The partner side only clears if it still points back at us.
	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET partner_id = NULL WHERE id = ?
		    OR (id = ? AND partner_id = ?)`,
		userID, partnerID, userID,
	); err != nil {
		return "", fmt.Errorf("failed to clear partner link: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE chores SET partner_id = NULL
		 WHERE (owner_id = ? AND partner_id = ?) OR (owner_id = ? AND partner_id = ?)`,
		userID, partnerID, partnerID, userID,
	); err != nil {
		return "", fmt.Errorf("failed to unshare chores: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return partnerID, nil
}
