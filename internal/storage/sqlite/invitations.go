package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage"
)

const invitationColumns = `id, inviter_id, invite_code, invitee_email, status, created_at, expires_at, accepted_by, accepted_at`

// CreateInvitation persists a new invitation.
func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *models.PartnerInvitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO partner_invitations (`+invitationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL)`,
		inv.ID, inv.InviterID, inv.InviteCode, nullString(inv.InviteeEmail), string(inv.Status),
		toUnix(inv.CreatedAt), toUnix(inv.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// ListInvitationsByInviter returns the inviter's invitations, newest first.
func (s *SQLiteStore) ListInvitationsByInviter(ctx context.Context, inviterID string) ([]*models.PartnerInvitation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invitationColumns+` FROM partner_invitations
		 WHERE inviter_id = ? ORDER BY created_at DESC, rowid DESC`,
		inviterID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []*models.PartnerInvitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invitations: %w", err)
	}
	return invitations, nil
}

// GetInvitationByCode retrieves an invitation by its code.
func (s *SQLiteStore) GetInvitationByCode(ctx context.Context, code string) (*models.PartnerInvitation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM partner_invitations WHERE invite_code = ?`, code)
	inv, err := scanInvitation(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// CancelInvitation moves the inviter's pending invitation to cancelled.
func (s *SQLiteStore) CancelInvitation(ctx context.Context, code, inviterID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT status FROM partner_invitations WHERE invite_code = ? AND inviter_id = ?`,
		code, inviterID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get invitation: %w", err)
	}
	if models.InvitationStatus(status) != models.InvitationPending {
		return storage.ErrInvitationUnavailable
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE partner_invitations SET status = 'cancelled' WHERE invite_code = ?`, code,
	); err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}
	return tx.Commit()
}

// LinkPartners accepts an invitation and links both profiles atomically.
func (s *SQLiteStore) LinkPartners(ctx context.Context, code, accepterID string, now time.Time) (*models.LinkResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	inv, err := scanInvitation(tx.QueryRowContext(ctx,
		`SELECT `+invitationColumns+` FROM partner_invitations WHERE invite_code = ?`, code))
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	if !inv.Usable(now) {
		return nil, storage.ErrInvitationUnavailable
	}
	if inv.InviterID == accepterID {
		return nil, storage.ErrSelfInvitation
	}

	inviter, err := getProfile(ctx, tx, inv.InviterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get inviter profile: %w", err)
	}
	accepter, err := getProfile(ctx, tx, accepterID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("accepter %s: %w", accepterID, storage.ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accepter profile: %w", err)
	}
	if inviter.HasPartner() || accepter.HasPartner() {
		return nil, storage.ErrAlreadyPartnered
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE partner_invitations SET status = 'accepted', accepted_by = ?, accepted_at = ?
		 WHERE id = ? AND status = 'pending'`,
		accepterID, toUnix(now), inv.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, storage.ErrInvitationUnavailable
	}

	for _, link := range [][2]string{{inviter.ID, accepter.ID}, {accepter.ID, inviter.ID}} {
		res, err := tx.ExecContext(ctx,
			`UPDATE profiles SET partner_id = ? WHERE id = ? AND partner_id IS NULL`,
			link[1], link[0],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to link profiles: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			return nil, storage.ErrAlreadyPartnered
		}
	}

	shared := 0
	for _, pair := range [][2]string{{inviter.ID, accepter.ID}, {accepter.ID, inviter.ID}} {
		res, err := tx.ExecContext(ctx,
			`UPDATE chores SET partner_id = ? WHERE owner_id = ? AND done = 0 AND partner_id IS NULL`,
			pair[1], pair[0],
		)
		if err != nil {
			return nil, fmt.Errorf("failed to share chores: %w", err)
		}
		n, _ := res.RowsAffected()
		shared += int(n)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.LinkResult{
		PartnerID:         inviter.ID,
		PartnerName:       inviter.DisplayName,
		SharedChoresCount: shared,
	}, nil
}

// CleanupExpiredInvitations expires every pending invitation past its expiry.
func (s *SQLiteStore) CleanupExpiredInvitations(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE partner_invitations SET status = 'expired' WHERE status = 'pending' AND expires_at <= ?`,
		toUnix(now),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired invitations: %w", err)
	}
	return int(n), nil
}

func scanInvitation(row scanner) (*models.PartnerInvitation, error) {
	inv := &models.PartnerInvitation{}
	var (
		email, acceptedBy    sql.NullString
		status               string
		createdAt, expiresAt int64
		acceptedAt           sql.NullInt64
	)
	err := row.Scan(&inv.ID, &inv.InviterID, &inv.InviteCode, &email, &status,
		&createdAt, &expiresAt, &acceptedBy, &acceptedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.InviteeEmail = stringPtr(email)
	inv.Status = models.InvitationStatus(status)
	inv.CreatedAt = fromUnix(createdAt)
	inv.ExpiresAt = fromUnix(expiresAt)
	inv.AcceptedBy = stringPtr(acceptedBy)
	if acceptedAt.Valid {
		t := fromUnix(acceptedAt.Int64)
		inv.AcceptedAt = &t
	}
	return inv, nil
}
