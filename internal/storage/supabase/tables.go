package supabase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/postgrest-go"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage"
)

const (
	tableProfiles    = "profiles"
	tableInvitations = "partner_invitations"
	tableChores      = "chores"
	tableCompletions = "chore_completions"
	tableThanks      = "thanks"
)

var newestFirst = &postgrest.OrderOpts{Ascending: false}

// selectOne runs a single-row lookup and returns ErrNotFound when empty.
func selectOne[T any](s *Store, table, column, value string) (*T, error) {
	var rows []T
	err := s.do(func() error {
		_, err := s.client.From(table).Select("*", "", false).Eq(column, value).ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return &rows[0], nil
}

func (s *Store) insert(table string, value any) error {
	return s.do(func() error {
		_, _, err := s.client.From(table).Insert(value, false, "", "minimal", "").Execute()
		return err
	})
}

// CreateProfile inserts a profile row.
func (s *Store) CreateProfile(_ context.Context, profile *models.Profile) error {
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	if err := s.insert(tableProfiles, profile); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// GetProfile retrieves a profile by ID.
func (s *Store) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	p, err := selectOne[models.Profile](s, tableProfiles, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile %s: %w", id, err)
	}
	return p, nil
}

// UnlinkPartners calls the unlink_partners procedure.
func (s *Store) UnlinkPartners(_ context.Context, userID string) (string, error) {
	var former string
	if err := s.rpc("unlink_partners", map[string]any{"p_user": userID}, &former); err != nil {
		return "", err
	}
	return former, nil
}

// CreateInvitation inserts an invitation row.
func (s *Store) CreateInvitation(_ context.Context, inv *models.PartnerInvitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationPending
	}
	if err := s.insert(tableInvitations, inv); err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// ListInvitationsByInviter returns the inviter's invitations, newest first.
func (s *Store) ListInvitationsByInviter(_ context.Context, inviterID string) ([]*models.PartnerInvitation, error) {
	var rows []*models.PartnerInvitation
	err := s.do(func() error {
		_, err := s.client.From(tableInvitations).Select("*", "", false).
			Eq("inviter_id", inviterID).
			Order("created_at", newestFirst).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	return rows, nil
}

// GetInvitationByCode retrieves an invitation by code.
func (s *Store) GetInvitationByCode(_ context.Context, code string) (*models.PartnerInvitation, error) {
	inv, err := selectOne[models.PartnerInvitation](s, tableInvitations, "invite_code", code)
	if err != nil {
		return nil, fmt.Errorf("failed to get invitation: %w", err)
	}
	return inv, nil
}

// CancelInvitation cancels a pending invitation. The status filter on the
// update makes the transition conditional.
func (s *Store) CancelInvitation(ctx context.Context, code, inviterID string) error {
	inv, err := s.GetInvitationByCode(ctx, code)
	if err != nil {
		return err
	}
	if inv.InviterID != inviterID {
		return storage.ErrNotFound
	}

	var updated []models.PartnerInvitation
	err = s.do(func() error {
		_, err := s.client.From(tableInvitations).
			Update(map[string]any{"status": models.InvitationCancelled}, "representation", "").
			Eq("invite_code", code).
			Eq("status", string(models.InvitationPending)).
			ExecuteTo(&updated)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to cancel invitation: %w", err)
	}
	if len(updated) == 0 {
		return storage.ErrInvitationUnavailable
	}
	return nil
}

// LinkPartners calls the link_partners procedure.
func (s *Store) LinkPartners(_ context.Context, code, accepterID string, now time.Time) (*models.LinkResult, error) {
	var res models.LinkResult
	err := s.rpc("link_partners", map[string]any{
		"p_code":     code,
		"p_accepter": accepterID,
		"p_now":      timestamp(now),
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// CleanupExpiredInvitations calls the cleanup_expired_invitations procedure.
func (s *Store) CleanupExpiredInvitations(_ context.Context, now time.Time) (int, error) {
	var n int
	if err := s.rpc("cleanup_expired_invitations", map[string]any{"p_now": timestamp(now)}, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// CreateChore inserts a chore row.
func (s *Store) CreateChore(_ context.Context, chore *models.Chore) error {
	if chore.ID == "" {
		chore.ID = uuid.New().String()
	}
	if chore.CreatedAt.IsZero() {
		chore.CreatedAt = time.Now().UTC()
	}
	if err := s.insert(tableChores, chore); err != nil {
		return fmt.Errorf("failed to insert chore: %w", err)
	}
	return nil
}

// GetChore retrieves a chore by ID.
func (s *Store) GetChore(_ context.Context, id string) (*models.Chore, error) {
	c, err := selectOne[models.Chore](s, tableChores, "id", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get chore %s: %w", id, err)
	}
	return c, nil
}

// ListChores returns chores owned by or shared with userID.
func (s *Store) ListChores(_ context.Context, userID string) ([]*models.Chore, error) {
	var rows []*models.Chore
	err := s.do(func() error {
		_, err := s.client.From(tableChores).Select("*", "", false).
			Or(fmt.Sprintf("owner_id.eq.%s,partner_id.eq.%s", userID, userID), "").
			Order("created_at", newestFirst).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list chores: %w", err)
	}
	return rows, nil
}

func (s *Store) updateChore(id string, values map[string]any) error {
	return s.updateChoreWhere(id, values, nil)
}

// updateChoreWhere updates the chore only if every column in where matches.
func (s *Store) updateChoreWhere(id string, values map[string]any, where map[string]string) error {
	var updated []models.Chore
	err := s.do(func() error {
		q := s.client.From(tableChores).
			Update(values, "representation", "").
			Eq("id", id)
		for column, value := range where {
			q = q.Eq(column, value)
		}
		_, err := q.ExecuteTo(&updated)
		return err
	})
	if err != nil {
		return err
	}
	if len(updated) == 0 {
		return fmt.Errorf("chore %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// UpdateChoreTitle renames a chore.
func (s *Store) UpdateChoreTitle(_ context.Context, id, title string) error {
	if err := s.updateChore(id, map[string]any{"title": title}); err != nil {
		return fmt.Errorf("failed to update chore: %w", err)
	}
	return nil
}

// SetChoreDone flips the done flag, then records the completion. The update
// is filtered on the previous flag value so only one racing caller matches.
//
// PostgREST offers no multi-statement transaction; a completion insert that
// fails after the flag update leaves the chore done without a completion row.
func (s *Store) SetChoreDone(ctx context.Context, id string, done bool, completion *models.ChoreCompletion) error {
	err := s.updateChoreWhere(id, map[string]any{"done": done}, map[string]string{"done": strconv.FormatBool(!done)})
	if errors.Is(err, storage.ErrNotFound) {
		if _, gerr := s.GetChore(ctx, id); gerr == nil {
			return fmt.Errorf("chore %s: %w", id, storage.ErrChoreStateChanged)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to update chore: %w", err)
	}
	if completion == nil {
		return nil
	}
	if completion.ID == "" {
		completion.ID = uuid.New().String()
	}
	if completion.CompletedAt.IsZero() {
		completion.CompletedAt = time.Now().UTC()
	}
	completion.ChoreID = id
	if err := s.insert(tableCompletions, completion); err != nil {
		return fmt.Errorf("failed to insert completion: %w", err)
	}
	return nil
}

// DeleteChore removes a chore; completions cascade in the database.
func (s *Store) DeleteChore(_ context.Context, id string) error {
	var deleted []models.Chore
	err := s.do(func() error {
		_, err := s.client.From(tableChores).Delete("representation", "").Eq("id", id).ExecuteTo(&deleted)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to delete chore: %w", err)
	}
	if len(deleted) == 0 {
		return fmt.Errorf("chore %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// CountOpenChores counts the owner's unfinished chores.
func (s *Store) CountOpenChores(_ context.Context, ownerID string) (int, error) {
	var count int64
	err := s.do(func() error {
		var err error
		_, count, err = s.client.From(tableChores).Select("id", "exact", true).
			Eq("owner_id", ownerID).
			Eq("done", "false").
			Execute()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count open chores: %w", err)
	}
	return int(count), nil
}

// GetCompletion retrieves a completion by ID.
func (s *Store) GetCompletion(_ context.Context, id string) (*models.ChoreCompletion, error) {
	c, err := selectOne[models.ChoreCompletion](s, tableCompletions, "id", id)
	if err != nil {
		return nil, fmt.Errorf("completion %s: %w", id, err)
	}
	return c, nil
}

// ListCompletionsByUsers returns completions made by any of userIDs.
func (s *Store) ListCompletionsByUsers(_ context.Context, userIDs []string) ([]*models.ChoreCompletion, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []*models.ChoreCompletion
	err := s.do(func() error {
		_, err := s.client.From(tableCompletions).Select("*", "", false).
			In("completed_by", userIDs).
			Order("completed_at", newestFirst).
			ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	return rows, nil
}

// CreateThankYou inserts a thank-you row.
func (s *Store) CreateThankYou(_ context.Context, msg *models.ThankYou) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if err := s.insert(tableThanks, msg); err != nil {
		return fmt.Errorf("failed to insert thank you: %w", err)
	}
	return nil
}

// ListThankYous lists a user's messages in the filter's direction, newest first.
func (s *Store) ListThankYous(_ context.Context, filter models.ThankYouFilter) ([]*models.ThankYou, error) {
	var rows []*models.ThankYou
	err := s.do(func() error {
		q := s.client.From(tableThanks).Select("*", "", false)
		switch filter.Direction {
		case models.ThanksSent:
			q = q.Eq("from_id", filter.UserID)
		case models.ThanksReceived:
			q = q.Eq("to_id", filter.UserID)
		default:
			q = q.Or(fmt.Sprintf("from_id.eq.%s,to_id.eq.%s", filter.UserID, filter.UserID), "")
		}
		q = q.Order("created_at", newestFirst)
		if filter.Limit > 0 {
			q = q.Range(filter.Offset, filter.Offset+filter.Limit-1, "")
		}
		_, err := q.ExecuteTo(&rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list thank yous: %w", err)
	}
	return rows, nil
}

// CountThankYous counts sent and received messages for userID.
func (s *Store) CountThankYous(_ context.Context, userID string) (int, int, error) {
	count := func(column string) (int, error) {
		var n int64
		err := s.do(func() error {
			var err error
			_, n, err = s.client.From(tableThanks).Select("id", "exact", true).Eq(column, userID).Execute()
			return err
		})
		return int(n), err
	}

	sent, err := count("from_id")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count sent thank yous: %w", err)
	}
	received, err := count("to_id")
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count received thank yous: %w", err)
	}
	return sent, received, nil
}
