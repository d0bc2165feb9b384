// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/mmynk/choremates/internal/models"
)

// Errors returned (wrapped) by every Store implementation. Services translate
// them into apperr kinds.
var (
	ErrNotFound              = errors.New("record not found")
	ErrInvitationUnavailable = errors.New("invitation is no longer pending")
	ErrAlreadyPartnered      = errors.New("user already has a partner")
	ErrSelfInvitation        = errors.New("cannot accept your own invitation")
	ErrNoPartner             = errors.New("no partner linked")
	ErrChoreStateChanged     = errors.New("chore is already in that state")
	ErrProfileNotFound       = errors.New("caller has no profile")
)

// ProfileStore persists profiles and the partner link between them.
type ProfileStore interface {
	// CreateProfile inserts a profile. ID must be set by the caller.
	CreateProfile(ctx context.Context, profile *models.Profile) error

	// GetProfile returns ErrNotFound if no profile has the given ID.
	GetProfile(ctx context.Context, id string) (*models.Profile, error)

	// UnlinkPartners clears partner_id on the caller's row and on the
	// partner's row in one atomic step, and stops sharing their chores.
	// Returns the former partner's ID, or ErrNoPartner.
	UnlinkPartners(ctx context.Context, userID string) (string, error)
}

// InvitationStore persists partner invitations.
type InvitationStore interface {
	// CreateInvitation inserts a new pending invitation. ID and CreatedAt are
	// filled in when empty.
	CreateInvitation(ctx context.Context, inv *models.PartnerInvitation) error

	// ListInvitationsByInviter returns every invitation created by inviterID,
	// newest first, regardless of status.
	ListInvitationsByInviter(ctx context.Context, inviterID string) ([]*models.PartnerInvitation, error)

	// GetInvitationByCode returns ErrNotFound if no invitation has the code.
	GetInvitationByCode(ctx context.Context, code string) (*models.PartnerInvitation, error)

	// CancelInvitation moves a pending invitation owned by inviterID to
	// cancelled. Returns ErrNotFound if the code is not the inviter's and
	// ErrInvitationUnavailable if it is no longer pending.
	CancelInvitation(ctx context.Context, code, inviterID string) error

	// LinkPartners is the atomic accept procedure: it checks the invitation
	// is usable at now, that neither side already has a partner, marks the
	// invitation accepted, links both profiles and shares their unfinished
	// chores. Exactly one concurrent caller can succeed for a given code.
	// An unknown code is ErrNotFound; an accepter without a profile row is
	// ErrProfileNotFound.
	LinkPartners(ctx context.Context, code, accepterID string, now time.Time) (*models.LinkResult, error)

	// CleanupExpiredInvitations marks every pending invitation whose expiry
	// is at or before now as expired and returns how many rows changed.
	CleanupExpiredInvitations(ctx context.Context, now time.Time) (int, error)
}

// ChoreStore persists chores and their completions.
type ChoreStore interface {
	CreateChore(ctx context.Context, chore *models.Chore) error
	GetChore(ctx context.Context, id string) (*models.Chore, error)

	// ListChores returns chores owned by or shared with userID, newest first.
	ListChores(ctx context.Context, userID string) ([]*models.Chore, error)

	UpdateChoreTitle(ctx context.Context, id, title string) error

	// SetChoreDone moves the done flag to done only if it currently holds the
	// opposite value, and returns ErrChoreStateChanged otherwise. Of several
	// concurrent calls for the same transition exactly one succeeds. When
	// completion is non-nil it is inserted in the same transaction.
	SetChoreDone(ctx context.Context, id string, done bool, completion *models.ChoreCompletion) error

	DeleteChore(ctx context.Context, id string) error

	// CountOpenChores counts unfinished chores owned by ownerID. The count and
	// a later CreateChore are separate calls, so two concurrent creates can
	// both pass a limit check made on the count.
	CountOpenChores(ctx context.Context, ownerID string) (int, error)

	GetCompletion(ctx context.Context, id string) (*models.ChoreCompletion, error)

	// ListCompletionsByUsers returns completions made by any of userIDs.
	ListCompletionsByUsers(ctx context.Context, userIDs []string) ([]*models.ChoreCompletion, error)
}

// ThankYouStore persists thank-you messages. Messages are append-only.
type ThankYouStore interface {
	CreateThankYou(ctx context.Context, msg *models.ThankYou) error

	// ListThankYous applies the filter's direction, then orders newest first
	// and applies Offset and Limit.
	ListThankYous(ctx context.Context, filter models.ThankYouFilter) ([]*models.ThankYou, error)

	// CountThankYous returns how many messages userID sent and received.
	CountThankYous(ctx context.Context, userID string) (sent, received int, err error)
}

// UserStore persists local password accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Store is the full backend surface the services need.
// This abstraction allows swapping storage backends (SQLite, in-memory,
// hosted PostgREST) without changing the service layer.
type Store interface {
	ProfileStore
	InvitationStore
	ChoreStore
	ThankYouStore

	// Close releases any resources held by the store.
	Close() error
}
