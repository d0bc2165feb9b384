// Package memory provides an in-process implementation of storage.Store.
//
// It backs the mock-auth development mode and the service tests. Every
// operation takes one mutex, so the multi-row procedures (LinkPartners,
// UnlinkPartners) are atomic the same way the SQL backends are.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage"
)

var (
	_ storage.Store     = (*Store)(nil)
	_ storage.UserStore = (*Store)(nil)
)

// Store keeps every table in maps plus insertion-order slices where the
// listing order matters.
type Store struct {
	mu sync.Mutex

	users       map[string]*models.User
	profiles    map[string]*models.Profile
	invitations []*models.PartnerInvitation
	chores      map[string]*models.Chore
	choreOrder  []string
	completions map[string]*models.ChoreCompletion
	thanks      []*models.ThankYou
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:       make(map[string]*models.User),
		profiles:    make(map[string]*models.Profile),
		chores:      make(map[string]*models.Chore),
		completions: make(map[string]*models.ChoreCompletion),
	}
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func ptr[T any](v T) *T { return &v }

// CreateUser inserts a user and the matching profile.
func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("failed to create user: email %s already exists", user.Email)
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	if _, ok := s.profiles[user.ID]; !ok {
		s.profiles[user.ID] = &models.Profile{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Email:       user.Email,
			CreatedAt:   user.CreatedAt,
		}
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, storage.ErrNotFound
}

// GetUserByID retrieves a user by ID.
func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// CreateProfile inserts a profile.
func (s *Store) CreateProfile(_ context.Context, profile *models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[profile.ID]; ok {
		return fmt.Errorf("failed to insert profile: %s already exists", profile.ID)
	}
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now().UTC()
	}
	s.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

// GetProfile retrieves a profile by ID.
func (s *Store) GetProfile(_ context.Context, id string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	return cloneProfile(p), nil
}

// UnlinkPartners clears both sides of the link.
func (s *Store) UnlinkPartners(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		return "", fmt.Errorf("profile %s: %w", userID, storage.ErrNotFound)
	}
	if !p.HasPartner() {
		return "", storage.ErrNoPartner
	}
	partnerID := *p.PartnerID
	p.PartnerID = nil
	if other, ok := s.profiles[partnerID]; ok && other.PartnerID != nil && *other.PartnerID == userID {
		other.PartnerID = nil
	}
	for _, c := range s.chores {
		if c.PartnerID == nil {
			continue
		}
		if (c.OwnerID == userID && *c.PartnerID == partnerID) || (c.OwnerID == partnerID && *c.PartnerID == userID) {
			c.PartnerID = nil
		}
	}
	return partnerID, nil
}

// CreateInvitation inserts an invitation.
func (s *Store) CreateInvitation(_ context.Context, inv *models.PartnerInvitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationPending
	}
	for _, existing := range s.invitations {
		if existing.InviteCode == inv.InviteCode {
			return fmt.Errorf("failed to insert invitation: duplicate code")
		}
	}
	cp := *inv
	s.invitations = append(s.invitations, &cp)
	return nil
}

// ListInvitationsByInviter returns the inviter's invitations, newest first.
func (s *Store) ListInvitationsByInviter(_ context.Context, inviterID string) ([]*models.PartnerInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.PartnerInvitation
	for i := len(s.invitations) - 1; i >= 0; i-- {
		if inv := s.invitations[i]; inv.InviterID == inviterID {
			cp := *inv
			out = append(out, &cp)
		}
	}
	slices.SortStableFunc(out, func(a, b *models.PartnerInvitation) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// GetInvitationByCode retrieves an invitation by code.
func (s *Store) GetInvitationByCode(_ context.Context, code string) (*models.PartnerInvitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.findInvitation(code)
	if inv == nil {
		return nil, storage.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (s *Store) findInvitation(code string) *models.PartnerInvitation {
	for _, inv := range s.invitations {
		if inv.InviteCode == code {
			return inv
		}
	}
	return nil
}

// CancelInvitation cancels the inviter's pending invitation.
func (s *Store) CancelInvitation(_ context.Context, code, inviterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv := s.findInvitation(code)
	if inv == nil || inv.InviterID != inviterID {
		return storage.ErrNotFound
	}
	if inv.Status != models.InvitationPending {
		return storage.ErrInvitationUnavailable
	}
	inv.Status = models.InvitationCancelled
	return nil
}

// LinkPartners accepts an invitation and links both profiles.
func (s *Store) LinkPartners(_ context.Context, code, accepterID string, now time.Time) (*models.LinkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv := s.findInvitation(code)
	if inv == nil {
		return nil, storage.ErrNotFound
	}
	if !inv.Usable(now) {
		return nil, storage.ErrInvitationUnavailable
	}
	if inv.InviterID == accepterID {
		return nil, storage.ErrSelfInvitation
	}
	inviter, ok := s.profiles[inv.InviterID]
	if !ok {
		return nil, fmt.Errorf("inviter profile: %w", storage.ErrNotFound)
	}
	accepter, ok := s.profiles[accepterID]
	if !ok {
		return nil, fmt.Errorf("accepter %s: %w", accepterID, storage.ErrProfileNotFound)
	}
	if inviter.HasPartner() || accepter.HasPartner() {
		return nil, storage.ErrAlreadyPartnered
	}

	inv.Status = models.InvitationAccepted
	inv.AcceptedBy = ptr(accepterID)
	inv.AcceptedAt = ptr(now.UTC())
	inviter.PartnerID = ptr(accepterID)
	accepter.PartnerID = ptr(inviter.ID)

	shared := 0
	for _, c := range s.chores {
		if c.Done || c.PartnerID != nil {
			continue
		}
		switch c.OwnerID {
		case inviter.ID:
			c.PartnerID = ptr(accepterID)
			shared++
		case accepterID:
			c.PartnerID = ptr(inviter.ID)
			shared++
		}
	}

	return &models.LinkResult{
		PartnerID:         inviter.ID,
		PartnerName:       inviter.DisplayName,
		SharedChoresCount: shared,
	}, nil
}

// CleanupExpiredInvitations expires every stale pending invitation.
func (s *Store) CleanupExpiredInvitations(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, inv := range s.invitations {
		if inv.Status == models.InvitationPending && !now.Before(inv.ExpiresAt) {
			inv.Status = models.InvitationExpired
			n++
		}
	}
	return n, nil
}

func cloneProfile(p *models.Profile) *models.Profile {
	cp := *p
	if p.PartnerID != nil {
		cp.PartnerID = ptr(*p.PartnerID)
	}
	return &cp
}
