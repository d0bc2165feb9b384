package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage"
)

// CreateChore inserts a chore.
func (s *Store) CreateChore(_ context.Context, chore *models.Chore) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if chore.ID == "" {
		chore.ID = uuid.New().String()
	}
	if chore.CreatedAt.IsZero() {
		chore.CreatedAt = time.Now().UTC()
	}
	s.chores[chore.ID] = cloneChore(chore)
	s.choreOrder = append(s.choreOrder, chore.ID)
	return nil
}

// GetChore retrieves a chore by ID.
func (s *Store) GetChore(_ context.Context, id string) (*models.Chore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chores[id]
	if !ok {
		return nil, fmt.Errorf("chore %s: %w", id, storage.ErrNotFound)
	}
	return cloneChore(c), nil
}

// ListChores returns chores owned by or shared with userID, newest first.
func (s *Store) ListChores(_ context.Context, userID string) ([]*models.Chore, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Chore
	for i := len(s.choreOrder) - 1; i >= 0; i-- {
		c, ok := s.chores[s.choreOrder[i]]
		if ok && c.InvolvesUser(userID) {
			out = append(out, cloneChore(c))
		}
	}
	slices.SortStableFunc(out, func(a, b *models.Chore) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// UpdateChoreTitle renames a chore.
func (s *Store) UpdateChoreTitle(_ context.Context, id, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chores[id]
	if !ok {
		return fmt.Errorf("chore %s: %w", id, storage.ErrNotFound)
	}
	c.Title = title
	return nil
}

// SetChoreDone flips the done flag and records the completion, if any.
func (s *Store) SetChoreDone(_ context.Context, id string, done bool, completion *models.ChoreCompletion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chores[id]
	if !ok {
		return fmt.Errorf("chore %s: %w", id, storage.ErrNotFound)
	}
	if c.Done == done {
		return fmt.Errorf("chore %s: %w", id, storage.ErrChoreStateChanged)
	}
	c.Done = done
	if completion != nil {
		if completion.ID == "" {
			completion.ID = uuid.New().String()
		}
		if completion.CompletedAt.IsZero() {
			completion.CompletedAt = time.Now().UTC()
		}
		completion.ChoreID = id
		cp := *completion
		s.completions[cp.ID] = &cp
	}
	return nil
}

// DeleteChore removes a chore and its completions.
func (s *Store) DeleteChore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.chores[id]; !ok {
		return fmt.Errorf("chore %s: %w", id, storage.ErrNotFound)
	}
	delete(s.chores, id)
	s.choreOrder = slices.DeleteFunc(s.choreOrder, func(v string) bool { return v == id })
	for cid, comp := range s.completions {
		if comp.ChoreID == id {
			delete(s.completions, cid)
		}
	}
	return nil
}

// CountOpenChores counts the owner's unfinished chores.
func (s *Store) CountOpenChores(_ context.Context, ownerID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chores {
		if c.OwnerID == ownerID && !c.Done {
			n++
		}
	}
	return n, nil
}

// GetCompletion retrieves a completion by ID.
func (s *Store) GetCompletion(_ context.Context, id string) (*models.ChoreCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.completions[id]
	if !ok {
		return nil, fmt.Errorf("completion %s: %w", id, storage.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// ListCompletionsByUsers returns completions made by any of userIDs, newest first.
func (s *Store) ListCompletionsByUsers(_ context.Context, userIDs []string) ([]*models.ChoreCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ChoreCompletion
	for _, c := range s.completions {
		if slices.Contains(userIDs, c.CompletedBy) {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.ChoreCompletion) int {
		return b.CompletedAt.Compare(a.CompletedAt)
	})
	return out, nil
}

func cloneChore(c *models.Chore) *models.Chore {
	cp := *c
	if c.PartnerID != nil {
		cp.PartnerID = ptr(*c.PartnerID)
	}
	return &cp
}
