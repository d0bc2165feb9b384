package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/models"
)

// CreateThankYou appends a message.
func (s *Store) CreateThankYou(_ context.Context, msg *models.ThankYou) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	cp := *msg
	s.thanks = append(s.thanks, &cp)
	return nil
}

// ListThankYous filters, sorts newest first, then slices by offset and limit.
// Walking the append-only slice backwards yields newest first; equal
// timestamps keep insertion order.
func (s *Store) ListThankYous(_ context.Context, filter models.ThankYouFilter) ([]*models.ThankYou, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.ThankYou
	for i := len(s.thanks) - 1; i >= 0; i-- {
		if t := s.thanks[i]; filter.Matches(t) {
			cp := *t
			matched = append(matched, &cp)
		}
	}
	slices.SortStableFunc(matched, func(a, b *models.ThankYou) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// CountThankYous counts sent and received messages for userID.
func (s *Store) CountThankYous(_ context.Context, userID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sent, received := 0, 0
	for _, t := range s.thanks {
		if t.FromID == userID {
			sent++
		}
		if t.ToID == userID {
			received++
		}
	}
	return sent, received, nil
}
