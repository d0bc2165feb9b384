package models

import "time"

// Chore is a household task owned by one profile and optionally shared with
// the owner's partner.
type Chore struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	PartnerID *string   `json:"partner_id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// InvolvesUser reports whether userID owns the chore or is its sharing target.
func (c *Chore) InvolvesUser(userID string) bool {
	if c.OwnerID == userID {
		return true
	}
	return c.PartnerID != nil && *c.PartnerID == userID
}

// ChoreCompletion records who marked a chore done and when.
type ChoreCompletion struct {
	ID          string    `json:"id"`
	ChoreID     string    `json:"chore_id"`
	CompletedBy string    `json:"completed_by"`
	CompletedAt time.Time `json:"completed_at"`
}
