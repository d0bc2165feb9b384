package models

import "time"

// ThankYou is an append-only message from one partner to the other.
type ThankYou struct {
	ID        string    `json:"id"`
	FromID    string    `json:"from_id"`
	ToID      string    `json:"to_id"`
	Message   string    `json:"message"`
	ChoreID   *string   `json:"chore_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ThankYouDirection selects which side of the conversation to list.
type ThankYouDirection string

const (
	ThanksSent     ThankYouDirection = "sent"
	ThanksReceived ThankYouDirection = "received"
	ThanksAll      ThankYouDirection = "all"
)

// ThankYouFilter narrows a history listing.
type ThankYouFilter struct {
	UserID    string
	Direction ThankYouDirection
	Limit     int
	Offset    int
}

// Matches reports whether t belongs to the filter's direction for UserID.
func (f ThankYouFilter) Matches(t *ThankYou) bool {
	switch f.Direction {
	case ThanksSent:
		return t.FromID == f.UserID
	case ThanksReceived:
		return t.ToID == f.UserID
	default:
		return t.FromID == f.UserID || t.ToID == f.UserID
	}
}

// ThankYouStats counts a user's thank-you traffic.
type ThankYouStats struct {
	Sent     int `json:"sent"`
	Received int `json:"received"`
	Total    int `json:"total"`
}
