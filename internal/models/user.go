package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered local account.
//
// Only the password authentication path stores users. When authentication is
// delegated to the hosted backend, identities come from verified tokens and
// only the Profile row exists here.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	// The matching Profile shares this ID.
	ID string

	// Email is the user's email address (unique). Used for login.
	Email string

	// DisplayName is shown to the user's partner.
	DisplayName string

	// PasswordHash is the bcrypt hash of the password.
	PasswordHash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser creates a user with a fresh ID and timestamps.
func NewUser(email, displayName, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New().String(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
