package auth

import (
	"context"

	"github.com/google/uuid"
)

// MockVerifier accepts any UUID as a token and treats it as the user ID. It
// backs the demo mode that runs on the in-memory store.
type MockVerifier struct{}

// Verify implements Verifier.
func (MockVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	id, err := uuid.Parse(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	return &Identity{UserID: id.String(), Email: id.String()[:8] + "@mock.local"}, nil
}
