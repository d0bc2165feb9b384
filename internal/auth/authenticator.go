package auth

import (
	"context"
	"errors"

	"github.com/mmynk/choremates/internal/models"
)

var ErrExpiredToken = errors.New("token has expired")

// Authenticator defines the interface for account authentication.
// This abstraction allows swapping between different auth methods (password, passkeys, OAuth, etc.)
// without changing the service layer code.
type Authenticator interface {
	// Register creates a new user account with the given email and credential.
	// Registering also creates the user's profile.
	Register(ctx context.Context, email, displayName, credential string) (*models.User, error)

	// Authenticate verifies the user's credentials and returns the user if successful.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks if the credential meets the implementation's requirements.
	ValidateCredential(credential string) error
}

// Identity is the caller a bearer token resolves to.
type Identity struct {
	UserID string
	Email  string
}

// Verifier resolves bearer tokens to identities. Implementations return an
// error wrapping ErrInvalidToken or ErrExpiredToken when the token is rejected.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}
