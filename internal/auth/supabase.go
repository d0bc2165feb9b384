package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

// SupabaseVerifier checks access tokens issued by Supabase Auth by asking the
// auth server for the token's user.
type SupabaseVerifier struct {
	client *supabase.Client
}

// NewSupabaseVerifier creates a verifier for the project at url.
func NewSupabaseVerifier(url, key string) (*SupabaseVerifier, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &SupabaseVerifier{client: client}, nil
}

// Verify implements Verifier. The auth client does not take a context, so
// cancellation only applies before the call starts.
func (v *SupabaseVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	user, err := v.client.Auth.WithToken(token).GetUser()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "expired") {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return &Identity{UserID: user.ID.String(), Email: user.Email}, nil
}
