package httpapi

import (
	"net/http"

	"github.com/mmynk/choremates/internal/auth"
	"github.com/mmynk/choremates/internal/middleware"
)

// requireUser rejects requests without a valid bearer token. Browsers cannot
// set headers on a websocket handshake, so the access_token query parameter
// is accepted as a fallback.
func requireUser(v auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := middleware.BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				respondError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			ctx, err := middleware.Authenticate(r.Context(), v, token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
