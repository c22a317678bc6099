package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/connectedhome/connectedhome/internal/auth/oauth"
	"github.com/connectedhome/connectedhome/internal/logging"
	"github.com/rs/zerolog"
)

type contextKey string

const accountIDKey contextKey = "accountId"

// Authenticator resolves a bearer access token to an account id.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (string, error)
}

// AccountID returns the account authenticated by BearerAuth.
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(accountIDKey).(string)
	return id
}

// WithAccountID stores an authenticated account id in ctx.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}

// BearerAuth validates the access token from the Authorization header.
// A missing or malformed header is a bad request; an unknown or expired
// token is unauthorized.
func BearerAuth(auth Authenticator, log zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				http.Error(w, "Missing or malformed Authorization header", http.StatusBadRequest)
				return
			}

			accountID, err := auth.Authenticate(r.Context(), parts[1])
			if err != nil {
				if errors.Is(err, oauth.ErrUnauthorized) {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnauthorized)
					w.Write([]byte(`{"error": "invalid_token"}`))
					return
				}
				l := logging.FromContext(r.Context(), log)
				l.Error().Err(err).Msg("bearer authentication failed")
				w.WriteHeader(http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccountID(r.Context(), accountID)))
		})
	}
}
