package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/zhouzirui/prepx/backend/internal/model/user"
	"github.com/zhouzirui/prepx/backend/pkg/utils"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.User, error)
}

type contextKey struct{ name string }

var userKey = &contextKey{"user"}

// ErrNoToken is returned by BearerToken when the request carries no token.
var ErrNoToken = errors.New("missing bearer token")

// RequireUser rejects requests without a valid session token and stores the
// signed-in user in the request context.
func RequireUser(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			u, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				log.Printf("[auth] rejected token for %s %s: %v", r.Method, r.URL.Path, err)
				utils.RespondError(w, http.StatusUnauthorized, "authentication required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

// BearerToken extracts the session token from the Authorization header, or
// from the access_token query parameter for WebSocket and EventSource clients
// that cannot set headers.
func BearerToken(r *http.Request) (string, error) {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
		return "", ErrNoToken
	}
	if token := strings.TrimSpace(r.URL.Query().Get("access_token")); token != "" {
		return token, nil
	}
	return "", ErrNoToken
}

// WithUser attaches u to ctx.
func WithUser(ctx context.Context, u user.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFromContext returns the user set by RequireUser.
func UserFromContext(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}
