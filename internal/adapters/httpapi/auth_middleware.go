package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devlogs/devlogs-api/internal/domain"
	"github.com/devlogs/devlogs-api/internal/platform/auth/jwtverifier"
)

// TokenVerifier turns a raw bearer credential into an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (domain.Identity, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <JWT>.
//
// On success, it stores the verified identity in request context.
func NewAuthMiddleware(v TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if len(authz) < len(prefix) || !strings.EqualFold(authz[:len(prefix)], prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(authz[len(prefix):])

			id, err := v.Verify(r.Context(), raw)
			if err != nil {
				if log != nil {
					log.DebugContext(r.Context(), "token rejected", slog.Any("err", err))
				}
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", verifyFailureMessage(err), nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func verifyFailureMessage(err error) string {
	switch {
	case errors.Is(err, jwtverifier.ErrMissingCredential):
		return "missing bearer token"
	case errors.Is(err, jwtverifier.ErrExpired):
		return "token expired"
	case errors.Is(err, jwtverifier.ErrUnsupportedAlgorithm):
		return "unsupported token algorithm"
	}
	return "invalid token"
}

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It accepts an explicit subject via X-Debug-Subject (and optional X-Debug-Email) and stores
// it in request context. If the header is absent, it falls back to defaultSubject (if provided).
//
// Do NOT use this in production deployments.
func NewDevAuthMiddleware(defaultSubject string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sub := strings.TrimSpace(r.Header.Get("X-Debug-Subject"))
			if sub == "" {
				sub = strings.TrimSpace(defaultSubject)
			}
			if sub == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing subject (set X-Debug-Subject)", nil)
				return
			}
			id := domain.Identity{
				UserID: domain.UserID(sub),
				Email:  strings.TrimSpace(r.Header.Get("X-Debug-Email")),
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
