package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cyberclick/backend/internal/auth"
	"github.com/cyberclick/backend/internal/httpx"
)

type contextKey string

const ctxActorKey contextKey = "actor"

// TokenValidator is the part of auth.Service the middleware needs.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (auth.Actor, error)
}

// BearerAuth authenticates the Authorization: Bearer token and stores the
// actor in the request context.
func BearerAuth(tokens TokenValidator, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				httpx.Unauthorized(w, "missing or malformed Authorization header")
				return
			}
			actor, err := tokens.ValidateToken(r.Context(), raw)
			if errors.Is(err, auth.ErrInvalidToken) {
				httpx.Unauthorized(w, "invalid or expired token")
				return
			}
			if err != nil {
				// A banned account maps to 403 here.
				httpx.WriteError(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// RequireAdmin rejects authenticated callers that are not the administrator.
// It must run after BearerAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromCtx(r.Context())
		if !ok {
			httpx.Unauthorized(w, "authentication required")
			return
		}
		if !actor.IsAdmin() {
			httpx.Forbidden(w, "administrator only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects the administrator token on account-holder routes.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromCtx(r.Context())
		if !ok {
			httpx.Unauthorized(w, "authentication required")
			return
		}
		if actor.Role != auth.RoleUser {
			httpx.Forbidden(w, "account holders only")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ActorFromCtx(ctx context.Context) (auth.Actor, bool) {
	a, ok := ctx.Value(ctxActorKey).(auth.Actor)
	return a, ok
}

// WithActor returns a context carrying the given actor.
func WithActor(ctx context.Context, a auth.Actor) context.Context {
	return context.WithValue(ctx, ctxActorKey, a)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
