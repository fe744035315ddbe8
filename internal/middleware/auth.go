package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"talent/internal/auth"
)

const SessionCookie = "talent_session"

type contextKey string

const (
	identityKey contextKey = "identity"
	claimsKey   contextKey = "claims"
)

// Revocations reports whether a session id was revoked by logout.
type Revocations interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

func WithIdentity(ctx context.Context, identity auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the caller's identity, anonymous if none was
// resolved.
func IdentityFromContext(ctx context.Context) auth.Identity {
	identity, ok := ctx.Value(identityKey).(auth.Identity)
	if !ok {
		return auth.Anonymous()
	}
	return identity
}

func ClaimsFromContext(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

// TokenFromRequest reads a Bearer token from the Authorization header,
// falling back to the session cookie. Other schemes are ignored.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Identify resolves the session on every request. Missing, invalid, expired
// or revoked tokens leave the request anonymous; gating is RequireRole's job.
func Identify(secret string, revocations Revocations, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if revocations != nil {
				revoked, err := revocations.IsRevoked(r.Context(), claims.ID)
				if err != nil {
					logger.Warn("revocation check failed", "error", err)
				}
				if revoked {
					next.ServeHTTP(w, r)
					return
				}
			}
			ctx := WithIdentity(r.Context(), claims.Identity())
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
