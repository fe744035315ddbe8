package middleware

import (
	"encoding/json"
	"net/http"

	"talent/internal/auth"
)

// RequireRole rejects with 401 unless the caller holds one of roles.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := IdentityFromContext(r.Context())
			for _, role := range roles {
				if identity.Role != role {
					continue
				}
				if role == auth.RoleBooth && !identity.IsBooth() {
					continue
				}
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w, loginMessage(roles))
		})
	}
}

func loginMessage(roles []auth.Role) string {
	for _, role := range roles {
		if role == auth.RoleBooth {
			return "booth login required"
		}
	}
	return "admin login required"
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": message})
}
