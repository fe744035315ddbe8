package handlers

import (
	"net/http"
	"time"

	"talent/internal/auth"
	"talent/internal/middleware"
)

type adminLoginRequest struct {
	Password string `json:"password" validate:"required"`
}

type boothLoginRequest struct {
	Username string `json:"username" validate:"required,boothuser"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	OK        bool      `json:"ok"`
	Token     string    `json:"token"`
	Role      auth.Role `json:"role"`
	Booth     string    `json:"booth,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	identity, err := h.policy.LoginAdmin(req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.startSession(w, identity)
}

func (h *Handler) BoothLogin(w http.ResponseWriter, r *http.Request) {
	var req boothLoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	identity, err := h.policy.LoginBooth(r.Context(), req.Username, req.Password)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	h.startSession(w, identity)
}

func (h *Handler) startSession(w http.ResponseWriter, identity auth.Identity) {
	token, claims, err := auth.GenerateToken(h.cfg.JWTSecret, identity, h.cfg.TokenTTL)
	if err != nil {
		h.logger.Error("failed to sign session", "actor", identity.Actor(), "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	expiresAt := claims.ExpiresAt.Time
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.logger.Info("session started", "actor", identity.Actor(), "jti", claims.ID)
	respondJSON(w, http.StatusOK, sessionResponse{
		OK:        true,
		Token:     token,
		Role:      identity.Role,
		Booth:     identity.Booth,
		ExpiresAt: expiresAt,
	})
}

// Logout revokes the current session id until its natural expiry and clears
// the cookie. It succeeds for anonymous callers too.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && h.sessions != nil {
		var expiresAt time.Time
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
		if err := h.sessions.Revoke(r.Context(), claims.ID, expiresAt); err != nil {
			h.logger.Error("failed to revoke session", "jti", claims.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"role":  identity.Role,
		"booth": identity.Booth,
	})
}
