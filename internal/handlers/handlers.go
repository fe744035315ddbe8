package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"talent/internal/services"
	"talent/internal/validator"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]any{"ok": false, "error": message})
}

func respondValidation(w http.ResponseWriter, err error) {
	respondJSON(w, http.StatusBadRequest, map[string]any{
		"ok":      false,
		"error":   "invalid payload",
		"details": validator.Details(err),
	})
}

// respondServiceError maps service error kinds onto status codes. Anything
// unrecognised is logged and reported as a 500 without detail.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrAlreadyExists):
		respondError(w, http.StatusConflict, "already exists")
	case errors.Is(err, services.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON rejects unknown fields, trailing data and payloads that fail
// struct validation. It writes the 400 itself and reports false.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if _, err := decoder.Token(); !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return false
	}
	if err := h.validate.Struct(dest); err != nil {
		respondValidation(w, err)
		return false
	}
	return true
}

// queryInt parses an optional non-negative integer query parameter.
func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return value, nil
}

// pathParam returns a decoded route parameter. chi routes on the raw path
// when it carries escapes such as %2F, and those params arrive encoded.
func pathParam(r *http.Request, key string) string {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value
	}
	if decoded, err := url.PathUnescape(value); err == nil {
		return decoded
	}
	return value
}
