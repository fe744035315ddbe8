package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"talent/internal/middleware"
	"talent/internal/services"
	"talent/internal/talent"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

type upsertCardRequest struct {
	Token   string      `json:"token" validate:"required,cardtoken"`
	Label   string      `json:"label" validate:"max=200"`
	Balance json.Number `json:"balance"`
}

type importRequest struct {
	Bulk string `json:"bulk" validate:"required"`
}

type createBoothRequest struct {
	Username string `json:"username" validate:"required,boothuser"`
	Password string `json:"password" validate:"required,min=4"`
	Label    string `json:"label" validate:"max=200"`
}

type updateBoothRequest struct {
	Password string `json:"password" validate:"omitempty,min=4"`
	Label    string `json:"label" validate:"max=200"`
}

type boothsInfoRequest struct {
	BoothsInfo string `json:"booths_info"`
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Cards(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "cards": report.Cards, "summary": report.Summary})
}

func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.policy.LookupCard(r.Context(), pathParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cardResponse{OK: true, Card: card})
}

func (h *Handler) CardHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", h.cfg.HistoryLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	history, err := h.reports.History(r.Context(), pathParam(r, "token"), limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "history": history})
}

// CardQR renders a PNG pointing at the participant page for the card.
func (h *Handler) CardQR(w http.ResponseWriter, r *http.Request) {
	card, err := h.policy.LookupCard(r.Context(), pathParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	png, err := qrcode.Encode(participantURL(h.cfg.PublicBaseURL, card.Token), qrcode.Medium, qrSize)
	if err != nil {
		h.respondServiceError(w, r, fmt.Errorf("encode qr: %w", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func participantURL(baseURL, token string) string {
	return strings.TrimRight(baseURL, "/") + "/c/" + url.PathEscape(token)
}

// UpsertCard creates or overwrites one card. A blank balance means zero.
func (h *Handler) UpsertCard(w http.ResponseWriter, r *http.Request) {
	var req upsertCardRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	var balance int64
	if req.Balance != "" {
		parsed, err := talent.ParseAmount(req.Balance.String())
		if err != nil {
			respondError(w, http.StatusBadRequest, "balance must be an integer")
			return
		}
		balance = parsed
	}
	identity := middleware.IdentityFromContext(r.Context())
	row := services.RosterRow{Token: req.Token, Balance: balance, Label: req.Label}
	if err := h.policy.AdminUpsertCard(r.Context(), identity, row); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ImportCards accepts a roster either as a text/plain body or as JSON
// {"bulk": "..."}.
func (h *Handler) ImportCards(w http.ResponseWriter, r *http.Request) {
	var text string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/plain") {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		text = string(body)
	} else {
		var req importRequest
		if !h.decodeJSON(w, r, &req) {
			return
		}
		text = req.Bulk
	}
	identity := middleware.IdentityFromContext(r.Context())
	result, err := h.policy.AdminImport(r.Context(), identity, text)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	skipped := result.Skipped
	if skipped == nil {
		skipped = []services.SkippedLine{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "applied": result.Applied, "skipped": skipped})
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if err := h.policy.AdminDeleteCard(r.Context(), identity, pathParam(r, "token")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) ListBooths(w http.ResponseWriter, r *http.Request) {
	booths, err := h.policy.ListBooths(r.Context(), middleware.IdentityFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "booths": booths})
}

func (h *Handler) CreateBooth(w http.ResponseWriter, r *http.Request) {
	var req createBoothRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	booth, err := h.policy.CreateBooth(r.Context(), identity, req.Username, req.Password, req.Label)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"ok": true, "booth": booth})
}

// UpdateBooth changes the label and, when given, the password.
func (h *Handler) UpdateBooth(w http.ResponseWriter, r *http.Request) {
	var req updateBoothRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if err := h.policy.UpdateBooth(r.Context(), identity, pathParam(r, "username"), req.Password, req.Label); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) DeleteBooth(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if err := h.policy.DeleteBooth(r.Context(), identity, pathParam(r, "username")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// BoothsInfo is the public booth directory.
func (h *Handler) BoothsInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.content.BoothsInfo(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "sections": info.Sections})
}

func (h *Handler) GetBoothsInfoSettings(w http.ResponseWriter, r *http.Request) {
	info, err := h.content.BoothsInfo(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "booths_info": info.Raw})
}

func (h *Handler) PutBoothsInfoSettings(w http.ResponseWriter, r *http.Request) {
	var req boothsInfoRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if err := h.policy.SetBoothsInfo(r.Context(), identity, req.BoothsInfo); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// ExportTransactions buffers the whole CSV so a failed read still yields a
// proper error status.
func (h *Handler) ExportTransactions(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.reports.ExportCSV(r.Context(), &buf); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFilename(time.Now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	drift, err := h.reports.Reconcile(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "consistent": len(drift) == 0, "drift": drift})
}

func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.policy.AuditLog(r.Context(), middleware.IdentityFromContext(r.Context()), limit, offset)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "entries": entries})
}
