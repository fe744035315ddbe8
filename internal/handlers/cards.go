package handlers

import (
	"encoding/json"
	"net/http"

	"talent/internal/middleware"
	"talent/internal/models"
	"talent/internal/talent"
	"talent/internal/websocket"
)

type applyRequest struct {
	Token  string      `json:"token" validate:"required,cardtoken"`
	Delta  json.Number `json:"delta" validate:"required"`
	Reason string      `json:"reason" validate:"max=200"`
}

type setBalanceRequest struct {
	Token  string      `json:"token" validate:"required,cardtoken"`
	Value  json.Number `json:"value" validate:"required"`
	Reason string      `json:"reason" validate:"max=200"`
}

type labelRequest struct {
	Token string `json:"token" validate:"required,cardtoken"`
	Label string `json:"label" validate:"max=200"`
}

type cardResponse struct {
	OK      bool                 `json:"ok"`
	Card    models.Card          `json:"card"`
	History []models.Transaction `json:"history,omitempty"`
}

// PublicCard shows a participant their own balance. Unknown tokens are
// provisioned at zero.
func (h *Handler) PublicCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.policy.LookupCard(r.Context(), pathParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cardResponse{OK: true, Card: card})
}

// CardFeed upgrades to a websocket that receives balance pushes for one card,
// starting with its current balance.
func (h *Handler) CardFeed(w http.ResponseWriter, r *http.Request) {
	card, err := h.policy.LookupCard(r.Context(), pathParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	websocket.ServeWS(w, r, h.hub, card.Token, &websocket.BalanceUpdate{Token: card.Token, Balance: card.Balance})
}

// BoothCard is the operator view of a card: balance plus recent history.
func (h *Handler) BoothCard(w http.ResponseWriter, r *http.Request) {
	card, err := h.policy.LookupCard(r.Context(), pathParam(r, "token"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	history, err := h.reports.History(r.Context(), card.Token, h.cfg.HistoryLimit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, cardResponse{OK: true, Card: card, History: history})
}

func (h *Handler) BoothApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	delta, err := talent.ParseAmount(req.Delta.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, "delta must be an integer")
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	result, err := h.policy.BoothDeduct(r.Context(), identity, req.Token, delta, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "balance": result.Balance, "transaction_id": result.TransactionID})
}

func (h *Handler) AdminApply(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	delta, err := talent.ParseAmount(req.Delta.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, "delta must be an integer")
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	result, err := h.policy.AdminAdjust(r.Context(), identity, req.Token, delta, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "balance": result.Balance, "transaction_id": result.TransactionID})
}

func (h *Handler) AdminSetBalance(w http.ResponseWriter, r *http.Request) {
	var req setBalanceRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	value, err := talent.ParseAmount(req.Value.String())
	if err != nil {
		respondError(w, http.StatusBadRequest, "value must be an integer")
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	result, err := h.policy.AdminSetBalance(r.Context(), identity, req.Token, value, req.Reason)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true, "balance": result.Balance, "delta": result.Delta})
}

func (h *Handler) SetLabel(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	identity := middleware.IdentityFromContext(r.Context())
	if err := h.policy.AdminSetLabel(r.Context(), identity, req.Token, req.Label); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
