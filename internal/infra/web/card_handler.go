// File: internal/infra/web/card_handler.go
package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	"github.com/kamol666/finish/internal/infra/metrics"
	"github.com/kamol666/finish/internal/usecase"
)

// cardHandler exposes the tokenization lifecycle to the bot front-end.
// Responses mirror the upstream shape: {success, ...} or
// {success:false, error_code, message} with the localized text.
type cardHandler struct {
	uc  usecase.CardUseCase
	log *zerolog.Logger
}

func newCardHandler(uc usecase.CardUseCase, logger *zerolog.Logger) *cardHandler {
	return &cardHandler{uc: uc, log: logger}
}

func providerParam(r *http.Request) (model.Provider, bool) {
	p := model.Provider(chi.URLParam(r, "provider"))
	return p, p.Valid()
}

func (h *cardHandler) writeErr(w http.ResponseWriter, status int, err error) {
	code, msg := "internal", "unexpected error"
	var perr *adapter.ProviderError
	switch {
	case errors.As(err, &perr):
		code, msg = perr.Code, perr.Message
	case errors.Is(err, domain.ErrCardAlreadyExists):
		code, msg = "card_already_exists", "Bu karta raqam mavjud. Iltimos boshqa karta raqamini tanlang."
	case errors.Is(err, domain.ErrNotFound):
		status, code, msg = http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, domain.ErrInvalidArgument):
		status, code, msg = http.StatusBadRequest, "bad_request", "invalid request"
	}
	writeJSON(w, status, map[string]any{
		"success":    false,
		"error_code": code,
		"message":    msg,
	})
}

func (h *cardHandler) issueToken(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_provider"})
		return
	}
	var body struct {
		SubscriberID string `json:"subscriber_id"`
		PlanID       string `json:"plan_id"`
		CardNumber   string `json:"card_number"`
		Expiry       string `json:"expire_date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_request"})
		return
	}
	session, err := h.uc.IssueToken(r.Context(), body.SubscriberID, body.PlanID, provider, body.CardNumber, body.Expiry)
	if err != nil {
		metrics.IncCardTokenization(string(provider), "failed")
		h.writeErr(w, http.StatusOK, err)
		return
	}
	metrics.IncCardTokenization(string(provider), "issued")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"session":        session.Session,
		"otp_sent_phone": session.OTPSentPhone,
	})
}

func (h *cardHandler) verifyToken(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_provider"})
		return
	}
	var body struct {
		SubscriberID    string `json:"subscriber_id"`
		PlanID          string `json:"plan_id"`
		Session         string `json:"session"`
		Code            string `json:"otp"`
		SelectedService string `json:"selected_service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_request"})
		return
	}
	card, err := h.uc.VerifyToken(r.Context(), body.SubscriberID, body.PlanID, provider, body.Session, body.Code, body.SelectedService)
	if err != nil {
		metrics.IncCardTokenization(string(provider), "failed")
		h.writeErr(w, http.StatusOK, err)
		return
	}
	metrics.IncCardTokenization(string(provider), "verified")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"card_id":     card.ID,
		"masked_pan":  card.MaskedPAN,
		"provider":    card.Provider,
		"verified_at": card.VerifiedAt,
	})
}

func (h *cardHandler) resendCode(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_provider"})
		return
	}
	var body struct {
		Session string `json:"session"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_request"})
		return
	}
	if err := h.uc.ResendCode(r.Context(), provider, body.Session); err != nil {
		h.writeErr(w, http.StatusOK, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *cardHandler) remove(w http.ResponseWriter, r *http.Request) {
	provider, ok := providerParam(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_provider"})
		return
	}
	var body struct {
		SubscriberID string `json:"subscriber_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error_code": "bad_request"})
		return
	}
	if err := h.uc.Remove(r.Context(), body.SubscriberID, provider); err != nil {
		h.writeErr(w, http.StatusOK, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
