// File: internal/infra/adapters/payment/payme_provider.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kamol666/finish/internal/config"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

var _ adapter.CardProvider = (*PaymeProvider)(nil)

// PaymeProvider implements adapter.CardProvider against the Payme subscribe
// API (cards.* and receipts.* JSON-RPC on checkout.paycom.uz). This is the
// outbound surface; the inbound merchant webhook lives in infra/web.
type PaymeProvider struct {
	baseURL    string
	merchantID string
	// X-Auth differs per method family: cards.* wants the bare merchant id,
	// receipts.* wants id:key.
	cardsAuth    string
	receiptsAuth string
	client       *http.Client
}

func NewPaymeProvider(cfg config.PaymeConfig) *PaymeProvider {
	base := cfg.SubsBaseURL
	if base == "" {
		base = "https://checkout.paycom.uz/api"
	}
	return &PaymeProvider{
		baseURL:      base,
		merchantID:   cfg.MerchantID,
		cardsAuth:    cfg.MerchantID,
		receiptsAuth: cfg.MerchantID + ":" + cfg.Password,
		client:       &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *PaymeProvider) Provider() model.Provider { return model.ProviderPayme }

type paymeRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (p *PaymeProvider) call(ctx context.Context, auth, method string, params any, result any) error {
	payload := map[string]any{
		"id":     time.Now().UnixNano(),
		"method": method,
		"params": params,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Auth", auth)
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var out struct {
		Result json.RawMessage `json:"result"`
		Error  *paymeRPCError  `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if out.Error != nil {
		return &adapter.ProviderError{
			Provider: model.ProviderPayme,
			Code:     strconv.Itoa(out.Error.Code),
			Message:  out.Error.Message,
			Declined: out.Error.Code == paymeInsufficientFunds,
		}
	}
	if result != nil {
		return json.Unmarshal(out.Result, result)
	}
	return nil
}

const paymeInsufficientFunds = -31630

type paymeCard struct {
	Number string `json:"number"`
	Expire string `json:"expire"`
	Token  string `json:"token"`
	Verify bool   `json:"verify"`
}

func (p *PaymeProvider) IssueToken(ctx context.Context, r adapter.TokenRequest) (*adapter.TokenSession, error) {
	var created struct {
		Card paymeCard `json:"card"`
	}
	params := map[string]any{
		"card": map[string]string{
			"number": r.CardNumber,
			"expire": r.Expiry,
		},
		"save": true,
	}
	if err := p.call(ctx, p.cardsAuth, "cards.create", params, &created); err != nil {
		return nil, err
	}

	var sent struct {
		Sent  bool   `json:"sent"`
		Phone string `json:"phone"`
	}
	if err := p.call(ctx, p.cardsAuth, "cards.get_verify_code", map[string]string{"token": created.Card.Token}, &sent); err != nil {
		return nil, err
	}
	// The unverified token doubles as the session handle.
	return &adapter.TokenSession{Session: created.Card.Token, OTPSentPhone: sent.Phone}, nil
}

func (p *PaymeProvider) VerifyToken(ctx context.Context, session, code string) (*adapter.CardInfo, error) {
	var verified struct {
		Card paymeCard `json:"card"`
	}
	params := map[string]string{"token": session, "code": code}
	if err := p.call(ctx, p.cardsAuth, "cards.verify", params, &verified); err != nil {
		return nil, err
	}
	return &adapter.CardInfo{
		Token:     verified.Card.Token,
		MaskedPAN: verified.Card.Number,
		Expiry:    verified.Card.Expire,
	}, nil
}

func (p *PaymeProvider) ResendCode(ctx context.Context, session string) error {
	return p.call(ctx, p.cardsAuth, "cards.get_verify_code", map[string]string{"token": session}, nil)
}

// Charge creates a receipt for the amount and pays it with the stored token.
func (p *PaymeProvider) Charge(ctx context.Context, r adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	var created struct {
		Receipt struct {
			ID string `json:"_id"`
		} `json:"receipt"`
	}
	createParams := map[string]any{
		"amount": r.AmountTiyin,
		"account": map[string]string{
			"user_id": r.Card.SubscriberID,
			"plan_id": r.Card.PlanID,
		},
	}
	if err := p.call(ctx, p.receiptsAuth, "receipts.create", createParams, &created); err != nil {
		return nil, err
	}

	var paid struct {
		Receipt struct {
			ID    string `json:"_id"`
			State int    `json:"state"`
		} `json:"receipt"`
	}
	payParams := map[string]string{
		"id":    created.Receipt.ID,
		"token": r.Card.Token,
	}
	if err := p.call(ctx, p.receiptsAuth, "receipts.pay", payParams, &paid); err != nil {
		return nil, err
	}
	return &adapter.ChargeResult{ProviderTransID: paid.Receipt.ID}, nil
}

func (p *PaymeProvider) Remove(ctx context.Context, card *model.Card) error {
	return p.call(ctx, p.cardsAuth, "cards.remove", map[string]string{"token": card.Token}, nil)
}
