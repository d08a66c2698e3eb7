// File: internal/infra/adapters/payment/uzcard_provider.go
package payment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kamol666/finish/internal/config"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

var _ adapter.CardProvider = (*UzcardProvider)(nil)

// UzcardProvider implements adapter.CardProvider against the Uzcard
// UserCard/Payment REST API.
type UzcardProvider struct {
	baseURL  string
	login    string
	password string
	client   *http.Client
}

func NewUzcardProvider(cfg config.UzcardConfig) *UzcardProvider {
	return &UzcardProvider{
		baseURL:  cfg.BaseURL,
		login:    cfg.Login,
		password: cfg.Password,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *UzcardProvider) Provider() model.Provider { return model.ProviderUzcard }

// uzcardEnvelope is the common response shape: either error or result is set.
type uzcardEnvelope struct {
	Error *struct {
		ErrorCode    json.Number `json:"errorCode"`
		ErrorMessage string      `json:"errorMessage"`
	} `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (p *UzcardProvider) post(ctx context.Context, path string, payload any, out *uzcardEnvelope) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, &body)
	if err != nil {
		return err
	}
	p.setHeaders(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

func (p *UzcardProvider) setHeaders(req *http.Request) {
	cred := base64.StdEncoding.EncodeToString([]byte(p.login + ":" + p.password))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+cred)
	req.Header.Set("Language", "uz")
}

func (p *UzcardProvider) apiError(env *uzcardEnvelope) error {
	code := env.Error.ErrorCode.String()
	msg := env.Error.ErrorMessage
	if m, ok := uzcardErrorMessages[code]; ok {
		msg = m
	} else if msg == "" {
		msg = uzcardFallbackMessage
	}
	return &adapter.ProviderError{
		Provider: model.ProviderUzcard,
		Code:     code,
		Message:  msg,
		Declined: uzcardDeclinedCodes[code],
	}
}

func (p *UzcardProvider) IssueToken(ctx context.Context, r adapter.TokenRequest) (*adapter.TokenSession, error) {
	payload := map[string]any{
		"userId":     r.SubscriberID,
		"cardNumber": r.CardNumber,
		"expireDate": r.Expiry,
		"userPhone":  r.Phone,
	}
	var env uzcardEnvelope
	if err := p.post(ctx, "/UserCard/createUserCard", payload, &env); err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, p.apiError(&env)
	}
	var res struct {
		Session      string `json:"session"`
		OTPSentPhone string `json:"otpSentPhone"`
	}
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return nil, err
	}
	return &adapter.TokenSession{Session: res.Session, OTPSentPhone: res.OTPSentPhone}, nil
}

func (p *UzcardProvider) VerifyToken(ctx context.Context, session, code string) (*adapter.CardInfo, error) {
	payload := map[string]any{
		"session":   session,
		"otp":       code,
		"isTrusted": 1,
	}
	var env uzcardEnvelope
	if err := p.post(ctx, "/UserCard/confirmUserCardCreate", payload, &env); err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, p.apiError(&env)
	}
	var res struct {
		Card struct {
			ID         json.Number `json:"id"` // provider-internal id, needed for deleteUserCard
			CardID     string      `json:"cardId"`
			Number     string      `json:"number"`
			Owner      string      `json:"owner"`
			IsTrusted  bool        `json:"isTrusted"`
			Balance    int64       `json:"balance"`
			ExpireDate string      `json:"expireDate"`
		} `json:"card"`
	}
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return nil, err
	}
	return &adapter.CardInfo{
		Token:     res.Card.CardID,
		MaskedPAN: res.Card.Number,
		Expiry:    res.Card.ExpireDate,
		Uzcard: &model.UzcardMeta{
			IsTrusted: res.Card.IsTrusted,
			Balance:   res.Card.Balance,
			Owner:     res.Card.Owner,
			DeleteID:  res.Card.ID.String(),
		},
	}, nil
}

func (p *UzcardProvider) ResendCode(ctx context.Context, session string) error {
	var env uzcardEnvelope
	path := "/UserCard/resendOtp?session=" + url.QueryEscape(session)
	if err := p.post(ctx, path, nil, &env); err != nil {
		return err
	}
	if env.Error != nil {
		return p.apiError(&env)
	}
	return nil
}

func (p *UzcardProvider) Charge(ctx context.Context, r adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	// The Payment endpoint takes whole som, unlike the merchant webhook.
	payload := map[string]any{
		"userId":  r.Card.SubscriberID,
		"cardId":  r.Card.Token,
		"amount":  r.AmountTiyin / 100,
		"extraId": r.CorrelationID,
		"sendOtp": false,
	}
	var env uzcardEnvelope
	if err := p.post(ctx, "/Payment/payment", payload, &env); err != nil {
		return nil, err
	}
	if env.Error != nil {
		return nil, p.apiError(&env)
	}
	var res struct {
		TransactionID json.Number `json:"transactionId"`
		UTRNO         json.Number `json:"utrno"`
		QRCodeURL     string      `json:"qrCodeUrl"`
	}
	if err := json.Unmarshal(env.Result, &res); err != nil {
		return nil, err
	}
	if res.TransactionID.String() == "" {
		return nil, &adapter.ProviderError{
			Provider: model.ProviderUzcard,
			Code:     "unconfirmed",
			Message:  uzcardFallbackMessage,
		}
	}
	return &adapter.ChargeResult{
		ProviderTransID: res.TransactionID.String(),
		ReceiptURL:      res.QRCodeURL,
	}, nil
}

func (p *UzcardProvider) Remove(ctx context.Context, card *model.Card) error {
	if card.Uzcard == nil || card.Uzcard.DeleteID == "" {
		return fmt.Errorf("uzcard: card %s has no delete id", card.ID)
	}
	u := fmt.Sprintf("%s/UserCard/deleteUserCard?userCardId=%s", p.baseURL, url.QueryEscape(card.Uzcard.DeleteID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	p.setHeaders(req)
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var out struct {
		Result struct {
			Success bool `json:"success"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}
	if !out.Result.Success {
		return fmt.Errorf("uzcard: delete card %s not confirmed", card.ID)
	}
	return nil
}

// uzcardErrorMessages maps provider error codes to the Uzbek texts shown to
// subscribers. Unmapped codes fall back to a generic message.
var uzcardErrorMessages = map[string]string{
	// card errors
	"-101": "Karta malumotlari noto'g'ri. Iltimos tekshirib qaytadan kiriting.",
	"-103": "Amal qilish muddati noto'g'ri. Iltimos tekshirib qaytadan kiriting.",
	"-104": "Karta aktive emas. Bankga murojaat qiling.",
	"-108": "Karta tizimga ulangan. Bizga murojaat qiling.",

	// sms errors
	"-113": "Tasdiqlash kodi muddati o'tgan. Qayta yuborish tugmasidan foydalaning.",
	"-137": "Tasdiqlash kodi noto'g'ri.",

	// additional common errors
	"-110": "Kartada yetarli mablag' mavjud emas.",
	"-120": "Kartangiz bloklangan. Bankga murojaat qiling.",
	"-130": "Xavfsizlik chegaralaridan oshib ketdi. Keyinroq qayta urinib ko'ring.",
}

const uzcardFallbackMessage = "Kutilmagan xatolik yuz berdi. Iltimos qaytadan urinib ko'ring."

// uzcardDeclinedCodes are final decisions: retrying the charge cannot help.
var uzcardDeclinedCodes = map[string]bool{
	"-104": true,
	"-110": true,
	"-120": true,
}
