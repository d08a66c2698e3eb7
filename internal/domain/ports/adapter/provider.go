package adapter

import (
	"context"
	"fmt"

	"github.com/kamol666/finish/internal/domain/model"
)

// TokenRequest starts card tokenization with a provider.
type TokenRequest struct {
	SubscriberID string
	CardNumber   string
	Expiry       string // MMYY
	Phone        string
}

// TokenSession is the provider's half-open tokenization: the opaque session
// plus the masked phone the OTP went to.
type TokenSession struct {
	Session      string
	OTPSentPhone string
}

// CardInfo is what a provider returns once the OTP is confirmed.
type CardInfo struct {
	Token     string
	MaskedPAN string
	Expiry    string
	Uzcard    *model.UzcardMeta // provider-specific blob, nil for others
}

// ChargeRequest is a one-shot unattended charge against a stored token.
type ChargeRequest struct {
	Card          *model.Card
	AmountTiyin   int64
	CorrelationID string // our generated trans id, passed through for reconciliation
}

// ChargeResult carries the provider-side reference of a settled charge.
type ChargeResult struct {
	ProviderTransID string
	ReceiptURL      string // fiscal receipt link where the provider issues one
}

// CardProvider is the per-provider behavior behind dynamic dispatch: the
// orchestrator and the card lifecycle depend only on this interface.
type CardProvider interface {
	Provider() model.Provider
	IssueToken(ctx context.Context, req TokenRequest) (*TokenSession, error)
	VerifyToken(ctx context.Context, session, code string) (*CardInfo, error)
	ResendCode(ctx context.Context, session string) error
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Remove(ctx context.Context, card *model.Card) error
}

// ProviderError is an upstream error translated at the boundary: the raw
// provider code plus the localized user-facing message from the closed
// per-provider table (generic fallback for unmapped codes).
type ProviderError struct {
	Provider model.Provider
	Code     string
	Message  string // localized, user-facing
	Declined bool   // provider decided no (insufficient funds, blocked card); never retried
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider error %s: %s", e.Provider, e.Code, e.Message)
}
