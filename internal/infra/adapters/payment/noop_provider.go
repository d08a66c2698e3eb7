// File: internal/infra/adapters/payment/noop_provider.go
package payment

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

var _ adapter.CardProvider = (*NoopProvider)(nil)

// NoopProvider accepts every request without calling anyone. Used in dev
// mode so the full flow can be walked without provider credentials.
type NoopProvider struct {
	name model.Provider
	seq  atomic.Int64
}

func NewNoopProvider(name model.Provider) *NoopProvider {
	return &NoopProvider{name: name}
}

func (p *NoopProvider) Provider() model.Provider { return p.name }

func (p *NoopProvider) IssueToken(ctx context.Context, r adapter.TokenRequest) (*adapter.TokenSession, error) {
	return &adapter.TokenSession{
		Session:      fmt.Sprintf("noop-session-%d", p.seq.Add(1)),
		OTPSentPhone: "+99890*****00",
	}, nil
}

func (p *NoopProvider) VerifyToken(ctx context.Context, session, code string) (*adapter.CardInfo, error) {
	return &adapter.CardInfo{
		Token:     "noop-token-" + session,
		MaskedPAN: "860012******0000",
		Expiry:    "1230",
	}, nil
}

func (p *NoopProvider) ResendCode(ctx context.Context, session string) error { return nil }

func (p *NoopProvider) Charge(ctx context.Context, r adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	return &adapter.ChargeResult{
		ProviderTransID: fmt.Sprintf("noop-pay-%d", p.seq.Add(1)),
	}, nil
}

func (p *NoopProvider) Remove(ctx context.Context, card *model.Card) error { return nil }
