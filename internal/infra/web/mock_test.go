//go:build !integration

package web

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	"github.com/kamol666/finish/internal/domain/ports/repository"
	"github.com/kamol666/finish/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// --- Mock use cases (function fields to simulate behavior per test) ---

type mockMerchantUC struct {
	CheckPerformFunc func(ctx context.Context, planID, userID string, amountTiyin int64) error
	CreateFunc       func(ctx context.Context, transID, planID, userID string, amountTiyin int64) (*model.Transaction, error)
	PerformFunc      func(ctx context.Context, transID string) (*model.Transaction, error)
	CancelFunc       func(ctx context.Context, transID string, reason model.CancelReason) (*model.Transaction, error)
	CheckFunc        func(ctx context.Context, transID string) (*model.Transaction, error)
	StatementFunc    func(ctx context.Context, provider model.Provider, from, to time.Time) ([]*model.Transaction, error)
}

var _ usecase.MerchantUseCase = (*mockMerchantUC)(nil)

func (m *mockMerchantUC) CheckPerform(ctx context.Context, planID, userID string, amountTiyin int64) error {
	if m.CheckPerformFunc != nil {
		return m.CheckPerformFunc(ctx, planID, userID, amountTiyin)
	}
	return nil
}

func (m *mockMerchantUC) Create(ctx context.Context, transID, planID, userID string, amountTiyin int64) (*model.Transaction, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, transID, planID, userID, amountTiyin)
	}
	return &model.Transaction{ID: "tx-1", TransID: transID, State: model.StatePending, CreatedAt: time.Now()}, nil
}

func (m *mockMerchantUC) Perform(ctx context.Context, transID string) (*model.Transaction, error) {
	if m.PerformFunc != nil {
		return m.PerformFunc(ctx, transID)
	}
	now := time.Now()
	return &model.Transaction{ID: "tx-1", TransID: transID, State: model.StatePaid, PerformTime: &now}, nil
}

func (m *mockMerchantUC) Cancel(ctx context.Context, transID string, reason model.CancelReason) (*model.Transaction, error) {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, transID, reason)
	}
	now := time.Now()
	return &model.Transaction{ID: "tx-1", TransID: transID, State: model.StatePendingCanceled, CancelTime: &now}, nil
}

func (m *mockMerchantUC) Check(ctx context.Context, transID string) (*model.Transaction, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, transID)
	}
	return &model.Transaction{ID: "tx-1", TransID: transID, State: model.StatePending, CreatedAt: time.Now()}, nil
}

func (m *mockMerchantUC) Statement(ctx context.Context, provider model.Provider, from, to time.Time) ([]*model.Transaction, error) {
	if m.StatementFunc != nil {
		return m.StatementFunc(ctx, provider, from, to)
	}
	return nil, nil
}

type mockCardUC struct {
	IssueTokenFunc func(ctx context.Context, subscriberID, planID string, provider model.Provider, cardNumber, expiry string) (*adapter.TokenSession, error)
	VerifyFunc     func(ctx context.Context, subscriberID, planID string, provider model.Provider, session, code, selectedService string) (*model.Card, error)
	ResendFunc     func(ctx context.Context, provider model.Provider, session string) error
	RemoveFunc     func(ctx context.Context, subscriberID string, provider model.Provider) error
}

var _ usecase.CardUseCase = (*mockCardUC)(nil)

func (m *mockCardUC) IssueToken(ctx context.Context, subscriberID, planID string, provider model.Provider, cardNumber, expiry string) (*adapter.TokenSession, error) {
	if m.IssueTokenFunc != nil {
		return m.IssueTokenFunc(ctx, subscriberID, planID, provider, cardNumber, expiry)
	}
	return &adapter.TokenSession{Session: "sess-1", OTPSentPhone: "+99890*****11"}, nil
}

func (m *mockCardUC) VerifyToken(ctx context.Context, subscriberID, planID string, provider model.Provider, session, code, selectedService string) (*model.Card, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, subscriberID, planID, provider, session, code, selectedService)
	}
	return &model.Card{ID: "card-1", SubscriberID: subscriberID, Provider: provider, MaskedPAN: "860012******1234", Verified: true}, nil
}

func (m *mockCardUC) ResendCode(ctx context.Context, provider model.Provider, session string) error {
	if m.ResendFunc != nil {
		return m.ResendFunc(ctx, provider, session)
	}
	return nil
}

func (m *mockCardUC) Remove(ctx context.Context, subscriberID string, provider model.Provider) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, subscriberID, provider)
	}
	return nil
}

type mockSubUC struct {
	CancelAllFunc  func(ctx context.Context, subscriberID string) error
	CancelAllCalls int
}

var _ usecase.SubscriptionUseCase = (*mockSubUC)(nil)

func (m *mockSubUC) Apply(ctx context.Context, tx repository.Tx, subscriberID string, g usecase.Grant) (*usecase.GrantResult, error) {
	return nil, nil
}

func (m *mockSubUC) CancelAll(ctx context.Context, subscriberID string) error {
	m.CancelAllCalls++
	if m.CancelAllFunc != nil {
		return m.CancelAllFunc(ctx, subscriberID)
	}
	return nil
}

func (m *mockSubUC) VerifySettled(ctx context.Context, t *model.Transaction) (bool, error) {
	return true, nil
}

// noopLocker always grants the lock; lockErr simulates contention.
type noopLocker struct {
	lockErr error
}

func (l *noopLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.lockErr != nil {
		return "", l.lockErr
	}
	return "token", nil
}

func (l *noopLocker) Unlock(ctx context.Context, key, token string) error { return nil }
