// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memTxManager runs the callback directly and, when the callback (or an
// injected failWith) errors, restores the attached repositories to their
// pre-call snapshots so tests see real rollback semantics.
type memTxManager struct {
	failWith error
	txs      *memTransactionRepo
	subs     *memSubscriberRepo
	cards    *memCardRepo
	periods  *memPeriodRepo
}

func (m *memTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	var (
		txSnap     map[string]*model.Transaction
		subSnap    map[string]*model.Subscriber
		cardSnap   map[string]*model.Card
		periodSnap []*model.SubscriptionPeriod
	)
	if m.txs != nil {
		txSnap = m.txs.snapshot()
	}
	if m.subs != nil {
		subSnap = m.subs.snapshot()
	}
	if m.cards != nil {
		cardSnap = m.cards.snapshot()
	}
	if m.periods != nil {
		periodSnap = m.periods.snapshot()
	}

	err := fn(ctx, repository.NoTX)
	if err == nil {
		err = m.failWith
	}
	if err != nil {
		if m.txs != nil {
			m.txs.restore(txSnap)
		}
		if m.subs != nil {
			m.subs.restore(subSnap)
		}
		if m.cards != nil {
			m.cards.restore(cardSnap)
		}
		if m.periods != nil {
			m.periods.restore(periodSnap)
		}
	}
	return err
}

// ---- plan repo ----

type memPlanRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Plan
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{store: make(map[string]*model.Plan)}
}

func (m *memPlanRepo) Save(ctx context.Context, _ repository.Tx, p *model.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memPlanRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPlanRepo) FindBySelectedName(ctx context.Context, _ repository.Tx, name string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.SelectedName == name {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPlanRepo) ListAll(ctx context.Context, _ repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Plan, 0, len(m.store))
	for _, p := range m.store {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

// ---- subscriber repo ----

type memSubscriberRepo struct {
	mu      sync.RWMutex
	store   map[string]*model.Subscriber
	saveErr error
}

func newMemSubscriberRepo() *memSubscriberRepo {
	return &memSubscriberRepo{store: make(map[string]*model.Subscriber)}
}

func (m *memSubscriberRepo) Save(ctx context.Context, _ repository.Tx, s *model.Subscriber) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.PlanIDs = append([]string(nil), s.PlanIDs...)
	m.store[s.ID] = &cp
	return nil
}

func (m *memSubscriberRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	cp.PlanIDs = append([]string(nil), s.PlanIDs...)
	return &cp, nil
}

func (m *memSubscriberRepo) snapshot() map[string]*model.Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]*model.Subscriber, len(m.store))
	for id, s := range m.store {
		cp := *s
		cp.PlanIDs = append([]string(nil), s.PlanIDs...)
		snap[id] = &cp
	}
	return snap
}

func (m *memSubscriberRepo) restore(snap map[string]*model.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = snap
}

func (m *memSubscriberRepo) FindByTelegramID(ctx context.Context, _ repository.Tx, telegramID int64) (*model.Subscriber, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.store {
		if s.TelegramID == telegramID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// ---- card repo ----

type memCardRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Card
}

func newMemCardRepo() *memCardRepo {
	return &memCardRepo{store: make(map[string]*model.Card)}
}

func (m *memCardRepo) Upsert(ctx context.Context, _ repository.Tx, card *model.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.store {
		if c.IsDeleted {
			continue
		}
		if c.Provider == card.Provider && c.MaskedPAN == card.MaskedPAN && c.SubscriberID != card.SubscriberID {
			return domain.ErrCardAlreadyExists
		}
	}
	// Replace the subscriber's instrument for this provider in place.
	for id, c := range m.store {
		if c.SubscriberID == card.SubscriberID && c.Provider == card.Provider {
			delete(m.store, id)
		}
	}
	cp := *card
	m.store[card.ID] = &cp
	return nil
}

func (m *memCardRepo) snapshot() map[string]*model.Card {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]*model.Card, len(m.store))
	for id, c := range m.store {
		cp := *c
		snap[id] = &cp
	}
	return snap
}

func (m *memCardRepo) restore(snap map[string]*model.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = snap
}

func (m *memCardRepo) FindByID(ctx context.Context, _ repository.Tx, id string) (*model.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memCardRepo) FindLiveBySubscriberAndProvider(ctx context.Context, _ repository.Tx, subscriberID string, provider model.Provider) (*model.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.store {
		if c.SubscriberID == subscriberID && c.Provider == provider && !c.IsDeleted {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCardRepo) FindLiveByMaskedPAN(ctx context.Context, _ repository.Tx, provider model.Provider, maskedPAN string) (*model.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.store {
		if c.Provider == provider && c.MaskedPAN == maskedPAN && !c.IsDeleted {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memCardRepo) ListLiveBySubscriber(ctx context.Context, _ repository.Tx, subscriberID string) ([]*model.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Card
	for _, c := range m.store {
		if c.SubscriberID == subscriberID && !c.IsDeleted {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memCardRepo) SoftDelete(ctx context.Context, _ repository.Tx, cardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.store[cardID]
	if !ok || c.IsDeleted {
		return domain.ErrNotFound
	}
	now := time.Now()
	c.IsDeleted = true
	c.DeletedAt = &now
	return nil
}

// ---- transaction repo ----

type memTransactionRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Transaction // by TransID

	// beforeMarkCanceled runs once before the next MarkCanceled applies,
	// outside the repo lock, so a test can interleave a concurrent write.
	beforeMarkCanceled func()
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{store: make(map[string]*model.Transaction)}
}

func (m *memTransactionRepo) Insert(ctx context.Context, _ repository.Tx, t *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.store[t.TransID]; exists {
		return domain.ErrAlreadyExists
	}
	if t.PaymentType == model.SubscriptionTypeOneTime {
		for _, other := range m.store {
			if other.SubscriberID == t.SubscriberID && other.PlanID == t.PlanID &&
				other.Status == model.TransactionStatusPending && other.PaymentType == model.SubscriptionTypeOneTime {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *t
	m.store[t.TransID] = &cp
	return nil
}

func (m *memTransactionRepo) FindByTransID(ctx context.Context, _ repository.Tx, transID string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[transID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTransactionRepo) FindPendingBySubscriberAndPlan(ctx context.Context, _ repository.Tx, subscriberID, planID string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.store {
		if t.SubscriberID == subscriberID && t.PlanID == planID &&
			t.Status == model.TransactionStatusPending && t.PaymentType == model.SubscriptionTypeOneTime {
			cp := *t
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memTransactionRepo) MarkPaid(ctx context.Context, _ repository.Tx, transID string, performTime time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[transID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.Status != model.TransactionStatusPending {
		return false, nil
	}
	pt := performTime
	t.Status = model.TransactionStatusPaid
	t.State = model.StatePaid
	t.PerformTime = &pt
	return true, nil
}

func (m *memTransactionRepo) MarkCanceled(ctx context.Context, _ repository.Tx, transID string, from model.TransactionStatus, state model.TransactionState, reason model.CancelReason, cancelTime time.Time) (bool, error) {
	if m.beforeMarkCanceled != nil {
		hook := m.beforeMarkCanceled
		m.beforeMarkCanceled = nil
		hook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.store[transID]
	if !ok {
		return false, domain.ErrNotFound
	}
	if t.Status != from {
		return false, nil
	}
	ct := cancelTime
	t.Status = model.TransactionStatusCanceled
	t.State = state
	t.Reason = &reason
	t.CancelTime = &ct
	return true, nil
}

func (m *memTransactionRepo) ListByProviderBetween(ctx context.Context, _ repository.Tx, provider model.Provider, from, to time.Time) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.Provider == provider && !t.CreatedAt.Before(from) && !t.CreatedAt.After(to) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memTransactionRepo) ListStalePending(ctx context.Context, _ repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.Status == model.TransactionStatusPending && t.CreatedAt.Before(olderThan) {
			cp := *t
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memTransactionRepo) ListPaidSince(ctx context.Context, _ repository.Tx, since time.Time, limit int) ([]*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Transaction
	for _, t := range m.store {
		if t.Status == model.TransactionStatusPaid && t.PerformTime != nil && !t.PerformTime.Before(since) {
			cp := *t
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memTransactionRepo) snapshot() map[string]*model.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]*model.Transaction, len(m.store))
	for id, t := range m.store {
		cp := *t
		snap[id] = &cp
	}
	return snap
}

func (m *memTransactionRepo) restore(snap map[string]*model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = snap
}

// setCreatedAt backdates a stored transaction (expiry tests).
func (m *memTransactionRepo) setCreatedAt(transID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.store[transID]; ok {
		t.CreatedAt = at
	}
}

// ---- period repo ----

type memPeriodRepo struct {
	mu        sync.RWMutex
	store     []*model.SubscriptionPeriod
	insertErr error
}

func newMemPeriodRepo() *memPeriodRepo {
	return &memPeriodRepo{}
}

func (m *memPeriodRepo) Insert(ctx context.Context, _ repository.Tx, p *model.SubscriptionPeriod) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store = append(m.store, &cp)
	return nil
}

func (m *memPeriodRepo) snapshot() []*model.SubscriptionPeriod {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make([]*model.SubscriptionPeriod, len(m.store))
	for i, p := range m.store {
		cp := *p
		snap[i] = &cp
	}
	return snap
}

func (m *memPeriodRepo) restore(snap []*model.SubscriptionPeriod) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = snap
}

func (m *memPeriodRepo) ListBySubscriber(ctx context.Context, _ repository.Tx, subscriberID string) ([]*model.SubscriptionPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionPeriod
	for _, p := range m.store {
		if p.SubscriberID == subscriberID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memPeriodRepo) ListAutoRenewDue(ctx context.Context, _ repository.Tx, cutoff time.Time, limit int) ([]*model.SubscriptionPeriod, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.SubscriptionPeriod
	for _, p := range m.store {
		if p.IsActive && p.AutoRenew && !p.EndDate.After(cutoff) {
			cp := *p
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memPeriodRepo) CloseActiveBySubscriber(ctx context.Context, _ repository.Tx, subscriberID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.store {
		if p.SubscriberID == subscriberID && p.IsActive {
			p.IsActive = false
			p.AutoRenew = false
			p.Status = model.PeriodStatusCancelled
			n++
		}
	}
	return n, nil
}

func (m *memPeriodRepo) ExpireLapsed(ctx context.Context, _ repository.Tx, endedBefore, renewAbandonedBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.store {
		if !p.IsActive {
			continue
		}
		cutoff := endedBefore
		if p.AutoRenew {
			cutoff = renewAbandonedBefore
		}
		if p.EndDate.Before(cutoff) {
			p.IsActive = false
			p.AutoRenew = false
			p.Status = model.PeriodStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *memPeriodRepo) ExistsForSettlement(ctx context.Context, _ repository.Tx, subscriberID, planID string, paidAmount int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.store {
		if p.SubscriberID == subscriberID && p.PlanID == planID && p.PaidAmount == paidAmount {
			return true, nil
		}
	}
	return false, nil
}

// ---- provider adapter ----

type mockProvider struct {
	name        model.Provider
	issueFunc   func(ctx context.Context, r adapter.TokenRequest) (*adapter.TokenSession, error)
	verifyFunc  func(ctx context.Context, session, code string) (*adapter.CardInfo, error)
	chargeFunc  func(ctx context.Context, r adapter.ChargeRequest) (*adapter.ChargeResult, error)
	removeFunc  func(ctx context.Context, card *model.Card) error
	chargeCalls int
	removeCalls int
	resendCalls int
}

func (m *mockProvider) Provider() model.Provider { return m.name }

func (m *mockProvider) IssueToken(ctx context.Context, r adapter.TokenRequest) (*adapter.TokenSession, error) {
	if m.issueFunc != nil {
		return m.issueFunc(ctx, r)
	}
	return &adapter.TokenSession{Session: "sess-1", OTPSentPhone: "+99890*****11"}, nil
}

func (m *mockProvider) VerifyToken(ctx context.Context, session, code string) (*adapter.CardInfo, error) {
	if m.verifyFunc != nil {
		return m.verifyFunc(ctx, session, code)
	}
	return &adapter.CardInfo{Token: "tok-" + session, MaskedPAN: "860012******1234", Expiry: "1230"}, nil
}

func (m *mockProvider) ResendCode(ctx context.Context, session string) error {
	m.resendCalls++
	return nil
}

func (m *mockProvider) Charge(ctx context.Context, r adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	m.chargeCalls++
	if m.chargeFunc != nil {
		return m.chargeFunc(ctx, r)
	}
	return &adapter.ChargeResult{ProviderTransID: "prov-1"}, nil
}

func (m *mockProvider) Remove(ctx context.Context, card *model.Card) error {
	m.removeCalls++
	if m.removeFunc != nil {
		return m.removeFunc(ctx, card)
	}
	return nil
}

// ---- notifier ----

type mockNotifier struct {
	paymentSuccess    int
	activation        int
	addedWithoutBonus int
	renewalSuccess    int
	renewalFailed     int
	lastFailReason    string
}

func (m *mockNotifier) PaymentSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan) {
	m.paymentSuccess++
}

func (m *mockNotifier) ActivationSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan, bonusDays int) {
	m.activation++
}

func (m *mockNotifier) CardAddedWithoutBonus(ctx context.Context, sub *model.Subscriber, provider model.Provider) {
	m.addedWithoutBonus++
}

func (m *mockNotifier) RenewalSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan, receiptURL string) {
	m.renewalSuccess++
}

func (m *mockNotifier) RenewalFailed(ctx context.Context, sub *model.Subscriber, reason string) {
	m.renewalFailed++
	m.lastFailReason = reason
}
