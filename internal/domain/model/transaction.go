package model

import (
	"time"

	"github.com/kamol666/finish/internal/domain"
)

type TransactionStatus string

const (
	TransactionStatusPending  TransactionStatus = "pending"
	TransactionStatusPaid     TransactionStatus = "paid"
	TransactionStatusCanceled TransactionStatus = "canceled"
	TransactionStatusFailed   TransactionStatus = "failed"
)

// TransactionState carries the merchant-protocol state with the wire values
// the provider expects: 1 pending, 2 paid, -1 canceled before settlement,
// -2 canceled after settlement. There is no transition out of -2.
type TransactionState int

const (
	StatePending         TransactionState = 1
	StatePaid            TransactionState = 2
	StatePendingCanceled TransactionState = -1
	StatePaidCanceled    TransactionState = -2
)

// CancelReason uses the merchant-protocol numeric reason codes.
type CancelReason int

const (
	ReasonReceiversNotFound CancelReason = 1
	ReasonDebitError        CancelReason = 2
	ReasonTransactionFailed CancelReason = 3
	ReasonTimeout           CancelReason = 4
	ReasonRefund            CancelReason = 5
	ReasonUnknown           CancelReason = 10
)

// PendingWindow is how long a pending transaction stays performable before
// it is canceled with ReasonTimeout (720 minutes per the merchant protocol).
const PendingWindow = 720 * time.Minute

// Transaction is one payment attempt, identified end-to-end by the
// provider-supplied TransID. Exactly one row exists per TransID, and at most
// one pending one-time transaction per (subscriber, plan).
type Transaction struct {
	ID           string // internal id (uuid)
	TransID      string // provider correlation id, globally unique
	Provider     Provider
	PaymentType  SubscriptionType // onetime (webhook) | subscription (card token)
	Amount       int64            // tiyin
	Status       TransactionStatus
	State        TransactionState
	SubscriberID string
	PlanID       string
	Reason       *CancelReason
	CreatedAt    time.Time
	PerformTime  *time.Time
	CancelTime   *time.Time
}

func NewTransaction(id, transID string, provider Provider, paymentType SubscriptionType, subscriberID, planID string, amount int64) (*Transaction, error) {
	if id == "" || transID == "" || subscriberID == "" || planID == "" || amount <= 0 || !provider.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	return &Transaction{
		ID:           id,
		TransID:      transID,
		Provider:     provider,
		PaymentType:  paymentType,
		Amount:       amount,
		Status:       TransactionStatusPending,
		State:        StatePending,
		SubscriberID: subscriberID,
		PlanID:       planID,
		CreatedAt:    time.Now(),
	}, nil
}

// Expired reports whether a pending transaction has outlived PendingWindow.
func (t *Transaction) Expired(now time.Time) bool {
	return now.Sub(t.CreatedAt) > PendingWindow
}
