package repository

import (
	"context"
	"time"

	"github.com/kamol666/finish/internal/domain/model"
)

// PeriodRepository persists immutable subscription-period audit rows.
type PeriodRepository interface {
	Insert(ctx context.Context, tx Tx, p *model.SubscriptionPeriod) error
	ListBySubscriber(ctx context.Context, tx Tx, subscriberID string) ([]*model.SubscriptionPeriod, error)

	// ListAutoRenewDue returns active auto-renew periods ending before the
	// cutoff, for the renewal worker.
	ListAutoRenewDue(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.SubscriptionPeriod, error)

	// CloseActiveBySubscriber cancels every active period for a subscriber
	// (cancellation flow). Returns the number of rows closed.
	CloseActiveBySubscriber(ctx context.Context, tx Tx, subscriberID string, at time.Time) (int, error)

	// FindPaidBySubscriberAndTransAmount reports whether a period row exists
	// matching a settled transaction (consistency check for settlements).
	ExistsForSettlement(ctx context.Context, tx Tx, subscriberID, planID string, paidAmount int64) (bool, error)

	// ExpireLapsed closes lapsed active periods as expired. Non-renewing
	// periods expire once end_date passes endedBefore; auto-renew periods
	// only once end_date passes renewAbandonedBefore, so the renewal worker
	// keeps seeing them during the grace window. Returns rows closed.
	ExpireLapsed(ctx context.Context, tx Tx, endedBefore, renewAbandonedBefore time.Time) (int, error)
}
