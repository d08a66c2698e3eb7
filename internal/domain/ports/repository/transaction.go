package repository

import (
	"context"
	"time"

	"github.com/kamol666/finish/internal/domain/model"
)

// TransactionRepository persists payment attempts. Insert must fail with
// domain.ErrAlreadyExists on a duplicate TransID (never silently succeed);
// that constraint is what makes idempotent replay safe.
type TransactionRepository interface {
	Insert(ctx context.Context, tx Tx, t *model.Transaction) error
	FindByTransID(ctx context.Context, tx Tx, transID string) (*model.Transaction, error)
	FindPendingBySubscriberAndPlan(ctx context.Context, tx Tx, subscriberID, planID string) (*model.Transaction, error)

	// MarkPaid flips pending -> paid, stamping performTime. It must be
	// conditional on the current status and report false when the row was
	// not in the expected state (lost race).
	MarkPaid(ctx context.Context, tx Tx, transID string, performTime time.Time) (bool, error)

	// MarkCanceled moves to the given terminal state, stamping cancelTime.
	// Like MarkPaid it is conditional on the current status and reports
	// false when the row already left it (lost race); callers re-read.
	MarkCanceled(ctx context.Context, tx Tx, transID string, from model.TransactionStatus, state model.TransactionState, reason model.CancelReason, cancelTime time.Time) (bool, error)

	ListByProviderBetween(ctx context.Context, tx Tx, provider model.Provider, from, to time.Time) ([]*model.Transaction, error)

	// ListStalePending returns pending rows created before the cutoff, for
	// the reconciler sweep.
	ListStalePending(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)

	// ListPaidSince returns rows settled at or after the cutoff, for the
	// settlement consistency check.
	ListPaidSince(ctx context.Context, tx Tx, since time.Time, limit int) ([]*model.Transaction, error)
}
