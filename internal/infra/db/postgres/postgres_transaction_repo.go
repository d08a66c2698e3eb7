package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

var _ repository.TransactionRepository = (*transactionRepo)(nil)

type transactionRepo struct{ pool *pgxpool.Pool }

func NewTransactionRepo(pool *pgxpool.Pool) *transactionRepo {
	return &transactionRepo{pool: pool}
}

const transactionColumns = `id, trans_id, provider, payment_type, amount, status, state,
subscriber_id, plan_id, reason, created_at, perform_time, cancel_time`

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	t := &model.Transaction{}
	var reason *int
	if err := row.Scan(
		&t.ID, &t.TransID, &t.Provider, &t.PaymentType, &t.Amount, &t.Status, &t.State,
		&t.SubscriberID, &t.PlanID, &reason, &t.CreatedAt, &t.PerformTime, &t.CancelTime,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if reason != nil {
		r := model.CancelReason(*reason)
		t.Reason = &r
	}
	return t, nil
}

// Insert creates the row for a new payment attempt. A duplicate trans_id,
// or a second pending one-time attempt for the same (subscriber, plan),
// comes back as domain.ErrAlreadyExists; callers disambiguate by refetch.
func (r *transactionRepo) Insert(ctx context.Context, tx repository.Tx, t *model.Transaction) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO transactions (id, trans_id, provider, payment_type, amount, status, state,
    subscriber_id, plan_id, reason, created_at, perform_time, cancel_time)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`
	var reason *int
	if t.Reason != nil {
		v := int(*t.Reason)
		reason = &v
	}
	if _, err := ex.Exec(ctx, q,
		t.ID, t.TransID, t.Provider, t.PaymentType, t.Amount, t.Status, t.State,
		t.SubscriberID, t.PlanID, reason, t.CreatedAt, t.PerformTime, t.CancelTime,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *transactionRepo) FindByTransID(ctx context.Context, tx repository.Tx, transID string) (*model.Transaction, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanTransaction(ex.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE trans_id=$1;`, transID))
}

func (r *transactionRepo) FindPendingBySubscriberAndPlan(ctx context.Context, tx repository.Tx, subscriberID, planID string) (*model.Transaction, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE subscriber_id=$1 AND plan_id=$2 AND status='pending' AND payment_type='onetime' LIMIT 1;`
	return scanTransaction(ex.QueryRow(ctx, q, subscriberID, planID))
}

func (r *transactionRepo) MarkPaid(ctx context.Context, tx repository.Tx, transID string, performTime time.Time) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `UPDATE transactions SET status='paid', state=$2, perform_time=$3
WHERE trans_id=$1 AND status='pending';`
	tag, err := ex.Exec(ctx, q, transID, model.StatePaid, performTime)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *transactionRepo) MarkCanceled(ctx context.Context, tx repository.Tx, transID string, from model.TransactionStatus, state model.TransactionState, reason model.CancelReason, cancelTime time.Time) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `UPDATE transactions SET status='canceled', state=$2, reason=$3, cancel_time=$4
WHERE trans_id=$1 AND status=$5;`
	tag, err := ex.Exec(ctx, q, transID, state, int(reason), cancelTime, from)
	if err != nil {
		return false, domain.ErrOperationFailed
	}
	return tag.RowsAffected() > 0, nil
}

func (r *transactionRepo) ListByProviderBetween(ctx context.Context, tx repository.Tx, provider model.Provider, from, to time.Time) ([]*model.Transaction, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE provider=$1 AND created_at >= $2 AND created_at <= $3 ORDER BY created_at;`
	rows, err := ex.Query(ctx, q, provider, from, to)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *transactionRepo) ListStalePending(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Transaction, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE status='pending' AND created_at < $1 ORDER BY created_at LIMIT $2;`
	rows, err := ex.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (r *transactionRepo) ListPaidSince(ctx context.Context, tx repository.Tx, since time.Time, limit int) ([]*model.Transaction, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + transactionColumns + ` FROM transactions
WHERE status='paid' AND perform_time >= $1 ORDER BY perform_time LIMIT $2;`
	rows, err := ex.Query(ctx, q, since, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
