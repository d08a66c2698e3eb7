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

var _ repository.PeriodRepository = (*periodRepo)(nil)

type periodRepo struct{ pool *pgxpool.Pool }

func NewPeriodRepo(pool *pgxpool.Pool) *periodRepo {
	return &periodRepo{pool: pool}
}

const periodColumns = `id, subscriber_id, telegram_id, plan_id, plan_name, type, start_date,
end_date, is_active, auto_renew, status, paid_amount, paid_by, card_id, created_at`

func scanPeriod(row pgx.Row) (*model.SubscriptionPeriod, error) {
	p := &model.SubscriptionPeriod{}
	var planName, paidBy *string
	if err := row.Scan(
		&p.ID, &p.SubscriberID, &p.TelegramID, &p.PlanID, &planName, &p.Type, &p.StartDate,
		&p.EndDate, &p.IsActive, &p.AutoRenew, &p.Status, &p.PaidAmount, &paidBy, &p.CardID, &p.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if planName != nil {
		p.PlanName = *planName
	}
	if paidBy != nil {
		pb := model.Provider(*paidBy)
		p.PaidBy = &pb
	}
	return p, nil
}

func (r *periodRepo) Insert(ctx context.Context, tx repository.Tx, p *model.SubscriptionPeriod) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO subscription_periods (id, subscriber_id, telegram_id, plan_id, plan_name, type,
    start_date, end_date, is_active, auto_renew, status, paid_amount, paid_by, card_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`
	var paidBy *string
	if p.PaidBy != nil {
		v := string(*p.PaidBy)
		paidBy = &v
	}
	if _, err := ex.Exec(ctx, q,
		p.ID, p.SubscriberID, p.TelegramID, p.PlanID, nullable(p.PlanName), p.Type,
		p.StartDate, p.EndDate, p.IsActive, p.AutoRenew, p.Status, p.PaidAmount, paidBy, p.CardID, p.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *periodRepo) ListBySubscriber(ctx context.Context, tx repository.Tx, subscriberID string) ([]*model.SubscriptionPeriod, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+periodColumns+` FROM subscription_periods WHERE subscriber_id=$1 ORDER BY created_at;`, subscriberID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectPeriods(rows)
}

func (r *periodRepo) ListAutoRenewDue(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.SubscriptionPeriod, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + periodColumns + ` FROM subscription_periods
WHERE is_active AND auto_renew AND end_date <= $1
ORDER BY end_date LIMIT $2;`
	rows, err := ex.Query(ctx, q, cutoff, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	return collectPeriods(rows)
}

func (r *periodRepo) CloseActiveBySubscriber(ctx context.Context, tx repository.Tx, subscriberID string, at time.Time) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	const q = `UPDATE subscription_periods
SET is_active = FALSE, auto_renew = FALSE, status = 'cancelled'
WHERE subscriber_id = $1 AND is_active;`
	tag, err := ex.Exec(ctx, q, subscriberID)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}

func (r *periodRepo) ExistsForSettlement(ctx context.Context, tx repository.Tx, subscriberID, planID string, paidAmount int64) (bool, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return false, err
	}
	const q = `SELECT EXISTS (
    SELECT 1 FROM subscription_periods
    WHERE subscriber_id = $1 AND plan_id = $2 AND paid_amount = $3
);`
	var exists bool
	if err := ex.QueryRow(ctx, q, subscriberID, planID, paidAmount).Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *periodRepo) ExpireLapsed(ctx context.Context, tx repository.Tx, endedBefore, renewAbandonedBefore time.Time) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	const q = `UPDATE subscription_periods
SET is_active = FALSE, auto_renew = FALSE, status = 'expired'
WHERE is_active AND ((NOT auto_renew AND end_date < $1) OR (auto_renew AND end_date < $2));`
	tag, err := ex.Exec(ctx, q, endedBefore, renewAbandonedBefore)
	if err != nil {
		return 0, domain.ErrOperationFailed
	}
	return int(tag.RowsAffected()), nil
}

func collectPeriods(rows pgx.Rows) ([]*model.SubscriptionPeriod, error) {
	var out []*model.SubscriptionPeriod
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
