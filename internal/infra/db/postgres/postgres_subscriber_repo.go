package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

var _ repository.SubscriberRepository = (*subscriberRepo)(nil)

type subscriberRepo struct{ pool *pgxpool.Pool }

func NewSubscriberRepo(pool *pgxpool.Pool) *subscriberRepo {
	return &subscriberRepo{pool: pool}
}

const subscriberColumns = `id, telegram_id, username, subscription_type, subscription_start,
subscription_end, is_active, has_received_free_bonus, free_bonus_received_at,
had_paid_before_bonus, plan_ids, is_kicked_out, active_invite_link, created_at`

func scanSubscriber(row pgx.Row) (*model.Subscriber, error) {
	s := &model.Subscriber{}
	var username, subType *string
	if err := row.Scan(
		&s.ID, &s.TelegramID, &username, &subType, &s.SubscriptionStart,
		&s.SubscriptionEnd, &s.IsActive, &s.HasReceivedFreeBonus, &s.FreeBonusReceivedAt,
		&s.HadPaidSubscriptionBeforeBonus, &s.PlanIDs, &s.IsKickedOut, &s.ActiveInviteLink, &s.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if username != nil {
		s.Username = *username
	}
	if subType != nil {
		s.SubscriptionType = model.SubscriptionType(*subType)
	}
	return s, nil
}

func (r *subscriberRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscriber) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO subscribers (id, telegram_id, username, subscription_type, subscription_start,
    subscription_end, is_active, has_received_free_bonus, free_bonus_received_at,
    had_paid_before_bonus, plan_ids, is_kicked_out, active_invite_link, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
    username = $3, subscription_type = $4, subscription_start = $5,
    subscription_end = $6, is_active = $7, has_received_free_bonus = $8,
    free_bonus_received_at = $9, had_paid_before_bonus = $10, plan_ids = $11,
    is_kicked_out = $12, active_invite_link = $13;`
	if _, err := ex.Exec(ctx, q,
		s.ID, s.TelegramID, nullable(s.Username), nullable(string(s.SubscriptionType)), s.SubscriptionStart,
		s.SubscriptionEnd, s.IsActive, s.HasReceivedFreeBonus, s.FreeBonusReceivedAt,
		s.HadPaidSubscriptionBeforeBonus, s.PlanIDs, s.IsKickedOut, s.ActiveInviteLink, s.CreatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriberRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscriber, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanSubscriber(ex.QueryRow(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE id=$1;`, id))
}

func (r *subscriberRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, telegramID int64) (*model.Subscriber, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanSubscriber(ex.QueryRow(ctx, `SELECT `+subscriberColumns+` FROM subscribers WHERE telegram_id=$1;`, telegramID))
}
