package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

var _ repository.CardRepository = (*cardRepo)(nil)

type cardRepo struct{ pool *pgxpool.Pool }

func NewCardRepo(pool *pgxpool.Pool) *cardRepo {
	return &cardRepo{pool: pool}
}

const cardColumns = `id, subscriber_id, telegram_id, username, plan_id, provider, masked_pan,
token, expiry, verified, verified_at, is_deleted, deleted_at, uzcard_meta, created_at, updated_at`

func scanCard(row pgx.Row) (*model.Card, error) {
	c := &model.Card{}
	var username, planID, expiry *string
	var meta []byte
	if err := row.Scan(
		&c.ID, &c.SubscriberID, &c.TelegramID, &username, &planID, &c.Provider, &c.MaskedPAN,
		&c.Token, &expiry, &c.Verified, &c.VerifiedAt, &c.IsDeleted, &c.DeletedAt, &meta, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if username != nil {
		c.Username = *username
	}
	if planID != nil {
		c.PlanID = *planID
	}
	if expiry != nil {
		c.Expiry = *expiry
	}
	if len(meta) > 0 {
		var u model.UzcardMeta
		if err := json.Unmarshal(meta, &u); err == nil {
			c.Uzcard = &u
		}
	}
	return c, nil
}

// Upsert writes the subscriber's card for a provider. A soft-deleted row for
// the same (subscriber, provider) is revived in place; a 23505 on the
// live masked-number index means the number belongs to someone else and
// surfaces as domain.ErrCardAlreadyExists.
func (r *cardRepo) Upsert(ctx context.Context, tx repository.Tx, card *model.Card) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}

	var meta []byte
	if card.Uzcard != nil {
		meta, err = json.Marshal(card.Uzcard)
		if err != nil {
			return domain.ErrInvalidArgument
		}
	}

	const update = `
UPDATE cards SET
    username = $3, plan_id = $4, masked_pan = $5, token = $6, expiry = $7,
    verified = $8, verified_at = $9, is_deleted = FALSE, deleted_at = NULL,
    uzcard_meta = $10, updated_at = NOW()
WHERE subscriber_id = $1 AND provider = $2;`
	tag, err := ex.Exec(ctx, update,
		card.SubscriberID, card.Provider, nullable(card.Username), nullable(card.PlanID),
		card.MaskedPAN, card.Token, nullable(card.Expiry), card.Verified, card.VerifiedAt, meta,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCardAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	const insert = `
INSERT INTO cards (id, subscriber_id, telegram_id, username, plan_id, provider, masked_pan,
    token, expiry, verified, verified_at, uzcard_meta, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`
	if _, err := ex.Exec(ctx, insert,
		card.ID, card.SubscriberID, card.TelegramID, nullable(card.Username), nullable(card.PlanID),
		card.Provider, card.MaskedPAN, card.Token, nullable(card.Expiry), card.Verified,
		card.VerifiedAt, meta, card.CreatedAt, card.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrCardAlreadyExists
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *cardRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Card, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanCard(ex.QueryRow(ctx, `SELECT `+cardColumns+` FROM cards WHERE id=$1;`, id))
}

func (r *cardRepo) FindLiveBySubscriberAndProvider(ctx context.Context, tx repository.Tx, subscriberID string, provider model.Provider) (*model.Card, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + cardColumns + ` FROM cards WHERE subscriber_id=$1 AND provider=$2 AND NOT is_deleted;`
	return scanCard(ex.QueryRow(ctx, q, subscriberID, provider))
}

func (r *cardRepo) FindLiveByMaskedPAN(ctx context.Context, tx repository.Tx, provider model.Provider, maskedPAN string) (*model.Card, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + cardColumns + ` FROM cards WHERE provider=$1 AND masked_pan=$2 AND NOT is_deleted;`
	return scanCard(ex.QueryRow(ctx, q, provider, maskedPAN))
}

func (r *cardRepo) ListLiveBySubscriber(ctx context.Context, tx repository.Tx, subscriberID string) ([]*model.Card, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+cardColumns+` FROM cards WHERE subscriber_id=$1 AND NOT is_deleted ORDER BY created_at;`, subscriberID)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *cardRepo) SoftDelete(ctx context.Context, tx repository.Tx, cardID string) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx,
		`UPDATE cards SET is_deleted = TRUE, deleted_at = $2, updated_at = NOW() WHERE id = $1 AND NOT is_deleted;`,
		cardID, time.Now(),
	)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
