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

var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct{ pool *pgxpool.Pool }

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, name, selected_name, price, duration_days, created_at`

func scanPlan(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	var selected *string
	if err := row.Scan(&p.ID, &p.Name, &selected, &p.Price, &p.DurationDays, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if selected != nil {
		p.SelectedName = *selected
	}
	return p, nil
}

func (r *planRepo) Save(ctx context.Context, tx repository.Tx, plan *model.Plan) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO plans (id, name, selected_name, price, duration_days, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name=$2, selected_name=$3, price=$4, duration_days=$5;`
	if _, err := ex.Exec(ctx, q, plan.ID, plan.Name, nullable(plan.SelectedName), plan.Price, plan.DurationDays, plan.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanPlan(ex.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id=$1;`, id))
}

func (r *planRepo) FindBySelectedName(ctx context.Context, tx repository.Tx, selectedName string) (*model.Plan, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanPlan(ex.QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE selected_name=$1 LIMIT 1;`, selectedName))
}

func (r *planRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `SELECT `+planColumns+` FROM plans ORDER BY created_at;`)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()
	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
