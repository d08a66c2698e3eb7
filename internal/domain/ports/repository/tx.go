package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle passed through repository methods.
// Repositories accept nil (non-transactional path); the concrete type is
// infra-defined (pgx.Tx for Postgres).
type Tx interface{}

// NoTX marks the non-transactional path explicitly at call sites.
var NoTX Tx

// TransactionManager executes a function inside one database transaction.
// The settlement commit point (mark paid + extend period + append ledger
// row) must run through WithTx so it applies as a single atomic unit.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
