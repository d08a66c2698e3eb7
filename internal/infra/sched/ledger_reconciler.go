package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/repository"
	"github.com/kamol666/finish/internal/infra/metrics"
	"github.com/kamol666/finish/internal/usecase"
)

// renewAbandonGrace is how long a lapsed auto-renew period keeps showing up
// in the renewal scan before the reconciler closes it out as expired.
const renewAbandonGrace = 72 * time.Hour

// LedgerReconciler periodically repairs drift the happy path can leave
// behind: pending rows that outlived the payment window are canceled with a
// timeout reason, recent settlements are checked against their period rows,
// and lapsed periods are closed out as expired. Every repair is a conditional
// update, so a concurrent webhook delivery always wins.
type LedgerReconciler struct {
	interval     time.Duration
	batch        int
	transactions repository.TransactionRepository
	periods      repository.PeriodRepository
	subUC        usecase.SubscriptionUseCase
	log          *zerolog.Logger
}

func NewLedgerReconciler(
	interval time.Duration,
	batch int,
	transactions repository.TransactionRepository,
	periods repository.PeriodRepository,
	subUC usecase.SubscriptionUseCase,
	logger *zerolog.Logger,
) *LedgerReconciler {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}
	compLog := logger.With().Str("component", "LedgerReconciler").Logger()
	return &LedgerReconciler{
		interval:     interval,
		batch:        batch,
		transactions: transactions,
		periods:      periods,
		subUC:        subUC,
		log:          &compLog,
	}
}

func (w *LedgerReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting ledger reconciler")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping ledger reconciler")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *LedgerReconciler) tick(ctx context.Context) {
	now := time.Now()
	w.sweepStalePending(ctx, now)
	w.verifyRecentSettlements(ctx, now)
	w.expireLapsed(ctx, now)
}

// sweepStalePending cancels pending rows that outlived the payment window.
// This is what catches a renewal left pending after a post-charge crash, and
// a webhook purchase the provider never performed or canceled.
func (w *LedgerReconciler) sweepStalePending(ctx context.Context, now time.Time) {
	stale, err := w.transactions.ListStalePending(ctx, repository.NoTX, now.Add(-model.PendingWindow), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("stale pending scan failed")
		return
	}
	swept := 0
	for _, t := range stale {
		ok, err := w.transactions.MarkCanceled(ctx, repository.NoTX, t.TransID,
			model.TransactionStatusPending, model.StatePendingCanceled, model.ReasonTimeout, now)
		if err != nil {
			w.log.Error().Err(err).Str("trans_id", t.TransID).Msg("stale pending cancel failed")
			continue
		}
		if ok {
			swept++
		}
	}
	if swept > 0 {
		metrics.AddReconcilerSwept(swept)
		w.log.Info().Int("count", swept).Msg("stale pending transactions canceled")
	}
}

// verifyRecentSettlements cross-checks paid rows from the last two intervals
// against their period rows. A mismatch means a settlement committed without
// its grant, which the transactional commit point is supposed to rule out.
func (w *LedgerReconciler) verifyRecentSettlements(ctx context.Context, now time.Time) {
	paid, err := w.transactions.ListPaidSince(ctx, repository.NoTX, now.Add(-2*w.interval), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("paid scan failed")
		return
	}
	for _, t := range paid {
		ok, err := w.subUC.VerifySettled(ctx, t)
		if err != nil {
			w.log.Error().Err(err).Str("trans_id", t.TransID).Msg("settlement check failed")
			continue
		}
		if !ok {
			metrics.IncSettlementMismatch()
			w.log.Error().
				Str("trans_id", t.TransID).
				Str("subscriber_id", t.SubscriberID).
				Msg("settled transaction has no matching period row")
		}
	}
}

func (w *LedgerReconciler) expireLapsed(ctx context.Context, now time.Time) {
	n, err := w.periods.ExpireLapsed(ctx, repository.NoTX, now, now.Add(-renewAbandonGrace))
	if err != nil {
		w.log.Error().Err(err).Msg("period expiry failed")
		return
	}
	if n > 0 {
		metrics.AddPeriodsExpired(n)
		w.log.Info().Int("count", n).Msg("lapsed periods expired")
	}
}
