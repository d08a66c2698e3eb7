package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/repository"
	"github.com/kamol666/finish/internal/infra/metrics"
	"github.com/kamol666/finish/internal/infra/worker"
	"github.com/kamol666/finish/internal/usecase"
)

// RenewalWorker periodically scans for auto-renew periods that have run out
// and fans the charges out through the pool. A failed charge is not retried
// by the scan itself; the use case owns retry policy and the next tick picks
// up whatever is still due.
type RenewalWorker struct {
	interval time.Duration
	batch    int
	periods  repository.PeriodRepository
	renewUC  usecase.RenewalUseCase
	pool     *worker.Pool
	log      *zerolog.Logger
}

func NewRenewalWorker(
	interval time.Duration,
	batch int,
	periods repository.PeriodRepository,
	renewUC usecase.RenewalUseCase,
	pool *worker.Pool,
	logger *zerolog.Logger,
) *RenewalWorker {
	compLog := logger.With().Str("component", "RenewalWorker").Logger()
	return &RenewalWorker{
		interval: interval,
		batch:    batch,
		periods:  periods,
		renewUC:  renewUC,
		pool:     pool,
		log:      &compLog,
	}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting renewal worker")
	// Run once on startup, then on every tick.
	w.scan(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping renewal worker")
			return ctx.Err()
		case <-ticker.C:
			w.scan(ctx)
		}
	}
}

func (w *RenewalWorker) scan(ctx context.Context) {
	due, err := w.periods.ListAutoRenewDue(ctx, repository.NoTX, time.Now(), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("renewal scan failed")
		return
	}
	metrics.SetRenewalDue(len(due))
	if len(due) == 0 {
		return
	}
	w.log.Info().Int("due", len(due)).Msg("renewal scan picked up periods")

	// One charge per subscriber per scan, even when several periods lapsed.
	seen := make(map[string]struct{}, len(due))
	for _, p := range due {
		if _, dup := seen[p.SubscriberID]; dup {
			continue
		}
		seen[p.SubscriberID] = struct{}{}

		if p.PaidBy == nil {
			w.log.Warn().Str("period_id", p.ID).Msg("auto-renew period has no provider; skipping")
			continue
		}

		subscriberID, provider, planID := p.SubscriberID, *p.PaidBy, p.PlanID
		if err := w.pool.Submit(func(ctx context.Context) error {
			w.renewOne(ctx, subscriberID, provider, planID)
			return nil
		}); err != nil {
			w.log.Warn().Err(err).Str("subscriber_id", subscriberID).Msg("renewal submit dropped")
		}
	}
}

func (w *RenewalWorker) renewOne(ctx context.Context, subscriberID string, provider model.Provider, planID string) {
	_, err := w.renewUC.Renew(ctx, subscriberID, provider, planID)
	switch {
	case err == nil:
		metrics.IncRenewal(string(provider), "success")
	case errors.Is(err, domain.ErrPaymentDeclined):
		metrics.IncRenewal(string(provider), "declined")
	case errors.Is(err, domain.ErrNoActiveCard):
		metrics.IncRenewal(string(provider), "error")
		w.log.Warn().Str("subscriber_id", subscriberID).Msg("auto-renew due but no chargeable card")
	default:
		metrics.IncRenewal(string(provider), "error")
		w.log.Error().Err(err).Str("subscriber_id", subscriberID).Msg("renewal failed")
	}
}
