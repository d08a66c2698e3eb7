package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

// Compile-time check
var _ RenewalUseCase = (*renewalUC)(nil)

// RenewalUseCase executes unattended renewal charges against a stored card.
// No instrument means no charge is attempted; a provider decline surfaces as
// a notification to the subscriber, never as ledger mutation.
type RenewalUseCase interface {
	Renew(ctx context.Context, subscriberID string, provider model.Provider, planID string) (*model.Transaction, error)
}

const (
	chargeAttempts  = 3
	chargeBaseDelay = 2 * time.Second
)

type renewalUC struct {
	cards        repository.CardRepository
	subscribers  repository.SubscriberRepository
	plans        repository.PlanRepository
	transactions repository.TransactionRepository
	providers    map[model.Provider]adapter.CardProvider
	subUC        SubscriptionUseCase
	notifier     Notifier
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewRenewalUseCase(
	cards repository.CardRepository,
	subscribers repository.SubscriberRepository,
	plans repository.PlanRepository,
	transactions repository.TransactionRepository,
	providers map[model.Provider]adapter.CardProvider,
	subUC SubscriptionUseCase,
	notifier Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *renewalUC {
	return &renewalUC{
		cards:        cards,
		subscribers:  subscribers,
		plans:        plans,
		transactions: transactions,
		providers:    providers,
		subUC:        subUC,
		notifier:     notifier,
		tm:           tm,
		log:          logger,
	}
}

func (uc *renewalUC) Renew(ctx context.Context, subscriberID string, provider model.Provider, planID string) (*model.Transaction, error) {
	prov, ok := uc.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", domain.ErrInvalidArgument, provider)
	}
	sub, err := uc.subscribers.FindByID(ctx, repository.NoTX, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	plan, err := uc.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	card, err := uc.cards.FindLiveBySubscriberAndProvider(ctx, repository.NoTX, subscriberID, provider)
	if err != nil || !card.Chargeable() {
		return nil, domain.ErrNoActiveCard
	}

	transID := fmt.Sprintf("subscription-%s-%s", provider, ulid.Make().String())
	t, err := model.NewTransaction(uuid.NewString(), transID, provider, model.SubscriptionTypeRecurring, sub.ID, plan.ID, plan.PriceTiyin())
	if err != nil {
		return nil, err
	}
	if err := uc.transactions.Insert(ctx, repository.NoTX, t); err != nil {
		return nil, fmt.Errorf("insert renewal transaction: %w", err)
	}

	result, chargeErr := uc.chargeWithRetry(ctx, prov, adapter.ChargeRequest{
		Card:          card,
		AmountTiyin:   plan.PriceTiyin(),
		CorrelationID: transID,
	})
	if chargeErr != nil {
		if _, err := uc.transactions.MarkCanceled(ctx, repository.NoTX, transID, model.TransactionStatusPending, model.StatePendingCanceled, model.ReasonDebitError, time.Now()); err != nil {
			uc.log.Error().Err(err).Str("trans_id", transID).Msg("failed to mark declined renewal transaction")
		}
		uc.notifier.RenewalFailed(ctx, sub, declineReason(chargeErr))
		uc.log.Warn().Err(chargeErr).
			Str("subscriber_id", sub.ID).
			Str("provider", string(provider)).
			Msg("renewal charge failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrPaymentDeclined, chargeErr)
	}

	performTime := time.Now()
	var res *GrantResult
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := uc.transactions.MarkPaid(ctx, tx, transID, performTime)
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if !ok {
			return domain.ErrOperationFailed
		}
		res, err = uc.subUC.Apply(ctx, tx, sub.ID, Grant{
			Plan:       plan,
			Type:       model.SubscriptionTypeRecurring,
			PaidAmount: plan.Price,
			PaidBy:     &provider,
			CardID:     &card.ID,
			AutoRenew:  true,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("settle renewal: %w", err)
	}

	t.Status = model.TransactionStatusPaid
	t.State = model.StatePaid
	t.PerformTime = &performTime

	uc.log.Info().
		Str("subscriber_id", sub.ID).
		Str("provider", string(provider)).
		Str("trans_id", transID).
		Time("new_end", res.NewEnd).
		Msg("renewal settled")

	uc.notifier.RenewalSuccess(ctx, res.Subscriber, plan, result.ReceiptURL)
	return t, nil
}

// chargeWithRetry retries transport-class failures a bounded number of times
// with jittered backoff. A provider decline (insufficient funds, blocked
// card) is final on the first answer.
func (uc *renewalUC) chargeWithRetry(ctx context.Context, prov adapter.CardProvider, req adapter.ChargeRequest) (*adapter.ChargeResult, error) {
	var lastErr error
	for attempt := 1; attempt <= chargeAttempts; attempt++ {
		result, err := prov.Charge(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var perr *adapter.ProviderError
		if errors.As(err, &perr) && perr.Declined {
			return nil, err
		}
		if attempt == chargeAttempts {
			break
		}
		delay := chargeBaseDelay<<(attempt-1) + time.Duration(rand.Int63n(int64(time.Second)))
		uc.log.Warn().Err(err).
			Int("attempt", attempt).
			Dur("retry_in", delay).
			Msg("renewal charge attempt failed; retrying")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, lastErr
}

func declineReason(err error) string {
	var perr *adapter.ProviderError
	if errors.As(err, &perr) {
		return perr.Message
	}
	return ""
}
