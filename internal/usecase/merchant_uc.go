package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/repository"
	"github.com/kamol666/finish/internal/payme"
)

// Compile-time check
var _ MerchantUseCase = (*merchantUC)(nil)

// MerchantUseCase is the provider-driven transaction state machine. The
// provider invokes these operations over the webhook endpoint; every method
// tolerates duplicate and out-of-order delivery. Failures of protocol rank
// are returned as *payme.Error; anything else is an internal fault the
// caller maps to payme.ErrInternal.
type MerchantUseCase interface {
	// CheckPerform validates that a purchase could happen. Side-effect-free.
	CheckPerform(ctx context.Context, planID, userID string, amountTiyin int64) error

	// Create registers a pending transaction, idempotently by correlation id.
	Create(ctx context.Context, transID, planID, userID string, amountTiyin int64) (*model.Transaction, error)

	// Perform settles a pending transaction: the single commit point that
	// marks it paid and extends the subscription atomically.
	Perform(ctx context.Context, transID string) (*model.Transaction, error)

	// Cancel moves pending -> pending_canceled or paid -> paid_canceled.
	// Cancelling a settled transaction never shortens the already-granted
	// period (manual-refund-only policy).
	Cancel(ctx context.Context, transID string, reason model.CancelReason) (*model.Transaction, error)

	// Check is a pure read of one transaction's timeline.
	Check(ctx context.Context, transID string) (*model.Transaction, error)

	// Statement returns the provider's transactions inside a time range.
	Statement(ctx context.Context, provider model.Provider, from, to time.Time) ([]*model.Transaction, error)
}

type merchantUC struct {
	transactions repository.TransactionRepository
	subscribers  repository.SubscriberRepository
	plans        repository.PlanRepository
	subUC        SubscriptionUseCase
	notifier     Notifier
	tm           repository.TransactionManager
	log          *zerolog.Logger
}

func NewMerchantUseCase(
	transactions repository.TransactionRepository,
	subscribers repository.SubscriberRepository,
	plans repository.PlanRepository,
	subUC SubscriptionUseCase,
	notifier Notifier,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *merchantUC {
	return &merchantUC{
		transactions: transactions,
		subscribers:  subscribers,
		plans:        plans,
		subUC:        subUC,
		notifier:     notifier,
		tm:           tm,
		log:          logger,
	}
}

// resolveAccount loads the plan and subscriber a merchant call refers to.
func (uc *merchantUC) resolveAccount(ctx context.Context, planID, userID string) (*model.Plan, *model.Subscriber, *payme.Error) {
	plan, err := uc.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, nil, payme.ErrProductOrUserNotFound
	}
	sub, err := uc.subscribers.FindByID(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, nil, payme.ErrProductOrUserNotFound
	}
	return plan, sub, nil
}

func (uc *merchantUC) CheckPerform(ctx context.Context, planID, userID string, amountTiyin int64) error {
	plan, sub, perr := uc.resolveAccount(ctx, planID, userID)
	if perr != nil {
		return perr
	}
	if sub.HasActiveSubscription(time.Now()) {
		return payme.ErrAlreadyDone
	}
	if amountTiyin != plan.PriceTiyin() {
		return payme.ErrInvalidAmount
	}
	return nil
}

func (uc *merchantUC) Create(ctx context.Context, transID, planID, userID string, amountTiyin int64) (*model.Transaction, error) {
	// Idempotency first: an exact correlation-id replay returns the current
	// state no matter what happened to the account since.
	existing, err := uc.transactions.FindByTransID(ctx, repository.NoTX, transID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}
	if existing != nil {
		if existing.Status == model.TransactionStatusPending && existing.Expired(time.Now()) {
			if err := uc.cancelExpired(ctx, existing); err != nil {
				return nil, err
			}
			return nil, payme.ErrCantPerform.WithState(model.StatePendingCanceled, model.ReasonTimeout)
		}
		return existing, nil
	}

	// A different in-flight correlation id for the same purchase blocks a
	// concurrent duplicate attempt.
	pending, err := uc.transactions.FindPendingBySubscriberAndPlan(ctx, repository.NoTX, userID, planID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("lookup pending transaction: %w", err)
	}
	if pending != nil && pending.TransID != transID {
		return nil, payme.ErrTransactionInProcess
	}

	if err := uc.CheckPerform(ctx, planID, userID, amountTiyin); err != nil {
		return nil, err
	}

	t, err := model.NewTransaction(uuid.NewString(), transID, model.ProviderPayme, model.SubscriptionTypeOneTime, userID, planID, amountTiyin)
	if err != nil {
		return nil, err
	}
	if err := uc.transactions.Insert(ctx, repository.NoTX, t); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost an insert race: the winner decides what exists now.
			if winner, ferr := uc.transactions.FindByTransID(ctx, repository.NoTX, transID); ferr == nil {
				return winner, nil
			}
			return nil, payme.ErrTransactionInProcess
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	uc.log.Info().
		Str("trans_id", transID).
		Str("subscriber_id", userID).
		Str("plan_id", planID).
		Int64("amount", amountTiyin).
		Msg("transaction created")
	return t, nil
}

func (uc *merchantUC) Perform(ctx context.Context, transID string) (*model.Transaction, error) {
	t, err := uc.transactions.FindByTransID(ctx, repository.NoTX, transID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, payme.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}

	now := time.Now()

	// Another purchase settled while this one was pending: cancel it rather
	// than stacking an unintended double payment.
	if t.Status == model.TransactionStatusPending {
		if sub, serr := uc.subscribers.FindByID(ctx, repository.NoTX, t.SubscriberID); serr == nil && sub.HasActiveSubscription(now) {
			ok, err := uc.transactions.MarkCanceled(ctx, repository.NoTX, t.TransID, model.TransactionStatusPending, model.StatePendingCanceled, model.ReasonTransactionFailed, now)
			if err != nil {
				return nil, fmt.Errorf("cancel raced transaction: %w", err)
			}
			if ok {
				return nil, payme.ErrAlreadyDone.WithState(model.StatePendingCanceled, model.ReasonTransactionFailed)
			}
			// The row left pending under us; re-read and let the switch
			// below answer for wherever it landed.
			if t, err = uc.transactions.FindByTransID(ctx, repository.NoTX, transID); err != nil {
				return nil, fmt.Errorf("lookup transaction: %w", err)
			}
		}
	}

	switch t.Status {
	case model.TransactionStatusPaid:
		// Safe replay: return the original perform time.
		return t, nil
	case model.TransactionStatusPending:
		// fall through to settlement
	default:
		return nil, payme.ErrCantPerform
	}

	if t.Expired(now) {
		if err := uc.cancelExpired(ctx, t); err != nil {
			return nil, err
		}
		return nil, payme.ErrCantPerform.WithState(model.StatePendingCanceled, model.ReasonTimeout)
	}

	plan, err := uc.plans.FindByID(ctx, repository.NoTX, t.PlanID)
	if err != nil {
		return nil, payme.ErrProductOrUserNotFound
	}

	// The commit point: mark paid and extend the period as one atomic unit.
	var res *GrantResult
	performTime := now
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := uc.transactions.MarkPaid(ctx, tx, t.TransID, performTime)
		if err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if !ok {
			// Lost the settlement race; re-read outside this tx below.
			return domain.ErrAlreadyExists
		}
		res, err = uc.subUC.Apply(ctx, tx, t.SubscriberID, Grant{
			Plan:       plan,
			Type:       model.SubscriptionTypeOneTime,
			PaidAmount: t.Amount / 100,
			PaidBy:     &t.Provider,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			current, ferr := uc.transactions.FindByTransID(ctx, repository.NoTX, transID)
			if ferr == nil && current.Status == model.TransactionStatusPaid {
				return current, nil
			}
			return nil, payme.ErrCantPerform
		}
		return nil, fmt.Errorf("settle transaction: %w", err)
	}

	t.Status = model.TransactionStatusPaid
	t.State = model.StatePaid
	t.PerformTime = &performTime

	uc.log.Info().
		Str("trans_id", t.TransID).
		Str("subscriber_id", t.SubscriberID).
		Time("new_end", res.NewEnd).
		Msg("transaction settled")

	// Best-effort UX, outside the transactional boundary.
	uc.notifier.PaymentSuccess(ctx, res.Subscriber, plan)
	return t, nil
}

func (uc *merchantUC) Cancel(ctx context.Context, transID string, reason model.CancelReason) (*model.Transaction, error) {
	t, err := uc.transactions.FindByTransID(ctx, repository.NoTX, transID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, payme.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}

	// The conditional update below can lose to a concurrent settlement; one
	// re-read resolves against wherever the row landed. A pending purchase
	// that settled mid-cancel must come out as a paid cancel (state -2) with
	// its granted period intact, never flipped back to -1.
	for attempt := 0; attempt < 2; attempt++ {
		now := time.Now()
		var target model.TransactionState
		switch t.State {
		case model.StatePending:
			target = model.StatePendingCanceled
		case model.StatePaid:
			// Ledger state flips; the granted period stays (manual refunds only).
			target = model.StatePaidCanceled
		default:
			// Already in a terminal cancel state: replay returns it unchanged.
			return t, nil
		}

		ok, err := uc.transactions.MarkCanceled(ctx, repository.NoTX, t.TransID, t.Status, target, reason, now)
		if err != nil {
			return nil, fmt.Errorf("cancel transaction: %w", err)
		}
		if !ok {
			if t, err = uc.transactions.FindByTransID(ctx, repository.NoTX, transID); err != nil {
				return nil, fmt.Errorf("lookup transaction: %w", err)
			}
			continue
		}

		t.Status = model.TransactionStatusCanceled
		t.State = target
		t.Reason = &reason
		t.CancelTime = &now

		uc.log.Info().
			Str("trans_id", t.TransID).
			Int("state", int(t.State)).
			Int("reason", int(reason)).
			Msg("transaction canceled")
		return t, nil
	}
	return nil, payme.ErrCantPerform
}

func (uc *merchantUC) Check(ctx context.Context, transID string) (*model.Transaction, error) {
	t, err := uc.transactions.FindByTransID(ctx, repository.NoTX, transID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, payme.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("lookup transaction: %w", err)
	}
	return t, nil
}

func (uc *merchantUC) Statement(ctx context.Context, provider model.Provider, from, to time.Time) ([]*model.Transaction, error) {
	return uc.transactions.ListByProviderBetween(ctx, repository.NoTX, provider, from, to)
}

func (uc *merchantUC) cancelExpired(ctx context.Context, t *model.Transaction) error {
	ok, err := uc.transactions.MarkCanceled(ctx, repository.NoTX, t.TransID, model.TransactionStatusPending, model.StatePendingCanceled, model.ReasonTimeout, time.Now())
	if err != nil {
		return fmt.Errorf("cancel expired transaction: %w", err)
	}
	if ok {
		uc.log.Warn().Str("trans_id", t.TransID).Msg("pending transaction expired; canceled with timeout reason")
	}
	// A lost race means another delivery already finished the cancel.
	return nil
}
