package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// DefaultBonusDays is the one-time promotional grant attached to a first
// card verification.
const DefaultBonusDays = 30

// Grant describes one settlement to apply to a subscriber's access window.
type Grant struct {
	Plan       *model.Plan
	Type       model.SubscriptionType
	Days       int   // defaults to Plan.DurationDays when 0
	PaidAmount int64 // som; 0 for bonus grants
	PaidBy     *model.Provider
	CardID     *string
	AutoRenew  bool
	Bonus      bool
}

// GrantResult reports what the extension did, for the notification layer.
type GrantResult struct {
	Subscriber   *model.Subscriber
	Period       *model.SubscriptionPeriod
	NewEnd       time.Time
	WasKickedOut bool
}

// SubscriptionUseCase owns the period-extension algorithm and the subscriber
// projection. Every payment path (webhook settlement, card verification
// bonus, unattended renewal) converges on Apply.
type SubscriptionUseCase interface {
	// Apply extends the subscriber's window inside the caller's transaction
	// and appends one immutable period row.
	Apply(ctx context.Context, tx repository.Tx, subscriberID string, g Grant) (*GrantResult, error)

	// CancelAll is the subscriber-initiated full cancellation: provider-side
	// card removal is best-effort, then every card is soft-deleted, every
	// active period closed, and the subscriber deactivated.
	CancelAll(ctx context.Context, subscriberID string) error

	// VerifySettled reports whether a settled transaction has its matching
	// period row (consistency check behind the atomic-settlement property).
	VerifySettled(ctx context.Context, t *model.Transaction) (bool, error)
}

type subscriptionUC struct {
	subscribers repository.SubscriberRepository
	plans       repository.PlanRepository
	periods     repository.PeriodRepository
	cards       repository.CardRepository
	providers   map[model.Provider]adapter.CardProvider
	tm          repository.TransactionManager
	log         *zerolog.Logger
}

func NewSubscriptionUseCase(
	subscribers repository.SubscriberRepository,
	plans repository.PlanRepository,
	periods repository.PeriodRepository,
	cards repository.CardRepository,
	providers map[model.Provider]adapter.CardProvider,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		subscribers: subscribers,
		plans:       plans,
		periods:     periods,
		cards:       cards,
		providers:   providers,
		tm:          tm,
		log:         logger,
	}
}

func (uc *subscriptionUC) Apply(ctx context.Context, tx repository.Tx, subscriberID string, g Grant) (*GrantResult, error) {
	if g.Plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	sub, err := uc.subscribers.FindByID(ctx, tx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}

	now := time.Now()
	days := g.Days
	if days <= 0 {
		days = g.Plan.DurationDays
	}
	newEnd := model.ExtendEnd(sub.SubscriptionEnd, sub.IsActive, days, now)

	wasKickedOut := sub.IsKickedOut
	sub.SubscriptionStart = &now
	sub.SubscriptionEnd = &newEnd
	sub.IsActive = true
	sub.IsKickedOut = false // a new payment forgives a prior removal
	sub.SubscriptionType = g.Type
	sub.PlanIDs = append(sub.PlanIDs, g.Plan.ID)
	if g.Bonus {
		sub.HasReceivedFreeBonus = true
		sub.FreeBonusReceivedAt = &now
		if len(sub.PlanIDs) > 1 {
			sub.HadPaidSubscriptionBeforeBonus = true
		}
	}
	if err := uc.subscribers.Save(ctx, tx, sub); err != nil {
		return nil, fmt.Errorf("save subscriber: %w", err)
	}

	period, err := model.NewSubscriptionPeriod(uuid.NewString(), sub.ID, g.Plan.ID, g.Type, now, newEnd)
	if err != nil {
		return nil, err
	}
	period.TelegramID = sub.TelegramID
	period.PlanName = g.Plan.Name
	period.AutoRenew = g.AutoRenew
	period.PaidAmount = g.PaidAmount
	period.PaidBy = g.PaidBy
	period.CardID = g.CardID
	if err := uc.periods.Insert(ctx, tx, period); err != nil {
		return nil, fmt.Errorf("append period row: %w", err)
	}

	uc.log.Info().
		Str("subscriber_id", sub.ID).
		Str("plan_id", g.Plan.ID).
		Int("days", days).
		Time("new_end", newEnd).
		Bool("bonus", g.Bonus).
		Msg("subscription extended")

	return &GrantResult{Subscriber: sub, Period: period, NewEnd: newEnd, WasKickedOut: wasKickedOut}, nil
}

func (uc *subscriptionUC) CancelAll(ctx context.Context, subscriberID string) error {
	sub, err := uc.subscribers.FindByID(ctx, repository.NoTX, subscriberID)
	if err != nil {
		return fmt.Errorf("find subscriber: %w", err)
	}

	cards, err := uc.cards.ListLiveBySubscriber(ctx, repository.NoTX, sub.ID)
	if err != nil && err != domain.ErrNotFound {
		return fmt.Errorf("list cards: %w", err)
	}

	// Provider-side removal stays outside the transaction: a provider
	// failure is logged, not fatal, because the local record must not block
	// a subscriber-initiated cancellation.
	for _, card := range cards {
		prov, ok := uc.providers[card.Provider]
		if !ok {
			uc.log.Error().Str("provider", string(card.Provider)).Msg("no provider adapter for card removal")
			continue
		}
		if err := prov.Remove(ctx, card); err != nil {
			uc.log.Warn().Err(err).
				Str("card_id", card.ID).
				Str("provider", string(card.Provider)).
				Msg("provider card removal failed; continuing with local soft delete")
		}
	}

	if uc.tm != nil {
		return uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return uc.cancelAllLocal(ctx, tx, sub, cards)
		})
	}
	// Sequential best-effort fallback when no transaction manager is
	// configured: same end state, achieved non-atomically.
	return uc.cancelAllLocal(ctx, repository.NoTX, sub, cards)
}

func (uc *subscriptionUC) cancelAllLocal(ctx context.Context, tx repository.Tx, sub *model.Subscriber, cards []*model.Card) error {
	for _, card := range cards {
		if err := uc.cards.SoftDelete(ctx, tx, card.ID); err != nil {
			return fmt.Errorf("soft delete card %s: %w", card.ID, err)
		}
	}
	now := time.Now()
	if _, err := uc.periods.CloseActiveBySubscriber(ctx, tx, sub.ID, now); err != nil {
		return fmt.Errorf("close periods: %w", err)
	}
	sub.IsActive = false
	sub.SubscriptionEnd = &now
	if err := uc.subscribers.Save(ctx, tx, sub); err != nil {
		return fmt.Errorf("deactivate subscriber: %w", err)
	}
	uc.log.Info().Str("subscriber_id", sub.ID).Int("cards", len(cards)).Msg("subscription cancelled")
	return nil
}

func (uc *subscriptionUC) VerifySettled(ctx context.Context, t *model.Transaction) (bool, error) {
	if t.Status != model.TransactionStatusPaid {
		return false, domain.ErrInvalidArgument
	}
	return uc.periods.ExistsForSettlement(ctx, repository.NoTX, t.SubscriberID, t.PlanID, t.Amount/100)
}
