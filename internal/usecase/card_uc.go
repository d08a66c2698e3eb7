package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

// Compile-time check
var _ CardUseCase = (*cardUC)(nil)

// CardUseCase drives the payment-instrument lifecycle:
// none -> token_issued -> verified -> soft_deleted. Verification upserts the
// subscriber's single instrument per provider and triggers the
// bonus-or-full-activation decision.
type CardUseCase interface {
	IssueToken(ctx context.Context, subscriberID, planID string, provider model.Provider, cardNumber, expiry string) (*adapter.TokenSession, error)
	VerifyToken(ctx context.Context, subscriberID, planID string, provider model.Provider, session, code, selectedService string) (*model.Card, error)
	ResendCode(ctx context.Context, provider model.Provider, session string) error
	Remove(ctx context.Context, subscriberID string, provider model.Provider) error
}

type cardUC struct {
	cards       repository.CardRepository
	subscribers repository.SubscriberRepository
	plans       repository.PlanRepository
	providers   map[model.Provider]adapter.CardProvider
	subUC       SubscriptionUseCase
	notifier    Notifier
	tm          repository.TransactionManager
	bonusDays   int
	log         *zerolog.Logger
}

func NewCardUseCase(
	cards repository.CardRepository,
	subscribers repository.SubscriberRepository,
	plans repository.PlanRepository,
	providers map[model.Provider]adapter.CardProvider,
	subUC SubscriptionUseCase,
	notifier Notifier,
	tm repository.TransactionManager,
	bonusDays int,
	logger *zerolog.Logger,
) *cardUC {
	if bonusDays <= 0 {
		bonusDays = DefaultBonusDays
	}
	return &cardUC{
		cards:       cards,
		subscribers: subscribers,
		plans:       plans,
		providers:   providers,
		subUC:       subUC,
		notifier:    notifier,
		tm:          tm,
		bonusDays:   bonusDays,
		log:         logger,
	}
}

func (uc *cardUC) provider(p model.Provider) (adapter.CardProvider, error) {
	prov, ok := uc.providers[p]
	if !ok {
		return nil, fmt.Errorf("%w: provider %q", domain.ErrInvalidArgument, p)
	}
	return prov, nil
}

func (uc *cardUC) IssueToken(ctx context.Context, subscriberID, planID string, provider model.Provider, cardNumber, expiry string) (*adapter.TokenSession, error) {
	prov, err := uc.provider(provider)
	if err != nil {
		return nil, err
	}
	if _, err := uc.subscribers.FindByID(ctx, repository.NoTX, subscriberID); err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	if _, err := uc.plans.FindByID(ctx, repository.NoTX, planID); err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}
	session, err := prov.IssueToken(ctx, adapter.TokenRequest{
		SubscriberID: subscriberID,
		CardNumber:   cardNumber,
		Expiry:       expiry,
	})
	if err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("subscriber_id", subscriberID).
		Str("provider", string(provider)).
		Msg("card token issued; awaiting OTP")
	return session, nil
}

func (uc *cardUC) VerifyToken(ctx context.Context, subscriberID, planID string, provider model.Provider, session, code, selectedService string) (*model.Card, error) {
	prov, err := uc.provider(provider)
	if err != nil {
		return nil, err
	}
	sub, err := uc.subscribers.FindByID(ctx, repository.NoTX, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	plan, err := uc.plans.FindByID(ctx, repository.NoTX, planID)
	if err != nil {
		return nil, fmt.Errorf("find plan: %w", err)
	}

	info, err := prov.VerifyToken(ctx, session, code)
	if err != nil {
		return nil, err
	}

	// The same masked number may not be live under another subscriber for
	// this provider. The subscriber's own soft-deleted instrument is revived
	// by the upsert below.
	if other, err := uc.cards.FindLiveByMaskedPAN(ctx, repository.NoTX, provider, info.MaskedPAN); err == nil {
		if other.SubscriberID != sub.ID {
			return nil, domain.ErrCardAlreadyExists
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("check masked number: %w", err)
	}

	card, err := model.NewCard(uuid.NewString(), sub.ID, sub.TelegramID, provider)
	if err != nil {
		return nil, err
	}
	card.Username = sub.Username
	card.PlanID = plan.ID
	card.MaskedPAN = info.MaskedPAN
	card.Token = info.Token
	card.Expiry = info.Expiry
	card.Uzcard = info.Uzcard
	now := card.UpdatedAt
	card.Verified = true
	card.VerifiedAt = &now

	bonusDue := !sub.HasReceivedFreeBonus

	var grantRes *GrantResult
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := uc.cards.Upsert(ctx, tx, card); err != nil {
			return fmt.Errorf("upsert card: %w", err)
		}
		if !bonusDue {
			return nil
		}
		var err error
		grantRes, err = uc.subUC.Apply(ctx, tx, sub.ID, Grant{
			Plan:      plan,
			Type:      model.SubscriptionTypeRecurring,
			Days:      uc.bonusDays,
			AutoRenew: true,
			Bonus:     true,
			CardID:    &card.ID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if bonusDue {
		uc.notifier.ActivationSuccess(ctx, grantRes.Subscriber, plan, uc.bonusDays)
	} else {
		// The one-time bonus was consumed earlier: store the card only.
		uc.notifier.CardAddedWithoutBonus(ctx, sub, provider)
	}

	uc.log.Info().
		Str("subscriber_id", sub.ID).
		Str("provider", string(provider)).
		Str("masked_pan", card.MaskedPAN).
		Bool("bonus_granted", bonusDue).
		Msg("card verified")
	return card, nil
}

func (uc *cardUC) ResendCode(ctx context.Context, provider model.Provider, session string) error {
	prov, err := uc.provider(provider)
	if err != nil {
		return err
	}
	return prov.ResendCode(ctx, session)
}

func (uc *cardUC) Remove(ctx context.Context, subscriberID string, provider model.Provider) error {
	prov, err := uc.provider(provider)
	if err != nil {
		return err
	}
	card, err := uc.cards.FindLiveBySubscriberAndProvider(ctx, repository.NoTX, subscriberID, provider)
	if err != nil {
		return fmt.Errorf("find card: %w", err)
	}
	// Provider-side failure must not block the local removal.
	if err := prov.Remove(ctx, card); err != nil {
		uc.log.Warn().Err(err).
			Str("card_id", card.ID).
			Str("provider", string(provider)).
			Msg("provider card removal failed; soft-deleting locally anyway")
	}
	if err := uc.cards.SoftDelete(ctx, repository.NoTX, card.ID); err != nil {
		return fmt.Errorf("soft delete card: %w", err)
	}
	uc.log.Info().Str("card_id", card.ID).Str("provider", string(provider)).Msg("card removed")
	return nil
}
