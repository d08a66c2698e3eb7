package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

// Translator resolves a message key to localized text.
type Translator interface {
	T(key string, args ...interface{}) string
}

// Notifier informs the chat layer about settlement outcomes. Calls are
// best-effort: failures are logged and swallowed so they can never undo
// financial state that is already committed.
type Notifier interface {
	PaymentSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan)
	ActivationSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan, bonusDays int)
	CardAddedWithoutBonus(ctx context.Context, sub *model.Subscriber, provider model.Provider)
	RenewalSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan, receiptURL string)
	RenewalFailed(ctx context.Context, sub *model.Subscriber, reason string)
}

type notifierUC struct {
	bot adapter.NotifierBot
	tr  Translator
	log *zerolog.Logger
}

var _ Notifier = (*notifierUC)(nil)

func NewNotifier(bot adapter.NotifierBot, tr Translator, logger *zerolog.Logger) *notifierUC {
	return &notifierUC{bot: bot, tr: tr, log: logger}
}

func (n *notifierUC) send(ctx context.Context, telegramID int64, text string) {
	if err := n.bot.SendMessage(ctx, telegramID, text); err != nil {
		n.log.Warn().Err(err).Int64("tg_id", telegramID).Msg("notification delivery failed")
	}
}

func (n *notifierUC) PaymentSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan) {
	n.send(ctx, sub.TelegramID, n.tr.T("payment.success", plan.Name, plan.DurationDays))
}

func (n *notifierUC) ActivationSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan, bonusDays int) {
	n.send(ctx, sub.TelegramID, n.tr.T("card.activated_with_bonus", bonusDays))
}

func (n *notifierUC) CardAddedWithoutBonus(ctx context.Context, sub *model.Subscriber, provider model.Provider) {
	n.send(ctx, sub.TelegramID, n.tr.T("card.added_without_bonus"))
}

func (n *notifierUC) RenewalSuccess(ctx context.Context, sub *model.Subscriber, plan *model.Plan, receiptURL string) {
	if receiptURL != "" {
		n.send(ctx, sub.TelegramID, n.tr.T("renewal.success_with_receipt", plan.Name, receiptURL))
		return
	}
	n.send(ctx, sub.TelegramID, n.tr.T("renewal.success", plan.Name))
}

func (n *notifierUC) RenewalFailed(ctx context.Context, sub *model.Subscriber, reason string) {
	n.send(ctx, sub.TelegramID, n.tr.T("renewal.failed", reason))
}
