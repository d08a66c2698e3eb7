package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kamol666/finish/internal/domain"
	"github.com/kamol666/finish/internal/domain/model"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
	"github.com/kamol666/finish/internal/domain/ports/repository"
)

type subscriptionDeps struct {
	subs    *memSubscriberRepo
	plans   *memPlanRepo
	periods *memPeriodRepo
	cards   *memCardRepo
	uzcard  *mockProvider
	click   *mockProvider
	tm      *memTxManager
	uc      *subscriptionUC
}

func newSubscriptionDeps(t *testing.T) *subscriptionDeps {
	t.Helper()
	d := &subscriptionDeps{
		subs:    newMemSubscriberRepo(),
		plans:   newMemPlanRepo(),
		periods: newMemPeriodRepo(),
		cards:   newMemCardRepo(),
		uzcard:  &mockProvider{name: model.ProviderUzcard},
		click:   &mockProvider{name: model.ProviderClick},
	}
	d.tm = &memTxManager{subs: d.subs, cards: d.cards, periods: d.periods}
	providers := map[model.Provider]adapter.CardProvider{
		model.ProviderUzcard: d.uzcard,
		model.ProviderClick:  d.click,
	}
	d.uc = NewSubscriptionUseCase(d.subs, d.plans, d.periods, d.cards, providers, d.tm, newTestLogger())
	return d
}

func (d *subscriptionDeps) seed(t *testing.T) (*model.Plan, *model.Subscriber) {
	t.Helper()
	ctx := context.Background()
	plan, err := model.NewPlan("plan-1", "Premium", "premium", 5555, 30)
	if err != nil {
		t.Fatalf("seed plan: %v", err)
	}
	d.plans.Save(ctx, repository.NoTX, plan)
	sub, err := model.NewSubscriber("sub-1", 100, "tester")
	if err != nil {
		t.Fatalf("seed subscriber: %v", err)
	}
	d.subs.Save(ctx, repository.NoTX, sub)
	return plan, sub
}

func TestSubscriptionApply(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh subscriber starts from now", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		plan, sub := d.seed(t)

		provider := model.ProviderPayme
		res, err := d.uc.Apply(ctx, repository.NoTX, sub.ID, Grant{
			Plan:       plan,
			Type:       model.SubscriptionTypeOneTime,
			PaidAmount: plan.Price,
			PaidBy:     &provider,
		})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		wantEnd := time.Now().Add(30 * 24 * time.Hour)
		if diff := res.NewEnd.Sub(wantEnd); diff > time.Minute || diff < -time.Minute {
			t.Errorf("expected end near %v, got %v", wantEnd, res.NewEnd)
		}

		got, _ := d.subs.FindByID(ctx, repository.NoTX, sub.ID)
		if !got.IsActive {
			t.Error("subscriber must be active after a grant")
		}
		if len(got.PlanIDs) != 1 || got.PlanIDs[0] != plan.ID {
			t.Errorf("expected plan id recorded, got %v", got.PlanIDs)
		}
	})

	t.Run("active window stacks", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		plan, sub := d.seed(t)

		end := time.Now().Add(10 * 24 * time.Hour)
		sub.IsActive = true
		sub.SubscriptionEnd = &end
		d.subs.Save(ctx, repository.NoTX, sub)

		res, err := d.uc.Apply(ctx, repository.NoTX, sub.ID, Grant{Plan: plan, Type: model.SubscriptionTypeOneTime})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		want := end.Add(30 * 24 * time.Hour)
		if !res.NewEnd.Equal(want) {
			t.Errorf("expected stacked end %v, got %v", want, res.NewEnd)
		}
	})

	t.Run("days override wins over the plan duration", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		plan, sub := d.seed(t)

		res, err := d.uc.Apply(ctx, repository.NoTX, sub.ID, Grant{Plan: plan, Type: model.SubscriptionTypeRecurring, Days: 7, Bonus: true})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		wantEnd := time.Now().Add(7 * 24 * time.Hour)
		if diff := res.NewEnd.Sub(wantEnd); diff > time.Minute || diff < -time.Minute {
			t.Errorf("expected end near %v, got %v", wantEnd, res.NewEnd)
		}
		got, _ := d.subs.FindByID(ctx, repository.NoTX, sub.ID)
		if !got.HasReceivedFreeBonus || got.FreeBonusReceivedAt == nil {
			t.Error("bonus grant must set the bonus flags")
		}
	})

	t.Run("payment forgives a prior removal", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		plan, sub := d.seed(t)

		sub.IsKickedOut = true
		d.subs.Save(ctx, repository.NoTX, sub)

		res, err := d.uc.Apply(ctx, repository.NoTX, sub.ID, Grant{Plan: plan, Type: model.SubscriptionTypeOneTime})
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if !res.WasKickedOut {
			t.Error("result must report the prior removal")
		}
		got, _ := d.subs.FindByID(ctx, repository.NoTX, sub.ID)
		if got.IsKickedOut {
			t.Error("a new payment must clear the kicked-out flag")
		}
	})

	t.Run("zero plan is rejected", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		_, sub := d.seed(t)

		_, err := d.uc.Apply(ctx, repository.NoTX, sub.ID, Grant{Plan: &model.Plan{}})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSubscriptionCancelAll(t *testing.T) {
	ctx := context.Background()

	seedCancelable := func(t *testing.T, d *subscriptionDeps) *model.Subscriber {
		t.Helper()
		plan, sub := d.seed(t)

		provider := model.ProviderUzcard
		if _, err := d.uc.Apply(ctx, repository.NoTX, sub.ID, Grant{Plan: plan, Type: model.SubscriptionTypeRecurring, PaidBy: &provider, AutoRenew: true}); err != nil {
			t.Fatalf("seed grant: %v", err)
		}

		for i, p := range []model.Provider{model.ProviderUzcard, model.ProviderClick} {
			card, err := model.NewCard("card-"+string(rune('1'+i)), sub.ID, sub.TelegramID, p)
			if err != nil {
				t.Fatalf("seed card: %v", err)
			}
			card.Verified = true
			card.Token = "tok"
			card.MaskedPAN = "860012******123" + string(rune('1'+i))
			d.cards.Upsert(ctx, repository.NoTX, card)
		}
		return sub
	}

	t.Run("removes cards, closes periods, deactivates", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		sub := seedCancelable(t, d)

		if err := d.uc.CancelAll(ctx, sub.ID); err != nil {
			t.Fatalf("cancel all: %v", err)
		}

		if d.uzcard.removeCalls != 1 || d.click.removeCalls != 1 {
			t.Error("every provider must be asked to drop its token")
		}
		live, _ := d.cards.ListLiveBySubscriber(ctx, repository.NoTX, sub.ID)
		if len(live) != 0 {
			t.Errorf("expected no live cards, got %d", len(live))
		}
		periods, _ := d.periods.ListBySubscriber(ctx, repository.NoTX, sub.ID)
		for _, p := range periods {
			if p.IsActive || p.AutoRenew || p.Status != model.PeriodStatusCancelled {
				t.Errorf("expected period closed, got %+v", p)
			}
		}
		got, _ := d.subs.FindByID(ctx, repository.NoTX, sub.ID)
		if got.IsActive {
			t.Error("subscriber must be deactivated")
		}
	})

	t.Run("provider failure does not block the local cancellation", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		sub := seedCancelable(t, d)

		d.uzcard.removeFunc = func(ctx context.Context, card *model.Card) error {
			return errors.New("provider down")
		}

		if err := d.uc.CancelAll(ctx, sub.ID); err != nil {
			t.Fatalf("cancel all: %v", err)
		}
		live, _ := d.cards.ListLiveBySubscriber(ctx, repository.NoTX, sub.ID)
		if len(live) != 0 {
			t.Errorf("expected no live cards despite provider failure, got %d", len(live))
		}
	})

	t.Run("unknown subscriber", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		if err := d.uc.CancelAll(ctx, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSubscriptionVerifySettled(t *testing.T) {
	ctx := context.Background()

	t.Run("settled transaction with its period row", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		plan, sub := d.seed(t)

		provider := model.ProviderPayme
		if _, err := d.uc.Apply(ctx, repository.NoTX, sub.ID, Grant{Plan: plan, Type: model.SubscriptionTypeOneTime, PaidAmount: plan.Price, PaidBy: &provider}); err != nil {
			t.Fatalf("apply: %v", err)
		}

		tr := &model.Transaction{
			Status:       model.TransactionStatusPaid,
			SubscriberID: sub.ID,
			PlanID:       plan.ID,
			Amount:       plan.PriceTiyin(),
		}
		ok, err := d.uc.VerifySettled(ctx, tr)
		if err != nil {
			t.Fatalf("verify settled: %v", err)
		}
		if !ok {
			t.Error("expected a matching period row")
		}
	})

	t.Run("settlement without a period row", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		plan, sub := d.seed(t)

		tr := &model.Transaction{
			Status:       model.TransactionStatusPaid,
			SubscriberID: sub.ID,
			PlanID:       plan.ID,
			Amount:       plan.PriceTiyin(),
		}
		ok, err := d.uc.VerifySettled(ctx, tr)
		if err != nil {
			t.Fatalf("verify settled: %v", err)
		}
		if ok {
			t.Error("expected no matching period row")
		}
	})

	t.Run("non-paid transaction is rejected", func(t *testing.T) {
		d := newSubscriptionDeps(t)
		_, err := d.uc.VerifySettled(ctx, &model.Transaction{Status: model.TransactionStatusPending})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
