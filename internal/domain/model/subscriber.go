package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/kamol666/finish/internal/domain"
)

type SubscriptionType string

const (
	SubscriptionTypeOneTime   SubscriptionType = "onetime"      // single webhook-settled purchase
	SubscriptionTypeRecurring SubscriptionType = "subscription" // card-token auto renewal
)

// Subscriber is a Telegram user known to the channel. The Start/End/IsActive
// fields are the current access-control projection; the immutable
// SubscriptionPeriod rows are the audit trail behind them. Subscribers are
// never deleted, only deactivated.
type Subscriber struct {
	ID                string
	TelegramID        int64
	Username          string
	SubscriptionType  SubscriptionType
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	IsActive          bool

	HasReceivedFreeBonus           bool
	FreeBonusReceivedAt            *time.Time
	HadPaidSubscriptionBeforeBonus bool

	PlanIDs          []string // every plan the subscriber has consumed, in order
	IsKickedOut      bool
	ActiveInviteLink *string
	CreatedAt        time.Time
}

func NewSubscriber(id string, telegramID int64, username string) (*Subscriber, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if telegramID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscriber{
		ID:         id,
		TelegramID: telegramID,
		Username:   username,
		CreatedAt:  time.Now(),
	}, nil
}

func (s *Subscriber) IsZero() bool { return s == nil || s.ID == "" }

// HasActiveSubscription reports whether the subscriber currently holds an
// unexpired access window.
func (s *Subscriber) HasActiveSubscription(now time.Time) bool {
	if s == nil || !s.IsActive || s.SubscriptionEnd == nil {
		return false
	}
	return s.SubscriptionEnd.After(now)
}

// ExtendEnd computes the new subscription end for a grant of addedDays.
// A still-active window (or a lapsed-but-graced one whose end is still in
// the future) is stacked from its current end; anything else starts from now.
// The arithmetic is identical for paid and bonus days.
func ExtendEnd(currentEnd *time.Time, active bool, addedDays int, now time.Time) time.Time {
	added := time.Duration(addedDays) * 24 * time.Hour
	if currentEnd != nil && (active || currentEnd.After(now)) {
		return currentEnd.Add(added)
	}
	return now.Add(added)
}
