package model

import (
	"time"

	"github.com/kamol666/finish/internal/domain"
)

type PeriodStatus string

const (
	PeriodStatusActive    PeriodStatus = "active"
	PeriodStatusExpired   PeriodStatus = "expired"
	PeriodStatusCancelled PeriodStatus = "cancelled"
	PeriodStatusPending   PeriodStatus = "pending"
)

// SubscriptionPeriod is one immutable audit row appended per settlement
// (paid or bonus). The Subscriber projection is what access control reads;
// these rows are the history behind it.
type SubscriptionPeriod struct {
	ID           string
	SubscriberID string
	TelegramID   int64
	PlanID       string
	PlanName     string
	Type         SubscriptionType
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	AutoRenew    bool
	Status       PeriodStatus
	PaidAmount   int64     // som; 0 for bonus grants
	PaidBy       *Provider // nil for bonus grants
	CardID       *string   // instrument used, when paid by stored card
	CreatedAt    time.Time
}

func NewSubscriptionPeriod(id, subscriberID, planID string, typ SubscriptionType, start, end time.Time) (*SubscriptionPeriod, error) {
	if id == "" || subscriberID == "" || planID == "" || !end.After(start) {
		return nil, domain.ErrInvalidArgument
	}
	return &SubscriptionPeriod{
		ID:           id,
		SubscriberID: subscriberID,
		PlanID:       planID,
		Type:         typ,
		StartDate:    start,
		EndDate:      end,
		IsActive:     true,
		Status:       PeriodStatusActive,
		CreatedAt:    time.Now(),
	}, nil
}
