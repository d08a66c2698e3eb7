package model

import (
	"time"

	"github.com/kamol666/finish/internal/domain"
)

// Provider is the closed set of payment providers a card can belong to.
type Provider string

const (
	ProviderPayme  Provider = "payme"
	ProviderUzcard Provider = "uzcard"
	ProviderClick  Provider = "click"
)

func (p Provider) Valid() bool {
	switch p {
	case ProviderPayme, ProviderUzcard, ProviderClick:
		return true
	}
	return false
}

// UzcardMeta is the provider-specific blob Uzcard returns on confirmation.
// DeleteID is the provider-internal id required by their delete endpoint.
type UzcardMeta struct {
	IsTrusted bool   `json:"is_trusted,omitempty"`
	Balance   int64  `json:"balance,omitempty"`
	Owner     string `json:"owner,omitempty"`
	DeleteID  string `json:"delete_id,omitempty"`
}

// Card is a tokenized payment instrument bound to a subscriber. At most one
// non-deleted verified card may exist per (subscriber, provider); the masked
// number may not belong to two different subscribers' live cards for the
// same provider. Both invariants are enforced by partial unique indexes.
type Card struct {
	ID           string
	SubscriberID string
	TelegramID   int64
	Username     string
	PlanID       string // last plan used when the card was created/re-verified
	Provider     Provider

	MaskedPAN string // e.g. "860012******1234"
	Token     string // opaque provider card token used for charges
	Expiry    string // "MMYY" as the providers pass it around

	Verified   bool
	VerifiedAt *time.Time

	IsDeleted bool
	DeletedAt *time.Time

	Uzcard *UzcardMeta

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (c *Card) IsZero() bool { return c == nil || c.ID == "" }

// Chargeable reports whether the card can be used for an unattended charge.
func (c *Card) Chargeable() bool {
	return c != nil && c.Verified && !c.IsDeleted && c.Token != ""
}

func NewCard(id, subscriberID string, telegramID int64, provider Provider) (*Card, error) {
	if id == "" || subscriberID == "" || !provider.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &Card{
		ID:           id,
		SubscriberID: subscriberID,
		TelegramID:   telegramID,
		Provider:     provider,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}
