package repository

import (
	"context"

	"github.com/kamol666/finish/internal/domain/model"
)

// CardRepository persists tokenized payment instruments.
//
// Upsert replaces the subscriber's single card for a provider in place
// (reviving a soft-deleted one rather than inserting a second live row);
// implementations must surface domain.ErrCardAlreadyExists when the masked
// number is live under a different subscriber for the same provider.
type CardRepository interface {
	Upsert(ctx context.Context, tx Tx, card *model.Card) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Card, error)
	FindLiveBySubscriberAndProvider(ctx context.Context, tx Tx, subscriberID string, provider model.Provider) (*model.Card, error)
	FindLiveByMaskedPAN(ctx context.Context, tx Tx, provider model.Provider, maskedPAN string) (*model.Card, error)
	ListLiveBySubscriber(ctx context.Context, tx Tx, subscriberID string) ([]*model.Card, error)
	SoftDelete(ctx context.Context, tx Tx, cardID string) error
}
