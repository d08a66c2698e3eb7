package repository

import (
	"context"

	"github.com/kamol666/finish/internal/domain/model"
)

// SubscriberRepository persists subscribers. Save upserts the full record;
// subscribers are never deleted.
type SubscriberRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscriber) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscriber, error)
	FindByTelegramID(ctx context.Context, tx Tx, telegramID int64) (*model.Subscriber, error)
}
