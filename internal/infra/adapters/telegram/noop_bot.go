package telegram

import (
	"context"
	"log"
	"time"

	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

var _ adapter.NotifierBot = (*NoopNotifierBot)(nil)

// NoopNotifierBot implements adapter.NotifierBot for local/dev testing.
// It logs messages instead of sending real Telegram messages.
type NoopNotifierBot struct{}

func NewNoopNotifierBot() *NoopNotifierBot {
	return &NoopNotifierBot{}
}

// SendMessage logs the message and simulates small delay.
func (b *NoopNotifierBot) SendMessage(ctx context.Context, tgID int64, text string) error {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	log.Printf("[noop-telegram] To user %d: %s\n", tgID, text)
	return nil
}
