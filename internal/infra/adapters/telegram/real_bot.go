package telegram

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kamol666/finish/internal/config"
	"github.com/kamol666/finish/internal/domain/ports/adapter"
)

var _ adapter.NotifierBot = (*RealNotifierBot)(nil)

// RealNotifierBot sends subscriber notifications through the Bot API. This
// service only pushes outbound messages; it never polls updates.
type RealNotifierBot struct {
	bot *tgbotapi.BotAPI
	cfg *config.BotConfig
}

func NewRealNotifierBot(cfg *config.BotConfig) (*RealNotifierBot, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	return &RealNotifierBot{bot: bot, cfg: cfg}, nil
}

func (b *RealNotifierBot) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(tgID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := b.bot.Send(msg)
	return err
}
