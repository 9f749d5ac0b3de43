// internal/notify/telegram.go
package notify

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram sends alerts to a single chat. Messages use HTML markup.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	logger *zap.Logger
}

// NewTelegram creates a notifier for the given bot token and chat.
func NewTelegram(token string, chatID int64, logger *zap.Logger) (*Telegram, error) {
	bot, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: logger.Named("telegram"),
	}, nil
}

func (t *Telegram) Alert(_ context.Context, message string) error {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return nil
	}

	msg := tgbot.NewMessage(t.chatID, message)
	msg.ParseMode = tgbot.ModeHTML
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram alert: %w", err)
	}

	t.logger.Debug("Alert delivered", zap.Int64("chat_id", t.chatID))
	return nil
}
