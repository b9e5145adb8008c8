package notification

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramMessenger отправляет сообщения через Bot API.
type TelegramMessenger struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramMessenger авторизуется в Bot API по токену бота.
func NewTelegramMessenger(token string, debug bool) (*TelegramMessenger, error) {
	const op = "services.notification.NewTelegramMessenger"
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	bot.Debug = debug
	return &TelegramMessenger{bot: bot}, nil
}

// Send отправляет текст в чат chatID. Отмена ctx проверяется только до отправки.
func (m *TelegramMessenger) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	_, err := m.bot.Send(msg)
	return err
}
