package notifier

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/Freeeeeet/fieldsched/internal/model"
)

// TelegramChannel отправляет сводку события в чат диспетчеров
type TelegramChannel struct {
	bot    *bot.Bot
	chatID int64
}

// NewTelegramChannel не ходит в getMe при создании: бот только отправляет сообщения
func NewTelegramChannel(token string, chatID int64, opts ...bot.Option) (*TelegramChannel, error) {
	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramChannel{bot: b, chatID: chatID}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	_, err := c.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: c.chatID,
		Text:   Summary(ev),
	})
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}
