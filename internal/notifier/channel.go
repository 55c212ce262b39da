// Package notifier доставляет события outbox во внешние каналы уведомлений.
package notifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Freeeeeet/fieldsched/internal/config"
	"github.com/Freeeeeet/fieldsched/internal/model"
)

// Channel — один канал доставки. Доставка at-least-once: получатель
// дедуплицирует по ID события
type Channel interface {
	Name() string
	Deliver(ctx context.Context, ev *model.OutboxEvent) error
}

// Envelope — тело сообщения для машинных каналов (webhook, NATS)
type Envelope struct {
	ID        uuid.UUID             `json:"id"`
	BookingID int64                 `json:"booking_id"`
	EventType model.OutboxEventType `json:"event_type"`
	CreatedAt time.Time             `json:"created_at"`
	Payload   model.EventPayload    `json:"payload"`
}

func NewEnvelope(ev *model.OutboxEvent) Envelope {
	return Envelope{
		ID:        ev.ID,
		BookingID: ev.BookingID,
		EventType: ev.EventType,
		CreatedAt: ev.CreatedAt,
		Payload:   ev.Payload,
	}
}

// Summary — короткий текст события для людей (email, чат, Telegram)
func Summary(ev *model.OutboxEvent) string {
	snap := model.SnapshotFromPayload(ev.Payload)
	when := fmt.Sprintf("%s – %s", snap.StartAt.Format("2006-01-02 15:04"), snap.EndAt.Format("15:04 MST"))

	switch p := ev.Payload.(type) {
	case model.BookingCreated:
		return fmt.Sprintf("Booking #%d created for technician %d: %s (%s)", snap.ID, snap.TechnicianID, when, snap.Status)
	case model.BookingMoved:
		return fmt.Sprintf("Booking #%d moved: %s, technician %d%s", snap.ID, when, snap.TechnicianID, describeDiff(p.Diff))
	case model.BookingResized:
		return fmt.Sprintf("Booking #%d resized: %s%s", snap.ID, when, describeDiff(p.Diff))
	case model.BookingStatusChanged:
		return fmt.Sprintf("Booking #%d status %s→%s (%s)", snap.ID, p.From, p.To, when)
	case model.BookingDeleted:
		return fmt.Sprintf("Booking #%d deleted (%s)", snap.ID, when)
	}
	return fmt.Sprintf("Booking #%d: %s", ev.BookingID, ev.EventType)
}

func describeDiff(diff []model.FieldChange) string {
	if len(diff) == 0 {
		return ""
	}
	parts := make([]string, 0, len(diff))
	for _, c := range diff {
		parts = append(parts, fmt.Sprintf("%s %s→%s", c.Field, c.Old, c.New))
	}
	return " [" + strings.Join(parts, "; ") + "]"
}

// FromConfig собирает включённые каналы. Канал без настроек просто
// отключён. Возвращаемая функция закрывает соединения каналов
func FromConfig(cfg *config.Config, logger *zap.Logger) ([]Channel, func(), error) {
	client := &http.Client{Timeout: cfg.ChannelTimeout}
	var (
		channels []Channel
		closers  []func()
	)

	if cfg.WebhookURL != "" {
		channels = append(channels, NewWebhookChannel(client, cfg.WebhookURL, cfg.WebhookSecret))
	}
	if cfg.EmailAPIURL != "" && cfg.EmailAPIKey != "" && cfg.EmailTo != "" {
		channels = append(channels, NewEmailChannel(client, cfg.EmailAPIURL, cfg.EmailAPIKey, cfg.EmailFrom, cfg.EmailTo))
	}
	if cfg.ChatWebhookURL != "" {
		channels = append(channels, NewChatChannel(client, cfg.ChatWebhookURL))
	}
	if cfg.TelegramToken != "" {
		ch, err := NewTelegramChannel(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			return nil, nil, fmt.Errorf("init telegram channel: %w", err)
		}
		channels = append(channels, ch)
	}
	if cfg.NATSURL != "" {
		ch, err := DialNATS(cfg.NATSURL, cfg.NATSSubject, cfg.ChannelTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("init nats channel: %w", err)
		}
		channels = append(channels, ch)
		closers = append(closers, ch.Close)
	}

	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name())
	}
	if len(channels) == 0 {
		logger.Warn("No notification channels configured, outbox events will fail delivery")
	} else {
		logger.Info("Notification channels enabled", zap.Strings("channels", names))
	}

	return channels, func() {
		for _, c := range closers {
			c()
		}
	}, nil
}

// checkResponse считает успешными только 2xx ответы
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
