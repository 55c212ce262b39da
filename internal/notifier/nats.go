package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Freeeeeet/fieldsched/internal/model"
)

// publisher — часть *nats.Conn, нужная каналу
type publisher interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSChannel публикует конверт события в subject. Заголовок Nats-Msg-Id
// позволяет JetStream отбросить повторную доставку
type NATSChannel struct {
	conn    publisher
	subject string
	close   func()
}

// DialNATS подключается к серверу и создаёт канал
func DialNATS(url, subject string, timeout time.Duration) (*NATSChannel, error) {
	nc, err := nats.Connect(url,
		nats.Name("fieldsched-dispatcher"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return &NATSChannel{conn: nc, subject: subject, close: nc.Close}, nil
}

func (c *NATSChannel) Name() string { return "nats" }

func (c *NATSChannel) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	data, err := json.Marshal(NewEnvelope(ev))
	if err != nil {
		return fmt.Errorf("marshal nats message: %w", err)
	}

	msg := nats.NewMsg(c.subject + "." + string(ev.EventType))
	msg.Header.Set(nats.MsgIdHdr, ev.ID.String())
	msg.Data = data

	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish to %s: %w", msg.Subject, err)
	}
	// Flush подтверждает, что сервер получил сообщение
	if err := c.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	return nil
}

func (c *NATSChannel) Close() {
	if c.close != nil {
		c.close()
	}
}
