package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/Freeeeeet/fieldsched/internal/model"
)

// EmailChannel шлёт письмо через HTTP API почтового провайдера
type EmailChannel struct {
	client *http.Client
	apiURL string
	apiKey string
	from   string
	to     []string
}

type emailMessage struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// NewEmailChannel принимает список получателей через запятую
func NewEmailChannel(client *http.Client, apiURL, apiKey, from, to string) *EmailChannel {
	var recipients []string
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	return &EmailChannel{client: client, apiURL: apiURL, apiKey: apiKey, from: from, to: recipients}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	msg := emailMessage{
		From:    c.from,
		To:      c.to,
		Subject: fmt.Sprintf("[fieldsched] booking #%d %s", ev.BookingID, ev.EventType),
		Text:    Summary(ev) + "\n\nEvent ID: " + ev.ID.String(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Idempotency-Key", ev.ID.String())

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}
