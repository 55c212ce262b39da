package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/fieldsched/internal/model"
)

// WebhookChannel отправляет JSON-конверт события POST-запросом
type WebhookChannel struct {
	client *http.Client
	url    string
	secret string
}

func NewWebhookChannel(client *http.Client, url, secret string) *WebhookChannel {
	return &WebhookChannel{client: client, url: url, secret: secret}
}

func (c *WebhookChannel) Name() string { return "webhook" }

func (c *WebhookChannel) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	body, err := json.Marshal(NewEnvelope(ev))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "fieldsched-webhook/1.0")
	req.Header.Set("X-Fieldsched-Event", string(ev.EventType))
	req.Header.Set("X-Fieldsched-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("Idempotency-Key", ev.ID.String())
	if c.secret != "" {
		req.Header.Set("X-Signature-256", Sign(body, c.secret))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}

// Sign возвращает HMAC-SHA256 подпись тела в формате sha256=<hex>
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
