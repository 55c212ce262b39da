package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Freeeeeet/fieldsched/internal/model"
)

// ChatChannel — входящий webhook чата в формате Slack ({"text": ...})
type ChatChannel struct {
	client *http.Client
	url    string
}

func NewChatChannel(client *http.Client, url string) *ChatChannel {
	return &ChatChannel{client: client, url: url}
}

func (c *ChatChannel) Name() string { return "chat" }

func (c *ChatChannel) Deliver(ctx context.Context, ev *model.OutboxEvent) error {
	body, err := json.Marshal(map[string]string{"text": Summary(ev)})
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	return checkResponse(resp)
}
