// Package notification предоставляет клиент сервиса push-уведомлений.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Доставка уведомлений — best-effort: клиент никогда не ретраит и не
// должен блокировать транзакции леджера.
const sendTimeout = 5 * time.Second

// Сервис доставки принимает пачки ограниченного размера.
const chunkSize = 100

// Message описывает одно push-уведомление.
type Message struct {
	To    string         `json:"to"`
	Sound string         `json:"sound"`
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Client инкапсулирует HTTP-взаимодействие с сервисом доставки уведомлений.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент сервиса уведомлений по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: sendTimeout,
		},
	}
}

// Send отправляет одно уведомление.
func (c *Client) Send(ctx context.Context, title, body, pushToken string, data map[string]any) error {
	return c.SendBulk(ctx, []Message{{
		To:    pushToken,
		Sound: "default",
		Title: title,
		Body:  body,
		Data:  data,
	}})
}

// SendBulk отправляет пачку уведомлений, разбивая её на части допустимого
// размера. Сообщения без адреса доставки пропускаются.
func (c *Client) SendBulk(ctx context.Context, messages []Message) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("notification client not configured")
	}

	valid := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.To == "" {
			continue
		}
		if m.Sound == "" {
			m.Sound = "default"
		}
		valid = append(valid, m)
	}
	if len(valid) == 0 {
		return nil
	}

	for start := 0; start < len(valid); start += chunkSize {
		end := start + chunkSize
		if end > len(valid) {
			end = len(valid)
		}
		if err := c.sendChunk(ctx, valid[start:end]); err != nil {
			return err
		}
	}

	return nil
}

func (c *Client) sendChunk(ctx context.Context, chunk []Message) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/push/send", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	return nil
}
