package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a minimal Telegram Bot API client.
type Client struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewClient creates a client bound to one bot token and one chat.
func NewClient(token, chatID string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SendMessage delivers text to the configured chat with HTML rendering
// and link previews suppressed. A non-2xx response is an error.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	form := url.Values{
		"chat_id":                  {c.chatID},
		"text":                     {text},
		"parse_mode":               {"HTML"},
		"disable_web_page_preview": {"true"},
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram api error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}
