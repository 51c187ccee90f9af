package notify

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// TelegramClient sends messages through the Telegram Bot API. Messages use
// Markdown emphasis (*bold*, _italic_).
type TelegramClient struct {
	token   string
	baseURL string
	httpc   *http.Client
}

// NewTelegramClient creates a client for the given bot token.
func NewTelegramClient(token string) *TelegramClient {
	return &TelegramClient{
		token:   token,
		baseURL: "https://api.telegram.org",
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts a message to the chat and returns the Telegram message id.
func (c *TelegramClient) Send(chatID, text string) (int64, error) {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)

	resp, err := c.httpc.PostForm(endpoint, url.Values{
		"chat_id":    {chatID},
		"text":       {text},
		"parse_mode": {"Markdown"},
	})
	if err != nil {
		return 0, fmt.Errorf("telegram send failed: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode telegram response: %w", err)
	}
	if !result.OK {
		return 0, fmt.Errorf("telegram rejected message, status %d", resp.StatusCode)
	}

	return result.Result.MessageID, nil
}
