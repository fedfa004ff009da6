package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultTelegramAPIURL is the public Bot API endpoint.
const DefaultTelegramAPIURL = "https://api.telegram.org"

// TelegramClient calls the Bot API sendMessage method.
type TelegramClient struct {
	apiURL string
	token  string
	client *http.Client
}

// NewTelegramClient creates a client. A non-positive timeout leaves requests unbounded.
func NewTelegramClient(apiURL, token string, timeout time.Duration) *TelegramClient {
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	return &TelegramClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// SendMessage posts text to chatID and returns the raw response body.
// The HTTP status is not inspected.
func (t *TelegramClient) SendMessage(ctx context.Context, chatID, text string) (string, error) {
	form := url.Values{}
	form.Set("chat_id", chatID)
	form.Set("text", text)

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send telegram message: %w", redactToken(err, t.token))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read telegram response: %w", err)
	}
	return string(body), nil
}

// redactToken strips the bot token from transport errors, which embed the request URL.
func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return fmt.Errorf("%s", strings.ReplaceAll(err.Error(), token, "<redacted>"))
}
