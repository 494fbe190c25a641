package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chyiyaqing/trendscope/internal/notify"
)

var _ notify.Notifier = (*Client)(nil)

const defaultAPIBase = "https://api.telegram.org"

// Client sends messages via the Telegram Bot API.
type Client struct {
	botToken   string
	chatID     string
	apiBase    string
	httpClient *http.Client
}

// New creates a Telegram notifier. Returns nil if token or chatID is empty.
func New(botToken, chatID string) *Client {
	if botToken == "" || chatID == "" {
		return nil
	}
	return &Client{
		botToken:   botToken,
		chatID:     chatID,
		apiBase:    defaultAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

const maxMessageLen = 4096

// Send posts title and body to the configured chat in HTML mode. Messages
// longer than 4096 bytes are split on record boundaries.
func (c *Client) Send(ctx context.Context, title, body string) error {
	text := body
	if title != "" {
		text = "<b>" + escapeHTML(title) + "</b>\n\n" + body
	}

	for i, chunk := range splitMessage(text, maxMessageLen) {
		if err := c.sendRaw(ctx, chunk); err != nil {
			return fmt.Errorf("telegram chunk %d: %w", i+1, err)
		}
	}
	return nil
}

func (c *Client) sendRaw(ctx context.Context, text string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.botToken)

	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                c.chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	var apiResp apiResponse
	_ = json.Unmarshal(respBody, &apiResp)
	if resp.StatusCode != http.StatusOK || !apiResp.OK {
		return fmt.Errorf("telegram API %d: %s", resp.StatusCode, apiResp.Description)
	}
	return nil
}

// splitMessage breaks text into chunks of at most maxLen bytes, preferring
// blank-line then newline boundaries and never cutting inside a rune.
func splitMessage(text string, maxLen int) []string {
	var chunks []string
	for len(text) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		if idx := strings.LastIndex(text[:cut], "\n\n"); idx > 0 {
			cut = idx
		} else if idx := strings.LastIndex(text[:cut], "\n"); idx > 0 {
			cut = idx
		}

		chunks = append(chunks, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" || len(chunks) == 0 {
		chunks = append(chunks, text)
	}
	return chunks
}

func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
