// Package platform wraps the external messaging-platform REST API: sending
// chat messages (plain and media) and fetching conversation history. The
// wire format is consumed opaquely; nothing here carries domain logic.
//
// Error semantics: any non-2xx status or transport failure is returned as an
// error. Callers decide how to degrade — the lifecycle controller treats a
// failed history fetch as an empty history and a failed send as a lost turn.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// HistoryMessage is one prior turn of a conversation as reported by the
// platform. Role is "user" or "assistant".
type HistoryMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	MessageID string    `json:"message_id,omitempty"`
	SentAt    time.Time `json:"sent_at,omitempty"`
}

// MediaOptions describes an attachment for SendMediaMessage.
type MediaOptions struct {
	ContentType string `json:"content_type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// RichContentBlock is an opaque structured-content fragment passed through
// to the platform untouched. Rendering is the platform's concern.
type RichContentBlock map[string]any

// Client talks to the messaging platform. Safe for concurrent use.
type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	accountID string
	http      *http.Client
}

// NewClient constructs a Client. timeout caps each request end to end; the
// per-stage webhook races layer their own (shorter) context deadlines on top.
func NewClient(baseURL, apiKey, apiSecret, accountID string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   baseURL,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		accountID: accountID,
		http:      &http.Client{Timeout: timeout},
	}
}

// SendMessage delivers a plain text message (optionally with rich content
// blocks) to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, blocks ...RichContentBlock) error {
	body := map[string]any{
		"chat_id": chatID,
		"content": text,
		"type":    "text",
	}
	if len(blocks) > 0 {
		body["rich_content"] = blocks
	}
	return c.post(ctx, "/messages", body)
}

// SendMediaMessage delivers a message carrying a media attachment.
func (c *Client) SendMediaMessage(ctx context.Context, chatID, text, mediaURL string, opts MediaOptions) error {
	body := map[string]any{
		"chat_id":   chatID,
		"content":   text,
		"type":      "media",
		"media_url": mediaURL,
		"media":     opts,
	}
	return c.post(ctx, "/messages", body)
}

// GetMessageHistory fetches up to limit prior turns for chatID, most recent
// last. It returns the platform's ordering untouched.
func (c *Client) GetMessageHistory(ctx context.Context, chatID string, limit int) ([]HistoryMessage, error) {
	if limit < 1 {
		limit = 20
	}
	u := c.baseURL + "/chats/" + chatID + "/messages?limit=" + strconv.Itoa(limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build history request: %w", err)
	}
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch history: platform returned %d", resp.StatusCode)
	}

	var payload struct {
		Messages []HistoryMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return payload.Messages, nil
}

// post issues an authenticated JSON POST and drains the response.
func (c *Client) post(ctx context.Context, path string, body any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.auth(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().
			Int("status", resp.StatusCode).
			Str("path", path).
			Str("body", string(snippet)).
			Msg("platform rejected message")
		return fmt.Errorf("send message: platform returned %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// auth sets the platform credential headers on a request.
func (c *Client) auth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if c.apiSecret != "" {
		req.Header.Set("X-API-Secret", c.apiSecret)
	}
	if c.accountID != "" {
		req.Header.Set("X-Account-ID", c.accountID)
	}
}
