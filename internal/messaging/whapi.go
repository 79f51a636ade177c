// Package messaging sends WhatsApp messages through the Whapi.Cloud
// gateway.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/careloop/careloop/internal/httpkit"
)

const defaultBaseURL = "https://gate.whapi.cloud"

// Client posts text messages to the Whapi.Cloud API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Whapi client. An empty token yields a client whose
// Send returns ErrNotConfigured.
func New(baseURL, token string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     logger.With("component", "whapi"),
		httpClient: httpkit.NewClient(httpkit.WithTimeout(10 * time.Second)),
	}
}

// ErrNotConfigured is returned by Send when no API token is set.
var ErrNotConfigured = errors.New("messaging: whapi token not configured")

// Configured reports whether an API token is set.
func (c *Client) Configured() bool { return c.token != "" }

type textMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// Send delivers a text message to the given phone number. The number
// is normalized to bare digits as Whapi expects.
func (c *Client) Send(ctx context.Context, phone, text string) error {
	if c.token == "" {
		return ErrNotConfigured
	}

	payload, err := json.Marshal(textMessage{
		To:   normalizePhone(phone),
		Body: text,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages/text", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody := httpkit.ReadErrorBody(resp.Body, 1024)
		c.logger.Error("whapi error", "status", resp.StatusCode, "body", errBody)
		return fmt.Errorf("whapi error %d: %s", resp.StatusCode, errBody)
	}

	c.logger.Info("whatsapp message sent", "to_len", len(phone), "body_len", len(text))
	return nil
}

// normalizePhone strips everything but digits. Whapi addresses chats
// by bare international number without the leading plus.
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
