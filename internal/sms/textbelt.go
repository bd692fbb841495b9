package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// textbeltBaseURL is the public Textbelt endpoint.
const textbeltBaseURL = "https://textbelt.com"

// Textbelt sends messages through the Textbelt HTTP API.
type Textbelt struct {
	baseURL string
	key     string
	sender  string
	hc      *http.Client
	logger  *slog.Logger
}

// NewTextbelt creates a Textbelt-backed Controller. sender is optional and
// sets the sender name Textbelt attaches to the message.
func NewTextbelt(key, sender string, logger *slog.Logger) *Textbelt {
	if logger == nil {
		logger = slog.Default()
	}
	return &Textbelt{
		baseURL: textbeltBaseURL,
		key:     key,
		sender:  sender,
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (t *Textbelt) SetBaseURL(baseURL string) {
	t.baseURL = baseURL
}

type textbeltResponse struct {
	Success        bool    `json:"success"`
	TextID         any     `json:"textId"`
	Error          string  `json:"error"`
	QuotaRemaining float64 `json:"quotaRemaining"`
}

// Send delivers a message via Textbelt.
func (t *Textbelt) Send(ctx context.Context, to, message string) error {
	form := url.Values{
		"phone":   {to},
		"message": {message},
		"key":     {t.key},
	}
	if t.sender != "" {
		form.Set("sender", t.sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/text", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("sending textbelt message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body textbeltResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding textbelt response: %w", err)
	}
	if !body.Success {
		return fmt.Errorf("textbelt error: %s", body.Error)
	}

	t.logger.Debug("textbelt message accepted", "text_id", body.TextID, "quota_remaining", body.QuotaRemaining, "to", to)
	return nil
}
