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

// twilioBaseURL is the public Twilio REST endpoint.
const twilioBaseURL = "https://api.twilio.com"

// Twilio sends messages through the Twilio Messages API, authenticating with
// an API key pair scoped to the account.
type Twilio struct {
	baseURL    string
	accountSID string
	apiSID     string
	apiKey     string
	from       string
	hc         *http.Client
	logger     *slog.Logger
}

// NewTwilio creates a Twilio-backed Controller.
func NewTwilio(accountSID, apiSID, apiKey, from string, logger *slog.Logger) *Twilio {
	if logger == nil {
		logger = slog.Default()
	}
	return &Twilio{
		baseURL:    twilioBaseURL,
		accountSID: accountSID,
		apiSID:     apiSID,
		apiKey:     apiKey,
		from:       from,
		hc: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// SetBaseURL overrides the API endpoint, used by tests.
func (t *Twilio) SetBaseURL(baseURL string) {
	t.baseURL = baseURL
}

type twilioResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    int    `json:"code"`
	ErrorMessage string `json:"message"`
}

// Send delivers a message via the Twilio Messages endpoint.
func (t *Twilio) Send(ctx context.Context, to, message string) error {
	form := url.Values{
		"To":   {to},
		"From": {t.from},
		"Body": {message},
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.baseURL, t.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(t.apiSID, t.apiKey)

	resp, err := t.hc.Do(req)
	if err != nil {
		return fmt.Errorf("sending twilio message: %w", err)
	}
	defer resp.Body.Close()

	var body twilioResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding twilio response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("twilio error %d (status %d): %s", body.ErrorCode, resp.StatusCode, body.ErrorMessage)
	}

	t.logger.Debug("twilio message accepted", "sid", body.SID, "status", body.Status, "to", to)
	return nil
}
