// Package sms sends text messages through either Twilio or Textbelt,
// selected by the SMS_TOOL deployment setting.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fieldops/tech-checkin/pkg/config"
)

// ErrNoAdminNumber is returned by NotifyAdmin when no admin number is configured.
var ErrNoAdminNumber = errors.New("no admin phone number configured")

// Controller sends a single text message.
type Controller interface {
	// Send delivers message to the E.164 number to.
	Send(ctx context.Context, to, message string) error
}

// FromConfig builds the Controller selected by SMS_TOOL.
func FromConfig(cfg *config.Config, logger *slog.Logger) (Controller, error) {
	switch cfg.SMSTool {
	case config.SMSToolTwilio:
		return NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAPISID, cfg.TwilioAPIKey, cfg.TwilioFrom, logger), nil
	case config.SMSToolTextbelt:
		return NewTextbelt(cfg.TextbeltKey, cfg.TextbeltSender, logger), nil
	default:
		return nil, fmt.Errorf("unknown SMS_TOOL %q", cfg.SMSTool)
	}
}

// Notifier wraps a Controller with the admin contact number for operator alerts.
type Notifier struct {
	controller Controller
	adminNum   string
	logger     *slog.Logger
}

// NewNotifier creates a Notifier. adminNum may be empty, in which case
// NotifyAdmin becomes a no-op.
func NewNotifier(controller Controller, adminNum string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		controller: controller,
		adminNum:   adminNum,
		logger:     logger,
	}
}

// Send delivers a message to a technician.
func (n *Notifier) Send(ctx context.Context, to, message string) error {
	return n.controller.Send(ctx, to, message)
}

// AdminNumber returns the configured admin contact number, if any.
func (n *Notifier) AdminNumber() string {
	return n.adminNum
}

// NotifyAdmin texts the admin contact. Without a configured number the alert
// is only logged.
func (n *Notifier) NotifyAdmin(ctx context.Context, message string) error {
	if n.adminNum == "" {
		n.logger.Warn("dropping admin alert, no admin number configured", "message", message)
		return ErrNoAdminNumber
	}
	return n.controller.Send(ctx, n.adminNum, message)
}
