package store

import (
	"context"
	"time"

	"github.com/fieldops/tech-checkin/internal/models"
)

// NewNoop returns a Store that records nothing. It is used when no
// DATABASE_URL is configured; dedupe then relies on the sheet checkboxes
// alone, which is how the service originally ran.
func NewNoop() Store {
	return noopStore{}
}

type noopStore struct{}

func (noopStore) Notifications() NotificationStore { return noopNotifications{} }
func (noopStore) Ping(context.Context) error       { return nil }
func (noopStore) Close() error                     { return nil }

type noopNotifications struct{}

func (noopNotifications) Record(context.Context, *models.Notification) error { return nil }

func (noopNotifications) WasSent(context.Context, string, models.CheckKind, time.Time) (bool, error) {
	return false, nil
}

func (noopNotifications) List(context.Context, int) ([]*models.Notification, error) {
	return nil, nil
}
