// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/fieldops/tech-checkin/internal/models"
)

// NotificationStore defines operations for the outbound notification log.
type NotificationStore interface {
	// Record persists one sent notification.
	Record(ctx context.Context, n *models.Notification) error
	// WasSent reports whether a notification of the given kind already went
	// out for the site on the given day (UTC).
	WasSent(ctx context.Context, siteID string, kind models.CheckKind, day time.Time) (bool, error)
	// List returns the most recent notifications, newest first.
	List(ctx context.Context, limit int) ([]*models.Notification, error)
}

// Store is the main interface for database operations.
type Store interface {
	// Notifications returns the NotificationStore for the send log.
	Notifications() NotificationStore

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
