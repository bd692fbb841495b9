package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops/tech-checkin/internal/models"
)

// NotificationStore implements store.NotificationStore using PostgreSQL.
type NotificationStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Record persists one sent notification.
func (s *NotificationStore) Record(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (id, site_id, kind, recipient, body, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.ExecContext(ctx, query,
		n.ID,
		n.SiteID,
		string(n.Kind),
		n.Recipient,
		n.Body,
		n.SentAt,
	); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// WasSent reports whether a notification of the given kind already went out
// for the site during the UTC day containing the given time.
func (s *NotificationStore) WasSent(ctx context.Context, siteID string, kind models.CheckKind, day time.Time) (bool, error) {
	start := day.UTC().Truncate(24 * time.Hour)
	end := start.Add(24 * time.Hour)

	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE site_id = $1 AND kind = $2 AND sent_at >= $3 AND sent_at < $4
		)`

	var sent bool
	if err := s.db.QueryRowContext(ctx, query, siteID, string(kind), start, end).Scan(&sent); err != nil {
		return false, fmt.Errorf("querying notification log: %w", err)
	}
	return sent, nil
}

// List returns the most recent notifications, newest first.
func (s *NotificationStore) List(ctx context.Context, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, site_id, kind, recipient, body, sent_at
		FROM notifications
		ORDER BY sent_at DESC
		LIMIT $1`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var result []*models.Notification
	for rows.Next() {
		var n models.Notification
		var kind string
		if err := rows.Scan(&n.ID, &n.SiteID, &kind, &n.Recipient, &n.Body, &n.SentAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Kind = models.CheckKind(kind)
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return result, nil
}
