package models

import "time"

// Notification is one outbound message recorded for audit and dedupe.
type Notification struct {
	ID        string    `json:"id"`
	SiteID    string    `json:"site_id"`
	Kind      CheckKind `json:"kind"`
	Recipient string    `json:"recipient"`
	Body      string    `json:"body"`
	SentAt    time.Time `json:"sent_at"`
}
