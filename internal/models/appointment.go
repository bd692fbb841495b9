// Package models defines the domain types shared across the check-in service.
package models

import "time"

// TechDetails is everything needed to contact a technician about one
// appointment, parsed out of a tracker sheet row.
type TechDetails struct {
	SiteID       string    `json:"site_id"`
	WorkOrderNum string    `json:"work_order_num,omitempty"`
	TechName     string    `json:"tech_name"`
	TechContact  string    `json:"tech_contact"` // E.164 phone number
	Address      string    `json:"address"`
	ApptTime     time.Time `json:"appt_time"`
}

// CheckKind identifies which reminder sweep produced a notification.
type CheckKind string

const (
	// Check24Hour is the day-before confirmation text.
	Check24Hour CheckKind = "24_hour"
	// Check1Hour is the hour-before reminder text.
	Check1Hour CheckKind = "1_hour"
	// CheckAdminAlert is an operator alert about an unparseable row.
	CheckAdminAlert CheckKind = "admin_alert"
)

// Valid reports whether k is a known check kind.
func (k CheckKind) Valid() bool {
	switch k {
	case Check24Hour, Check1Hour, CheckAdminAlert:
		return true
	}
	return false
}
