// Package checks implements the appointment reminder sweeps: the day-before
// confirmation texts and the hour-before reminders, plus the confirmation
// form handling that marks tracker rows done.
package checks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldops/tech-checkin/internal/models"
	"github.com/fieldops/tech-checkin/internal/smartsheet"
	"github.com/fieldops/tech-checkin/internal/sms"
	"github.com/fieldops/tech-checkin/internal/store"
	"github.com/fieldops/tech-checkin/internal/tracker"
)

// ErrSiteNotFound is returned when a confirmation names a site the tracker
// does not have.
var ErrSiteNotFound = errors.New("site not found in tracker")

// SheetAPI is the slice of the Smartsheet client the runner needs.
type SheetAPI interface {
	GetReport(ctx context.Context, reportID int64) (*smartsheet.Sheet, error)
	UpdateRows(ctx context.Context, sheetID int64, rows []smartsheet.Row) error
}

// Texter sends technician texts and admin alerts.
type Texter interface {
	Send(ctx context.Context, to, message string) error
	NotifyAdmin(ctx context.Context, message string) error
}

// Reminder is a one-off hour-before reminder waiting to fire.
type Reminder struct {
	RunAt   time.Time
	Details *models.TechDetails
	RowID   int64
	SheetID int64
}

// Runner executes the reminder sweeps against the tracker report.
type Runner struct {
	api           SheetAPI
	reportID      int64
	cols          tracker.Columns
	locator       tracker.Locator
	texter        Texter
	linker        *FormLinker
	notifications store.NotificationStore
	logger        *slog.Logger

	// now is swapped in tests.
	now func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(api SheetAPI, reportID int64, cols tracker.Columns, locator tracker.Locator, texter Texter, linker *FormLinker, notifications store.NotificationStore, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		api:           api,
		reportID:      reportID,
		cols:          cols,
		locator:       locator,
		texter:        texter,
		linker:        linker,
		notifications: notifications,
		logger:        logger,
		now:           time.Now,
	}
}

// fetchTracker pulls the report and wraps it for column access.
func (r *Runner) fetchTracker(ctx context.Context) (*tracker.Sheet, error) {
	report, err := r.api.GetReport(ctx, r.reportID)
	if err != nil {
		return nil, err
	}
	return tracker.New(report, r.cols)
}

// Run24HourChecks texts every technician whose appointment is tomorrow and
// whose row has not been confirmed yet. Rows that fail to parse alert the
// admin and are skipped; the sweep itself keeps going.
func (r *Runner) Run24HourChecks(ctx context.Context) error {
	r.logger.Info("running 24 hour checks")

	sheet, err := r.fetchTracker(ctx)
	if err != nil {
		return fmt.Errorf("24 hour checks: %w", err)
	}

	now := r.now()
	tomorrow := now.AddDate(0, 0, 1)
	sent := 0

	for _, row := range sheet.Rows() {
		if sheet.Check24Hour(row) {
			continue // already confirmed
		}

		apptDate, err := sheet.ApptDate(row)
		if err != nil {
			r.alertAdmin(ctx, fmt.Sprintf("Error parsing date for row #%d. Error: %q", row.RowNumber, err))
			continue
		}
		if !sameDate(apptDate, tomorrow) {
			continue
		}

		details, err := sheet.TechDetails(ctx, row, r.locator)
		if err != nil {
			r.alertAdmin(ctx, fmt.Sprintf("Could not schedule 24 hour pre-text while parsing row #%d. Error: %q", row.RowNumber, err))
			continue
		}

		already, err := r.notifications.WasSent(ctx, details.SiteID, models.Check24Hour, now)
		if err != nil {
			r.logger.Error("notification log lookup failed", "site_id", details.SiteID, "error", err)
		} else if already {
			r.logger.Debug("24 hour text already sent today", "site_id", details.SiteID)
			continue
		}

		formURL, err := r.linker.BuildURL(details)
		if err != nil {
			r.alertAdmin(ctx, fmt.Sprintf("Could not build form link for row #%d. Error: %q", row.RowNumber, err))
			continue
		}

		message := "Please confirm the details of your appointment tomorrow: " + formURL
		if err := r.texter.Send(ctx, details.TechContact, message); err != nil {
			r.logger.Error("24 hour text failed", "site_id", details.SiteID, "error", err)
			continue
		}
		r.record(ctx, details.SiteID, models.Check24Hour, details.TechContact, message)
		sent++
	}

	r.logger.Info("24 hour checks complete", "sent", sent)
	return nil
}

// Collect1HourChecks returns the reminders due within the next 24 hours for
// rows whose 1-hour checkbox is still unset.
func (r *Runner) Collect1HourChecks(ctx context.Context) ([]Reminder, error) {
	sheet, err := r.fetchTracker(ctx)
	if err != nil {
		return nil, fmt.Errorf("1 hour checks: %w", err)
	}

	now := r.now()
	horizon := now.Add(24 * time.Hour)
	var reminders []Reminder

	for _, row := range sheet.Rows() {
		if sheet.Check1Hour(row) {
			continue // already reminded
		}

		details, err := sheet.TechDetails(ctx, row, r.locator)
		if err != nil {
			r.alertAdmin(ctx, fmt.Sprintf("Could not schedule 1 hour pre-text while parsing row #%d. Error: %q", row.RowNumber, err))
			continue
		}

		if details.ApptTime.After(now) && details.ApptTime.Before(horizon) {
			reminders = append(reminders, Reminder{
				RunAt:   details.ApptTime.Add(-time.Hour),
				Details: details,
				RowID:   row.ID,
				SheetID: row.SheetID,
			})
		}
	}

	return reminders, nil
}

// Send1HourReminder delivers one hour-before reminder and marks the row's
// 1-hour checkbox so a restart does not schedule it again.
func (r *Runner) Send1HourReminder(ctx context.Context, rem Reminder) error {
	message := fmt.Sprintf("Reminder that your appointment (ID %s) is in one hour !", rem.Details.SiteID)
	if err := r.texter.Send(ctx, rem.Details.TechContact, message); err != nil {
		return fmt.Errorf("1 hour reminder for site %s: %w", rem.Details.SiteID, err)
	}
	r.record(ctx, rem.Details.SiteID, models.Check1Hour, rem.Details.TechContact, message)

	// Mark the checkbox through a fresh fetch so the column id is resolved
	// against the live sheet, not the one collected hours ago.
	sheet, err := r.fetchTracker(ctx)
	if err != nil {
		return fmt.Errorf("refreshing tracker after reminder: %w", err)
	}
	for _, row := range sheet.Rows() {
		if row.ID == rem.RowID {
			sheet.SetCheck1Hour(row, true)
			break
		}
	}
	return r.pushUpdates(ctx, sheet)
}

// Schedule1HourChecks collects today's due reminders and registers each on
// the scheduler. Returns how many were scheduled.
func (r *Runner) Schedule1HourChecks(ctx context.Context, sched *Scheduler) (int, error) {
	r.logger.Info("scheduling 1 hour checks")

	reminders, err := r.Collect1HourChecks(ctx)
	if err != nil {
		return 0, err
	}

	for _, rem := range reminders {
		rem := rem
		name := fmt.Sprintf("1_hour_reminder/%s", rem.Details.SiteID)
		sched.At(rem.RunAt, name, func(jobCtx context.Context) {
			if err := r.Send1HourReminder(jobCtx, rem); err != nil {
				r.logger.Error("1 hour reminder failed", "site_id", rem.Details.SiteID, "error", err)
			}
		})
	}

	r.logger.Info("1 hour checks scheduled", "count", len(reminders))
	return len(reminders), nil
}

// MarkConfirmed sets the 24-hour checkbox on the tracker row for the given
// site, called when a technician confirms through the form.
func (r *Runner) MarkConfirmed(ctx context.Context, siteID string) error {
	sheet, err := r.fetchTracker(ctx)
	if err != nil {
		return fmt.Errorf("marking site %s confirmed: %w", siteID, err)
	}

	found := false
	for _, row := range sheet.Rows() {
		rowSite, err := sheet.SiteID(row)
		if err != nil {
			continue
		}
		if rowSite == siteID {
			sheet.SetCheck24Hour(row, true)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrSiteNotFound, siteID)
	}

	return r.pushUpdates(ctx, sheet)
}

// pushUpdates writes the tracker's queued row updates back to Smartsheet.
func (r *Runner) pushUpdates(ctx context.Context, sheet *tracker.Sheet) error {
	for sheetID, rows := range sheet.PendingUpdates() {
		if err := r.api.UpdateRows(ctx, sheetID, rows); err != nil {
			return fmt.Errorf("pushing row updates: %w", err)
		}
	}
	sheet.ClearPending()
	return nil
}

// alertAdmin texts the admin about a row problem and logs it. The sweep
// continues regardless of whether the alert goes through.
func (r *Runner) alertAdmin(ctx context.Context, message string) {
	r.logger.Error(message)
	if err := r.texter.NotifyAdmin(ctx, message); err != nil && !errors.Is(err, sms.ErrNoAdminNumber) {
		r.logger.Error("admin alert failed", "error", err)
	} else if err == nil {
		r.record(ctx, "", models.CheckAdminAlert, "admin", message)
	}
}

// record appends to the notification log; failures are logged, never fatal.
func (r *Runner) record(ctx context.Context, siteID string, kind models.CheckKind, recipient, body string) {
	n := &models.Notification{
		SiteID:    siteID,
		Kind:      kind,
		Recipient: recipient,
		Body:      body,
		SentAt:    r.now().UTC(),
	}
	if err := r.notifications.Record(ctx, n); err != nil {
		r.logger.Error("recording notification failed", "site_id", siteID, "kind", kind, "error", err)
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
