// Package handlers implements the HTTP handlers of the check-in API.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fieldops/tech-checkin/internal/checks"
	"github.com/fieldops/tech-checkin/internal/models"
	"github.com/fieldops/tech-checkin/internal/store"
	"github.com/fieldops/tech-checkin/internal/tracker"
)

// CheckinHandler handles confirmation form submissions and one-off text
// requests.
type CheckinHandler struct {
	runner        *checks.Runner
	linker        *checks.FormLinker
	texter        checks.Texter
	notifications store.NotificationStore
	logger        *slog.Logger
}

// NewCheckinHandler creates a new check-in handler.
func NewCheckinHandler(runner *checks.Runner, linker *checks.FormLinker, texter checks.Texter, notifications store.NotificationStore, logger *slog.Logger) *CheckinHandler {
	return &CheckinHandler{
		runner:        runner,
		linker:        linker,
		texter:        texter,
		notifications: notifications,
		logger:        logger,
	}
}

// FormSubmit handles POST /formsubmit, the webhook fired when a technician
// submits the confirmation form. The field names mirror the form exactly.
func (h *CheckinHandler) FormSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteBadRequest(w, "Invalid form body")
		return
	}

	claims, err := h.linker.VerifyToken(r.FormValue("sig"))
	if err != nil {
		WriteUnauthorized(w, "Invalid or expired form link")
		return
	}

	siteID := strings.TrimSpace(r.FormValue("Site_ID"))
	// A signed site ID wins over the editable form field.
	if claims.SiteID != "" {
		siteID = claims.SiteID
	}
	if siteID == "" {
		WriteBadRequest(w, "Site_ID is required")
		return
	}

	correct := strings.TrimSpace(r.FormValue("Correct"))
	if isAffirmative(correct) {
		if err := h.runner.MarkConfirmed(r.Context(), siteID); err != nil {
			if errors.Is(err, checks.ErrSiteNotFound) {
				WriteNotFound(w, "No tracker row for site "+siteID)
				return
			}
			h.logger.Error("failed to mark confirmation", "site_id", siteID, "error", err)
			WriteInternalError(w, "Failed to update tracker")
			return
		}
		h.logger.Info("appointment confirmed", "site_id", siteID)
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "confirmed",
			"site_id": siteID,
		})
		return
	}

	// Not confirmed as-is: forward the correction to the admin.
	alert := correctionAlert(siteID, r)
	if err := h.texter.NotifyAdmin(r.Context(), alert); err != nil {
		h.logger.Error("failed to forward correction", "site_id", siteID, "error", err)
		WriteInternalError(w, "Failed to forward correction")
		return
	}
	h.logger.Info("correction forwarded", "site_id", siteID)
	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "correction_forwarded",
		"site_id": siteID,
	})
}

// correctionAlert summarizes a correction submission for the admin text.
func correctionAlert(siteID string, r *http.Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Correction for site %s:", siteID)
	for _, field := range []string{"Tech_Name", "Time", "Location", "Other_Correction", "Officetrak", "CC_Email"} {
		if v := strings.TrimSpace(r.FormValue(field)); v != "" {
			fmt.Fprintf(&b, " %s=%q", field, v)
		}
	}
	return b.String()
}

func isAffirmative(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "y", "true", "1", "correct":
		return true
	}
	return false
}

// TextRequest is the request body for the one-off text endpoints.
type TextRequest struct {
	TechName     string `json:"tech_name"`
	Time         string `json:"time"`
	Location     string `json:"location"`
	SiteID       string `json:"site_id"`
	WorkOrderNum string `json:"work_order_num"`
	Phone        string `json:"phone"`
}

// Validate checks the fields the 24-hour text needs.
func (r *TextRequest) Validate() error {
	if r.SiteID == "" {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "site_id is required"}
	}
	if r.Phone == "" {
		return &APIError{Code: ErrCodeInvalidRequest, Message: "phone is required"}
	}
	return nil
}

// apptTime parses the request's appointment time.
func (r *TextRequest) apptTime() (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04 MST", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, r.Time); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", r.Time)
}

// Text24Hour handles POST /24hrtext: send one day-before confirmation text
// for the supplied appointment details.
func (h *CheckinHandler) Text24Hour(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	phone, err := tracker.NormalizePhone(req.Phone)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}
	apptTime, err := req.apptTime()
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	details := &models.TechDetails{
		SiteID:       req.SiteID,
		WorkOrderNum: req.WorkOrderNum,
		TechName:     req.TechName,
		TechContact:  phone,
		Address:      req.Location,
		ApptTime:     apptTime,
	}

	formURL, err := h.linker.BuildURL(details)
	if err != nil {
		h.logger.Error("failed to build form link", "site_id", req.SiteID, "error", err)
		WriteInternalError(w, "Failed to build form link")
		return
	}

	message := "Please confirm the details of your appointment tomorrow: " + formURL
	if err := h.texter.Send(r.Context(), phone, message); err != nil {
		h.logger.Error("24 hour text failed", "site_id", req.SiteID, "error", err)
		WriteInternalError(w, "Failed to send text")
		return
	}
	h.recordNotification(r, req.SiteID, models.Check24Hour, phone, message)

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":   "sent",
		"site_id":  req.SiteID,
		"form_url": formURL,
	})
}

// Text1Hour handles POST /1hrtext: send one hour-before reminder.
func (h *CheckinHandler) Text1Hour(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeValidationError(w, err)
		return
	}

	phone, err := tracker.NormalizePhone(req.Phone)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	message := fmt.Sprintf("Reminder that your appointment (ID %s) is in one hour !", req.SiteID)
	if err := h.texter.Send(r.Context(), phone, message); err != nil {
		h.logger.Error("1 hour text failed", "site_id", req.SiteID, "error", err)
		WriteInternalError(w, "Failed to send text")
		return
	}
	h.recordNotification(r, req.SiteID, models.Check1Hour, phone, message)

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "sent",
		"site_id": req.SiteID,
	})
}

func (h *CheckinHandler) recordNotification(r *http.Request, siteID string, kind models.CheckKind, recipient, body string) {
	n := &models.Notification{
		SiteID:    siteID,
		Kind:      kind,
		Recipient: recipient,
		Body:      body,
		SentAt:    time.Now().UTC(),
	}
	if err := h.notifications.Record(r.Context(), n); err != nil {
		h.logger.Error("recording notification failed", "site_id", siteID, "error", err)
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		WriteError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message)
		return
	}
	WriteBadRequest(w, err.Error())
}
