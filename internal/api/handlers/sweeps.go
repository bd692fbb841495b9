package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/fieldops/tech-checkin/internal/checks"
	"github.com/fieldops/tech-checkin/internal/store"
)

// SweepHandler exposes the reminder sweeps and the notification log for
// on-demand operation.
type SweepHandler struct {
	runner        *checks.Runner
	scheduler     *checks.Scheduler
	notifications store.NotificationStore
	logger        *slog.Logger
}

// NewSweepHandler creates a new sweep handler.
func NewSweepHandler(runner *checks.Runner, scheduler *checks.Scheduler, notifications store.NotificationStore, logger *slog.Logger) *SweepHandler {
	return &SweepHandler{
		runner:        runner,
		scheduler:     scheduler,
		notifications: notifications,
		logger:        logger,
	}
}

// Run24Hour handles POST /checks/24hour: run the day-before sweep now.
func (h *SweepHandler) Run24Hour(w http.ResponseWriter, r *http.Request) {
	if err := h.runner.Run24HourChecks(r.Context()); err != nil {
		h.logger.Error("24 hour sweep failed", "error", err)
		WriteInternalError(w, "24 hour sweep failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// Run1Hour handles POST /checks/1hour: collect today's reminders and
// schedule them.
func (h *SweepHandler) Run1Hour(w http.ResponseWriter, r *http.Request) {
	count, err := h.runner.Schedule1HourChecks(r.Context(), h.scheduler)
	if err != nil {
		h.logger.Error("1 hour sweep failed", "error", err)
		WriteInternalError(w, "1 hour sweep failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "scheduled",
		"reminders": count,
	})
}

// ListNotifications handles GET /notifications: the recent send log.
func (h *SweepHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			WriteBadRequest(w, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	notifications, err := h.notifications.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err)
		WriteInternalError(w, "Failed to list notifications")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"notifications": notifications,
	})
}
