// Package main provides a one-shot runner for the reminder sweeps, for
// deployments that drive the checks from an external cron instead of the
// in-process scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fieldops/tech-checkin/internal/checks"
	"github.com/fieldops/tech-checkin/internal/geo"
	"github.com/fieldops/tech-checkin/internal/secretfile"
	"github.com/fieldops/tech-checkin/internal/smartsheet"
	"github.com/fieldops/tech-checkin/internal/sms"
	"github.com/fieldops/tech-checkin/internal/store"
	pgstore "github.com/fieldops/tech-checkin/internal/store/postgres"
	"github.com/fieldops/tech-checkin/internal/tracker"
	"github.com/fieldops/tech-checkin/pkg/config"
	"github.com/fieldops/tech-checkin/pkg/logger"
)

func main() {
	sweep := flag.String("sweep", "24hour", "which sweep to run: 24hour or 1hour")
	flag.Parse()

	if path := os.Getenv("SECRETS_FILE"); path != "" {
		if err := secretfile.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error loading secrets file: %v\n", err)
			os.Exit(1)
		}
	}

	level, _ := logger.ParseLevel(os.Getenv("LOGGING_LEVEL"))
	log := logger.New(level, true)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var st store.Store
	if cfg.DatabaseDSN != "" {
		pg, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.Logger)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		st = store.NewNoop()
	}
	defer st.Close()

	cols, err := tracker.LoadColumns(cfg.ColumnsFile)
	if err != nil {
		log.Error("failed to load column configuration", "error", err)
		os.Exit(1)
	}

	var locator tracker.Locator
	if cfg.GeoNamesUser != "" {
		locator = geo.NewClient(cfg.GeoNamesUser)
	}

	controller, err := sms.FromConfig(cfg, log.Logger)
	if err != nil {
		log.Error("failed to configure SMS provider", "error", err)
		os.Exit(1)
	}
	notifier := sms.NewNotifier(controller, cfg.AdminPhoneNumber, log.Logger)

	linker := checks.NewFormLinker(cfg.N8NBaseURL, cfg.N8NWorkflowID, cfg.FormTokenSecret, cfg.FormTokenTTL)
	runner := checks.NewRunner(smartsheet.NewClient(cfg.SmartsheetAccessToken), cfg.SmartsheetReportID, cols, locator, notifier, linker, st.Notifications(), log.Logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *sweep {
	case "24hour":
		if err := runner.Run24HourChecks(ctx); err != nil {
			log.Error("24 hour sweep failed", "error", err)
			os.Exit(1)
		}
	case "1hour":
		if err := run1HourSweep(ctx, runner, log); err != nil {
			log.Error("1 hour sweep failed", "error", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown sweep %q, expected 24hour or 1hour\n", *sweep)
		os.Exit(1)
	}
}

// run1HourSweep collects today's reminders and blocks until each has fired,
// so a single cron invocation covers the day.
func run1HourSweep(ctx context.Context, runner *checks.Runner, log *logger.Logger) error {
	reminders, err := runner.Collect1HourChecks(ctx)
	if err != nil {
		return err
	}
	log.Info("collected 1 hour reminders", "count", len(reminders))

	sort.Slice(reminders, func(i, j int) bool {
		return reminders[i].RunAt.Before(reminders[j].RunAt)
	})

	for _, rem := range reminders {
		if wait := time.Until(rem.RunAt); wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := runner.Send1HourReminder(ctx, rem); err != nil {
			log.Error("1 hour reminder failed", "site_id", rem.Details.SiteID, "error", err)
		}
	}
	return nil
}
