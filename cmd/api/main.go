// Package main provides the entry point for the check-in API server.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"github.com/fieldops/tech-checkin/internal/api"
	"github.com/fieldops/tech-checkin/internal/checks"
	"github.com/fieldops/tech-checkin/internal/geo"
	"github.com/fieldops/tech-checkin/internal/secretfile"
	"github.com/fieldops/tech-checkin/internal/shutdown"
	"github.com/fieldops/tech-checkin/internal/smartsheet"
	"github.com/fieldops/tech-checkin/internal/sms"
	"github.com/fieldops/tech-checkin/internal/store"
	pgstore "github.com/fieldops/tech-checkin/internal/store/postgres"
	"github.com/fieldops/tech-checkin/internal/tracker"
	"github.com/fieldops/tech-checkin/pkg/config"
	"github.com/fieldops/tech-checkin/pkg/logger"
)

// defaultSecretsFile is where the Vault Agent sidecar renders the secrets.
const defaultSecretsFile = "/vault/secrets/config"

func main() {
	// Pull in the Vault-rendered secrets before any env is read. The
	// default path is only an error if the file exists but can't be parsed;
	// an explicit SECRETS_FILE must exist.
	if err := loadSecrets(); err != nil {
		logger.Default().Error("failed to load secrets file", "error", err)
		os.Exit(1)
	}

	level, err := logger.ParseLevel(os.Getenv("LOGGING_LEVEL"))
	if err != nil {
		logger.Default().Warn("unknown LOGGING_LEVEL, using INFO", "error", err)
	}
	log := logger.New(level, true)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Notification log is optional; without a database the service relies
	// on the sheet checkboxes alone.
	var st store.Store
	if cfg.DatabaseDSN != "" {
		pg, err := pgstore.NewPostgresStore(pgstore.DefaultConfig(cfg.DatabaseDSN), log.Logger)
		if err != nil {
			log.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, notification log disabled")
		st = store.NewNoop()
	}

	cols, err := tracker.LoadColumns(cfg.ColumnsFile)
	if err != nil {
		log.Error("failed to load column configuration", "error", err)
		os.Exit(1)
	}

	sheetClient := smartsheet.NewClient(cfg.SmartsheetAccessToken)

	var locator tracker.Locator
	if cfg.GeoNamesUser != "" {
		locator = geo.NewClient(cfg.GeoNamesUser)
	} else {
		log.Warn("GEONAMES_USER not set, appointment times use server-local timezone")
	}

	controller, err := sms.FromConfig(cfg, log.Logger)
	if err != nil {
		log.Error("failed to configure SMS provider", "error", err)
		os.Exit(1)
	}
	notifier := sms.NewNotifier(controller, cfg.AdminPhoneNumber, log.Logger)

	linker := checks.NewFormLinker(cfg.N8NBaseURL, cfg.N8NWorkflowID, cfg.FormTokenSecret, cfg.FormTokenTTL)
	runner := checks.NewRunner(sheetClient, cfg.SmartsheetReportID, cols, locator, notifier, linker, st.Notifications(), log.Logger)

	scheduler := checks.NewScheduler(log.WithComponent("scheduler").Logger)
	if err := scheduler.AddCron(cfg.Cron24HourChecks, "24_hour_checks", func(ctx context.Context) {
		if err := runner.Run24HourChecks(ctx); err != nil {
			log.Error("24 hour checks failed", "error", err)
		}
	}); err != nil {
		log.Error("failed to schedule 24 hour checks", "error", err)
		os.Exit(1)
	}
	if err := scheduler.AddCron(cfg.Cron1HourChecks, "1_hour_checks", func(ctx context.Context) {
		if _, err := runner.Schedule1HourChecks(ctx, scheduler); err != nil {
			log.Error("1 hour checks failed", "error", err)
		}
	}); err != nil {
		log.Error("failed to schedule 1 hour checks", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	server := api.NewServer(cfg, st, runner, scheduler, linker, notifier, log.Logger)

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", st))
	coordinator.Register(scheduler)
	coordinator.Register(server)

	go func() {
		if err := server.Start(context.Background()); err != nil {
			log.Error("server error", "error", err)
			coordinator.Shutdown()
		}
	}()

	log.Info("check-in service started",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
		"root_path", cfg.RootPath,
		"sms_tool", cfg.SMSTool,
	)

	go coordinator.WaitForSignal()
	coordinator.Wait()

	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}

// loadSecrets loads the Vault-rendered secrets file into the environment.
func loadSecrets() error {
	path := os.Getenv("SECRETS_FILE")
	if path != "" {
		return secretfile.Load(path)
	}
	err := secretfile.Load(defaultSecretsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
