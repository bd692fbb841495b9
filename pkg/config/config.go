// Package config provides environment-based configuration for the check-in service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SMS provider names accepted in SMS_TOOL.
const (
	SMSToolTwilio   = "twilio"
	SMSToolTextbelt = "textbelt"
)

// Config holds all configuration for the check-in service.
type Config struct {
	// API authentication
	APIKey       string
	APIKeyHeader string

	// Confirmation form (n8n)
	N8NBaseURL    string
	N8NWorkflowID string

	// Signed form links
	FormTokenSecret string
	FormTokenTTL    time.Duration

	// Smartsheet tracker
	SmartsheetAccessToken string
	SmartsheetReportID    int64
	ColumnsFile           string

	// GeoNames timezone lookups
	GeoNamesUser string

	// Check schedules (cron expressions)
	Cron24HourChecks string
	Cron1HourChecks  string

	// SMS provider selection and credentials
	SMSTool          string
	TextbeltKey      string
	TextbeltSender   string
	TwilioAccountSID string
	TwilioAPISID     string
	TwilioAPIKey     string
	TwilioFrom       string

	// Admin contact for parse-failure alerts
	AdminEmail       string
	AdminPhoneNumber string

	// Notification log database (optional)
	DatabaseDSN string

	// Server configuration
	APIHost  string
	APIPort  int
	RootPath string

	// Vault-Agent-rendered secrets file, loaded before env is read
	SecretsFile string

	LoggingLevel string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		APIKey:                getEnv("API_KEY", ""),
		APIKeyHeader:          getEnv("API_KEY_HEADER", "API-Key"),
		N8NBaseURL:            getEnv("N8N_BASE_URL", ""),
		N8NWorkflowID:         getEnv("N8N_WORKFLOW_ID", ""),
		FormTokenSecret:       getEnv("FORM_TOKEN_SECRET", ""),
		FormTokenTTL:          getDurationEnv("FORM_TOKEN_TTL", 48*time.Hour),
		SmartsheetAccessToken: getEnv("SMARTSHEET_ACCESS_TOKEN", ""),
		SmartsheetReportID:    getInt64Env("SMARTSHEET_REPORT_ID", 0),
		ColumnsFile:           getEnv("COLUMNS_FILE", ""),
		GeoNamesUser:          getEnv("GEONAMES_USER", ""),
		Cron24HourChecks:      getEnv("CRONJOB_24_CHECKS", "0 16 * * *"),
		Cron1HourChecks:       getEnv("CRONJOB_1_CHECKS", "0 6 * * *"),
		SMSTool:               strings.ToLower(getEnv("SMS_TOOL", SMSToolTwilio)),
		TextbeltKey:           getEnv("TEXTBELT_KEY", ""),
		TextbeltSender:        getEnv("TEXTBELT_SENDER", ""),
		TwilioAccountSID:      getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAPISID:          getEnv("TWILIO_API_SID", ""),
		TwilioAPIKey:          getEnv("TWILIO_API_KEY", ""),
		TwilioFrom:            getEnv("TWILIO_FROM", ""),
		AdminEmail:            getEnv("ADMIN_EMAIL", ""),
		AdminPhoneNumber:      getEnv("ADMIN_PHONE_NUMBER", ""),
		DatabaseDSN:           getEnv("DATABASE_URL", ""),
		APIHost:               getEnv("API_HOST", "0.0.0.0"),
		APIPort:               getIntEnv("API_PORT", 8000),
		RootPath:              getEnv("ROOT_PATH", "/"),
		SecretsFile:           getEnv("SECRETS_FILE", ""),
		LoggingLevel:          getEnv("LOGGING_LEVEL", "INFO"),
		ShutdownTimeout:       getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	if c.SmartsheetAccessToken == "" {
		return fmt.Errorf("SMARTSHEET_ACCESS_TOKEN is required")
	}
	if c.SmartsheetReportID == 0 {
		return fmt.Errorf("SMARTSHEET_REPORT_ID is required")
	}
	switch c.SMSTool {
	case SMSToolTwilio:
		if c.TwilioAccountSID == "" || c.TwilioAPISID == "" || c.TwilioAPIKey == "" || c.TwilioFrom == "" {
			return fmt.Errorf("SMS_TOOL=twilio requires TWILIO_ACCOUNT_SID, TWILIO_API_SID, TWILIO_API_KEY and TWILIO_FROM")
		}
	case SMSToolTextbelt:
		if c.TextbeltKey == "" {
			return fmt.Errorf("SMS_TOOL=textbelt requires TEXTBELT_KEY")
		}
	default:
		return fmt.Errorf("SMS_TOOL must be %q or %q, got %q", SMSToolTwilio, SMSToolTextbelt, c.SMSTool)
	}
	if !strings.HasPrefix(c.RootPath, "/") {
		return fmt.Errorf("ROOT_PATH must start with /")
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	return &Config{
		APIKey:             getEnv("API_KEY", "development-api-key"),
		APIKeyHeader:       getEnv("API_KEY_HEADER", "API-Key"),
		N8NBaseURL:         getEnv("N8N_BASE_URL", "http://localhost:5678"),
		N8NWorkflowID:      getEnv("N8N_WORKFLOW_ID", "dev-workflow"),
		FormTokenSecret:    getEnv("FORM_TOKEN_SECRET", "development-form-token-secret"),
		FormTokenTTL:       getDurationEnv("FORM_TOKEN_TTL", 48*time.Hour),
		SmartsheetReportID: getInt64Env("SMARTSHEET_REPORT_ID", 1),
		Cron24HourChecks:   getEnv("CRONJOB_24_CHECKS", "0 16 * * *"),
		Cron1HourChecks:    getEnv("CRONJOB_1_CHECKS", "0 6 * * *"),
		SMSTool:            strings.ToLower(getEnv("SMS_TOOL", SMSToolTwilio)),
		APIHost:            getEnv("API_HOST", "0.0.0.0"),
		APIPort:            getIntEnv("API_PORT", 8000),
		RootPath:           getEnv("ROOT_PATH", "/"),
		LoggingLevel:       getEnv("LOGGING_LEVEL", "DEBUG"),
		ShutdownTimeout:    getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
