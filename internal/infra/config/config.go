package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// Ledger backends.
const (
	LedgerFile     = "file"
	LedgerBadger   = "badger"
	LedgerPostgres = "postgres"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	// Registration sheet
	SpreadsheetID         string
	SheetName             string
	GoogleCredentialsFile string

	// Outgoing mail
	EmailUser string
	EmailPass string
	SMTPHost  string
	SMTPPort  int

	// Ledger
	LedgerBackend string
	CursorFile    string
	TicketsFile   string
	BadgerDir     string
	DatabaseURL   string

	// Timing
	PollInterval    time.Duration
	StatsInterval   time.Duration
	SendDelay       time.Duration
	CycleTimeout    time.Duration
	MaxSendAttempts int

	// Event metadata printed on every ticket
	EventName     string
	EventDate     string
	EventVenue    string
	OrganizerName string

	// Operator surfaces, both optional
	HTTPAddr        string
	TelegramToken   string
	AdminTelegramID int64

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and .env file (if present).
// Values needed only by the running service are checked by RequireService.
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{
		SpreadsheetID:         os.Getenv("SPREADSHEET_ID"),
		SheetName:             getenv("SHEET_NAME", "Sheet1"),
		GoogleCredentialsFile: getenv("GOOGLE_CREDENTIALS_FILE", "credentials.json"),
		EmailUser:             os.Getenv("EMAIL_USER"),
		EmailPass:             os.Getenv("EMAIL_PASS"),
		SMTPHost:              getenv("SMTP_HOST", "smtp-mail.outlook.com"),
		LedgerBackend:         strings.ToLower(getenv("LEDGER_BACKEND", LedgerFile)),
		CursorFile:            getenv("CURSOR_FILE", "last_row.txt"),
		TicketsFile:           getenv("TICKETS_FILE", "sent_tickets.json"),
		BadgerDir:             getenv("BADGER_DIR", "ledger.badger"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		EventName:             getenv("EVENT_NAME", "TEDxIITPatna - Kaleidoscopic Interludes"),
		EventDate:             getenv("EVENT_DATE", "14th SEP, 2025"),
		EventVenue:            getenv("EVENT_VENUE", "AUDITORIUM"),
		OrganizerName:         getenv("ORGANIZER_NAME", "TEDxIITPatna"),
		HTTPAddr:              os.Getenv("HTTP_ADDR"),
		TelegramToken:         os.Getenv("TELEGRAM_TOKEN"),
		LogLevel:              strings.ToLower(getenv("LOG_LEVEL", "info")),
		Environment:           strings.ToLower(getenv("ENVIRONMENT", "development")),
	}

	var err error
	if cfg.SMTPPort, err = getenvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.MaxSendAttempts, err = getenvInt("MAX_SEND_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.MaxSendAttempts < 1 {
		return nil, fmt.Errorf("MAX_SEND_ATTEMPTS must be at least 1")
	}

	if cfg.PollInterval, err = getenvDuration("POLL_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.StatsInterval, err = getenvDuration("STATS_INTERVAL", 300*time.Second); err != nil {
		return nil, err
	}
	if cfg.SendDelay, err = getenvDuration("SEND_DELAY", time.Second); err != nil {
		return nil, err
	}
	if cfg.CycleTimeout, err = getenvDuration("CYCLE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 || cfg.StatsInterval <= 0 || cfg.CycleTimeout <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL, STATS_INTERVAL and CYCLE_TIMEOUT must be positive")
	}
	if cfg.SendDelay < 0 {
		return nil, fmt.Errorf("SEND_DELAY must not be negative")
	}

	switch cfg.LedgerBackend {
	case LedgerFile, LedgerBadger:
	case LedgerPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is not set (required by LEDGER_BACKEND=postgres)")
		}
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	if cfg.TelegramToken != "" {
		adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
		if adminIDStr == "" {
			return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set (required with TELEGRAM_TOKEN)")
		}
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return cfg, nil
}

// RequireService checks the settings the polling service cannot run without.
func (c *AppConfig) RequireService() error {
	if c.SpreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID is not set")
	}
	if c.EmailUser == "" || c.EmailPass == "" {
		return fmt.Errorf("EMAIL_USER and EMAIL_PASS must be set")
	}
	return nil
}

func (c *AppConfig) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// getenvDuration accepts Go durations ("10s") and bare seconds ("10").
func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
