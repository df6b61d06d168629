package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SPREADSHEET_ID", "SHEET_NAME", "EMAIL_USER", "EMAIL_PASS", "SMTP_PORT",
		"LEDGER_BACKEND", "DATABASE_URL", "POLL_INTERVAL", "STATS_INTERVAL",
		"SEND_DELAY", "CYCLE_TIMEOUT", "MAX_SEND_ATTEMPTS", "TELEGRAM_TOKEN",
		"ADMIN_TELEGRAM_ID", "LOG_LEVEL", "ENVIRONMENT",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Sheet1", cfg.SheetName)
	assert.Equal(t, LedgerFile, cfg.LedgerBackend)
	assert.Equal(t, "last_row.txt", cfg.CursorFile)
	assert.Equal(t, "sent_tickets.json", cfg.TicketsFile)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 300*time.Second, cfg.StatsInterval)
	assert.Equal(t, time.Second, cfg.SendDelay)
	assert.Equal(t, 3, cfg.MaxSendAttempts)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.TelegramEnabled())

	assert.Error(t, cfg.RequireService())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SPREADSHEET_ID", "sheet-123")
	t.Setenv("EMAIL_USER", "tickets@example.org")
	t.Setenv("EMAIL_PASS", "secret")
	t.Setenv("POLL_INTERVAL", "30")
	t.Setenv("SEND_DELAY", "250ms")
	t.Setenv("LEDGER_BACKEND", "BADGER")
	t.Setenv("TELEGRAM_TOKEN", "token")
	t.Setenv("ADMIN_TELEGRAM_ID", "42")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 250*time.Millisecond, cfg.SendDelay)
	assert.Equal(t, LedgerBadger, cfg.LedgerBackend)
	assert.Equal(t, int64(42), cfg.AdminTelegramID)
	assert.True(t, cfg.TelegramEnabled())
	assert.NoError(t, cfg.RequireService())
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"unknown backend":        {"LEDGER_BACKEND", "sqlite"},
		"postgres without url":   {"LEDGER_BACKEND", "postgres"},
		"bad interval":           {"POLL_INTERVAL", "soon"},
		"zero attempts":          {"MAX_SEND_ATTEMPTS", "0"},
		"telegram without admin": {"TELEGRAM_TOKEN", "token"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
