package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_TOKEN", "DATABASE_URL", "ADMIN_TELEGRAM_ID", "LOG_LEVEL", "ENVIRONMENT", "TIMEZONE",
		"CRON_SPEC_TRIGGER", "CRON_SPEC_ESCALATION", "TRIGGER_TOLERANCE", "SWEEP_TIMEOUT",
		"DEFAULT_POLICY_ID", "POLICY_FILE", "HTTP_ADDR", "ADMIN_API_TOKEN",
		"SMS_WEBHOOK_URL", "CALL_WEBHOOK_URL", "GATEWAY_TOKEN", "GATEWAY_TIMEOUT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "*/5 * * * *", cfg.CronSpecTrigger)
	assert.Equal(t, "*/5 * * * *", cfg.CronSpecEscalation)
	assert.Equal(t, 5*time.Minute, cfg.TriggerTolerance)
	assert.Equal(t, 2*time.Minute, cfg.SweepTimeout)
	assert.Equal(t, 10*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.NotNil(t, cfg.Location)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_TELEGRAM_ID", "4242")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("TRIGGER_TOLERANCE", "3m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(4242), cfg.AdminTelegramID)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, 3*time.Minute, cfg.TriggerTolerance)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]string{
		"ADMIN_TELEGRAM_ID": "not-a-number",
		"TRIGGER_TOLERANCE": "five minutes",
		"TIMEZONE":          "Mars/Olympus_Mons",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	require.NoError(t, err)

	assert.ErrorContains(t, cfg.ValidateForSweep(), "DATABASE_URL")
	assert.ErrorContains(t, cfg.ValidateForServe(), "TELEGRAM_TOKEN")

	cfg.DatabaseURL = "postgres://localhost/attendance"
	assert.NoError(t, cfg.ValidateForSweep())

	cfg.TelegramToken = "token"
	assert.ErrorContains(t, cfg.ValidateForServe(), "ADMIN_TELEGRAM_ID")

	cfg.AdminTelegramID = 1
	assert.NoError(t, cfg.ValidateForServe())
}
