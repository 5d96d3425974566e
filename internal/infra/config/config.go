package config

import (
	"fmt"
	"os"
	"strconv"
	"strings" // For LogLevel normalization
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken      string
	DatabaseURL        string
	AdminTelegramID    int64
	LogLevel           string
	Environment        string
	Location           *time.Location // wall clock used for shift dates
	CronSpecTrigger    string         // roster scan; interval must not exceed TriggerTolerance
	CronSpecEscalation string         // escalation sweep
	TriggerTolerance   time.Duration
	SweepTimeout       time.Duration
	DefaultPolicyID    string
	PolicyFile         string // YAML policies; replaces the policy table when set
	HTTPAddr           string
	AdminAPIToken      string
	SMSWebhookURL      string
	CallWebhookURL     string
	GatewayToken       string
	GatewayTimeout     time.Duration
}

// Load reads configuration from environment variables and .env file (if present).
// Required values are checked per command by the Validate* methods.
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Environment:        strings.ToLower(getEnv("ENVIRONMENT", "development")),
		CronSpecTrigger:    getEnv("CRON_SPEC_TRIGGER", "*/5 * * * *"),    // Default: every 5 minutes
		CronSpecEscalation: getEnv("CRON_SPEC_ESCALATION", "*/5 * * * *"), // Default: every 5 minutes
		DefaultPolicyID:    os.Getenv("DEFAULT_POLICY_ID"),
		PolicyFile:         os.Getenv("POLICY_FILE"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		AdminAPIToken:      os.Getenv("ADMIN_API_TOKEN"),
		SMSWebhookURL:      os.Getenv("SMS_WEBHOOK_URL"),
		CallWebhookURL:     os.Getenv("CALL_WEBHOOK_URL"),
		GatewayToken:       os.Getenv("GATEWAY_TOKEN"),
	}
	var err error

	if adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID"); adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.Location, err = time.LoadLocation(getEnv("TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if cfg.TriggerTolerance, err = getDuration("TRIGGER_TOLERANCE", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SweepTimeout, err = getDuration("SWEEP_TIMEOUT", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.GatewayTimeout, err = getDuration("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ValidateForServe checks the settings the long-running bot needs.
func (c *AppConfig) ValidateForServe() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is not set")
	}
	if c.AdminTelegramID == 0 {
		return fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}
	return c.ValidateForSweep()
}

// ValidateForSweep checks the settings a one-shot sweep needs.
func (c *AppConfig) ValidateForSweep() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.TriggerTolerance <= 0 {
		return fmt.Errorf("TRIGGER_TOLERANCE must be positive")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
