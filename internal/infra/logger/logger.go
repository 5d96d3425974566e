// Package logger owns the process-wide logrus logger. Services receive
// per-component entries from Component instead of the global.
package logger

import (
	"os"
	"strings"

	"shift_attendance_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Init applies the configured level and picks JSON output for deployed
// environments, colored text otherwise. An unknown level falls back to info.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.SetFormatter(formatterFor(cfg.Environment))

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
		Log.WithError(err).WithField("log_level", cfg.LogLevel).Warn("Unknown log level, using info")
	}
	Log.SetLevel(level)

	Log.WithFields(logrus.Fields{
		"level":       level.String(),
		"environment": cfg.Environment,
	}).Debug("Logger configured")
}

func formatterFor(environment string) logrus.Formatter {
	switch strings.ToLower(environment) {
	case "production", "staging":
		return &logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyMsg: "message",
			},
		}
	default:
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			ForceColors:     true,
		}
	}
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
