// internal/infra/logger/logger.go
package logger

import (
	"os"
	"strings"

	"ticket_dispatcher/internal/infra/config"

	"github.com/sirupsen/logrus"
)

const serviceName = "ticketd"

// Log is the process-wide logger. Components log through Component(name)
// entries rather than through Log directly, so every line carries a
// "component" field next to the "service" and "env" fields added here.
var Log = logrus.New()

// Init applies LOG_LEVEL and ENVIRONMENT. Production and staging log JSON;
// everything else logs human-readable text.
func Init(cfg *config.AppConfig) {
	Log.SetOutput(os.Stdout)
	Log.ReplaceHooks(make(logrus.LevelHooks))
	Log.AddHook(&staticFields{fields: logrus.Fields{
		"service": serviceName,
		"env":     cfg.Environment,
	}})

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		Log.WithField("log_level", cfg.LogLevel).Warn("Invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	Log.SetLevel(level)

	switch strings.ToLower(cfg.Environment) {
	case "production", "staging":
		Log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00", // ISO8601
		})
	default:
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	Component("logger").WithField("level", Log.GetLevel().String()).Debug("Logger initialized")
}

// Component returns an entry tagged with the component name, e.g.
// "registrations", "mailer", "scheduler".
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}

// staticFields stamps fixed fields on every entry without overriding
// fields the caller already set.
type staticFields struct {
	fields logrus.Fields
}

func (h *staticFields) Levels() []logrus.Level { return logrus.AllLevels }

func (h *staticFields) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, ok := e.Data[k]; !ok {
			e.Data[k] = v
		}
	}
	return nil
}
