// Package logger provides a configured zerolog logger.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a zerolog.Logger for the service. Pretty output is meant
// for terminals; JSON is the default.
func New(service, level string, pretty bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	if pretty {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(lvl).With().
		Str("service", service).
		Timestamp().
		Logger()
}

// CronLogger adapts a zerolog.Logger to the cron.Logger interface.
type CronLogger struct {
	Log zerolog.Logger
}

// Info logs routine cron messages at debug level.
func (c CronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.Log.Debug().Fields(keysAndValues).Msg(msg)
}

// Error logs cron errors.
func (c CronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.Log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
