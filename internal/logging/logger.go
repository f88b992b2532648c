// Package logging provides structured logging for the daemon and its CLI.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with a console writer and a stable "code" field
// convention used by every error in internal/apperrors.
type Logger struct {
	zlog zerolog.Logger
}

// New creates a logger writing to stdout with a component field attached.
func New(component string) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}

	zlog := zerolog.New(output).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return &Logger{zlog: zlog}
}

// Info returns an info-level event.
func (l *Logger) Info() *zerolog.Event { return l.zlog.Info() }

// Error returns an error-level event.
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }

// Debug returns a debug-level event.
func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }

// Warn returns a warn-level event.
func (l *Logger) Warn() *zerolog.Event { return l.zlog.Warn() }

// Fatal returns a fatal-level event (logs then os.Exit(1)).
func (l *Logger) Fatal() *zerolog.Event { return l.zlog.Fatal() }

// With returns a child logger builder carrying additional fields, e.g.
//
//	l.With().Str("data_source", name).Logger()
func (l *Logger) With() zerolog.Context { return l.zlog.With() }

// Named returns a child Logger with an additional "data_source"-style field
// already attached, following the teacher's per-subsystem child-logger
// convention.
func (l *Logger) Named(field, value string) *Logger {
	return &Logger{zlog: l.zlog.With().Str(field, value).Logger()}
}

// SetGlobalLevel sets the process-wide minimum log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
