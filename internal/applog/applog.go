// Package applog configures the process-wide structured logger used by the
// server binary: a zerolog.Logger, console-formatted by default or
// line-delimited JSON when requested, with helpers that attach a component
// or connection identifier to derived loggers.
package applog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger, configured by Init. Until Init is called it
// is the zero value, which discards everything written to it.
var Logger zerolog.Logger

// Level names accepted by --log-level.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Config configures Init.
type Config struct {
	// Level is one of DebugLevel, InfoLevel, WarnLevel, ErrorLevel.
	Level string
	// JSON selects line-delimited JSON output instead of console formatting.
	JSON bool
	// Output defaults to os.Stdout when nil.
	Output io.Writer
}

// Init configures the global Logger. Call it once, before any other
// component logs.
func Init(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	if cfg.JSON {
		Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithComponent returns a child logger tagging every entry with a
// "component" field, e.g. "server", "registry".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithConnID returns a child logger tagging every entry with a "conn_id"
// field, identifying one accepted connection for the life of its worker.
func WithConnID(connID string) zerolog.Logger {
	return Logger.With().Str("conn_id", connID).Logger()
}
