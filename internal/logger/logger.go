// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels, backed by zerolog.
//
// Design goals:
//   - Simple API (Errorf, Warnf, Infof, Debugf, Tracef)
//   - Centralized verbosity control
//   - Zero formatting logic at call sites
//   - Structured, leveled output via rs/zerolog
//
// Verbosity levels (in increasing order):
//
//	Error < Warn < Info < Debug < Trace
//
// Example usage:
//
//	logger.SetVerbosity(3) // Debug
//	logger.Infof("starting engine")
//	logger.Debugf("symbol=%s atr=%f", symbol, atr)
package logger

import (
	"os"

	"github.com/rs/zerolog"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only critical failures.
	Warn               // Warn logs recoverable misconfigurations (spec §7 "warnings, not errors").
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// current holds the active verbosity level.
// Only messages with level <= current are logged.
var current Level = Info

// zlog is the underlying structured logger. Output format mirrors the
// console writer so local runs stay human-readable; cmd/kiss-signal may
// swap this for JSON output in production via SetJSON.
var zlog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02T15:04:05"}).With().Timestamp().Logger()

// SetVerbosity sets the global logging verbosity.
// Typically called once during application startup
// (e.g. after parsing CLI flags).
func SetVerbosity(v int) {
	current = Level(v)
}

// SetJSON switches the backing writer to structured JSON, for production
// log aggregation rather than interactive consoles.
func SetJSON() {
	zlog = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// logf is the internal logging helper. It checks verbosity and delegates
// formatting/output to the zerolog event at the matching level.
func logf(l Level, format string, args ...any) {
	if current < l {
		return
	}
	var ev *zerolog.Event
	switch l {
	case Error:
		ev = zlog.Error()
	case Warn:
		ev = zlog.Warn()
	case Info:
		ev = zlog.Info()
	case Debug:
		ev = zlog.Debug()
	default:
		ev = zlog.Trace()
	}
	ev.Msgf(format, args...)
}

// Errorf logs an error-level message.
// Use this for failures that require attention.
func Errorf(format string, args ...any) {
	logf(Error, format, args...)
}

// Warnf logs a recoverable misconfiguration, per spec §7: exit-condition
// duplicates and similar "first occurrence wins" situations are warnings,
// never errors.
func Warnf(format string, args ...any) {
	logf(Warn, format, args...)
}

// Infof logs an informational message.
// Use this for major lifecycle events.
func Infof(format string, args ...any) {
	logf(Info, format, args...)
}

// Debugf logs debugging information.
// Use this for diagnostic output useful during development.
func Debugf(format string, args ...any) {
	logf(Debug, format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, format, args...)
}
