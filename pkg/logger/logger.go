// Package logger provides the structured logger used throughout aetherius.
//
// It wraps zerolog rather than reinventing level filtering and field
// formatting: every component that needs to log takes the narrow Logger
// interface below so call sites never depend on zerolog directly.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logging contract used across the project.
// Fields are passed as alternating key/value pairs, matching zerolog's
// own With().Fields-style convention without exposing zerolog types.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

type zeroLogger struct {
	log zerolog.Logger
}

// New creates a Logger writing to w (os.Stdout for the daemon, a
// component's own log file for out-of-process components) at the given
// level ("debug", "info", "warn", "error").
func New(w io.Writer, component, level string) Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	base := zerolog.New(w).With().Timestamp().Str("component", component).Logger().Level(lvl)
	return &zeroLogger{log: base}
}

// NewConsole creates a human-readable (non-JSON) logger for interactive
// terminal use, such as the console client and CLI.
func NewConsole(component, level string) Logger {
	zerolog.TimeFieldFormat = time.Kitchen
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	cw := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	base := zerolog.New(cw).With().Timestamp().Str("component", component).Logger().Level(lvl)
	return &zeroLogger{log: base}
}

func withFields(ctx zerolog.Context, fields []interface{}) zerolog.Context {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, fields[i+1])
	}
	return ctx
}

func (l *zeroLogger) event(e *zerolog.Event, msg string, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

func (l *zeroLogger) Debug(msg string, fields ...interface{}) { l.event(l.log.Debug(), msg, fields) }
func (l *zeroLogger) Info(msg string, fields ...interface{})  { l.event(l.log.Info(), msg, fields) }
func (l *zeroLogger) Warn(msg string, fields ...interface{})  { l.event(l.log.Warn(), msg, fields) }
func (l *zeroLogger) Error(msg string, fields ...interface{}) { l.event(l.log.Error(), msg, fields) }
func (l *zeroLogger) Fatal(msg string, fields ...interface{}) { l.event(l.log.Fatal(), msg, fields) }

func (l *zeroLogger) With(fields ...interface{}) Logger {
	ctx := withFields(l.log.With(), fields)
	return &zeroLogger{log: ctx.Logger()}
}

// Nop returns a Logger that discards everything, useful in tests.
func Nop() Logger {
	return &zeroLogger{log: zerolog.Nop()}
}
