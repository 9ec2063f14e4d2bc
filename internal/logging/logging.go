// Package logging configures the zerolog logger used across the Messenger
// service: JSON output by default, a console writer when attached to a
// terminal.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var logLevelMatches = map[string]zerolog.Level{
	"trace": zerolog.TraceLevel,
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"none":  zerolog.Disabled,
}

// Level parses a configured level name, defaulting to info for unknown
// values.
func Level(name string) zerolog.Level {
	if lvl, ok := logLevelMatches[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return zerolog.InfoLevel
}

// New builds the root logger at the given level. Output goes to stderr; when
// stderr is a terminal the human-readable console writer is used instead of
// JSON.
func New(level string) zerolog.Logger {
	var logger zerolog.Logger
	if isatty.IsTerminal(os.Stderr.Fd()) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		logger = zerolog.New(writer)
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(Level(level)).With().Timestamp().Logger()
}
