// Package logging builds the zerolog logger shared by every mailrules
// component. Components receive a zerolog.Logger value; nothing logs through
// a package-level logger.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// New returns a logger writing to w at the given level.
// format "json" emits one JSON object per line; "text" uses the
// human-readable console writer.
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	var out io.Writer
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON, "":
		out = w
	case FormatText:
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q (expected json or text)", format)
	}

	return zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("service", "mailrules").
		Logger(), nil
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn, error)", level)
	}
}
