package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// Supported output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewHandlerText returns a charmbracelet text handler writing to w at the
// given level. A nil writer means stderr, which keeps stdout free for the
// stdio transport.
func NewHandlerText(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}

	reportCaller := false
	reportTimestamp := true
	lvl := log.InfoLevel
	switch strings.ToLower(level) {
	case "trace":
		reportCaller = true
		lvl = log.DebugLevel
	case "debug":
		lvl = log.DebugLevel
	case "warn", "warning":
		lvl = log.WarnLevel
	case "error":
		lvl = log.ErrorLevel
	}

	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: reportTimestamp,
		ReportCaller:    reportCaller,
		Level:           lvl,
	})
}

// NewHandlerJSON returns a JSON slog handler writing to w at the given level.
func NewHandlerJSON(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: strings.EqualFold(level, "trace"),
	})
}

// ParseLevel maps a level name onto a slog.Level. Unknown names are info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger for the given level and format ("text" or "json").
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		return slog.New(NewHandlerText(level, w)), nil
	case FormatJSON:
		return slog.New(NewHandlerJSON(level, w)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
