// Package logger holds the process-wide structured logger. Level is mutable
// at runtime so config can apply log.level after the first lines are emitted.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

var levelVar = new(slog.LevelVar)

// L is the process-wide structured logger. JSON to stdout, tagged with the
// service name so aggregated streams stay attributable.
var L = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar})).
	With("service", "agent-asj")

// SetLevel configures the global log level. Unrecognized values fall back to
// info rather than failing startup.
func SetLevel(lvl string) {
	levelVar.Set(parseLevel(lvl))
}

func parseLevel(lvl string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
