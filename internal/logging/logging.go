// Package logging configures the process-wide slog default.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

var levels = map[string]slog.Level{
	"dev":         slog.LevelDebug,
	"development": slog.LevelDebug,
	"debug":       slog.LevelDebug,
	"info":        slog.LevelInfo,
	"warn":        slog.LevelWarn,
	"warning":     slog.LevelWarn,
	"error":       slog.LevelError,
	"prod":        slog.LevelError,
	"production":  slog.LevelError,
}

// Init installs a text handler on stderr as the default logger. The
// level comes from LOG_LEVEL; unset or unknown values log errors only,
// keeping normal relay and peer output quiet.
func Init() {
	level := slog.LevelError
	if l, ok := levels[strings.ToLower(os.Getenv("LOG_LEVEL"))]; ok {
		level = l
	}

	slog.SetDefault(slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	))
}
