package logging

import (
	"context"
	"log/slog"
	"testing"
)

func TestInitLevelFromEnv(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	cases := []struct {
		env  string
		want slog.Level
	}{
		{"", slog.LevelError},
		{"dev", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"prod", slog.LevelError},
		{"bogus", slog.LevelError},
	}

	ctx := context.Background()
	for _, c := range cases {
		t.Setenv("LOG_LEVEL", c.env)
		Init()

		logger := slog.Default()
		if !logger.Enabled(ctx, c.want) {
			t.Errorf("LOG_LEVEL=%q: level %v should be enabled", c.env, c.want)
		}
		if c.want > slog.LevelDebug && logger.Enabled(ctx, c.want-4) {
			t.Errorf("LOG_LEVEL=%q: level %v should be disabled", c.env, c.want-4)
		}
	}
}
