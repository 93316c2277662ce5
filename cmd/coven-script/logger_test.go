// ABOUTME: Tests for logger construction
// ABOUTME: Checks level parsing and that the configured logger becomes the slog default

package main

import (
	"context"
	"log/slog"
	"testing"

	"github.com/2389/coven-script/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for name, want := range tests {
		if got := parseLevel(name); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSetupLogger_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"})

	if slog.Default() != logger {
		t.Fatal("configured logger is not the slog default")
	}
	ctx := context.Background()
	if slog.Default().Enabled(ctx, slog.LevelInfo) {
		t.Error("default logger enabled at info, want warn")
	}
	if !slog.Default().Enabled(ctx, slog.LevelWarn) {
		t.Error("default logger disabled at warn")
	}
}
