package cli

import (
	"log/slog"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := SetupLogger("debug", "test")
	if logger.Component() != "test" {
		t.Errorf("expected component test, got %q", logger.Component())
	}
	if !slog.Default().Enabled(t.Context(), slog.LevelDebug) {
		t.Error("expected debug level on the default logger")
	}
}

func TestLoadConfig_InvalidBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_BACKEND", "sheets")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error for unknown backend")
	}
}

func TestLoadConfig_Memory(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("PORT", "9090")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9090" || cfg.DataBackend != "memory" {
		t.Errorf("unexpected config %+v", cfg)
	}
}
