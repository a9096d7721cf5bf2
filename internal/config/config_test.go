package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Crunching.Backend != "local" {
		t.Errorf("Crunching.Backend = %q, want %q", cfg.Crunching.Backend, "local")
	}
	if cfg.Crunching.QueueCapacity != 1024 {
		t.Errorf("Crunching.QueueCapacity = %d, want 1024", cfg.Crunching.QueueCapacity)
	}
	if cfg.Crunching.SyncIntervalMs != 100 {
		t.Errorf("Crunching.SyncIntervalMs = %d, want 100", cfg.Crunching.SyncIntervalMs)
	}
	if cfg.Crunching.PoolSlots < 1 {
		t.Errorf("Crunching.PoolSlots = %d, want at least 1", cfg.Crunching.PoolSlots)
	}

	if !cfg.Logging.Enabled {
		t.Error("Logging.Enabled should be true by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestDefaultsValidate(t *testing.T) {
	if errs := Default().Validate(); len(errs) > 0 {
		t.Errorf("default config should validate, got %v", ValidationErrors(errs))
	}
}

func TestSyncInterval(t *testing.T) {
	c := CrunchingConfig{SyncIntervalMs: 250}
	if got := c.SyncInterval(); got != 250*time.Millisecond {
		t.Errorf("SyncInterval() = %v, want 250ms", got)
	}
}

func TestLoadFromDefaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Crunching.Backend != "local" {
		t.Errorf("Crunching.Backend = %q, want %q", cfg.Crunching.Backend, "local")
	}
}

func TestLoadFromFile(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	contents := "crunching:\n  backend: pooled\n  queue_capacity: 64\nlogging:\n  level: debug\n"
	if err := os.WriteFile(file, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(file)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Crunching.Backend != "pooled" {
		t.Errorf("Crunching.Backend = %q, want %q", cfg.Crunching.Backend, "pooled")
	}
	if cfg.Crunching.QueueCapacity != 64 {
		t.Errorf("Crunching.QueueCapacity = %d, want 64", cfg.Crunching.QueueCapacity)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	// Unset keys fall back to defaults
	if cfg.Crunching.SyncIntervalMs != 100 {
		t.Errorf("Crunching.SyncIntervalMs = %d, want 100", cfg.Crunching.SyncIntervalMs)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	resetViper(t)
	viper.Set("crunching.queue_capacity", 0)
	viper.Set("logging.level", "loud")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() should fail on invalid values")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("got %d validation errors, want 2: %v", len(verrs), verrs)
	}
}

func TestValidationErrorMessages(t *testing.T) {
	single := ValidationErrors{{Field: "crunching.backend", Value: "", Message: "must not be empty"}}
	if got := single.Error(); got != `crunching.backend: must not be empty (got: )` {
		t.Errorf("single error = %q", got)
	}

	double := ValidationErrors{
		{Field: "a", Value: 1, Message: "bad"},
		{Field: "b", Value: 2, Message: "worse"},
	}
	if got := double.Error(); got == "" || got == double[0].Error() {
		t.Errorf("multi error should aggregate, got %q", got)
	}
}

func TestWatcherReloadsOnRewrite(t *testing.T) {
	resetViper(t)

	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(file, []byte("crunching:\n  backend: local\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.SetConfigFile(file)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(file, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(file, []byte("crunching:\n  backend: pooled\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Crunching.Backend != "pooled" {
			t.Errorf("reloaded backend = %q, want %q", cfg.Crunching.Backend, "pooled")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never reported the rewrite")
	}
}
