package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete simtree configuration
type Config struct {
	Crunching CrunchingConfig `mapstructure:"crunching"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// CrunchingConfig controls how background crunching behaves
type CrunchingConfig struct {
	// Backend is the cruncher backend to use (default: "local")
	// Options: "local", "pooled"
	Backend string `mapstructure:"backend"`
	// QueueCapacity is the per-cruncher work queue capacity in items
	QueueCapacity int `mapstructure:"queue_capacity"`
	// SyncIntervalMs is how often the manager reconciles crunchers with
	// the tree (in milliseconds)
	SyncIntervalMs int `mapstructure:"sync_interval_ms"`
	// PoolSlots is the number of simultaneous step computations allowed by
	// the pooled backend (default: number of CPUs)
	PoolSlots int `mapstructure:"pool_slots"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether debug logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory the log file is written to.
	// If empty, logs go to stderr.
	Dir string `mapstructure:"dir"`
}

// SyncInterval returns the sync interval as a time.Duration
func (c *CrunchingConfig) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMs) * time.Millisecond
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Crunching: CrunchingConfig{
			Backend:        "local",
			QueueCapacity:  1024,
			SyncIntervalMs: 100,
			PoolSlots:      runtime.GOMAXPROCS(0),
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Crunching defaults
	viper.SetDefault("crunching.backend", defaults.Crunching.Backend)
	viper.SetDefault("crunching.queue_capacity", defaults.Crunching.QueueCapacity)
	viper.SetDefault("crunching.sync_interval_ms", defaults.Crunching.SyncIntervalMs)
	viper.SetDefault("crunching.pool_slots", defaults.Crunching.PoolSlots)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "simtree")
	}
	// Fall back to ~/.config/simtree
	home, err := os.UserHomeDir()
	if err != nil {
		return ".simtree"
	}
	return filepath.Join(home, ".config", "simtree")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
