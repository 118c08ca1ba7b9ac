// Package config loads the application configuration from defaults,
// an optional config file, and BAHI_-prefixed environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the recognized configuration surface.
type Config struct {
	// DBPath is the SQLite database file location.
	DBPath string `mapstructure:"db_path"`

	// SyncInterval is how often the periodic sync trigger fires.
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	// DebounceWindow is the minimum time between non-manual sync attempts.
	DebounceWindow time.Duration `mapstructure:"debounce_window"`

	// ConnectivitySettle is the delay after the network comes back before
	// a sync is attempted.
	ConnectivitySettle time.Duration `mapstructure:"connectivity_settle"`

	// LoginSettle is the delay after a login before a sync is attempted.
	LoginSettle time.Duration `mapstructure:"login_settle"`

	// CleanupAge is how old a closed, synced demand batch must be before
	// it is purged.
	CleanupAge time.Duration `mapstructure:"cleanup_age"`

	// CleanupInterval is how often the stale-record cleanup runs.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`

	// LogFile is an optional path for rotated file logging. Empty means
	// stderr only.
	LogFile string `mapstructure:"log_file"`

	// LogMaxSizeMB is the size at which the log file rotates.
	LogMaxSizeMB int `mapstructure:"log_max_size_mb"`

	// LogMaxBackups is how many rotated log files to keep.
	LogMaxBackups int `mapstructure:"log_max_backups"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()

	v.SetDefault("db_path", "bahikhata.db")
	v.SetDefault("sync_interval", 6*time.Hour)
	v.SetDefault("debounce_window", 5*time.Minute)
	v.SetDefault("connectivity_settle", 3*time.Second)
	v.SetDefault("login_settle", 2*time.Second)
	v.SetDefault("cleanup_age", 90*24*time.Hour)
	v.SetDefault("cleanup_interval", 7*24*time.Hour)
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)

	v.SetEnvPrefix("BAHI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}
	return unmarshal(v)
}

// Watch loads the configuration from path and re-invokes onChange with a
// freshly parsed Config every time the file changes on disk. Parse
// failures on reload are ignored; the previous configuration stays in
// effect.
func Watch(path string, onChange func(*Config)) (*Config, error) {
	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := unmarshal(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		reloaded, err := unmarshal(v)
		if err != nil {
			return
		}
		onChange(reloaded)
	})
	v.WatchConfig()

	return cfg, nil
}
