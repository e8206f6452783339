// Package config loads and hot-reloads process configuration via
// github.com/spf13/viper, with github.com/fsnotify/fsnotify-driven
// reload callbacks.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config from
// cfgFile, or the default search path if cfgFile is empty.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{callbacks: make([]func(*Config), 0)}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg
	return cm, nil
}

// initViper sets up viper with defaults, env overrides, and config file.
func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	viper.SetDefault("workers", defaults.Workers)
	viper.SetDefault("request_interval", defaults.RequestInterval)
	viper.SetDefault("retry_times", defaults.RetryTimes)
	viper.SetDefault("backoff_factor", defaults.BackoffFactor)
	viper.SetDefault("storage_batch_size", defaults.StorageBatchSize)
	viper.SetDefault("skip_existing", defaults.SkipExisting)
	viper.SetDefault("max_rps", defaults.MaxRPS)
	viper.SetDefault("raw_data_dir", defaults.RawDataDir)
	viper.SetDefault("cache_dir", defaults.CacheDir)
	viper.SetDefault("book_info_max_age", defaults.BookInfoMaxAge)

	viper.SetEnvPrefix("NOVELCRAWLER")
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.novelcrawler")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("config: read config file: %w", err)
		}
	}
	return nil
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration.
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback invoked with the new Config whenever
// the underlying file changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading via fsnotify.
func (cm *Manager) WatchConfig() {
	viper.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	viper.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string, used for
// config values that should not be committed in plaintext.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	pattern := regexp.MustCompile(`\$\{([^}]+)\}`)
	return pattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// WriteDefault writes the default configuration to path as YAML.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal default: %w", err)
	}
	header := []byte("# novelcrawler configuration\n\n")
	return os.WriteFile(path, append(header, data...), 0o644)
}
