package config

import "time"

// Config holds process-wide crawler configuration.
// Stored at: config.yaml in the working directory, or $HOME/.novelcrawler.
type Config struct {
	Workers          int           `mapstructure:"workers" yaml:"workers"`
	RequestInterval  time.Duration `mapstructure:"request_interval" yaml:"request_interval"`
	RetryTimes       int           `mapstructure:"retry_times" yaml:"retry_times"`
	BackoffFactor    time.Duration `mapstructure:"backoff_factor" yaml:"backoff_factor"`
	StorageBatchSize int           `mapstructure:"storage_batch_size" yaml:"storage_batch_size"`
	SkipExisting     bool          `mapstructure:"skip_existing" yaml:"skip_existing"`
	MaxRPS           float64       `mapstructure:"max_rps" yaml:"max_rps"`

	RawDataDir string `mapstructure:"raw_data_dir" yaml:"raw_data_dir"`
	CacheDir   string `mapstructure:"cache_dir" yaml:"cache_dir"`

	// BookInfoMaxAge bounds how long a cached BookInfo is trusted before
	// a refetch is forced (model.BookInfo.Stale), default 24h.
	BookInfoMaxAge time.Duration `mapstructure:"book_info_max_age" yaml:"book_info_max_age"`
}

// DefaultConfig returns configuration with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Workers:          4,
		RequestInterval:  500 * time.Millisecond,
		RetryTimes:       3,
		BackoffFactor:    2 * time.Second,
		StorageBatchSize: 20,
		SkipExisting:     true,
		MaxRPS:           0, // disabled
		RawDataDir:       "./raw_data",
		CacheDir:         "./cache",
		BookInfoMaxAge:   24 * time.Hour,
	}
}
