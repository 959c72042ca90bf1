// Package config manages application configuration.
//
// Values are resolved from defaults, then an optional config file
// (ytoutlier.yaml, .json or .toml in the working directory or
// $HOME/.config/ytoutlier), then YTOUTLIER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ytoutlier/channelsync"
	httpclient "ytoutlier/http"
	"ytoutlier/internal/retry"
	"ytoutlier/youtube"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "YTOUTLIER"

// Config holds all application configuration.
type Config struct {
	// DatabaseURL selects the Postgres store. When empty the JSON file
	// store at StorePath is used.
	DatabaseURL string `mapstructure:"database_url"`
	StorePath   string `mapstructure:"store_path"`

	YouTubeAPIKey      string  `mapstructure:"youtube_api_key"`
	QuotaLimit         int     `mapstructure:"quota_limit"`
	QuotaReserve       int     `mapstructure:"quota_reserve"`
	DataAPIRPS         float64 `mapstructure:"data_api_rps"`
	TimedtextRPS       float64 `mapstructure:"timedtext_rps"`
	TranscriptLanguage string  `mapstructure:"transcript_language"`

	// Sync tuning
	MaxVideos       int           `mapstructure:"max_videos"`
	Concurrency     int           `mapstructure:"concurrency"`
	BatchPause      time.Duration `mapstructure:"batch_pause"`
	TranscriptDelay time.Duration `mapstructure:"transcript_delay"`
	StaleAfter      time.Duration `mapstructure:"stale_after"`
	ChannelTimeout  time.Duration `mapstructure:"channel_timeout"`
	DueLimit        int           `mapstructure:"due_limit"`

	// Serve mode
	Schedule   string `mapstructure:"schedule"`
	ListenAddr string `mapstructure:"listen_addr"`

	LogLevel string `mapstructure:"log_level"`

	// Retry settings
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
}

// setDefaults registers every key so that environment overrides are seen
// by Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database_url", "")
	v.SetDefault("store_path", "ytoutlier-store.json")
	v.SetDefault("youtube_api_key", "")
	v.SetDefault("quota_limit", youtube.DefaultDailyQuota)
	v.SetDefault("quota_reserve", 0)
	v.SetDefault("data_api_rps", 1.0)
	v.SetDefault("timedtext_rps", 2.0)
	v.SetDefault("transcript_language", "en")

	v.SetDefault("max_videos", channelsync.DefaultMaxVideos)
	v.SetDefault("concurrency", channelsync.DefaultConcurrency)
	v.SetDefault("batch_pause", channelsync.DefaultBatchPause)
	v.SetDefault("transcript_delay", channelsync.DefaultTranscriptDelay)
	v.SetDefault("stale_after", channelsync.DefaultStaleAfter)
	v.SetDefault("channel_timeout", 5*time.Minute)
	v.SetDefault("due_limit", 50)

	v.SetDefault("schedule", "@every 30m")
	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("log_level", "info")

	v.SetDefault("max_retries", 3)
	v.SetDefault("initial_backoff", time.Second)
	v.SetDefault("max_backoff", 30*time.Second)
	v.SetDefault("backoff_multiplier", 2.0)
}

// Load resolves the configuration. A non-empty path names the config file
// explicitly and must exist; otherwise the default locations are searched
// and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	} else {
		v.SetConfigName("ytoutlier")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "ytoutlier"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("load config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that configuration values are valid and consistent.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" && c.StorePath == "" {
		return fmt.Errorf("one of database_url or store_path is required")
	}
	if c.QuotaLimit <= 0 {
		return fmt.Errorf("quota_limit must be positive")
	}
	if c.QuotaReserve < 0 || c.QuotaReserve >= c.QuotaLimit {
		return fmt.Errorf("quota_reserve must be in [0, quota_limit)")
	}
	if c.DataAPIRPS < 0 || c.TimedtextRPS < 0 {
		return fmt.Errorf("rate limits must be non-negative")
	}
	if c.MaxVideos < 1 || c.MaxVideos > 50 {
		return fmt.Errorf("max_videos must be between 1 and 50")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.BatchPause < 0 {
		return fmt.Errorf("batch_pause must be non-negative")
	}
	if c.TranscriptDelay < 0 {
		return fmt.Errorf("transcript_delay must be non-negative")
	}
	if c.StaleAfter <= 0 {
		return fmt.Errorf("stale_after must be positive")
	}
	if c.ChannelTimeout <= 0 {
		return fmt.Errorf("channel_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	return nil
}

// RetryConfig returns the retry policy for provider calls.
func (c *Config) RetryConfig() retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxRetries = c.MaxRetries
	rc.InitialBackoff = c.InitialBackoff
	rc.MaxBackoff = c.MaxBackoff
	rc.Multiplier = c.BackoffMultiplier
	return rc
}

// HTTPConfig returns the HTTP client configuration for the transcript
// provider.
func (c *Config) HTTPConfig() *httpclient.Config {
	hc := httpclient.DefaultConfig()
	hc.Retry = c.RetryConfig()
	hc.RateLimiter.TimedtextRPS = c.TimedtextRPS
	hc.RateLimiter.DataAPIRPS = c.DataAPIRPS
	return hc
}

// SyncOptions returns the channelsync tuning. Logger and Metrics are left
// for the caller. A zero transcript_delay or batch_pause turns the wait off.
func (c *Config) SyncOptions() channelsync.Options {
	return channelsync.Options{
		MaxVideos:       c.MaxVideos,
		TranscriptDelay: disabledIfZero(c.TranscriptDelay),
		BatchPause:      disabledIfZero(c.BatchPause),
		Concurrency:     c.Concurrency,
		StaleAfter:      c.StaleAfter,
		ChannelTimeout:  c.ChannelTimeout,
	}
}

// disabledIfZero maps an explicit zero onto channelsync's "no wait" value;
// channelsync treats zero as "use the default".
func disabledIfZero(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}
