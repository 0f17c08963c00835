// Package config loads and validates scdx configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SCDX_FETCH_SLEEP_SECONDS.
const EnvPrefix = "SCDX"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Index   IndexConfig   `mapstructure:"index"`
	Fetch   FetchConfig   `mapstructure:"fetch"`
	Output  OutputConfig  `mapstructure:"output"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Storage StorageConfig `mapstructure:"storage"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	DB      DBConfig      `mapstructure:"db"`
}

// IndexConfig points at the crawl catalog and sets HTTP client behavior.
type IndexConfig struct {
	CollinfoURL    string `mapstructure:"collinfo_url"`
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// FetchConfig governs the record fetch loop.
type FetchConfig struct {
	Domain       string   `mapstructure:"domain"`
	Crawls       []string `mapstructure:"crawls"`
	Latest       bool     `mapstructure:"latest"`
	SleepSeconds int      `mapstructure:"sleep_seconds"`
	MaxRetries   int      `mapstructure:"max_retries"`
}

// OutputConfig selects the JSONL destination. An empty path means a
// timestamped file in the working directory.
type OutputConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig toggles zap features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
	File        string `mapstructure:"file"`
}

// MetricsConfig enables the status server and the textfile export.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	Textfile   string `mapstructure:"textfile"`
}

// StorageConfig enables uploading the output file to GCS.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds the completion notification topic.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// DBConfig enables the Postgres run ledger.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"domain":      "fetch.domain",
	"crawls":      "fetch.crawls",
	"latest":      "fetch.latest",
	"sleep":       "fetch.sleep_seconds",
	"max-retries": "fetch.max_retries",
	"output":      "output.path",
}

// Load builds a Config from .env, an optional config file, the environment,
// and any flags present in flags.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("index.collinfo_url", "https://index.commoncrawl.org/collinfo.json")
	v.SetDefault("index.user_agent", "scdx/1.0")
	v.SetDefault("index.timeout_seconds", 180)
	v.SetDefault("fetch.domain", "")
	v.SetDefault("fetch.crawls", []string{})
	v.SetDefault("fetch.latest", false)
	v.SetDefault("fetch.sleep_seconds", 2)
	v.SetDefault("fetch.max_retries", 0)
	v.SetDefault("output.path", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("metrics.listen_addr", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "scdx")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 2)
}

// Validate ensures required fields are present and sane.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Index.CollinfoURL) == "" {
		return fmt.Errorf("index.collinfo_url is required")
	}
	if c.Index.TimeoutSeconds <= 0 {
		return fmt.Errorf("index.timeout_seconds must be > 0")
	}
	if c.Fetch.SleepSeconds < 0 {
		return fmt.Errorf("fetch.sleep_seconds must be >= 0")
	}
	if c.Fetch.MaxRetries < 0 {
		return fmt.Errorf("fetch.max_retries must be >= 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id is required when pubsub.topic_name is set")
	}
	if c.DB.MaxConns < 0 {
		return fmt.Errorf("db.max_conns must be >= 0")
	}
	return nil
}

// Timeout returns the per-request HTTP timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Index.TimeoutSeconds) * time.Second
}

// Sleep returns the wait applied before each retry.
func (c Config) Sleep() time.Duration {
	return time.Duration(c.Fetch.SleepSeconds) * time.Second
}
