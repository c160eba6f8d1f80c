// Package config loads the service configuration from file, environment
// and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Version is the build version, set with -ldflags "-X .../internal/config.Version=...".
var Version = "dev"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Decision DecisionConfig `mapstructure:"decision"`
	Policy   PolicyConfig   `mapstructure:"policy"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Path       string `mapstructure:"path"` // directory; empty logs to stdout only
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// DecisionConfig tunes the decision engine and prioritizer.
type DecisionConfig struct {
	Workers        int           `mapstructure:"workers"`
	SizeBucketMB   int64         `mapstructure:"size_bucket_mb"`
	AgeTolerance   time.Duration `mapstructure:"age_tolerance"`
	PendingGrabTTL time.Duration `mapstructure:"pending_grab_ttl"`
	LogRetention   time.Duration `mapstructure:"log_retention"` // 0 keeps the decision log forever
	IndexerGrace   time.Duration `mapstructure:"indexer_grace"`
	// IndexerBackoff overrides the escalating block periods for failing indexers.
	IndexerBackoff []time.Duration `mapstructure:"indexer_backoff"`
}

// PolicyConfig points at the policy file imported at startup.
type PolicyConfig struct {
	SeedFile string `mapstructure:"seed_file"`
	Watch    bool   `mapstructure:"watch"` // re-import the seed file when it changes
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8585,
		},
		Database: DatabaseConfig{
			Path: "./data/decisionengine.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Decision: DecisionConfig{
			Workers:        4,
			SizeBucketMB:   200,
			AgeTolerance:   24 * time.Hour,
			PendingGrabTTL: 30 * time.Minute,
			LogRetention:   30 * 24 * time.Hour,
			IndexerGrace:   24 * time.Hour,
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.decisionengine")
	}

	v.SetEnvPrefix("DECISIONENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults mirrors Default so that environment variables bind to every key.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.path", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)

	v.SetDefault("decision.workers", d.Decision.Workers)
	v.SetDefault("decision.size_bucket_mb", d.Decision.SizeBucketMB)
	v.SetDefault("decision.age_tolerance", d.Decision.AgeTolerance)
	v.SetDefault("decision.pending_grab_ttl", d.Decision.PendingGrabTTL)
	v.SetDefault("decision.log_retention", d.Decision.LogRetention)
	v.SetDefault("decision.indexer_grace", d.Decision.IndexerGrace)

	v.SetDefault("policy.seed_file", "")
	v.SetDefault("policy.watch", false)
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Decision.Workers < 0 {
		return fmt.Errorf("decision workers must not be negative, got %d", c.Decision.Workers)
	}
	if c.Decision.SizeBucketMB < 0 || c.Decision.AgeTolerance < 0 {
		return errors.New("decision size bucket and age tolerance must not be negative")
	}
	for _, d := range c.Decision.IndexerBackoff {
		if d <= 0 {
			return fmt.Errorf("indexer backoff periods must be positive, got %s", d)
		}
	}
	if c.Policy.Watch && c.Policy.SeedFile == "" {
		return errors.New("policy watch requires a seed file")
	}
	return nil
}

// Address returns the server address string.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
