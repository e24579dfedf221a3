package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Reddit    RedditConfig    `mapstructure:"reddit"`
	Vault     VaultConfig     `mapstructure:"vault"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// RedditConfig holds Reddit API settings
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	UserAgent    string `mapstructure:"user_agent"`
}

// VaultConfig holds the credential vault key material (hex encoded)
type VaultConfig struct {
	Key string `mapstructure:"key"` // 32 bytes hex encoded
	IV  string `mapstructure:"iv"`  // 16 bytes hex encoded
}

// KeyBytes decodes the hex key, or fails if it is not exactly 256 bits
func (v VaultConfig) KeyBytes() ([]byte, error) {
	raw, err := hex.DecodeString(v.Key)
	if err != nil {
		return nil, fmt.Errorf("vault.key is not valid hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("vault.key must decode to 32 bytes, got %d", len(raw))
	}
	return raw, nil
}

// IVBytes decodes the hex IV, or fails if it is not exactly 128 bits
func (v VaultConfig) IVBytes() ([]byte, error) {
	raw, err := hex.DecodeString(v.IV)
	if err != nil {
		return nil, fmt.Errorf("vault.iv is not valid hex: %w", err)
	}
	if len(raw) != 16 {
		return nil, fmt.Errorf("vault.iv must decode to 16 bytes, got %d", len(raw))
	}
	return raw, nil
}

// SchedulerConfig holds the cron specs for the three background jobs
type SchedulerConfig struct {
	PublishCron   string `mapstructure:"publish_cron"`
	MentionsCron  string `mapstructure:"mentions_cron"`
	AnalyticsCron string `mapstructure:"analytics_cron"`
}

// MonitorConfig holds mention monitor settings
type MonitorConfig struct {
	SearchLimit  int           `mapstructure:"search_limit"`  // Max results per keyword query
	KeywordDelay time.Duration `mapstructure:"keyword_delay"` // Pause between keyword scans
}

// AnalyticsConfig holds analytics refresher settings
type AnalyticsConfig struct {
	BatchSize int `mapstructure:"batch_size"` // Post ids per info call
}

// NotifyConfig holds Redis notification channel settings
type NotifyConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in current directory and configs folder
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		// Also check user's home directory
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".reddit-agent"))
		}
	}

	// Environment variables
	v.SetEnvPrefix("AGENT")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("reddit.client_id", "AGENT_REDDIT_CLIENT_ID")
	v.BindEnv("reddit.client_secret", "AGENT_REDDIT_CLIENT_SECRET")
	v.BindEnv("reddit.user_agent", "AGENT_REDDIT_USER_AGENT")
	v.BindEnv("vault.key", "AGENT_VAULT_KEY")
	v.BindEnv("vault.iv", "AGENT_VAULT_IV")
	v.BindEnv("database.driver", "AGENT_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "AGENT_DATABASE_DSN")
	v.BindEnv("notify.enabled", "AGENT_NOTIFY_ENABLED")
	v.BindEnv("notify.redis_addr", "AGENT_NOTIFY_REDIS_ADDR")
	v.BindEnv("notify.redis_password", "AGENT_NOTIFY_REDIS_PASSWORD")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/agent.db")

	// Reddit defaults
	v.SetDefault("reddit.user_agent", "reddit-agent/1.0")

	// Scheduler defaults
	v.SetDefault("scheduler.publish_cron", "* * * * *")   // Every minute
	v.SetDefault("scheduler.mentions_cron", "* * * * *")  // Every minute
	v.SetDefault("scheduler.analytics_cron", "0 * * * *") // Hourly

	// Monitor defaults
	v.SetDefault("monitor.search_limit", 25)
	v.SetDefault("monitor.keyword_delay", "1200ms")

	// Analytics defaults
	v.SetDefault("analytics.batch_size", 100)

	// Notify defaults
	v.SetDefault("notify.enabled", false)
	v.SetDefault("notify.redis_addr", "localhost:6379")
	v.SetDefault("notify.redis_db", 0)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")
}

// Validate validates the configuration. A failure here is fatal: jobs
// must not start with malformed credentials or key material.
func (c *Config) Validate() error {
	if c.Reddit.ClientID == "" {
		return fmt.Errorf("reddit.client_id is required")
	}
	if c.Reddit.ClientSecret == "" {
		return fmt.Errorf("reddit.client_secret is required")
	}
	if _, err := c.Vault.KeyBytes(); err != nil {
		return err
	}
	if _, err := c.Vault.IVBytes(); err != nil {
		return err
	}
	if c.Analytics.BatchSize < 1 || c.Analytics.BatchSize > 100 {
		return fmt.Errorf("analytics.batch_size must be between 1 and 100")
	}
	return nil
}
