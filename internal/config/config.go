package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Session    SessionConfig    `mapstructure:"session"`
	AntiSpam   AntiSpamConfig   `mapstructure:"anti_spam"`
	FileCache  FileCacheConfig  `mapstructure:"file_cache"`
	Resolver   ResolverConfig   `mapstructure:"resolver"`
	Throttle   ThrottleConfig   `mapstructure:"throttle"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token         string        `mapstructure:"token"`
	Webhook       WebhookConfig `mapstructure:"webhook"`
	UpdateTimeout int           `mapstructure:"update_timeout"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Port    int    `mapstructure:"port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type SessionConfig struct {
	Type   string       `mapstructure:"type"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemoryConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

// AntiSpamConfig holds global defaults; groups may override them per chat.
type AntiSpamConfig struct {
	SpamLimit       int           `mapstructure:"spam_limit"`
	SpamInterval    time.Duration `mapstructure:"spam_interval"`
	RepeatLimit     int           `mapstructure:"repeat_limit"`
	RepeatInterval  time.Duration `mapstructure:"repeat_interval"`
	LinkSpamLimit   int           `mapstructure:"link_spam_limit"`
	LinkSpamEnabled bool          `mapstructure:"link_spam_enabled"`
}

type FileCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type ResolverConfig struct {
	Budget         time.Duration `mapstructure:"budget"`
	FuzzyThreshold float64       `mapstructure:"fuzzy_threshold"`
}

type ThrottleConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	MessagesPerMinute int  `mapstructure:"messages_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.SetEnvPrefix("")
	viper.BindEnv("bot.token", "BOT_TOKEN")
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.name", "DB_NAME")
	viper.BindEnv("session.redis.addr", "REDIS_ADDR")
	viper.BindEnv("session.redis.password", "REDIS_PASSWORD")
	viper.BindEnv("session.redis.db", "REDIS_DB")
	viper.BindEnv("anti_spam.spam_limit", "SPAM_LIMIT")
	viper.BindEnv("anti_spam.spam_interval", "SPAM_INTERVAL")
	viper.BindEnv("anti_spam.link_spam_limit", "LINK_SPAM_LIMIT")
	viper.BindEnv("anti_spam.link_spam_enabled", "LINK_SPAM_ENABLED")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AntiSpam.SpamLimit == 0 {
		cfg.AntiSpam.SpamLimit = 5
	}
	if cfg.AntiSpam.SpamInterval == 0 {
		cfg.AntiSpam.SpamInterval = 10 * time.Second
	}
	if cfg.AntiSpam.RepeatLimit == 0 {
		cfg.AntiSpam.RepeatLimit = 3
	}
	if cfg.AntiSpam.RepeatInterval == 0 {
		cfg.AntiSpam.RepeatInterval = 10 * time.Second
	}
	if cfg.AntiSpam.LinkSpamLimit == 0 {
		cfg.AntiSpam.LinkSpamLimit = 3
	}
	if cfg.FileCache.TTL == 0 {
		cfg.FileCache.TTL = 12 * time.Hour
	}
	if cfg.FileCache.MaxSize == 0 {
		cfg.FileCache.MaxSize = 2048
	}
	if cfg.Resolver.Budget == 0 {
		cfg.Resolver.Budget = 2 * time.Second
	}
	if cfg.Resolver.FuzzyThreshold == 0 {
		cfg.Resolver.FuzzyThreshold = 0.9
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Bot.UpdateTimeout == 0 {
		cfg.Bot.UpdateTimeout = 60
	}
	if cfg.Session.Type == "" {
		cfg.Session.Type = "memory"
	}
	if cfg.Session.Memory.DefaultExpiration == 0 {
		cfg.Session.Memory.DefaultExpiration = time.Hour
	}
	if cfg.Session.Memory.CleanupInterval == 0 {
		cfg.Session.Memory.CleanupInterval = 10 * time.Minute
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if cfg.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if cfg.AntiSpam.SpamLimit < 1 {
		return fmt.Errorf("spam_limit must be positive")
	}
	if cfg.Resolver.FuzzyThreshold <= 0 || cfg.Resolver.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold must be in (0, 1]")
	}
	return nil
}
