package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// DefaultMaxPending bounds how many evictions a single transaction may buffer
// before entries degrade to bulk eviction for the offending entity type.
const DefaultMaxPending = 10000

type Config struct {
	LogLevel string `mapstructure:"log_level"`
	NodeID   string `mapstructure:"node_id"`

	Database struct {
		DSN           string `mapstructure:"dsn"`
		SlowThreshold string `mapstructure:"slow_threshold"` // Go duration string like "200ms"
	} `mapstructure:"database"`

	Eviction struct {
		MaxPending      int    `mapstructure:"max_pending"`
		DispatchTimeout string `mapstructure:"dispatch_timeout"` // per-attempt bound on the async distribution path
	} `mapstructure:"eviction"`

	Ledger struct {
		BaseBackoff string `mapstructure:"base_backoff"`
		MaxBackoff  string `mapstructure:"max_backoff"`
	} `mapstructure:"ledger"`

	Backends struct {
		Memory struct {
			Enabled  bool   `mapstructure:"enabled"`
			Priority int    `mapstructure:"priority"`
			Size     int    `mapstructure:"size"`
			TTL      string `mapstructure:"ttl"` // Go duration string like "1h", "24h", etc.
		} `mapstructure:"memory"`
		Redis struct {
			Enabled   bool   `mapstructure:"enabled"`
			Priority  int    `mapstructure:"priority"`
			Address   string `mapstructure:"address"`
			Password  string `mapstructure:"password"`
			DB        int    `mapstructure:"db"`
			KeyPrefix string `mapstructure:"key_prefix"`
		} `mapstructure:"redis"`
	} `mapstructure:"backends"`

	Distribution struct {
		Enabled bool   `mapstructure:"enabled"`
		Channel string `mapstructure:"channel"`
	} `mapstructure:"distribution"`

	Admin struct {
		Port    int    `mapstructure:"port"`
		Address string `mapstructure:"address"`
	} `mapstructure:"admin"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`

	Sentry struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"sentry"`
}

var (
	globalConfig *Config
	logger       zerolog.Logger
)

func init() {
	// Initialize zerolog with console writer for human-readable output
	logger = zerolog.New(zerolog.ConsoleWriter{
		Out:     os.Stdout,
		NoColor: false,
	}).With().Timestamp().Logger()

	config, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load config")
	}

	// Parse and set log level from config
	level := zerolog.InfoLevel // default
	if config.LogLevel != "" {
		if parsedLevel, err := zerolog.ParseLevel(config.LogLevel); err == nil {
			level = parsedLevel
		} else {
			logger.Warn().Str("invalid_level", config.LogLevel).Msg("Invalid log level, using default 'info'")
		}
	}

	// Set the global log level
	zerolog.SetGlobalLevel(level)

	// Update logger with the configured level
	logger = logger.Level(level)

	globalConfig = config
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variable support
	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Add specific environment variable for log level
	_ = viper.BindEnv("log_level", "LOG_LEVEL")

	viper.SetDefault("eviction.max_pending", DefaultMaxPending)
	viper.SetDefault("eviction.dispatch_timeout", "2s")
	viper.SetDefault("ledger.base_backoff", "30s")
	viper.SetDefault("ledger.max_backoff", "1h")
	viper.SetDefault("backends.memory.enabled", true)
	viper.SetDefault("backends.memory.priority", 10)
	viper.SetDefault("backends.memory.size", 100000)
	viper.SetDefault("backends.memory.ttl", "1h")
	viper.SetDefault("backends.redis.priority", 100)
	viper.SetDefault("backends.redis.key_prefix", "l2cache:")
	viper.SetDefault("distribution.channel", "cachegate:evictions")
	viper.SetDefault("admin.port", 8080)
	viper.SetDefault("admin.address", "localhost")
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("database.slow_threshold", "200ms")

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config.NodeID == "" {
		host, _ := os.Hostname()
		config.NodeID = host
	}

	return &config, nil
}

func GetConfig() *Config {
	return globalConfig
}

func GetLogger() zerolog.Logger {
	return logger
}

// Duration parses a Go duration string from config, falling back to def when
// the value is empty or malformed.
func Duration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}
