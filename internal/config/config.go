// Package config loads application configuration from file and environment.
package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input       InputConfig       `yaml:"input" mapstructure:"input"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Dispatch    DispatchConfig    `yaml:"dispatch" mapstructure:"dispatch"`
	Breaker     BreakerConfig     `yaml:"breaker" mapstructure:"breaker"`
	Credentials CredentialsConfig `yaml:"credentials" mapstructure:"credentials"`
	Sources     []SourceConfig    `yaml:"sources" mapstructure:"sources"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the entity list to enrich.
type InputConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Sheet string `yaml:"sheet" mapstructure:"sheet"`
	Limit int    `yaml:"limit" mapstructure:"limit"`
}

// StoreConfig configures the snapshot cache, export view, and run log.
type StoreConfig struct {
	CachePath     string        `yaml:"cache_path" mapstructure:"cache_path"`
	ExportPath    string        `yaml:"export_path" mapstructure:"export_path"`
	RunLogPath    string        `yaml:"runlog_path" mapstructure:"runlog_path"`
	FlushInterval int           `yaml:"flush_interval" mapstructure:"flush_interval"`
	FlushEvery    time.Duration `yaml:"flush_every" mapstructure:"flush_every"`
}

// DispatchConfig bounds the dispatcher's parallelism and retries.
type DispatchConfig struct {
	Workers       int `yaml:"workers" mapstructure:"workers"`
	BatchSize     int `yaml:"batch_size" mapstructure:"batch_size"`
	RetryAttempts int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
}

// BreakerConfig configures the per-source circuit breaker.
type BreakerConfig struct {
	Cooldown time.Duration `yaml:"cooldown" mapstructure:"cooldown"`
	Debounce time.Duration `yaml:"debounce" mapstructure:"debounce"`
}

// CredentialsConfig holds per-source credential lists and rotation policy.
type CredentialsConfig struct {
	RotateAfter int                 `yaml:"rotate_after" mapstructure:"rotate_after"`
	Sources     map[string][]string `yaml:"sources" mapstructure:"sources"`
}

// SourceConfig registers one external data source.
type SourceConfig struct {
	Name             string        `yaml:"name" mapstructure:"name"`
	BaseURL          string        `yaml:"base_url" mapstructure:"base_url"`
	RateLimit        time.Duration `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxPerCredential int           `yaml:"max_per_credential" mapstructure:"max_per_credential"`
	Disabled         bool          `yaml:"disabled" mapstructure:"disabled"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.path", "entities.xlsx")
	v.SetDefault("store.cache_path", "snapshot.json")
	v.SetDefault("store.export_path", "results.csv")
	v.SetDefault("store.runlog_path", "enrich.db")
	v.SetDefault("store.flush_interval", 50)
	v.SetDefault("store.flush_every", 5*time.Minute)
	v.SetDefault("dispatch.workers", 3)
	v.SetDefault("dispatch.batch_size", 100)
	v.SetDefault("dispatch.retry_attempts", 2)
	v.SetDefault("breaker.cooldown", 10*time.Minute)
	v.SetDefault("breaker.debounce", 30*time.Second)
	v.SetDefault("credentials.rotate_after", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
