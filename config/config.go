package config

import (
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type ServerConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Backend   string `mapstructure:"backend"`
	AddSource bool   `mapstructure:"add_source"`
}

type EventsConfig struct {
	HistoryCapacity int `mapstructure:"history_capacity"`
}

type BreakerConfig struct {
	FailureThreshold  int      `mapstructure:"failure_threshold"`
	SuccessThreshold  int      `mapstructure:"success_threshold"`
	Timeout           string   `mapstructure:"timeout"`
	RollingWindow     string   `mapstructure:"rolling_window"`
	IgnoredErrorCodes []string `mapstructure:"ignored_error_codes"`
}

type AIConfig struct {
	APIKey          string `mapstructure:"api_key"`
	BaseURL         string `mapstructure:"base_url"`
	Model           string `mapstructure:"model"`
	EmbeddingModel  string `mapstructure:"embedding_model"`
	ModerationModel string `mapstructure:"moderation_model"`
	SystemPrompt    string `mapstructure:"system_prompt"`
	FallbackMessage string `mapstructure:"fallback_message"`
	HealthInterval  string `mapstructure:"health_interval"`
}

type MetricsConfig struct {
	CollectorBuffer int `mapstructure:"collector_buffer"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Events  EventsConfig  `mapstructure:"events"`
	Breaker BreakerConfig `mapstructure:"breaker"`
	AI      AIConfig      `mapstructure:"ai"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Load reads config.yaml from ./config or the working directory, applies
// defaults and environment overrides (ai.api_key -> AI_API_KEY), and validates
// the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.environment", EnvDev)
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", LogLevelInfo)
	v.SetDefault("logging.backend", "slog")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("events.history_capacity", 1000)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.success_threshold", 1)
	v.SetDefault("breaker.timeout", "30s")
	v.SetDefault("breaker.rolling_window", "60s")
	v.SetDefault("breaker.ignored_error_codes", []string{"rate_limit_exceeded", "insufficient_quota"})
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.embedding_model", "text-embedding-3-small")
	v.SetDefault("ai.moderation_model", "omni-moderation-latest")
	v.SetDefault("ai.system_prompt", "You are a helpful coding coach.")
	v.SetDefault("ai.health_interval", "30s")
	v.SetDefault("metrics.collector_buffer", 1000)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("ai.api_key", "AI_API_KEY", "OPENAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", v.ConfigFileUsed()))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Server,
			validation.Required,
			validation.By(func(value interface{}) error {
				sc, ok := value.(ServerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a ServerConfig")
				}
				return validation.ValidateStruct(&sc,
					validation.Field(&sc.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&sc.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
					validation.Field(&lc.Backend,
						validation.In("slog", "zap"),
					),
				)
			}),
		),
		validation.Field(&c.Events,
			validation.By(func(value interface{}) error {
				ec, ok := value.(EventsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an EventsConfig")
				}
				return validation.ValidateStruct(&ec,
					validation.Field(&ec.HistoryCapacity, validation.Required, validation.Min(1)),
				)
			}),
		),
		validation.Field(&c.Breaker,
			validation.By(func(value interface{}) error {
				bc, ok := value.(BreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a BreakerConfig")
				}
				return validation.ValidateStruct(&bc,
					validation.Field(&bc.FailureThreshold, validation.Required, validation.Min(1)),
					validation.Field(&bc.SuccessThreshold, validation.Required, validation.Min(1)),
					validation.Field(&bc.Timeout, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.RollingWindow, validation.Required, validation.By(validateDuration)),
					validation.Field(&bc.IgnoredErrorCodes, validation.Each(validation.Required)),
				)
			}),
		),
		validation.Field(&c.AI,
			validation.By(func(value interface{}) error {
				ac, ok := value.(AIConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an AIConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.BaseURL, validation.Required, validation.By(validateServerURL)),
					validation.Field(&ac.Model, validation.Required),
					validation.Field(&ac.HealthInterval, validation.Required, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Metrics,
			validation.By(func(value interface{}) error {
				mc, ok := value.(MetricsConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a MetricsConfig")
				}
				return validation.ValidateStruct(&mc,
					validation.Field(&mc.CollectorBuffer, validation.Required, validation.Min(1)),
				)
			}),
		),
	)
}

// BreakerTimeout returns the OPEN -> HALF_OPEN cooldown. Validate guarantees
// the string parses.
func (c *Config) BreakerTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.Timeout)
	return d
}

func (c *Config) BreakerRollingWindow() time.Duration {
	d, _ := time.ParseDuration(c.Breaker.RollingWindow)
	return d
}

func (c *Config) AIHealthInterval() time.Duration {
	d, _ := time.ParseDuration(c.AI.HealthInterval)
	return d
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_non_positive_duration", "must be greater than zero")
	}

	return nil
}

func validateServerURL(value interface{}) error {
	serverURL, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if serverURL == "" {
		return validation.NewError("validation_empty_url", "server URL cannot be empty")
	}

	parsedURL, err := url.Parse(serverURL)
	if err != nil {
		return validation.NewError("validation_invalid_url", "must be a valid URL")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return validation.NewError("validation_invalid_scheme", "URL must use http or https scheme")
	}

	if parsedURL.Host == "" {
		return validation.NewError("validation_missing_host", "URL must have a host")
	}

	return nil
}
