// Package config loads benchmark settings from defaults, an optional config
// file, TOKBENCH_ environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/shivanshkc/tokbench/pkg/bench"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TOKBENCH"

// Config holds all application configuration.
type Config struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Model             string        `mapstructure:"model" validate:"required"`
	Temperature       float64       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	InputTokens       int           `mapstructure:"input_tokens" validate:"gte=0"`
	OutputTokens      int           `mapstructure:"output_tokens" validate:"gt=0"`
	TotalRequests     int           `mapstructure:"total_requests" validate:"gt=0"`
	ConcurrencyLevels []int         `mapstructure:"concurrency_levels" validate:"min=1,dive,gt=0"`
	Cooldown          time.Duration `mapstructure:"cooldown" validate:"gte=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	RateLimit         float64       `mapstructure:"rate_limit" validate:"gte=0"`

	Log     LogConfig     `mapstructure:"log"`
	Report  ReportConfig  `mapstructure:"report"`
	Store   StoreConfig   `mapstructure:"store"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// ReportConfig controls the exported report. An empty Path disables it.
type ReportConfig struct {
	Path   string `mapstructure:"path"`
	Format string `mapstructure:"format" validate:"oneof=markdown md json yaml yml"`
}

// StoreConfig locates the sweep history database. An empty Path disables it.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig controls Prometheus exposition. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// flagKeys maps configuration keys to the names of the flags that override them.
var flagKeys = map[string]string{
	"base_url":           "base-url",
	"model":              "model",
	"temperature":        "temperature",
	"input_tokens":       "input-tokens",
	"output_tokens":      "output-tokens",
	"total_requests":     "requests",
	"concurrency_levels": "concurrency",
	"cooldown":           "cooldown",
	"request_timeout":    "timeout",
	"rate_limit":         "rate",
	"log.level":          "log-level",
	"log.format":         "log-format",
	"report.path":        "report",
	"report.format":      "report-format",
	"store.path":         "store",
	"metrics.addr":       "metrics-addr",
}

// Load loads configuration.
//
// configPath is optional; when set, the file must exist. flags may be nil.
// Only flags named in flagKeys and present in the set are bound.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %q: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Target
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("model", "gpt-4.1")
	v.SetDefault("temperature", 0.7)

	// Workload
	v.SetDefault("input_tokens", 5000)
	v.SetDefault("output_tokens", 3000)
	v.SetDefault("total_requests", 20)
	v.SetDefault("concurrency_levels", []int{1, 3})
	v.SetDefault("cooldown", 3*time.Second)
	v.SetDefault("request_timeout", time.Duration(0))
	v.SetDefault("rate_limit", 0.0)

	// Outputs
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("report.path", "")
	v.SetDefault("report.format", "markdown")
	v.SetDefault("store.path", "")
	v.SetDefault("metrics.addr", "")
}

// Validate checks if the configuration is valid.
//
// Every violation is reported, keyed by its configuration name.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("mapstructure")
	})

	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("invalid config: %w", err)
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		key := strings.TrimPrefix(fe.Namespace(), "Config.")
		switch fe.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", key))
		case "url":
			messages = append(messages, fmt.Sprintf("%s must be a valid URL", key))
		case "gt":
			messages = append(messages, fmt.Sprintf("%s must be greater than %s", key, fe.Param()))
		case "gte":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", key, fe.Param()))
		case "lte":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", key, fe.Param()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must have at least %s entries", key, fe.Param()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of [%s]", key, fe.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed validation (%s)", key, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

// Settings returns the benchmark settings described by the configuration.
func (c *Config) Settings() bench.Settings {
	return bench.Settings{
		BaseURL:           c.BaseURL,
		Model:             c.Model,
		Temperature:       c.Temperature,
		InputTokens:       c.InputTokens,
		OutputTokens:      c.OutputTokens,
		TotalRequests:     c.TotalRequests,
		ConcurrencyLevels: c.ConcurrencyLevels,
		Cooldown:          c.Cooldown,
		RequestTimeout:    c.RequestTimeout,
		RateLimit:         c.RateLimit,
	}
}
