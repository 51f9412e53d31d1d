// Package config loads the run configuration of the godisc commands from an
// optional YAML file and GODISC_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/njchilds90/godisc/discretisation"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "GODISC"

// Config holds all run configuration.
type Config struct {
	Log            LogConfig            `mapstructure:"log" validate:"required"`
	Discretisation DiscretisationConfig `mapstructure:"discretisation"`
	Output         OutputConfig         `mapstructure:"output" validate:"required"`
	Server         ServerConfig         `mapstructure:"server" validate:"required"`
}

// LogConfig selects the slog handler and level.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// DiscretisationConfig mirrors discretisation.Options.
type DiscretisationConfig struct {
	Inplace                    bool `mapstructure:"inplace"`
	CheckModel                 bool `mapstructure:"check_model"`
	RemoveIndependentVariables bool `mapstructure:"remove_independent_variables"`
}

// OutputConfig selects the report encoding.
type OutputConfig struct {
	Format string `mapstructure:"format" validate:"required,oneof=yaml json"`
}

// ServerConfig configures godisc-server.
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	// MaxBodyBytes caps the size of a posted model file.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"required,gt=0"`
}

// Options returns the discretisation options the configuration asks for.
func (c DiscretisationConfig) Options() discretisation.Options {
	return discretisation.Options{
		Inplace:                    c.Inplace,
		CheckModel:                 c.CheckModel,
		RemoveIndependentVariables: c.RemoveIndependentVariables,
	}
}

func setDefaults(v *viper.Viper) {
	defaults := discretisation.DefaultOptions()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("discretisation.inplace", defaults.Inplace)
	v.SetDefault("discretisation.check_model", defaults.CheckModel)
	v.SetDefault("discretisation.remove_independent_variables", defaults.RemoveIndependentVariables)
	v.SetDefault("output.format", "yaml")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 1<<20)
}

// Load reads the configuration. Defaults are overridden by the YAML file at
// path, when path is not empty, and then by GODISC_ environment variables
// such as GODISC_LOG_LEVEL or GODISC_SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its struct tags.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("configuration validation failed: %s is invalid (%s): %w", verrs[0].Namespace(), verrs[0].Tag(), err)
		}
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// NewLogger builds the slog logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
