// Package config loads dictation settings from an optional YAML file and
// DICTATION_* environment variables. Settings are read-only; nothing is
// written back.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/0xlemi/dictation/internal/hotkey"
)

// Config holds all dictation settings.
type Config struct {
	// Hotkey is the key combination, as key names (see hotkey.KeyNames).
	Hotkey []string `mapstructure:"hotkey" validate:"required,min=1,dive,keyname"`

	// ChunkSeconds enables incremental delivery every N seconds; 0 disables.
	ChunkSeconds float64 `mapstructure:"chunk_seconds" validate:"gte=0,lte=60"`

	// Audio
	FramesPerBuffer int `mapstructure:"frames_per_buffer" validate:"gte=0,lte=16384"`

	// Input devices
	InputDir string `mapstructure:"input_dir"`

	// Logging
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile  string `mapstructure:"log_file"`

	// Interface
	UI            bool          `mapstructure:"ui"`
	PartialQueue  int           `mapstructure:"partial_queue" validate:"gte=1,lte=64"`
	MeterInterval time.Duration `mapstructure:"meter_interval" validate:"min=10ms"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Hotkey:        []string{"Control_L", "space"},
		InputDir:      hotkey.DefaultInputDir,
		LogLevel:      "info",
		UI:            true,
		PartialQueue:  4,
		MeterInterval: 100 * time.Millisecond,
	}
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Report mapstructure names so errors match what users write in YAML.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})

	_ = validate.RegisterValidation("keyname", func(fl validator.FieldLevel) bool {
		_, err := hotkey.ParseKeys([]string{fl.Field().String()})
		return err == nil
	})
}

// Load reads configuration from path, or from dictation.yaml in the user
// config directory or the working directory when path is empty. A missing
// default file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dictation")
		v.SetConfigType("yaml")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DICTATION")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s %s", e.Namespace(), formatValidationMessage(e)))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "keyname":
		return fmt.Sprintf("has unknown key %q", e.Value())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("hotkey", d.Hotkey)
	v.SetDefault("chunk_seconds", d.ChunkSeconds)
	v.SetDefault("frames_per_buffer", d.FramesPerBuffer)
	v.SetDefault("input_dir", d.InputDir)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("ui", d.UI)
	v.SetDefault("partial_queue", d.PartialQueue)
	v.SetDefault("meter_interval", d.MeterInterval)
}

// configDir returns $XDG_CONFIG_HOME/dictation or its platform equivalent.
func configDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dictation")
}
