// Package config provides Viper-based configuration loading for the level-pack tools.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// CodecConfig holds level-pack codec settings.
type CodecConfig struct {
	// Strict rejects optional fields with unrecognized type tags instead of
	// passing them through unchanged.
	Strict bool `mapstructure:"strict"`
	// AtomicWrite saves packs through a temp file and a rename.
	AtomicWrite bool `mapstructure:"atomic_write"`
	// TempDir is where atomic saves stage their temp file. Empty means the
	// directory of the destination file.
	TempDir string `mapstructure:"temp_dir"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output is where entries are written: "stderr", "stdout" or a file path.
	Output string `mapstructure:"output"`
}

// Config is the top-level application configuration.
type Config struct {
	Codec   CodecConfig   `mapstructure:"codec"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateCodec(c.Codec); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateCodec(c CodecConfig) error {
	if c.TempDir == "" {
		return nil
	}
	if !c.AtomicWrite {
		return fmt.Errorf("codec.temp_dir is set to %q but codec.atomic_write is false", c.TempDir)
	}
	info, err := os.Stat(c.TempDir)
	if err != nil {
		return fmt.Errorf("codec.temp_dir %q: %v", c.TempDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("codec.temp_dir %q is not a directory", c.TempDir)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	if strings.TrimSpace(l.Output) == "" {
		return fmt.Errorf("logging.output must not be empty")
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	bindEnv(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given, with
// CCTOOLS_ environment overrides applied.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Default() (Config, error) {
	v := viper.New()
	bindEnv(v)
	setDefaults(v)
	return LoadFromViper(v)
}

// bindEnv enables environment variable overrides with the CCTOOLS_ prefix.
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix("CCTOOLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("codec.strict", false)
	v.SetDefault("codec.atomic_write", true)
	v.SetDefault("codec.temp_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")
}
