// Package config loads settings from defaults, an optional YAML file and
// VERSA_ prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ist-dresden/composum-platform-sub002/internal/logging"
)

// EnvPrefix prefixes every environment variable: VERSA_DB_PATH sets
// db.path.
const EnvPrefix = "VERSA"

// Config is the complete configuration.
type Config struct {
	DB          DBConfig          `mapstructure:"db"`
	Log         logging.Config    `mapstructure:"log"`
	Query       QueryConfig       `mapstructure:"query"`
	Types       TypesConfig       `mapstructure:"types"`
	Mapper      MapperConfig      `mapstructure:"mapper"`
	Fingerprint FingerprintConfig `mapstructure:"fingerprint"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type QueryConfig struct {
	// PageSize is the batch size of filtered scans inside a release.
	PageSize int `mapstructure:"page_size"`
}

type TypesConfig struct {
	// File is a CUE node type registry. Empty uses the built-in types.
	File string `mapstructure:"file"`
}

// MapperConfig holds the path prefixes that decide which paths inside a
// release are read from the archive.
type MapperConfig struct {
	Include []string `mapstructure:"include"`
	Exclude []string `mapstructure:"exclude"`
}

type FingerprintConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// ConfigError reports an unreadable or invalid configuration.
type ConfigError struct {
	Key     string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := "config"
	if e.Key != "" {
		msg += " " + e.Key
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db.path", "versa.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.add_source", false)
	v.SetDefault("query.page_size", 500)
	v.SetDefault("types.file", "")
	v.SetDefault("mapper.include", []string{})
	v.SetDefault("mapper.exclude", []string{})
	v.SetDefault("fingerprint.cache_size", 256)
}

// Load reads the configuration. file may be empty; a named file must
// exist.
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, &ConfigError{Message: fmt.Sprintf("file %s not found", file), Err: err}
			}
			return nil, &ConfigError{Message: "read " + file, Err: err}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &ConfigError{Message: "decode", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.DB.Path == "" {
		return &ConfigError{Key: "db.path", Message: "must not be empty"}
	}
	if c.Query.PageSize < 0 {
		return &ConfigError{Key: "query.page_size", Message: fmt.Sprintf("negative value %d", c.Query.PageSize)}
	}
	if c.Fingerprint.CacheSize < 1 {
		return &ConfigError{Key: "fingerprint.cache_size", Message: fmt.Sprintf("must be positive, got %d", c.Fingerprint.CacheSize)}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ConfigError{Key: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}
