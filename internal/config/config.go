// Package config loads apporte settings with Viper.
//
// Precedence, lowest first: built-in defaults, the YAML config file
// (~/.apporte/config.yaml), a .env file in the working directory, and
// APPORTE_* environment variables. Flags are applied by the CLI on top.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "github.com/felixgeelhaar/apporte/internal/errors"
	"github.com/felixgeelhaar/apporte/internal/log"
)

// EnvPrefix prefixes every environment variable, e.g. APPORTE_API_URL.
const EnvPrefix = "APPORTE"

// Storage backends.
const (
	StorageFile   = "file"
	StorageMemory = "memory"
	StorageRedis  = "redis"
)

// Config is the resolved configuration.
type Config struct {
	APIURL         string        `mapstructure:"api_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Storage        StorageConfig `mapstructure:"storage"`
	Logging        LoggingConfig `mapstructure:"logging"`

	home string
	file string
	v    *viper.Viper
}

// StorageConfig selects where the session token is kept between runs.
type StorageConfig struct {
	Backend     string        `mapstructure:"backend"`
	Path        string        `mapstructure:"path"`
	RedisAddr   string        `mapstructure:"redis_addr"`
	RedisDB     int           `mapstructure:"redis_db"`
	RedisPrefix string        `mapstructure:"redis_prefix"`
	RedisTTL    time.Duration `mapstructure:"redis_ttl"`
}

// LoggingConfig configures internal/log.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options locate the configuration sources. Zero values pick the defaults.
type Options struct {
	// Home is the apporte directory; defaults to $APPORTE_HOME or ~/.apporte
	Home string

	// File overrides <Home>/config.yaml
	File string

	// EnvFile is loaded into the environment before reading; defaults to .env
	EnvFile string
}

// DefaultHome returns $APPORTE_HOME, or ~/.apporte.
func DefaultHome() (string, error) {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeConfigLoad, "failed to get home directory", err)
	}
	return filepath.Join(userHome, ".apporte"), nil
}

// Load resolves the configuration.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// godotenv never overrides variables already set in the environment.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfigLoad, "failed to read "+envFile, err)
	}

	home := opts.Home
	if home == "" {
		var err error
		if home, err = DefaultHome(); err != nil {
			return nil, err
		}
	}
	file := opts.File
	if file == "" {
		file = filepath.Join(home, "config.yaml")
	}

	v := viper.New()
	for _, k := range keys {
		v.SetDefault(k.name, k.def(home))
	}

	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfigLoad, "failed to read "+file, err).
			WithSuggestion("Fix or remove the file, or edit it with 'apporte config set'")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{home: home, file: file, v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that cannot be caught by decoding.
func (c *Config) Validate() error {
	if c.APIURL == "" {
		return apperrors.NewConfigInvalidError("api_url", "must not be empty")
	}
	if c.RequestTimeout < 0 {
		return apperrors.NewConfigInvalidError("request_timeout", "must not be negative")
	}
	switch c.Storage.Backend {
	case StorageFile, StorageMemory, StorageRedis:
	default:
		return apperrors.NewConfigInvalidError("storage.backend",
			fmt.Sprintf("%q is not one of file, memory, redis", c.Storage.Backend))
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		return apperrors.NewConfigInvalidError("logging.level", err.Error())
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return apperrors.NewConfigInvalidError("logging.format",
			fmt.Sprintf("%q is not one of text, json", c.Logging.Format))
	}
	return nil
}

// Override sets key above every other source, as a command-line flag
// does, and re-decodes the configuration.
func (c *Config) Override(key string, value any) error {
	if _, ok := lookup(key); !ok {
		return unknownKeyError(key)
	}
	c.v.Set(key, value)
	if err := c.v.Unmarshal(c); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigInvalid, "failed to decode configuration", err)
	}
	return c.Validate()
}

// Home is the apporte directory.
func (c *Config) Home() string {
	return c.home
}

// File is the YAML config file path, which may not exist.
func (c *Config) File() string {
	return c.file
}

// Get returns the effective value of key as a string.
func (c *Config) Get(key string) (string, error) {
	if _, ok := lookup(key); !ok {
		return "", unknownKeyError(key)
	}
	return format(c.v.Get(key)), nil
}

// Settings returns every key with its effective value, nested by section.
func (c *Config) Settings() map[string]any {
	out := make(map[string]any)
	for _, k := range keys {
		val, _ := c.Get(k.name)
		setNested(out, k.name, val)
	}
	return out
}

// Keys lists the known keys in sorted order.
func Keys() []string {
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, k.name)
	}
	sort.Strings(names)
	return names
}

func format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Duration:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func unknownKeyError(key string) error {
	return apperrors.New(apperrors.ErrCodeConfigKey, "unknown configuration key: "+key).
		WithSuggestion("Known keys: " + strings.Join(Keys(), ", "))
}
