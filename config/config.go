// Package config loads handler configuration from an optional file, the
// environment and built-in defaults, in that order of precedence from last
// to first.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/goliatone/go-service-handlers/cache"
)

// EnvPrefix prefixes every environment override, e.g. HANDLERS_DATABASE_DSN.
const EnvPrefix = "HANDLERS"

// Supported database drivers and log formats.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	FormatText = "text"
	FormatJSON = "json"
)

// Config is the root configuration of the handlers.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
	Listing  ListingConfig  `mapstructure:"listing"`
}

// DatabaseConfig selects the driver and connection used by the container.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	// LogQueries installs the logrus query hook.
	LogQueries         bool          `mapstructure:"log_queries"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

// CacheConfig sizes the lookup cache. Enabled false turns caching off and
// skips validation of the remaining fields.
type CacheConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	TTL                time.Duration `mapstructure:"ttl"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
}

// LogConfig sets the logrus level and formatter.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ListingConfig bounds list requests.
type ListingConfig struct {
	// MaxTake bounds the page size of list requests, zero is unbounded.
	MaxTake int `mapstructure:"max_take"`
}

func setDefaults(v *viper.Viper) {
	c := cache.DefaultConfig()

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "file::memory:")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.log_queries", false)
	v.SetDefault("database.slow_query_threshold", 200*time.Millisecond)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.capacity", c.Capacity)
	v.SetDefault("cache.num_shards", c.NumShards)
	v.SetDefault("cache.ttl", c.TTL)
	v.SetDefault("cache.eviction_percentage", c.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", c.EvictionInterval)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", FormatText)

	v.SetDefault("listing.max_take", 1000)
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads path when it is not empty, applies HANDLERS_* environment
// overrides on top and validates the result. The file type is taken from
// the extension.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Database),
		validation.Field(&c.Cache),
		validation.Field(&c.Log),
		validation.Field(&c.Listing),
	)
}

func (d DatabaseConfig) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&d.DSN, validation.Required),
		validation.Field(&d.MaxOpenConns, validation.Min(0)),
		validation.Field(&d.SlowQueryThreshold, validation.Min(time.Duration(0))),
	)
}

func (c CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	return c.ToCache().Validate()
}

func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required, validation.By(func(any) error {
			_, err := logrus.ParseLevel(l.Level)
			return err
		})),
		validation.Field(&l.Format, validation.In(FormatText, FormatJSON)),
	)
}

func (l ListingConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.MaxTake, validation.Min(0)),
	)
}

// ToCache converts the section to the cache package configuration.
func (c CacheConfig) ToCache() cache.Config {
	return cache.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

// NewLogger builds a logrus logger for the section. Call Validate first;
// an unknown level falls back to info.
func (l LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if l.Format == FormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
