// Package config loads service configuration from config.yaml and the
// environment, and sets up the global logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/1F47E/geo-region-index/pkg/index"
	"github.com/1F47E/geo-region-index/pkg/models"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Index  IndexConfig  `yaml:"index" mapstructure:"index"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the boundary dataset.
type DataConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Level string `yaml:"level" mapstructure:"level"`
	// Snapshot, when set, is loaded instead of Path.
	Snapshot string `yaml:"snapshot" mapstructure:"snapshot"`
	// Postgres is a PostGIS DSN, used when no snapshot is set.
	Postgres string `yaml:"postgres" mapstructure:"postgres"`
}

// FinestLevel parses Level.
func (d DataConfig) FinestLevel() (models.Level, error) {
	return models.ParseLevel(d.Level)
}

type IndexConfig struct {
	Kind string `yaml:"kind" mapstructure:"kind"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr        string   `yaml:"addr" mapstructure:"addr"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	// RateLimit is requests per second across all API routes; 0 disables it.
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from the config file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("REVGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Variable names used by existing deployments.
	if err := v.BindEnv("data.path", "REVGEO_DATA_PATH", "GEO_DATA_PATH"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}
	if err := v.BindEnv("data.level", "REVGEO_DATA_LEVEL", "JETGEO_LEVEL"); err != nil {
		return nil, eris.Wrap(err, "config: bind env")
	}

	// Defaults
	v.SetDefault("data.path", "./data/geodata")
	v.SetDefault("data.level", "district")
	v.SetDefault("data.snapshot", "")
	v.SetDefault("data.postgres", "")
	v.SetDefault("index.kind", string(index.KindGrid))
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.rate_burst", 0)
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

// Validate checks the values Load cannot type-check.
func (c *Config) Validate() error {
	if _, err := c.Data.FinestLevel(); err != nil {
		return eris.Wrap(err, "config: data.level")
	}
	if _, err := index.ParseKind(c.Index.Kind); err != nil {
		return eris.Wrap(err, "config: index.kind")
	}
	if c.Server.RateLimit < 0 {
		return eris.New("config: server.rate_limit must not be negative")
	}
	if c.Data.Path == "" && c.Data.Snapshot == "" && c.Data.Postgres == "" {
		return eris.New("config: one of data.path, data.snapshot or data.postgres is required")
	}
	return nil
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
