package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from files and environment
// variables. The remote database is optional: without DATABASE_URL the
// engine runs local-only and sync is disabled.
type Config struct {
	Env     string  `mapstructure:"env" validate:"required,oneof=local dev production"`
	HTTP    HTTP    `mapstructure:"http"`
	Catalog Catalog `mapstructure:"catalog"`
	Local   Local   `mapstructure:"local"`
	DB      DB      `mapstructure:"database"`
}

// HTTP contains the API listener settings.
type HTTP struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// Catalog points at the question catalog file. A .xlsx path is imported as
// a spreadsheet, anything else is read as JSON.
type Catalog struct {
	Path string `mapstructure:"path" validate:"required"`
}

// Local contains the device-bound snapshot store settings.
type Local struct {
	DBPath  string `mapstructure:"db_path" validate:"required"`
	DataDir string `mapstructure:"data_dir" validate:"required"` // file-store fallback directory
}

// DB contains the remote progress database settings.
type DB struct {
	URL             string        `mapstructure:"-"` // loaded from environment, empty disables sync
	MaxConnections  int           `mapstructure:"max_connections" validate:"gt=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime" validate:"gt=0"`
	QueryTimeout    time.Duration `mapstructure:"query_timeout" validate:"gt=0"`
}

// SyncEnabled reports whether a remote progress store is configured.
func (db DB) SyncEnabled() bool {
	return db.URL != ""
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	v.SetDefault("env", "local")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", "10s")
	v.SetDefault("catalog.path", "assets/questions.json")
	v.SetDefault("local.db_path", "data/progress.db")
	v.SetDefault("local.data_dir", "data")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")
	v.SetDefault("database.query_timeout", "5s")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")
	_ = v.BindEnv("http.addr", "HTTP_ADDR")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	cfg.DB.URL = v.GetString("database_url")

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
