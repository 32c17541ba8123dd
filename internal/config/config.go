// Package config loads the server configuration from config.yaml and FACTURATION_* variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"facturation/internal/domain/documents/facture/lines"
)

// EnvPrefix prefixes every environment override, e.g. FACTURATION_SERVER_ADDRESS.
const EnvPrefix = "FACTURATION"

type Configuration struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Logging   LoggingConfig   `mapstructure:"logging" validate:"required"`
	Session   SessionConfig   `mapstructure:"session" validate:"required"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Numbering NumberingConfig `mapstructure:"numbering" validate:"required"`
	Editor    EditorConfig    `mapstructure:"editor" validate:"required"`
}

type ServerConfig struct {
	Address         string        `mapstructure:"address" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type SessionConfig struct {
	// TTL is the idle lifetime of an editor session
	TTL time.Duration `mapstructure:"ttl" validate:"gt=0"`

	// IdempotencyTTL is how long X-Idempotency-Key responses are replayed
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl" validate:"gt=0"`
}

type PostgresConfig struct {
	// DSN enables persistence and the database catalog; empty runs in memory
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`

	// Migrate applies the bundled schema on start
	Migrate bool `mapstructure:"migrate"`

	// ListenCatalog reloads the catalog on NOTIFY catalog_changed
	ListenCatalog bool `mapstructure:"listen_catalog"`
}

type CatalogConfig struct {
	// SeedFile is a YAML/JSON catalog used when no DSN is configured
	SeedFile string `mapstructure:"seed_file"`
}

type NumberingConfig struct {
	Prefix string `mapstructure:"prefix" validate:"required,alphanum"`
}

// EditorConfig mirrors lines.Config with decimals kept as strings for the config file.
type EditorConfig struct {
	DefaultServiceCode        string        `mapstructure:"default_service_code"`
	DefaultUnits              []DefaultUnit `mapstructure:"default_units" validate:"dive"`
	MaxDescriptionLength      int           `mapstructure:"max_description_length" validate:"gte=0"`
	MaxDatesDescriptionLength int           `mapstructure:"max_dates_description_length" validate:"gte=0"`
	MaxQuantity               string        `mapstructure:"max_quantity" validate:"omitempty,numeric"`
	MaxUnitPrice              string        `mapstructure:"max_unit_price" validate:"omitempty,numeric"`
	TotalTolerance            string        `mapstructure:"total_tolerance" validate:"omitempty,numeric"`
	CopyPrefix                string        `mapstructure:"copy_prefix"`
	DeriveQuantityFromDates   bool          `mapstructure:"derive_quantity_from_dates"`
}

// DefaultUnit preselects a unit for a service. A list rather than a map
// because viper lower-cases map keys and catalog codes are case-sensitive.
type DefaultUnit struct {
	Service string `mapstructure:"service" validate:"required"`
	Unit    string `mapstructure:"unit" validate:"required"`
}

// NewConfig reads config.yaml (from path, or the usual locations when path is
// empty), applies FACTURATION_* overrides and validates the result.
// A missing config file is not an error.
func NewConfig(path string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/facturation")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	d := lines.DefaultConfig()

	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.idempotency_ttl", "24h")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.migrate", false)
	v.SetDefault("postgres.listen_catalog", false)
	v.SetDefault("catalog.seed_file", "")
	v.SetDefault("numbering.prefix", "FAC")
	v.SetDefault("editor.default_service_code", "")
	v.SetDefault("editor.default_units", []DefaultUnit{})
	v.SetDefault("editor.max_description_length", d.MaxDescriptionLength)
	v.SetDefault("editor.max_dates_description_length", d.MaxDatesDescriptionLength)
	v.SetDefault("editor.max_quantity", d.MaxQuantity.String())
	v.SetDefault("editor.max_unit_price", d.MaxUnitPrice.String())
	v.SetDefault("editor.total_tolerance", d.TotalTolerance.String())
	v.SetDefault("editor.copy_prefix", d.CopyPrefix)
	v.SetDefault("editor.derive_quantity_from_dates", d.DeriveQuantityFromDates)
}

// Validate checks struct constraints.
func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetDefaultConfig returns the configuration used when nothing is set.
func GetDefaultConfig() *Configuration {
	v := viper.New()
	setDefaults(v)

	var cfg Configuration
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Lines converts the editor section into the line editor configuration.
func (e EditorConfig) Lines() (lines.Config, error) {
	cfg := lines.DefaultConfig()
	cfg.DefaultServiceCode = e.DefaultServiceCode
	for _, du := range e.DefaultUnits {
		cfg.DefaultUnitsByService[du.Service] = du.Unit
	}
	if e.MaxDescriptionLength > 0 {
		cfg.MaxDescriptionLength = e.MaxDescriptionLength
	}
	if e.MaxDatesDescriptionLength > 0 {
		cfg.MaxDatesDescriptionLength = e.MaxDatesDescriptionLength
	}
	if e.CopyPrefix != "" {
		cfg.CopyPrefix = e.CopyPrefix
	}
	cfg.DeriveQuantityFromDates = e.DeriveQuantityFromDates

	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"max_quantity", e.MaxQuantity, &cfg.MaxQuantity},
		{"max_unit_price", e.MaxUnitPrice, &cfg.MaxUnitPrice},
		{"total_tolerance", e.TotalTolerance, &cfg.TotalTolerance},
	} {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return lines.Config{}, fmt.Errorf("editor.%s: %w", f.name, err)
		}
		*f.dst = d
	}
	return cfg, nil
}
