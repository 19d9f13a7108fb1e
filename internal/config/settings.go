// Package config loads the service settings from flags, environment
// variables and an optional YAML file through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable viper consults.
const EnvPrefix = "PRIVILEGES"

// Settings is the effective configuration of a privileges process.
type Settings struct {
	Environment string         `mapstructure:"environment" yaml:"environment"`
	Server      ServerConfig   `mapstructure:"server" yaml:"server"`
	Database    DatabaseConfig `mapstructure:"database" yaml:"database"`
	Auth        AuthConfig     `mapstructure:"auth" yaml:"auth"`
	Features    FeatureConfig  `mapstructure:"features" yaml:"features"`
	Logging     LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `mapstructure:"host" yaml:"host"`
	Port            int      `mapstructure:"port" yaml:"port"`
	ShutdownTimeout string   `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	ReadTimeout     string   `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    string   `mapstructure:"write_timeout" yaml:"write_timeout"`
	CORSOrigins     []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	MaxBodySize     int64    `mapstructure:"max_body_size" yaml:"max_body_size"` // bytes
}

// DatabaseConfig selects the store backend.
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver" yaml:"driver"`
	DSN             string `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns    int    `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// AuthConfig holds the environment secret. An empty APIToken disables the
// environment-secret path.
type AuthConfig struct {
	APIToken string `mapstructure:"api_token" yaml:"api_token"`
}

// FeatureConfig toggles optional endpoints.
type FeatureConfig struct {
	EnableDeleteEndpoint bool `mapstructure:"enable_delete_endpoint" yaml:"enable_delete_endpoint"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

var defaults = map[string]any{
	"environment":                     "development",
	"server.host":                     "0.0.0.0",
	"server.port":                     8080,
	"server.shutdown_timeout":         "30s",
	"server.read_timeout":             "15s",
	"server.write_timeout":            "60s",
	"server.cors_origins":             []string{"*"},
	"server.max_body_size":            int64(1 << 20),
	"database.driver":                 "sqlite",
	"database.dsn":                    "privileges.db",
	"database.max_open_conns":         10,
	"database.max_idle_conns":         5,
	"database.conn_max_lifetime":      "5m",
	"auth.api_token":                  "",
	"features.enable_delete_endpoint": false,
	"logging.level":                   "info",
	"logging.format":                  "text",
}

// legacyEnv maps keys to the unprefixed variable names older deployments use.
var legacyEnv = map[string]string{
	"auth.api_token":                  "API_TOKEN",
	"features.enable_delete_endpoint": "ENABLE_DELETE_ENDPOINT",
	"environment":                     "ENVIRONMENT",
}

// Bind registers defaults and environment lookups on v. It is safe to call
// more than once.
func Bind(v *viper.Viper) error {
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load binds v, unmarshals it into Settings and validates the result.
func Load(v *viper.Viper) (*Settings, error) {
	if err := Bind(v); err != nil {
		return nil, err
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Default returns the settings used when nothing is configured.
func Default() *Settings {
	s, err := Load(viper.New())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return s
}

// Validate reports every problem found in s, joined.
func (s *Settings) Validate() error {
	var errs []error

	switch s.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q (want sqlite, postgres or mysql)", s.Database.Driver))
	}
	if s.Database.Driver != "sqlite" && s.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn: required for "+s.Database.Driver))
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", s.Server.Port))
	}
	if s.Server.MaxBodySize <= 0 {
		errs = append(errs, errors.New("server.max_body_size: must be positive"))
	}
	for key, val := range map[string]string{
		"server.shutdown_timeout":    s.Server.ShutdownTimeout,
		"server.read_timeout":        s.Server.ReadTimeout,
		"server.write_timeout":       s.Server.WriteTimeout,
		"database.conn_max_lifetime": s.Database.ConnMaxLifetime,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	switch strings.ToLower(s.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", s.Logging.Level))
	}
	switch strings.ToLower(s.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: unknown format %q", s.Logging.Format))
	}

	return errors.Join(errs...)
}

// Durations parsed from the server section. Validate guarantees they parse.
func (c ServerConfig) Timeouts() (read, write, shutdown time.Duration) {
	read, _ = time.ParseDuration(c.ReadTimeout)
	write, _ = time.ParseDuration(c.WriteTimeout)
	shutdown, _ = time.ParseDuration(c.ShutdownTimeout)
	return read, write, shutdown
}

func (c DatabaseConfig) Lifetime() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}
