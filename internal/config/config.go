// Package config loads service configuration from config.yml and
// PAYGW_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yourorg/payment-gateway/internal/adapter"
	"github.com/yourorg/payment-gateway/internal/policy"
)

// EnvPrefix prefixes every environment override, e.g. PAYGW_HTTP_ADDR.
const EnvPrefix = "PAYGW"

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	ServiceName    string                   `mapstructure:"service_name"`
	Env            string                   `mapstructure:"env"`
	HTTP           HTTPConfig               `mapstructure:"http"`
	Logging        LoggingConfig            `mapstructure:"logging"`
	Database       DatabaseConfig           `mapstructure:"database"`
	Tracing        TracingConfig            `mapstructure:"tracing"`
	Gateways       map[string]GatewayConfig `mapstructure:"gateways"`
	CapturePolicy  []policy.PolicyRule      `mapstructure:"capture_policy"`
	DigitalContent DigitalContentConfig     `mapstructure:"digital_content"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Format    string `mapstructure:"format"`
	AddCaller bool   `mapstructure:"add_caller"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// GatewayConfig configures one registered gateway. Type selects the
// adapter implementation and defaults to the gateway's name.
type GatewayConfig struct {
	Type             string            `mapstructure:"type"`
	AutoCapture      bool              `mapstructure:"auto_capture"`
	StoreCustomer    bool              `mapstructure:"store_customer"`
	ConnectionParams map[string]string `mapstructure:"connection_params"`
}

// AdapterConfig converts the section into the value passed to adapters.
func (g GatewayConfig) AdapterConfig() adapter.GatewayConfig {
	params := make(map[string]string, len(g.ConnectionParams))
	for k, v := range g.ConnectionParams {
		params[k] = v
	}
	return adapter.GatewayConfig{
		ConnectionParams: params,
		AutoCapture:      g.AutoCapture,
		StoreCustomer:    g.StoreCustomer,
	}
}

// DigitalContentConfig holds the site-wide download limits used by content
// flagged with use_default_settings. Zero means unlimited.
type DigitalContentConfig struct {
	MaxDownloads int    `mapstructure:"max_downloads"`
	URLValidDays int    `mapstructure:"url_valid_days"`
	StorageDir   string `mapstructure:"storage_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "payment-gateway")
	v.SetDefault("env", "local")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 15*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "file:payment-gateway.db")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("digital_content.storage_dir", "./media")
}

// Load reads configuration from path, which is either a config file or a
// directory holding config.yml. A missing config.yml in a directory is not
// an error: defaults and the environment still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(path)
		v.SetConfigName("config")
		v.SetConfigType("yml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Common deploy-time secrets are accepted without the prefix.
	_ = v.BindEnv("database.dsn", "DATABASE_URL", EnvPrefix+"_DATABASE_DSN")
	_ = v.BindEnv("gateways.stripe.connection_params.private_key", "STRIPE_SECRET_KEY")
	_ = v.BindEnv("gateways.stripe.connection_params.public_key", "STRIPE_PUBLISHABLE_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	for name, gw := range cfg.Gateways {
		if gw.Type == "" {
			gw.Type = name
			cfg.Gateways[name] = gw
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}
	if c.DigitalContent.MaxDownloads < 0 || c.DigitalContent.URLValidDays < 0 {
		return errors.New("digital_content limits must not be negative")
	}
	for i, r := range c.CapturePolicy {
		if r.ID == "" {
			return fmt.Errorf("capture_policy[%d]: id is required", i)
		}
	}
	return nil
}
