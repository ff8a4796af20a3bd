// Package config loads and validates the service configuration from a
// YAML file with environment overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
	gatewayhttp "github.com/ConductionNL/taalhuizen-service-sub000/gateway/http"
	"github.com/ConductionNL/taalhuizen-service-sub000/objectstore"
)

// NATSConfig holds the broker connection settings. Leaving URL empty
// disables event publishing entirely; the service is fully functional
// without a broker.
type NATSConfig struct {
	URL           string        `yaml:"url"`
	Name          string        `yaml:"name"`
	EventSubject  string        `yaml:"eventSubject"`
	MaxReconnects int           `yaml:"maxReconnects"`
	ReconnectWait time.Duration `yaml:"reconnectWait"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the complete service configuration.
type Config struct {
	Store       objectstore.Config `yaml:"store"`
	Gateway     gatewayhttp.Config `yaml:"gateway"`
	NATS        NATSConfig         `yaml:"nats"`
	Logging     LoggingConfig      `yaml:"logging"`
	CatalogPath string             `yaml:"catalogPath"`
}

// Default returns production defaults; a config file overrides them
// field by field.
func Default() Config {
	return Config{
		Store:   objectstore.DefaultConfig(),
		Gateway: gatewayhttp.DefaultConfig(),
		NATS: NATSConfig{
			Name:          "taalhuizen-relation-sync",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", errors.ErrInvalidConfig, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", errors.ErrInvalidConfig, path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv lets deployments inject endpoints and secrets without
// writing them into the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TAALHUIZEN_STORE_URL"); v != "" {
		cfg.Store.BaseURL = v
	}
	if v := os.Getenv("TAALHUIZEN_STORE_API_KEY"); v != "" {
		cfg.Store.APIKey = v
	}
	if v := os.Getenv("TAALHUIZEN_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("TAALHUIZEN_LISTEN_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
}

// Validate checks the assembled configuration.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Gateway.Validate(); err != nil {
		return err
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", errors.ErrInvalidConfig, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("%w: unknown log format %q", errors.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}
