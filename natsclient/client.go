// Package natsclient manages the NATS connection used for change
// event publishing, with reconnect handling and health reporting.
package natsclient

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// Config holds NATS connection settings.
type Config struct {
	URL           string        `json:"url" yaml:"url"`
	Name          string        `json:"name" yaml:"name"`
	MaxReconnects int           `json:"maxReconnects" yaml:"maxReconnects"`
	ReconnectWait time.Duration `json:"reconnectWait" yaml:"reconnectWait"`
	ConnectWait   time.Duration `json:"connectWait" yaml:"connectWait"`
}

// DefaultConfig returns connection defaults: reconnect forever with a
// short wait, so a broker restart never takes the service down.
func DefaultConfig() Config {
	return Config{
		Name:          "taalhuizen-relation-sync",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		ConnectWait:   5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: nats url is required", errors.ErrMissingConfig)
	}
	if c.ReconnectWait < 0 || c.ConnectWait < 0 {
		return fmt.Errorf("%w: nats wait durations cannot be negative", errors.ErrInvalidConfig)
	}
	return nil
}

// Client wraps the NATS connection with lifecycle logging.
type Client struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect establishes the connection. Disconnects and reconnects are
// logged; the underlying client keeps retrying per the config.
func Connect(cfg Config, logger *slog.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "natsclient")

	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "natsclient", "Connect", "connect to "+cfg.URL)
	}

	logger.Info("nats connected", "url", conn.ConnectedUrl())
	return &Client{conn: conn, logger: logger}, nil
}

// Conn exposes the raw connection for publishers and subscribers.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Check reports connection health; it satisfies health.Check.
func (c *Client) Check(context.Context) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return fmt.Errorf("%w: nats not connected", errors.ErrStoreUnavailable)
	}
	return nil
}

// Drain flushes pending messages and closes the connection.
func (c *Client) Drain() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("nats drain failed", "error", err)
	}
}
