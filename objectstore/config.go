package objectstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
)

// CacheConfig configures the in-memory read cache for retrieved bags.
type CacheConfig struct {
	// Enabled turns the read cache on. Only positive Get results are
	// cached; writes to an entity invalidate its entry.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// TTL is how long a cached bag stays valid.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// PurgeInterval is how often expired entries are evicted.
	PurgeInterval time.Duration `json:"purge_interval" yaml:"purgeInterval"`
}

// Config holds configuration for the object store client.
type Config struct {
	// BaseURL is the root of the EAV store's REST API.
	BaseURL string `json:"base_url" yaml:"baseUrl"`

	// RESTBaseURL is the root for StoreREST refs (upstream services
	// that expose entities directly). Defaults to BaseURL.
	RESTBaseURL string `json:"rest_base_url" yaml:"restBaseUrl"`

	// APIKey is sent as the Authorization header when set.
	APIKey string `json:"api_key" yaml:"apiKey"`

	// UserAgent identifies this client to the store.
	UserAgent string `json:"user_agent" yaml:"userAgent"`

	// Timeout bounds each HTTP round trip. A caller context with an
	// earlier deadline still wins.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RetryReads enables bounded backoff retry for idempotent reads
	// (get, exists, query). Writes are never retried here.
	RetryReads bool `json:"retry_reads" yaml:"retryReads"`

	// OptimisticLocking echoes the stored entity version back on
	// Update via If-Match, turning a concurrent overwrite into
	// errors.ErrConflict. Off by default to match the remote store's
	// historical last-write-wins behavior.
	OptimisticLocking bool `json:"optimistic_locking" yaml:"optimisticLocking"`

	// RateLimit caps outgoing requests per second; zero disables
	// client-side pacing.
	RateLimit float64 `json:"rate_limit" yaml:"rateLimit"`

	// RateBurst is the limiter's burst size.
	RateBurst int `json:"rate_burst" yaml:"rateBurst"`

	// Cache configures the read cache.
	Cache CacheConfig `json:"cache" yaml:"cache"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		UserAgent:  "taalhuizen-objectstore/1.0",
		Timeout:    5 * time.Second,
		RetryReads: true,
		RateLimit:  50,
		RateBurst:  25,
		Cache: CacheConfig{
			Enabled:       false,
			TTL:           30 * time.Second,
			PurgeInterval: time.Minute,
		},
	}
}

// Validate checks the configuration for completeness.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base_url is required", errors.ErrMissingConfig)
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("%w: base_url must be an http(s) URL", errors.ErrInvalidConfig)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout cannot be negative", errors.ErrInvalidConfig)
	}
	if c.RateLimit < 0 || c.RateBurst < 0 {
		return fmt.Errorf("%w: rate limit values cannot be negative", errors.ErrInvalidConfig)
	}
	if c.Cache.Enabled && c.Cache.TTL <= 0 {
		return fmt.Errorf("%w: cache ttl must be positive when cache is enabled", errors.ErrInvalidConfig)
	}
	return nil
}
