package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
	"github.com/ConductionNL/taalhuizen-service-sub000/pkg/retry"
)

// Client is a generic CRUD-and-query client for the remote object
// store. It is safe for concurrent use; it holds no mutable state
// beyond its cache and limiter.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	cache      *gocache.Cache
	metrics    *storeMetrics
	readRetry  retry.Config
}

// queryEnvelope is the store's list-response shape.
type queryEnvelope struct {
	Results []PropertyBag `json:"results"`
}

// NewClient creates an object store client. The registerer may be nil
// to disable metrics; the logger defaults to slog.Default().
func NewClient(cfg Config, logger *slog.Logger, reg prometheus.Registerer) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "Client", "NewClient", "config validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "objectstore"),
		metrics:    newStoreMetrics(reg),
		readRetry:  retry.Reads(),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if cfg.Cache.Enabled {
		c.cache = gocache.New(cfg.Cache.TTL, cfg.Cache.PurgeInterval)
	}
	return c, nil
}

// Get fetches the entity behind ref. Returns errors.ErrNotFound when
// the ref does not resolve and a TransportError on network or server
// failure.
func (c *Client) Get(ctx context.Context, ref EntityRef) (PropertyBag, error) {
	if err := ref.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "Client", "Get", "ref validation")
	}

	if c.cache != nil {
		if cached, found := c.cache.Get(ref.Canonical()); found {
			c.metrics.recordCacheHit()
			return cached.(PropertyBag).Clone(), nil
		}
		c.metrics.recordCacheMiss()
	}

	bag, err := c.readWithRetry(ctx, "get", func() (PropertyBag, error) {
		return c.fetch(ctx, ref)
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ref.Canonical(), bag.Clone(), gocache.DefaultExpiration)
	}
	return bag, nil
}

// Exists reports whether ref resolves to a stored entity. It never
// fails for a missing resource; NotFound translates to false.
func (c *Client) Exists(ctx context.Context, ref EntityRef) (bool, error) {
	if err := ref.Validate(); err != nil {
		return false, errors.WrapFatal(err, "Client", "Exists", "ref validation")
	}

	if c.cache != nil {
		if _, found := c.cache.Get(ref.Canonical()); found {
			c.metrics.recordCacheHit()
			return true, nil
		}
	}

	_, err := c.readWithRetry(ctx, "exists", func() (PropertyBag, error) {
		return c.fetch(ctx, ref)
	})
	if err != nil {
		if errors.IsInvalid(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Create stores a new entity in the given collection and returns the
// stored bag including its assigned id and resource URL.
func (c *Client) Create(ctx context.Context, component, collection string, body PropertyBag) (PropertyBag, error) {
	if collection == "" {
		return nil, errors.WrapFatal(errors.ErrMalformedRef, "Client", "Create", "collection required")
	}

	start := time.Now()
	target := c.baseFor(StoreEAV) + collectionPath(component, collection)
	data, err := c.roundTrip(ctx, http.MethodPost, target, body, "")
	c.metrics.recordRequest("create", outcomeOf(err), start)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Create", "store entity")
	}

	var bag PropertyBag
	if err := json.Unmarshal(data, &bag); err != nil {
		return nil, errors.NewTransport(fmt.Errorf("malformed create response: %w", err), 0)
	}

	c.logger.Debug("entity created", "collection", collection, "component", component)
	return bag, nil
}

// Update overwrites the entity behind ref with body and returns the
// stored result. Overwrite semantics mirror the remote API: no
// auto-merge, callers re-fetch and merge for partial updates. With
// optimistic locking enabled the body's version is echoed back via
// If-Match and a concurrent change surfaces as errors.ErrConflict.
func (c *Client) Update(ctx context.Context, ref EntityRef, body PropertyBag) (PropertyBag, error) {
	if err := ref.Validate(); err != nil {
		return nil, errors.WrapFatal(err, "Client", "Update", "ref validation")
	}

	ifMatch := ""
	if c.cfg.OptimisticLocking {
		if v, ok := body.GetString(FieldVersion); ok {
			ifMatch = v
		}
	}

	start := time.Now()
	data, err := c.roundTrip(ctx, http.MethodPut, c.urlFor(ref), body, ifMatch)
	c.metrics.recordRequest("update", outcomeOf(err), start)
	c.invalidate(ref)
	if err != nil {
		return nil, errors.Wrap(err, "Client", "Update", "write entity")
	}

	var bag PropertyBag
	if err := json.Unmarshal(data, &bag); err != nil {
		return nil, errors.NewTransport(fmt.Errorf("malformed update response: %w", err), 0)
	}

	c.logger.Debug("entity updated", "ref", ref.Canonical())
	return bag, nil
}

// Delete removes the entity behind ref. Returns errors.ErrNotFound
// when absent.
func (c *Client) Delete(ctx context.Context, ref EntityRef) error {
	if err := ref.Validate(); err != nil {
		return errors.WrapFatal(err, "Client", "Delete", "ref validation")
	}

	start := time.Now()
	_, err := c.roundTrip(ctx, http.MethodDelete, c.urlFor(ref), nil, "")
	c.metrics.recordRequest("delete", outcomeOf(err), start)
	c.invalidate(ref)
	if err != nil {
		return errors.Wrap(err, "Client", "Delete", "delete entity")
	}

	c.logger.Debug("entity deleted", "ref", ref.Canonical())
	return nil
}

// Query lists entities in a collection matching the filter. No
// ordering or pagination guarantee beyond what the store provides.
func (c *Client) Query(ctx context.Context, component, collection string, filter map[string]string) ([]PropertyBag, error) {
	if collection == "" {
		return nil, errors.WrapFatal(errors.ErrMalformedRef, "Client", "Query", "collection required")
	}

	target := c.baseFor(StoreEAV) + collectionPath(component, collection)
	if len(filter) > 0 {
		values := url.Values{}
		for k, v := range filter {
			values.Set(k, v)
		}
		target += "?" + values.Encode()
	}

	results, err := retry.DoWithResult(ctx, c.retryConfig(), func() ([]PropertyBag, error) {
		start := time.Now()
		data, err := c.roundTrip(ctx, http.MethodGet, target, nil, "")
		c.metrics.recordRequest("query", outcomeOf(err), start)
		if err != nil {
			return nil, markDefinitive(err)
		}
		var envelope queryEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, errors.NewTransport(fmt.Errorf("malformed query response: %w", err), 0)
		}
		return envelope.Results, nil
	})
	if err != nil {
		return nil, errors.Wrap(unwrapNonRetryable(err), "Client", "Query", "list entities")
	}
	return results, nil
}

// Ping probes store reachability for health checks. Any HTTP answer
// counts as reachable, including 404 from stores that serve nothing at
// the root; only transport failures report unhealthy.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.roundTrip(ctx, http.MethodGet, c.cfg.BaseURL, nil, "")
	if err == nil || errors.Is(err, errors.ErrNotFound) {
		return nil
	}
	var te *errors.TransportError
	if errors.As(err, &te) && te.StatusCode > 0 {
		return nil
	}
	return errors.Wrap(err, "Client", "Ping", "reach store")
}

// fetch performs a single GET of ref without retry or caching.
func (c *Client) fetch(ctx context.Context, ref EntityRef) (PropertyBag, error) {
	start := time.Now()
	data, err := c.roundTrip(ctx, http.MethodGet, c.urlFor(ref), nil, "")
	c.metrics.recordRequest("get", outcomeOf(err), start)
	if err != nil {
		return nil, err
	}

	var bag PropertyBag
	if err := json.Unmarshal(data, &bag); err != nil {
		return nil, errors.NewTransport(fmt.Errorf("malformed entity body: %w", err), 0)
	}
	return bag, nil
}

// readWithRetry runs an idempotent read through the retry framework,
// treating definitive answers (NotFound) as non-retryable.
func (c *Client) readWithRetry(ctx context.Context, op string, fn func() (PropertyBag, error)) (PropertyBag, error) {
	bag, err := retry.DoWithResult(ctx, c.retryConfig(), func() (PropertyBag, error) {
		bag, err := fn()
		if err != nil {
			return nil, markDefinitive(err)
		}
		return bag, nil
	})
	if err != nil {
		err = unwrapNonRetryable(err)
		if errors.Is(err, errors.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "Client", op, "read entity")
	}
	return bag, nil
}

func (c *Client) retryConfig() retry.Config {
	if !c.cfg.RetryReads {
		return retry.Config{MaxAttempts: 1}
	}
	return c.readRetry
}

// roundTrip performs one HTTP exchange and maps the response status
// onto the error taxonomy: 404 to ErrNotFound, 409/412 to ErrConflict,
// any other non-2xx or network failure to TransportError.
func (c *Client) roundTrip(ctx context.Context, method, target string, body PropertyBag, ifMatch string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.NewTransport(err, 0)
		}
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.WrapFatal(err, "Client", "roundTrip", "encode body")
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, errors.WrapFatal(err, "Client", "roundTrip", "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", c.cfg.APIKey)
	}
	if ifMatch != "" {
		req.Header.Set("If-Match", ifMatch)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("object store request failed", "method", method, "url", target, "error", err)
		return nil, errors.NewTransport(err, 0)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransport(err, resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, target)
	case resp.StatusCode == http.StatusConflict || resp.StatusCode == http.StatusPreconditionFailed:
		return nil, fmt.Errorf("%w: %s", errors.ErrConflict, target)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.NewTransport(fmt.Errorf("unexpected status for %s %s", method, target), resp.StatusCode)
	}
	return data, nil
}

func (c *Client) urlFor(ref EntityRef) string {
	return c.baseFor(ref.StoreKind) + ref.path()
}

func (c *Client) baseFor(kind StoreKind) string {
	if kind == StoreREST && c.cfg.RESTBaseURL != "" {
		return c.cfg.RESTBaseURL
	}
	return c.cfg.BaseURL
}

func (c *Client) invalidate(ref EntityRef) {
	if c.cache != nil {
		c.cache.Delete(ref.Canonical())
	}
}

func collectionPath(component, collection string) string {
	if component == "" {
		return "/" + collection
	}
	return "/" + component + "/" + collection
}

// markDefinitive marks errors that are final answers, not flakiness,
// so the retry loop fails fast on them.
func markDefinitive(err error) error {
	if errors.Is(err, errors.ErrNotFound) || errors.Is(err, errors.ErrConflict) || errors.IsFatal(err) {
		return retry.NonRetryable(err)
	}
	return err
}

func unwrapNonRetryable(err error) error {
	var nre *retry.NonRetryableError
	if errors.As(err, &nre) {
		return nre.Err
	}
	return err
}
