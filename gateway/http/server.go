// Package http exposes the relation synchronization API over HTTP:
// JSON endpoints for link and unlink operations, a websocket feed of
// change events, health and Prometheus metrics.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ConductionNL/taalhuizen-service-sub000/errors"
	"github.com/ConductionNL/taalhuizen-service-sub000/health"
	"github.com/ConductionNL/taalhuizen-service-sub000/relation"
)

// Applier is the slice of the syncer the gateway needs.
type Applier interface {
	Apply(ctx context.Context, op relation.Operation, catalog *relation.Catalog) (*relation.Result, error)
}

// Config holds the HTTP server settings.
type Config struct {
	Addr            string        `json:"addr" yaml:"addr"`
	EnableCORS      bool          `json:"enableCors" yaml:"enableCors"`
	CORSOrigins     []string      `json:"corsOrigins" yaml:"corsOrigins"`
	MaxRequestSize  int64         `json:"maxRequestSize" yaml:"maxRequestSize"`
	RequestTimeout  time.Duration `json:"requestTimeout" yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxRequestSize:  1 << 20,
		RequestTimeout:  15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr is required", errors.ErrInvalidConfig)
	}
	if c.MaxRequestSize <= 0 {
		return fmt.Errorf("%w: maxRequestSize must be positive", errors.ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: requestTimeout must be positive", errors.ErrInvalidConfig)
	}
	return nil
}

// Server is the HTTP gateway in front of the relation syncer.
type Server struct {
	cfg      Config
	syncer   Applier
	catalog  *relation.Catalog
	logger   *slog.Logger
	hub      *eventHub
	gatherer prometheus.Gatherer
	health   *health.Monitor
}

// NewServer builds the gateway. The gatherer may be nil to disable
// the /metrics endpoint body (it still responds, with an empty set).
func NewServer(cfg Config, syncer Applier, catalog *relation.Catalog, logger *slog.Logger, gatherer prometheus.Gatherer) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if syncer == nil {
		return nil, fmt.Errorf("%w: syncer is required", errors.ErrMissingConfig)
	}
	if catalog == nil {
		catalog = relation.DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.NewRegistry()
	}
	return &Server{
		cfg:      cfg,
		syncer:   syncer,
		catalog:  catalog,
		logger:   logger.With("component", "gateway.http"),
		hub:      newEventHub(logger),
		gatherer: gatherer,
	}, nil
}

// SetHealthMonitor attaches dependency checks to the health endpoint.
// Without one, /healthz only reports process liveness.
func (s *Server) SetHealthMonitor(m *health.Monitor) {
	s.health = m
}

// Routes registers all endpoints on the mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/relations/link", s.withCommon(http.MethodPost, s.handleLink))
	mux.HandleFunc("/relations/unlink", s.withCommon(http.MethodPost, s.handleUnlink))
	mux.HandleFunc("/relations/kinds", s.withCommon(http.MethodGet, s.handleKinds))
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Run serves until the context is cancelled, then drains connections
// within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	s.Routes(mux)

	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http gateway listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		s.hub.close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "gateway.http", "Run", "shutdown")
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "gateway.http", "Run", "serve")
		}
		return nil
	}
}

// Publish feeds a change event into the websocket relay. It satisfies
// relation.Publisher so the server can sit directly behind the syncer
// in deployments without a broker.
func (s *Server) Publish(event relation.ChangeEvent) error {
	s.hub.broadcast(event)
	return nil
}

// withCommon applies the request ID, method filter, CORS and timeout
// shared by the JSON endpoints.
func (s *Server) withCommon(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := getOrGenerateRequestID(r)
		w.Header().Set("X-Request-ID", requestID)

		if s.cfg.EnableCORS {
			s.applyCORS(w, r)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}

		if r.Method != method {
			writeError(w, http.StatusMethodNotAllowed, "", fmt.Sprintf("method %s not allowed", r.Method))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
		defer cancel()

		next(w, r.WithContext(ctx))
	}
}

func (s *Server) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	allowed := false
	for _, candidate := range s.cfg.CORSOrigins {
		if candidate == "*" || candidate == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
	} else {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// getOrGenerateRequestID extracts the request ID from headers or
// generates one for tracing across gateway and store calls.
func getOrGenerateRequestID(r *http.Request) string {
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		return reqID
	}
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}
