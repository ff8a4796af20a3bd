// Package main runs the relation synchronization service: an HTTP
// gateway in front of the kind-driven syncer, backed by the remote
// object store, with change events fanned out over NATS and websocket.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ConductionNL/taalhuizen-service-sub000/config"
	gatewayhttp "github.com/ConductionNL/taalhuizen-service-sub000/gateway/http"
	"github.com/ConductionNL/taalhuizen-service-sub000/health"
	"github.com/ConductionNL/taalhuizen-service-sub000/natsclient"
	"github.com/ConductionNL/taalhuizen-service-sub000/objectstore"
	"github.com/ConductionNL/taalhuizen-service-sub000/relation"
)

const (
	Version = "0.1.0"
	appName = "relation-sync"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cli := parseFlags()
	if cli.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}

	cfg, err := config.Load(cli.ConfigPath)
	if err != nil {
		return err
	}
	if cli.LogLevel != "" {
		cfg.Logging.Level = cli.LogLevel
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	if cli.Validate {
		logger.Info("configuration is valid", "config", cli.ConfigPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()

	store, err := objectstore.NewClient(cfg.Store, logger, registry)
	if err != nil {
		return err
	}

	catalog, err := relation.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}
	logger.Info("relation catalog loaded", "kinds", catalog.Names())

	syncerOpts := []relation.Option{relation.WithMetrics(registry)}
	if cfg.Store.OptimisticLocking {
		syncerOpts = append(syncerOpts, relation.WithConflictRetry())
	}

	monitor := health.NewMonitor(logger)
	monitor.Register("objectstore", store.Ping)

	var broker *natsclient.Client
	if cfg.NATS.URL != "" {
		natsCfg := natsclient.DefaultConfig()
		natsCfg.URL = cfg.NATS.URL
		if cfg.NATS.Name != "" {
			natsCfg.Name = cfg.NATS.Name
		}
		natsCfg.MaxReconnects = cfg.NATS.MaxReconnects
		natsCfg.ReconnectWait = cfg.NATS.ReconnectWait

		broker, err = natsclient.Connect(natsCfg, logger)
		if err != nil {
			return err
		}
		defer broker.Drain()
		monitor.Register("nats", broker.Check)
		syncerOpts = append(syncerOpts,
			relation.WithPublisher(relation.NewNATSPublisher(broker.Conn(), cfg.NATS.EventSubject)))
		logger.Info("event publishing enabled", "url", cfg.NATS.URL)
	} else {
		logger.Info("no NATS url configured, event publishing disabled")
	}

	syncer := relation.NewSyncer(store, logger, syncerOpts...)

	server, err := gatewayhttp.NewServer(cfg.Gateway, syncer, catalog, logger, registry)
	if err != nil {
		return err
	}
	server.SetHealthMonitor(monitor)

	if broker != nil {
		sub, err := server.RelayNATS(broker.Conn(), cfg.NATS.EventSubject)
		if err != nil {
			return fmt.Errorf("subscribe to change events: %w", err)
		}
		defer sub.Unsubscribe()
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.Run(ctx)
	})

	logger.Info("service started", "version", Version)
	err = group.Wait()
	logger.Info("service stopped")
	return err
}
