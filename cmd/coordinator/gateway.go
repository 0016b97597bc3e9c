package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/worldgate/internal/config"
	"github.com/dreamware/worldgate/internal/coordinator"
	"github.com/dreamware/worldgate/internal/metrics"
	"github.com/dreamware/worldgate/internal/telemetry"
	"github.com/dreamware/worldgate/internal/transport"
)

const (
	assignTimeout   = 5 * time.Second
	connectRetry    = 1 * time.Second
	shutdownTimeout = 5 * time.Second
)

// gateway is one running process: its worlds, the balancing core and the
// websocket front door.
type gateway struct {
	cfg    *config.Config
	logger *zap.Logger

	registry   *coordinator.ShardRegistry
	backend    *metrics.KVBackend // nil when metrics are disabled
	controller *coordinator.Controller
	aggregator *coordinator.Aggregator // nil when metrics are disabled
	sync       *coordinator.PopulationSync
	status     *coordinator.StatusReporter
	transport  *transport.Server

	closers []func()
}

func newGateway(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg *prometheus.Registry) (*gateway, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	recorder, err := telemetry.NewPrometheus(reg, "")
	if err != nil {
		return nil, fmt.Errorf("register collectors: %w", err)
	}

	registry, err := coordinator.NewWorldRegistry(cfg.NbWorlds, cfg.NbPlayersPerWorld)
	if err != nil {
		return nil, err
	}
	if err := registry.Run(cfg.MapFilepath); err != nil {
		return nil, err
	}

	g := &gateway{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		status:   coordinator.NewStatusReporter(registry),
	}

	var strategy coordinator.Strategy = coordinator.FirstFit{}
	var source coordinator.TotalPlayersSource
	if cfg.MetricsEnabled {
		store, closer, err := openStore(ctx, cfg.Metrics, logger)
		if err != nil {
			return nil, err
		}
		g.closers = append(g.closers, closer)

		g.backend = metrics.NewKVBackend(store, cfg.ServerName, cfg.ServerNames(), logger)
		strategy = coordinator.LeastLoaded{Backend: g.backend, Logger: logger}
		source = g.backend
	}

	g.controller = coordinator.NewController(registry, strategy, logger, recorder)
	if g.backend != nil {
		g.aggregator = coordinator.NewAggregator(registry, g.backend, logger, recorder)
		g.aggregator.Register()
	}
	g.sync = coordinator.NewPopulationSync(registry, source, cfg.SyncInterval, logger, recorder)

	g.transport = transport.NewServer(logger, reg)
	g.transport.OnConnect(g.handleConnect)
	g.transport.OnError(func(err error) {
		logger.Error("transport error", zap.Error(err))
	})
	g.transport.OnRequestStatus(g.status.StatusJSON)

	logger.Info("gateway created",
		zap.String("server", cfg.ServerName),
		zap.Int("worlds", cfg.NbWorlds),
		zap.Int("capacity", cfg.NbPlayersPerWorld),
		zap.Bool("metrics", cfg.MetricsEnabled))
	return g, nil
}

// handleConnect assigns a new session to a world and removes the player
// again when the session ends.
func (g *gateway) handleConnect(conn *transport.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), assignTimeout)
	defer cancel()

	player, err := g.controller.Assign(ctx, conn)
	if err != nil {
		return
	}
	conn.OnClose(func() {
		player.World().Remove(player.ID)
	})
}

// run serves on ln until ctx is cancelled, then shuts everything down.
func (g *gateway) run(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           g.transport.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		g.logger.Info("gateway listening", zap.String("addr", ln.Addr().String()))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutdownCtx)
		g.transport.Close()
		return err
	})

	if g.backend != nil {
		eg.Go(func() error {
			g.connectBackend(ctx)
			return nil
		})
		eg.Go(func() error {
			g.aggregator.Run(ctx)
			return nil
		})
	}

	eg.Go(func() error {
		g.sync.Start(ctx)
		return nil
	})

	err := eg.Wait()
	g.sync.Stop()
	g.close()
	g.logger.Info("gateway stopped")
	return err
}

// connectBackend retries until the store answers or ctx ends.
func (g *gateway) connectBackend(ctx context.Context) {
	for {
		err := g.backend.Connect(ctx)
		if err == nil {
			return
		}
		g.logger.Warn("metrics backend not reachable, retrying", zap.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(connectRetry):
		}
	}
}

func (g *gateway) close() {
	for i := len(g.closers) - 1; i >= 0; i-- {
		g.closers[i]()
	}
	g.closers = nil
}
