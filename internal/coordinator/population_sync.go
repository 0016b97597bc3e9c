// Package coordinator provides worldgate's balancing core.
// This file implements the periodic population sync with the metrics backend.
package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/metrics"
	"github.com/dreamware/worldgate/internal/telemetry"
)

// DefaultSyncInterval is how often the cluster total is polled.
const DefaultSyncInterval = time.Second

// TotalPlayersSource is the part of metrics.Backend PopulationSync needs.
type TotalPlayersSource interface {
	IsReady() bool
	TotalPlayers(ctx context.Context) (int, error)
}

// Compile-time assertion that every metrics.Backend can feed the sync loop.
var _ TotalPlayersSource = (metrics.Backend)(nil)

// PopulationSync polls the metrics backend for the cluster-wide player
// total and pushes it to every world when it changes.
//
// Each tick issues an independent request in its own goroutine, so a slow
// reply never delays the next tick. Replies are applied in the order they
// arrive; a late reply may overwrite a newer total, which the next tick
// corrects. Worlds must treat pushed totals as hints.
//
// Thread Safety: All methods are safe for concurrent access.
type PopulationSync struct {
	registry *ShardRegistry
	backend  TotalPlayersSource // nil when metrics are disabled
	recorder telemetry.Recorder
	logger   *zap.Logger
	interval time.Duration

	mu        sync.Mutex // Protects lastTotal and serializes broadcasts
	lastTotal int        // Last total observed from the backend

	ctx     context.Context    // Internal cancellation
	cancel  context.CancelFunc // Cancel function for Stop
	runMu   sync.Mutex         // Orders wg.Add against Stop
	stopped bool               // Set by Stop; no work starts afterwards
	wg      sync.WaitGroup     // Loop and in-flight requests
}

// NewPopulationSync creates a sync loop. A nil backend makes every tick a
// no-op; an interval <= 0 uses DefaultSyncInterval.
//
// Example:
//
//	sync := NewPopulationSync(registry, backend, time.Second, logger, nil)
//	go sync.Start(ctx)
//	defer sync.Stop()
func NewPopulationSync(registry *ShardRegistry, backend TotalPlayersSource, interval time.Duration, logger *zap.Logger, recorder telemetry.Recorder) *PopulationSync {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = telemetry.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &PopulationSync{
		registry: registry,
		backend:  backend,
		recorder: recorder,
		logger:   logger.Named("population-sync"),
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start runs the ticker loop in the current goroutine until ctx is
// cancelled or Stop is called. Start after Stop returns immediately.
func (s *PopulationSync) Start(ctx context.Context) {
	if !s.begin() {
		return
	}
	defer s.wg.Done()

	if ctx == nil {
		ctx = s.ctx
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("population sync started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ticker.C:
			s.Tick(ctx)
		case <-ctx.Done():
			s.logger.Debug("population sync stopping due to context cancellation")
			return
		case <-s.ctx.Done():
			s.logger.Debug("population sync stopping due to internal cancellation")
			return
		}
	}
}

// Stop cancels the loop and waits for it and any in-flight request.
func (s *PopulationSync) Stop() {
	s.runMu.Lock()
	s.stopped = true
	s.runMu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("population sync stopped")
}

// Tick starts one poll in the background and returns immediately. The
// request is abandoned when ctx is cancelled or Stop is called.
func (s *PopulationSync) Tick(ctx context.Context) {
	if !s.enabled() || !s.begin() {
		return
	}
	reqCtx, cancel := context.WithCancel(ctx)
	unlink := context.AfterFunc(s.ctx, cancel)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer unlink()
		_, _ = s.Sync(reqCtx)
	}()
}

// begin registers one unit of work with wg unless Stop has been called.
func (s *PopulationSync) begin() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.stopped {
		return false
	}
	s.wg.Add(1)
	return true
}

// Sync performs one poll synchronously.
//
// Returns:
//   - changed: true if a new total was broadcast to every world
//   - err: the backend error, if any; callers on the tick path ignore it
func (s *PopulationSync) Sync(ctx context.Context) (bool, error) {
	if !s.enabled() {
		return false, nil
	}

	total, err := s.backend.TotalPlayers(ctx)
	if err != nil {
		s.logger.Debug("total players unavailable", zap.Error(err))
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if total == s.lastTotal {
		return false, nil
	}
	s.lastTotal = total
	s.registry.Broadcast(total)
	s.recorder.PopulationBroadcast(total)

	s.logger.Debug("population total changed", zap.Int("total", total))
	return true, nil
}

// LastTotal returns the last total observed from the backend.
func (s *PopulationSync) LastTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTotal
}

func (s *PopulationSync) enabled() bool {
	return s.backend != nil && s.backend.IsReady()
}
