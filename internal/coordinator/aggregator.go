package coordinator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/metrics"
	"github.com/dreamware/worldgate/internal/telemetry"
)

// DefaultPublishTimeout bounds one round of backend updates.
const DefaultPublishTimeout = 5 * time.Second

// Aggregator reacts to occupancy changes in any world. It computes the
// snapshot synchronously on the triggering event and hands it to a single
// publisher goroutine, which reconciles the cluster total through the
// metrics backend, pushes that total to every world and republishes the
// world distribution.
//
// Snapshots carry absolute values, so when changes arrive faster than the
// backend answers only the most recent pending snapshot is published.
//
// It is only created when a metrics backend is configured.
type Aggregator struct {
	registry *ShardRegistry
	backend  metrics.Backend
	recorder telemetry.Recorder
	logger   *zap.Logger
	timeout  time.Duration

	mu      sync.Mutex
	pending Snapshot // Latest snapshot not yet published, nil if none
	notify  chan struct{}
}

// NewAggregator creates an aggregator. Call Register to subscribe it to
// the worlds and Run to start publishing.
func NewAggregator(registry *ShardRegistry, backend metrics.Backend, logger *zap.Logger, recorder telemetry.Recorder) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = telemetry.NewNop()
	}
	return &Aggregator{
		registry: registry,
		backend:  backend,
		recorder: recorder,
		logger:   logger.Named("aggregator"),
		timeout:  DefaultPublishTimeout,
		notify:   make(chan struct{}, 1),
	}
}

// Register subscribes HandleChange to every world's added and removed hooks.
func (a *Aggregator) Register() {
	for _, s := range a.registry.All() {
		s.OnPlayerAdded(func() { a.HandleChange() })
		s.OnPlayerRemoved(func() { a.HandleChange() })
	}
}

// HandleChange snapshots every world's occupancy, queues the snapshot for
// publishing and returns it. It never blocks on the backend.
func (a *Aggregator) HandleChange() Snapshot {
	snapshot := a.registry.Occupancy()

	a.mu.Lock()
	a.pending = snapshot
	a.mu.Unlock()

	select {
	case a.notify <- struct{}{}:
	default:
		// A publish is already queued; it will pick up this snapshot.
	}
	return snapshot
}

// Run publishes queued snapshots until ctx is cancelled. Once the backend
// reports ready, an initial snapshot is published even if no world has
// changed yet.
func (a *Aggregator) Run(ctx context.Context) {
	ready := a.backend.Ready()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ready:
			ready = nil
			a.HandleChange()
		case <-a.notify:
			a.mu.Lock()
			snapshot := a.pending
			a.pending = nil
			a.mu.Unlock()

			if snapshot != nil {
				a.publish(ctx, snapshot)
			}
		}
	}
}

// Publish performs one synchronous round of backend updates for snapshot.
//
// Returns:
//   - The cluster total reported by the backend
//   - The first backend error; later steps are skipped
func (a *Aggregator) Publish(ctx context.Context, snapshot Snapshot) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	total, err := a.backend.UpdatePlayerCounters(ctx, snapshot)
	if err != nil {
		return 0, err
	}
	a.registry.Broadcast(total)
	a.recorder.PopulationBroadcast(total)

	if err := a.backend.UpdateWorldDistribution(ctx, snapshot); err != nil {
		return total, err
	}
	return total, nil
}

func (a *Aggregator) publish(ctx context.Context, snapshot Snapshot) {
	total, err := a.Publish(ctx, snapshot)
	if err != nil {
		a.logger.Debug("population publish skipped", zap.Error(err))
		return
	}
	a.logger.Debug("population published",
		zap.Int("local", snapshot.Sum()),
		zap.Int("total", total),
		zap.Ints("distribution", snapshot))
}
