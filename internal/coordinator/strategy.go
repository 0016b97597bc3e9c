package coordinator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/metrics"
)

// Strategy decides which world receives a new connection. Selection is
// split in two so that the controller can run Eligible, which may do
// network I/O, before it takes its lock, and Pick under the lock.
type Strategy interface {
	// Eligible returns how many worlds, from the front of a registry of
	// n worlds, may receive new traffic. The result is in [0, n].
	Eligible(ctx context.Context, n int) int

	// Pick returns the index within candidates of the chosen world, or
	// ErrNoCapacity.
	Pick(candidates []Shard) (int, error)
}

// FirstFit is the metrics-free strategy: every world is eligible and the
// first one, in registry order, with a free seat is chosen.
type FirstFit struct{}

// Eligible makes every world eligible.
func (FirstFit) Eligible(_ context.Context, n int) int { return n }

// Pick returns the lowest index whose occupancy is below capacity.
func (FirstFit) Pick(candidates []Shard) (int, error) {
	for i, s := range candidates {
		if s.PlayerCount() < s.Capacity() {
			return i, nil
		}
	}
	return -1, ErrNoCapacity
}

// OpenWorldCounter is the part of metrics.Backend LeastLoaded needs.
type OpenWorldCounter interface {
	OpenWorldCount(ctx context.Context) (int, error)
}

// LeastLoaded is the metrics-backed strategy: only the first k worlds are
// eligible, k being the open world count held by the backend, and the
// least occupied of them wins. Ties go to the lowest index.
type LeastLoaded struct {
	Backend OpenWorldCounter
	Logger  *zap.Logger
}

// Eligible queries the open world count. When the backend cannot answer
// or no count has been set, every world is eligible. Counts above n are
// clamped to n.
func (l LeastLoaded) Eligible(ctx context.Context, n int) int {
	if l.Backend == nil {
		return n
	}

	k, err := l.Backend.OpenWorldCount(ctx)
	if err != nil {
		if l.Logger != nil && !errors.Is(err, metrics.ErrNotSet) {
			l.Logger.Debug("open world count unavailable, using all worlds", zap.Error(err))
		}
		return n
	}

	switch {
	case k < 0:
		return 0
	case k > n:
		return n
	default:
		return k
	}
}

// Pick returns the index of the least occupied candidate. A world already
// at capacity is never chosen.
func (LeastLoaded) Pick(candidates []Shard) (int, error) {
	best := -1
	bestCount := 0
	for i, s := range candidates {
		count := s.PlayerCount()
		if best < 0 || count < bestCount {
			best, bestCount = i, count
		}
	}
	if best < 0 || bestCount >= candidates[best].Capacity() {
		return -1, ErrNoCapacity
	}
	return best, nil
}
