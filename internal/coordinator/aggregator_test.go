package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/worldgate/internal/shard"
)

// TestAggregatorHandleChange checks the snapshot matches the counters
func TestAggregatorHandleChange(t *testing.T) {
	a, b := newFakeShard("world1", 5, 2), newFakeShard("world2", 5, 3)
	agg := NewAggregator(fakeRegistry(t, a, b), newFakeBackend(), nil, nil)

	snapshot := agg.HandleChange()
	assert.Equal(t, Snapshot{2, 3}, snapshot)
	assert.Equal(t, a.PlayerCount()+b.PlayerCount(), snapshot.Sum())

	// A second change replaces the pending snapshot without blocking.
	b.setCount(1)
	snapshot = agg.HandleChange()
	assert.Equal(t, Snapshot{2, 1}, snapshot)

	agg.mu.Lock()
	assert.Equal(t, Snapshot{2, 1}, agg.pending)
	agg.mu.Unlock()
}

// TestAggregatorPublish tests one round of backend updates
func TestAggregatorPublish(t *testing.T) {
	a, b := newFakeShard("world1", 5, 0), newFakeShard("world2", 5, 0)
	backend := newFakeBackend()
	backend.clusterExtra = 6
	agg := NewAggregator(fakeRegistry(t, a, b), backend, nil, nil)

	total, err := agg.Publish(context.Background(), Snapshot{1, 2})
	require.NoError(t, err)

	assert.Equal(t, 9, total)
	assert.Equal(t, [][]int{{1, 2}}, backend.counterCalls)
	assert.Equal(t, []int{1, 2}, backend.lastDistribution())
	assert.Equal(t, []int{9}, a.populationUpdates())
	assert.Equal(t, []int{9}, b.populationUpdates())
}

// TestAggregatorPublishCounterFailure skips the broadcast and distribution
func TestAggregatorPublishCounterFailure(t *testing.T) {
	a := newFakeShard("world1", 5, 0)
	backend := newFakeBackend()
	backend.countersErr = errors.New("backend down")
	agg := NewAggregator(fakeRegistry(t, a), backend, nil, nil)

	_, err := agg.Publish(context.Background(), Snapshot{1})
	assert.Error(t, err)
	assert.Empty(t, a.populationUpdates())
	assert.Nil(t, backend.lastDistribution())
}

// TestAggregatorRun wires the aggregator to real worlds and checks that a
// join reaches the backend and comes back as a broadcast.
func TestAggregatorRun(t *testing.T) {
	registry, err := NewWorldRegistry(2, 3)
	require.NoError(t, err)
	backend := newFakeBackend()
	backend.clusterExtra = 10

	agg := NewAggregator(registry, backend, nil, nil)
	agg.Register()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Readiness publishes the initial, empty distribution.
	require.Eventually(t, func() bool {
		return backend.counterCallCount() >= 1
	}, time.Second, 5*time.Millisecond)

	w := registry.At(1).(*shard.World)
	conn := &fakeConn{}
	require.NoError(t, w.Connect(shard.NewPlayer(conn)))

	require.Eventually(t, func() bool {
		d := backend.lastDistribution()
		return len(d) == 2 && d[1] == 1
	}, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		total, ok := w.Population()
		return ok && total == 11
	}, time.Second, 5*time.Millisecond)
}

// TestAggregatorRunCoalesces checks that a burst of changes ends with the
// latest snapshot published.
func TestAggregatorRunCoalesces(t *testing.T) {
	s := newFakeShard("world1", 100, 0)
	backend := newFakeBackend()
	agg := NewAggregator(fakeRegistry(t, s), backend, nil, nil)
	agg.Register()

	for i := 0; i < 20; i++ {
		s.setCount(i + 1)
		agg.HandleChange()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		d := backend.lastDistribution()
		return len(d) == 1 && d[0] == 20
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	assert.LessOrEqual(t, backend.counterCallCount(), 2, "burst must be coalesced")
}
