package coordinator

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/dreamware/worldgate/internal/metrics"
	"github.com/dreamware/worldgate/internal/shard"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeShard is a Shard with a settable occupancy that records pushes.
type fakeShard struct {
	name     string
	capacity int

	mu        sync.Mutex
	count     int
	updates   []int
	onAdded   []func()
	onRemoved []func()
	runWith   string
	runErr    error
}

func newFakeShard(name string, capacity, count int) *fakeShard {
	return &fakeShard{name: name, capacity: capacity, count: count}
}

func (f *fakeShard) Name() string  { return f.name }
func (f *fakeShard) Capacity() int { return f.capacity }

func (f *fakeShard) PlayerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

func (f *fakeShard) setCount(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.count = n
}

func (f *fakeShard) Run(mapPath string) error {
	f.runWith = mapPath
	return f.runErr
}

func (f *fakeShard) UpdatePopulation(total int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, total)
}

func (f *fakeShard) populationUpdates() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.updates...)
}

func (f *fakeShard) Admit(p *shard.Player) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.count >= f.capacity {
		return shard.ErrWorldFull
	}
	f.count++
	return nil
}

func (f *fakeShard) Announce(p *shard.Player) {
	f.mu.Lock()
	hooks := append([]func(){}, f.onAdded...)
	f.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func (f *fakeShard) OnPlayerAdded(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onAdded = append(f.onAdded, fn)
}

func (f *fakeShard) OnPlayerRemoved(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRemoved = append(f.onRemoved, fn)
}

// remove simulates a disconnect handled by the transport.
func (f *fakeShard) remove() {
	f.mu.Lock()
	f.count--
	hooks := append([]func(){}, f.onRemoved...)
	f.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

func fakeRegistry(t *testing.T, shards ...*fakeShard) *ShardRegistry {
	t.Helper()
	list := make([]Shard, len(shards))
	for i, s := range shards {
		list[i] = s
	}
	registry, err := NewShardRegistry(list...)
	if err != nil {
		t.Fatalf("NewShardRegistry: %v", err)
	}
	return registry
}

// fakeBackend is an in-memory metrics.Backend with settable replies.
type fakeBackend struct {
	mu             sync.Mutex
	ready          bool
	readyCh        chan struct{}
	total          int
	totalErr       error
	openWorlds     int
	openErr        error
	clusterExtra   int // Players hosted by other servers
	counterCalls   [][]int
	distributions  [][]int
	countersErr    error
	totalRequested int
	block          chan struct{} // When set, TotalPlayers waits on it
}

var _ metrics.Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	ch := make(chan struct{})
	close(ch)
	return &fakeBackend{ready: true, readyCh: ch}
}

func (b *fakeBackend) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

func (b *fakeBackend) Ready() <-chan struct{} { return b.readyCh }

func (b *fakeBackend) TotalPlayers(ctx context.Context) (int, error) {
	b.mu.Lock()
	b.totalRequested++
	block := b.block
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total, b.totalErr
}

func (b *fakeBackend) setTotal(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total = n
}

func (b *fakeBackend) OpenWorldCount(context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.openWorlds, b.openErr
}

func (b *fakeBackend) UpdatePlayerCounters(_ context.Context, counts []int) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.countersErr != nil {
		return 0, b.countersErr
	}
	b.counterCalls = append(b.counterCalls, append([]int(nil), counts...))
	total := b.clusterExtra
	for _, c := range counts {
		total += c
	}
	b.total = total
	return total, nil
}

func (b *fakeBackend) UpdateWorldDistribution(_ context.Context, distribution []int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.distributions = append(b.distributions, append([]int(nil), distribution...))
	return nil
}

func (b *fakeBackend) lastDistribution() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.distributions) == 0 {
		return nil
	}
	return b.distributions[len(b.distributions)-1]
}

func (b *fakeBackend) counterCallCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.counterCalls)
}

// fakeConn records the close reason.
type fakeConn struct {
	mu     sync.Mutex
	closed bool
	reason error
	sent   []any
}

func (c *fakeConn) ID() string { return "fake" }

func (c *fakeConn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) Close(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.reason = reason
}

// stallingConn accepts the first free sends, then blocks every later Send
// until release is closed. It stands in for a peer with a full socket.
type stallingConn struct {
	fakeConn
	free    int
	stalled chan struct{} // closed when the first send blocks
	release chan struct{}
	once    sync.Once
}

func newStallingConn(free int) *stallingConn {
	return &stallingConn{free: free, stalled: make(chan struct{}), release: make(chan struct{})}
}

func (c *stallingConn) Send(msg any) error {
	c.mu.Lock()
	if len(c.sent) < c.free {
		c.sent = append(c.sent, msg)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.once.Do(func() { close(c.stalled) })
	<-c.release
	return nil
}
