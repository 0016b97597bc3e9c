package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/dreamware/worldgate/internal/storage"
)

// Key layout in the shared store.
const (
	keyTotalPlayers    = "total_players"
	prefixPlayerCount  = "player_count."
	prefixWorldCount   = "world_count."
	prefixDistribution = "world_distribution."
)

// KVBackend implements Backend over a storage.Store.
type KVBackend struct {
	store   storage.Store
	server  string   // Name of this gateway process
	servers []string // Every game server sharing the store, including this one
	logger  *zap.Logger

	ready     chan struct{}
	readyOnce sync.Once
}

// NewKVBackend creates a backend for server. servers lists every game
// server whose player counter contributes to the cluster total; server is
// added when missing.
func NewKVBackend(store storage.Store, server string, servers []string, logger *zap.Logger) *KVBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	all := slices.Clone(servers)
	if !slices.Contains(all, server) {
		all = append(all, server)
	}
	return &KVBackend{
		store:   store,
		server:  server,
		servers: all,
		logger:  logger.Named("metrics"),
		ready:   make(chan struct{}),
	}
}

// Connect probes the store and marks the backend ready on success.
func (b *KVBackend) Connect(ctx context.Context) error {
	if _, err := b.store.Get(ctx, keyTotalPlayers); err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	b.MarkReady()
	return nil
}

// MarkReady flips the backend to ready. Safe to call more than once.
func (b *KVBackend) MarkReady() {
	b.readyOnce.Do(func() {
		close(b.ready)
		b.logger.Info("metrics backend ready", zap.String("server", b.server))
	})
}

// IsReady reports whether Connect or MarkReady has succeeded.
func (b *KVBackend) IsReady() bool {
	select {
	case <-b.ready:
		return true
	default:
		return false
	}
}

// Ready is closed once the backend is ready.
func (b *KVBackend) Ready() <-chan struct{} {
	return b.ready
}

// Servers returns the game servers contributing to the total.
func (b *KVBackend) Servers() []string {
	return slices.Clone(b.servers)
}

// TotalPlayers returns the published cluster total. A total that was never
// published reads as zero.
func (b *KVBackend) TotalPlayers(ctx context.Context) (int, error) {
	if !b.IsReady() {
		return 0, ErrNotReady
	}
	total, err := b.readInt(ctx, keyTotalPlayers)
	if errors.Is(err, ErrNotSet) {
		return 0, nil
	}
	return total, err
}

// OpenWorldCount returns the operator-set open world count for this server.
// ErrNotSet is returned when no count has been written.
func (b *KVBackend) OpenWorldCount(ctx context.Context) (int, error) {
	if !b.IsReady() {
		return 0, ErrNotReady
	}
	return b.readInt(ctx, prefixWorldCount+b.server)
}

// SetOpenWorldCount writes the open world count for server.
func (b *KVBackend) SetOpenWorldCount(ctx context.Context, server string, n int) error {
	if n < 0 {
		return fmt.Errorf("open world count must be >= 0, got %d", n)
	}
	return b.writeInt(ctx, prefixWorldCount+server, n)
}

// UpdatePlayerCounters stores this server's count, sums the counter of
// every configured server, publishes the total and returns it.
func (b *KVBackend) UpdatePlayerCounters(ctx context.Context, counts []int) (int, error) {
	if !b.IsReady() {
		return 0, ErrNotReady
	}

	local := 0
	for _, c := range counts {
		local += c
	}
	if err := b.writeInt(ctx, prefixPlayerCount+b.server, local); err != nil {
		return 0, err
	}

	total := 0
	for _, server := range b.servers {
		n, err := b.readInt(ctx, prefixPlayerCount+server)
		switch {
		case errors.Is(err, ErrNotSet):
			// Server has not published yet.
		case err != nil:
			return 0, err
		default:
			total += n
		}
	}

	if err := b.writeInt(ctx, keyTotalPlayers, total); err != nil {
		return 0, err
	}

	b.logger.Debug("player counters updated",
		zap.Int("local", local),
		zap.Int("total", total))
	return total, nil
}

// UpdateWorldDistribution stores distribution as a JSON array.
func (b *KVBackend) UpdateWorldDistribution(ctx context.Context, distribution []int) error {
	if !b.IsReady() {
		return ErrNotReady
	}
	if distribution == nil {
		distribution = []int{}
	}
	data, err := json.Marshal(distribution)
	if err != nil {
		return err
	}
	if err := b.store.Put(ctx, prefixDistribution+b.server, data); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// WorldDistribution reads the last distribution published by server.
func (b *KVBackend) WorldDistribution(ctx context.Context, server string) ([]int, error) {
	data, err := b.store.Get(ctx, prefixDistribution+server)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, ErrNotSet
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var distribution []int
	if err := json.Unmarshal(data, &distribution); err != nil {
		return nil, fmt.Errorf("decode distribution for %s: %w", server, err)
	}
	return distribution, nil
}

func (b *KVBackend) readInt(ctx context.Context, key string) (int, error) {
	data, err := b.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return 0, ErrNotSet
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", key, err)
	}
	return n, nil
}

func (b *KVBackend) writeInt(ctx context.Context, key string, n int) error {
	if err := b.store.Put(ctx, key, []byte(strconv.Itoa(n))); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
