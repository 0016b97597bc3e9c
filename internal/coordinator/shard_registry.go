// Package coordinator implements worldgate's world assignment and population
// balancing. See doc.go for complete package documentation.
package coordinator

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/dreamware/worldgate/internal/shard"
)

// Shard is the world collaborator the coordinator balances across.
// *shard.World is the production implementation.
type Shard interface {
	Name() string
	Capacity() int
	PlayerCount() int
	Run(mapPath string) error
	UpdatePopulation(total int)
	Admit(p *shard.Player) error
	Announce(p *shard.Player)
	OnPlayerAdded(fn func())
	OnPlayerRemoved(fn func())
}

// Compile-time assertion that *shard.World satisfies Shard.
var _ Shard = (*shard.World)(nil)

// Snapshot is the per-world occupancy, index-aligned with registry order.
// Snapshots are rebuilt on demand and never modified after creation.
type Snapshot []int

// Sum returns the total occupancy represented by the snapshot.
func (s Snapshot) Sum() int {
	total := 0
	for _, n := range s {
		total += n
	}
	return total
}

// ShardRegistry holds the fixed, ordered collection of worlds created at
// startup. Registry order is significant: the open world count selects
// worlds from the front, and ties in least-loaded selection go to the
// lowest index.
//
// Architecture:
//
//	┌─────────────────────────────────────┐
//	│         ShardRegistry               │
//	├─────────────────────────────────────┤
//	│  shards: [world1, world2, ...]      │
//	│  index 0 is the first world opened  │
//	├─────────────────────────────────────┤
//	│  Occupancy() → [3, 0, 1]            │
//	└─────────────────────────────────────┘
//
// Concurrency Model:
//   - The shard list is written once in the constructor
//   - All later access is read-only and needs no lock
//   - Each world guards its own occupancy
//
// Performance Characteristics:
//   - At: O(1)
//   - Lookup: O(n) linear scan by name
//   - Occupancy: O(n), one PlayerCount call per world
type ShardRegistry struct {
	// shards is the build-once list of worlds in registry order.
	shards []Shard
}

// NewShardRegistry creates a registry over shards in the given order.
//
// Parameters:
//   - shards: Worlds in registry order; names must be unique and non-empty
//
// Returns:
//   - Initialized ShardRegistry
//   - Error if a shard is nil, unnamed, or duplicated
//
// Example:
//
//	registry, err := NewShardRegistry(shard.NewWorld("world1", 200), shard.NewWorld("world2", 200))
func NewShardRegistry(shards ...Shard) (*ShardRegistry, error) {
	seen := make(map[string]bool, len(shards))
	for i, s := range shards {
		if s == nil {
			return nil, fmt.Errorf("shard %d is nil", i)
		}
		if s.Name() == "" {
			return nil, fmt.Errorf("shard %d has no name", i)
		}
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate shard name %q", s.Name())
		}
		seen[s.Name()] = true
	}

	return &ShardRegistry{shards: slices.Clone(shards)}, nil
}

// NewWorldRegistry creates count worlds named world1..worldN with the same
// capacity and returns them in a registry.
//
// Parameters:
//   - count: Number of worlds (must be > 0)
//   - capacity: Players per world (must be > 0)
//
// Example:
//
//	registry, err := NewWorldRegistry(5, 200)
func NewWorldRegistry(count, capacity int) (*ShardRegistry, error) {
	if count <= 0 {
		return nil, errors.New("world count must be > 0")
	}
	if capacity <= 0 {
		return nil, errors.New("players per world must be > 0")
	}

	shards := make([]Shard, 0, count)
	for i := 0; i < count; i++ {
		shards = append(shards, shard.NewWorld(fmt.Sprintf("world%d", i+1), capacity))
	}
	return NewShardRegistry(shards...)
}

// Len returns the number of worlds in the registry.
func (r *ShardRegistry) Len() int {
	return len(r.shards)
}

// At returns the world at registry index i.
// Panics if i is out of range, like a slice index.
func (r *ShardRegistry) At(i int) Shard {
	return r.shards[i]
}

// All returns the worlds in registry order.
// The returned slice is a copy; the worlds themselves are shared.
func (r *ShardRegistry) All() []Shard {
	return slices.Clone(r.shards)
}

// Lookup finds a world by name and returns it with its registry index.
//
// Returns:
//   - The world, its index and true if found
//   - nil, -1 and false otherwise
func (r *ShardRegistry) Lookup(name string) (Shard, int, bool) {
	idx := slices.IndexFunc(r.shards, func(s Shard) bool { return s.Name() == name })
	if idx < 0 {
		return nil, -1, false
	}
	return r.shards[idx], idx, true
}

// Run starts every world on mapPath in registry order, stopping at the
// first failure.
func (r *ShardRegistry) Run(mapPath string) error {
	for _, s := range r.shards {
		if err := s.Run(mapPath); err != nil {
			return fmt.Errorf("run %s: %w", s.Name(), err)
		}
	}
	return nil
}

// Occupancy builds a fresh snapshot of every world's player count.
// An empty registry yields an empty, non-nil snapshot.
func (r *ShardRegistry) Occupancy() Snapshot {
	snapshot := make(Snapshot, len(r.shards))
	for i, s := range r.shards {
		snapshot[i] = s.PlayerCount()
	}
	return snapshot
}

// Broadcast pushes total to every world through UpdatePopulation.
func (r *ShardRegistry) Broadcast(total int) {
	for _, s := range r.shards {
		s.UpdatePopulation(total)
	}
}
