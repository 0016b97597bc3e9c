package shard

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/slices"
)

// ErrWorldFull is returned by Connect when the world is at capacity.
var ErrWorldFull = errors.New("world is full")

// WorldState represents the current state of a world
type WorldState string

const (
	// WorldStateIdle means the world was created but Run has not been called
	WorldStateIdle WorldState = "idle"
	// WorldStateRunning means the world accepts players
	WorldStateRunning WorldState = "running"
)

// World is one independently simulated game instance. It owns its player
// list and occupancy counter; the coordinator only reads the counter and
// hands new players in through Connect.
type World struct {
	name     string
	capacity int

	mu       sync.RWMutex // Protects the fields below
	state    WorldState
	mapPath  string
	players  []*Player
	total    int  // Last cluster total pushed through UpdatePopulation
	hasTotal bool // Whether total has been set

	hookMu    sync.RWMutex
	onAdded   []func()
	onRemoved []func()
	onConnect func(*Player)

	Stats *WorldStats
}

// WorldStats tracks lifetime counters for a world
type WorldStats struct {
	Joins       uint64 // Players admitted
	Leaves      uint64 // Players removed
	Broadcasts  uint64 // Population messages pushed
	SendFailure uint64 // Population messages that failed to send
}

// WorldInfo is a point-in-time view of a world
type WorldInfo struct {
	Name     string     `json:"name"`
	Capacity int        `json:"capacity"`
	Players  int        `json:"players"`
	State    WorldState `json:"state"`
}

// NewWorld creates an idle world with the given name and player capacity.
func NewWorld(name string, capacity int) *World {
	return &World{
		name:     name,
		capacity: capacity,
		state:    WorldStateIdle,
		Stats:    &WorldStats{},
	}
}

// Name returns the world name ("world1", "world2", ...).
func (w *World) Name() string { return w.name }

// Capacity returns the configured maximum number of players.
func (w *World) Capacity() int { return w.capacity }

// PlayerCount returns the current occupancy.
func (w *World) PlayerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// Run starts the world on the given map. Map contents are owned by the
// simulation; here the file only has to be readable.
func (w *World) Run(mapPath string) error {
	if mapPath != "" {
		if _, err := os.Stat(mapPath); err != nil {
			return fmt.Errorf("world %s: map %s: %w", w.name, mapPath, err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.mapPath = mapPath
	w.state = WorldStateRunning
	return nil
}

// State returns the current world state
func (w *World) State() WorldState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// OnPlayerAdded registers a hook fired after a player joins.
func (w *World) OnPlayerAdded(fn func()) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.onAdded = append(w.onAdded, fn)
}

// OnPlayerRemoved registers a hook fired after a player leaves.
func (w *World) OnPlayerRemoved(fn func()) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.onRemoved = append(w.onRemoved, fn)
}

// OnConnect sets the callback that receives every admitted player.
func (w *World) OnConnect(fn func(*Player)) {
	w.hookMu.Lock()
	defer w.hookMu.Unlock()
	w.onConnect = fn
}

// Connect admits p and announces it. It is Admit followed by Announce.
func (w *World) Connect(p *Player) error {
	if err := w.Admit(p); err != nil {
		return err
	}
	w.Announce(p)
	return nil
}

// Admit reserves a seat for p and binds it to the world. No hook runs and
// nothing is sent to any player.
func (w *World) Admit(p *Player) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.players) >= w.capacity {
		return fmt.Errorf("world %s: %w", w.name, ErrWorldFull)
	}
	p.world = w
	w.players = append(w.players, p)
	atomic.AddUint64(&w.Stats.Joins, 1)
	return nil
}

// Announce runs the added hooks and the connect callback for an admitted
// player, then sends it the welcome message. Player sends may block on the
// network, so callers must not hold locks that other admissions wait on.
func (w *World) Announce(p *Player) {
	w.hookMu.RLock()
	added := slices.Clone(w.onAdded)
	connect := w.onConnect
	w.hookMu.RUnlock()

	for _, fn := range added {
		fn()
	}
	if connect != nil {
		connect(p)
	}

	_ = p.Send(WelcomeMessage{Type: "welcome", World: w.name, ID: p.ID, Players: w.PlayerCount()})
}

// Remove unbinds the player with id. It reports whether the player was
// found; removed hooks fire only in that case.
func (w *World) Remove(id string) bool {
	w.mu.Lock()
	idx := slices.IndexFunc(w.players, func(p *Player) bool { return p.ID == id })
	if idx < 0 {
		w.mu.Unlock()
		return false
	}
	w.players = slices.Delete(w.players, idx, idx+1)
	w.mu.Unlock()

	atomic.AddUint64(&w.Stats.Leaves, 1)

	w.hookMu.RLock()
	removed := slices.Clone(w.onRemoved)
	w.hookMu.RUnlock()

	for _, fn := range removed {
		fn()
	}
	return true
}

// Players returns a copy of the connected players.
func (w *World) Players() []*Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.players)
}

// UpdatePopulation pushes a population message to every player of the
// world. A positive total is the cluster-wide count and is remembered;
// zero or less means "unknown" and the world's own occupancy is reported
// as the total.
func (w *World) UpdatePopulation(total int) {
	w.mu.Lock()
	occupancy := len(w.players)
	reported := occupancy
	if total > 0 {
		w.total = total
		w.hasTotal = true
		reported = total
	}
	players := slices.Clone(w.players)
	w.mu.Unlock()

	atomic.AddUint64(&w.Stats.Broadcasts, 1)

	msg := PopulationMessage{Type: "population", World: occupancy, Total: reported}
	for _, p := range players {
		if err := p.Send(msg); err != nil {
			atomic.AddUint64(&w.Stats.SendFailure, 1)
		}
	}
}

// Population returns the last cluster total received and whether one has
// been received at all.
func (w *World) Population() (int, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.total, w.hasTotal
}

// Info returns metadata about the world
func (w *World) Info() WorldInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return WorldInfo{
		Name:     w.name,
		Capacity: w.capacity,
		Players:  len(w.players),
		State:    w.state,
	}
}
