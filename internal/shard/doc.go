// Package shard implements a game world, the unit worldgate balances players
// across, together with the player entity bound to it.
//
// # Overview
//
// A World has a fixed name and capacity, a list of connected players and a
// small set of hooks. The simulation that runs inside a world is not part of
// this package; a World only tracks who is connected and relays population
// updates to them.
//
//	┌─────────────────────────────────────┐
//	│            WORLD                    │
//	├─────────────────────────────────────┤
//	│  name, capacity, state              │
//	│  players []*Player                  │
//	│  onAdded / onRemoved hooks          │
//	│  onConnect callback                 │
//	│  last cluster total                 │
//	└─────────────────────────────────────┘
//
// # Lifecycle
//
//	NewWorld ──► Run(mapPath) ──► Connect / Remove / UpdatePopulation ...
//
// A world lives for the whole process; there is no shutdown path.
//
// # Occupancy
//
// PlayerCount is the length of the player list. Admit (and Connect, which is
// Admit followed by Announce) refuses a player
// with ErrWorldFull once the list has reached capacity, so
// 0 ≤ PlayerCount ≤ Capacity always holds. Remove is called by the transport
// layer when a connection closes.
//
// # Hooks
//
// OnPlayerAdded and OnPlayerRemoved hooks fire after the change is applied
// and after the world lock has been released, so a hook may read
// PlayerCount of this or any other world. The coordinator's population
// aggregator is registered through these hooks.
//
// # Messages
//
// Players receive two control messages:
//
//	{"type":"welcome","world":"world1","id":"<uuid>","players":3}
//	{"type":"population","world":3,"total":42}
//
// A population message reports the world's own occupancy and the cluster
// total; when the total is unknown the occupancy is reported for both.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package shard
