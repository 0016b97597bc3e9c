// Package coordinator implements worldgate's control plane: it decides which
// world a new connection joins, keeps every world's population figures in
// step with the shared metrics backend, and reports the per-world
// distribution.
//
// # Overview
//
// A gateway process hosts a fixed set of worlds created at startup. Several
// gateway processes may share one metrics backend, in which case each one
// owns only its own worlds but reports into, and reads back, a cluster-wide
// player total.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│         COORDINATOR                 │
//	├─────────────────────────────────────┤
//	│                                     │
//	│  ┌──────────────────────────────┐   │
//	│  │   Shard Registry             │   │
//	│  │   - Ordered worlds           │   │
//	│  │   - Build once, read many    │   │
//	│  └──────────────────────────────┘   │
//	│                                     │
//	│  ┌──────────────────────────────┐   │
//	│  │   Controller                 │   │
//	│  │   - FirstFit / LeastLoaded   │   │
//	│  │   - Rejects with NoCapacity  │   │
//	│  └──────────────────────────────┘   │
//	│                                     │
//	│  ┌──────────────────────────────┐   │
//	│  │   Population Sync            │   │
//	│  │   - Polls cluster total      │   │
//	│  │   - Broadcasts on change     │   │
//	│  └──────────────────────────────┘   │
//	│                                     │
//	│  ┌──────────────────────────────┐   │
//	│  │   Aggregator                 │   │
//	│  │   - Reacts to joins/leaves   │   │
//	│  │   - Publishes counters       │   │
//	│  └──────────────────────────────┘   │
//	│                                     │
//	│  ┌──────────────────────────────┐   │
//	│  │   Status Reporter            │   │
//	│  │   - JSON occupancy array     │   │
//	│  └──────────────────────────────┘   │
//	└─────────────────────────────────────┘
//
// # Assignment
//
// With metrics disabled the controller uses FirstFit: the first world, in
// registry order, with occupancy below capacity. With metrics enabled it uses
// LeastLoaded: the backend's open world count k limits the candidates to the
// first k worlds and the least occupied one wins, ties going to the lowest
// index. Raising k in the backend opens more worlds without a restart.
//
// If no candidate has a free seat the connection is closed with
// ErrNoCapacity. Rejected connections are not queued.
//
// # Population Figures
//
// Two producers push absolute totals into the worlds:
//
//   - PopulationSync, every second, when the backend total differs from the
//     last one it saw
//   - Aggregator, after any join or leave, with the total returned by
//     UpdatePlayerCounters
//
// Both pushes are idempotent, so their interleaving does not matter; the
// most recent push wins. A reply computed before a later change may still
// be applied. Totals are hints, not transactional snapshots.
//
// # Concurrency and Synchronization
//
//   - Registry: immutable after construction
//   - Worlds: each guards its own player list
//   - Controller: one mutex around pick + admit
//   - PopulationSync: one mutex around compare + broadcast
//   - Aggregator: one publisher goroutine, latest snapshot wins
//
// # Failure Handling
//
// Backend failures never reach a caller. A failed poll skips that tick; a
// failed publish skips that snapshot; a failed open world count makes every
// world eligible. Only ErrNoCapacity is surfaced, to the connection.
//
// # Usage Example
//
//	registry, _ := coordinator.NewWorldRegistry(cfg.NbWorlds, cfg.NbPlayersPerWorld)
//	strategy := coordinator.LeastLoaded{Backend: backend, Logger: logger}
//	controller := coordinator.NewController(registry, strategy, logger, recorder)
//
//	agg := coordinator.NewAggregator(registry, backend, logger, recorder)
//	agg.Register()
//	go agg.Run(ctx)
//
//	sync := coordinator.NewPopulationSync(registry, backend, time.Second, logger, recorder)
//	go sync.Start(ctx)
//
//	player, err := controller.Assign(ctx, conn)
//
// # See Also
//
//   - internal/shard: World and Player
//   - internal/metrics: Metrics backend
//   - internal/transport: Websocket transport
//   - cmd/coordinator: Gateway process
package coordinator
