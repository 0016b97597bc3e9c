// Package storage provides the key-value layer underneath worldgate's
// population metrics backend.
//
// # Overview
//
// The metrics backend keeps a handful of small counters (per-server player
// counts, the cluster-wide total, the open world count and the world
// distribution). Those counters live in a Store so that a single gateway can
// run entirely in memory, while several gateways sharing one cluster can
// point at the same NATS JetStream KeyValue bucket.
//
//	┌─────────────────────────────────────┐
//	│        metrics.KVBackend            │
//	└─────────────────────────────────────┘
//	                 │
//	                 ▼
//	┌─────────────────────────────────────┐
//	│        storage.Store                │
//	└─────────────────────────────────────┘
//	          │                 │
//	          ▼                 ▼
//	    ┌───────────┐    ┌─────────────┐
//	    │  Memory   │    │  NATS KV    │
//	    │  Store    │    │  Store      │
//	    └───────────┘    └─────────────┘
//
// # Implementations
//
// MemoryStore: process-local map guarded by sync.RWMutex
//   - No persistence
//   - Values are copied on the way in and out
//
// NATSStore: JetStream KeyValue bucket
//   - Shared between processes
//   - Bucket is created on first use, see EnsureBucket
//   - Keys must be valid KV keys (letters, digits, '-', '_', '.', '/', '=')
//
// # Errors
//
// Both implementations return ErrKeyNotFound for a missing key, so callers
// can treat an absent counter as zero without knowing the backend.
package storage
