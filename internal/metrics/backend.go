// Package metrics implements the population metrics backend shared by every
// gateway process of a cluster.
//
// The backend tracks, per game server, how many players are connected, the
// cluster-wide total, how many worlds an operator has opened for new traffic
// and the last published world distribution. Replies reflect the store at
// the time they were read; callers must treat them as hints that may be
// stale by the time they are applied.
package metrics

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable wraps any failure talking to the underlying store.
	ErrUnavailable = errors.New("metrics backend unavailable")

	// ErrNotReady is returned before the backend has been marked ready.
	ErrNotReady = errors.New("metrics backend not ready")

	// ErrNotSet is returned when an operator value such as the open world
	// count has never been written.
	ErrNotSet = errors.New("metrics value not set")
)

// Backend is the population metrics collaborator.
type Backend interface {
	// IsReady reports whether the backend accepts requests.
	IsReady() bool

	// Ready is closed once the backend becomes ready.
	Ready() <-chan struct{}

	// TotalPlayers returns the last published cluster-wide player total.
	TotalPlayers(ctx context.Context) (int, error)

	// OpenWorldCount returns how many worlds, from the front of this
	// server's registry, are eligible for new connections.
	OpenWorldCount(ctx context.Context) (int, error)

	// UpdatePlayerCounters records this server's player count (the sum of
	// counts), recomputes the total over every configured game server,
	// publishes it and returns it.
	UpdatePlayerCounters(ctx context.Context, counts []int) (int, error)

	// UpdateWorldDistribution publishes this server's per-world occupancy.
	UpdateWorldDistribution(ctx context.Context, distribution []int) error
}
