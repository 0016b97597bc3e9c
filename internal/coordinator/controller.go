package coordinator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dreamware/worldgate/internal/shard"
	"github.com/dreamware/worldgate/internal/telemetry"
)

// Controller assigns incoming connections to worlds.
//
// Assignment runs in three phases. The strategy's Eligible step (which may
// query the metrics backend) runs without any lock. The Pick step and the
// seat reservation in the chosen world run under the controller mutex, so
// two assignments can never both take the last seat of a world. The world
// then announces the player (hooks, welcome, population push) after the
// mutex is released, so a slow peer socket never stalls other assignments.
//
// Thread Safety:
// Assign is safe for concurrent use.
type Controller struct {
	registry *ShardRegistry
	strategy Strategy
	recorder telemetry.Recorder
	logger   *zap.Logger

	mu sync.Mutex // Serializes pick and admit
}

// NewController creates a controller over registry. It registers
// occupancy hooks on every world: telemetry is updated on each change and,
// with the metrics-free FirstFit strategy, the world pushes its local
// population to its players.
//
// Parameters:
//   - registry: Worlds to assign across
//   - strategy: FirstFit (metrics disabled) or LeastLoaded (metrics enabled)
//   - logger: nil for no logging
//   - recorder: nil for telemetry.Nop
func NewController(registry *ShardRegistry, strategy Strategy, logger *zap.Logger, recorder telemetry.Recorder) *Controller {
	if strategy == nil {
		strategy = FirstFit{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = telemetry.NewNop()
	}

	c := &Controller{
		registry: registry,
		strategy: strategy,
		recorder: recorder,
		logger:   logger.Named("controller"),
	}

	_, local := strategy.(FirstFit)
	for _, s := range registry.All() {
		s := s
		changed := func() {
			recorder.Occupancy(s.Name(), s.PlayerCount())
			if local {
				s.UpdatePopulation(0)
			}
		}
		s.OnPlayerAdded(changed)
		s.OnPlayerRemoved(changed)
	}

	return c
}

// Assign picks a world for conn, creates the player entity and admits it.
//
// Returns:
//   - The admitted player, bound to its world
//   - ErrNoCapacity if no eligible world has a free seat; conn has been
//     closed with ErrNoCapacity as the reason and no world was changed
//   - Any other admission error, with conn closed
func (c *Controller) Assign(ctx context.Context, conn shard.Conn) (*shard.Player, error) {
	k := c.strategy.Eligible(ctx, c.registry.Len())
	candidates := c.registry.All()[:k]

	c.mu.Lock()
	idx, err := c.strategy.Pick(candidates)
	if err != nil {
		c.mu.Unlock()
		return nil, c.reject(conn, k, err)
	}

	target := candidates[idx]
	player := shard.NewPlayer(conn)
	if err := target.Admit(player); err != nil {
		c.mu.Unlock()
		if errors.Is(err, shard.ErrWorldFull) {
			err = ErrNoCapacity
		}
		return nil, c.reject(conn, k, err)
	}
	c.mu.Unlock()

	target.Announce(player)
	c.recorder.AssignmentAccepted(target.Name())
	c.logger.Debug("player assigned",
		zap.String("player", player.ID),
		zap.String("world", target.Name()),
		zap.Int("eligible", k))
	return player, nil
}

func (c *Controller) reject(conn shard.Conn, eligible int, err error) error {
	if errors.Is(err, ErrNoCapacity) {
		c.recorder.AssignmentRejected()
		c.logger.Warn("connection rejected",
			zap.Int("eligible", eligible),
			zap.Error(err))
	} else {
		c.logger.Error("connection admission failed", zap.Error(err))
	}
	if conn != nil {
		conn.Close(err)
	}
	return err
}
