package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.NbWorlds < 1 {
		return errors.New("nb_worlds must be >= 1")
	}
	if c.NbPlayersPerWorld < 1 {
		return errors.New("nb_players_per_world must be >= 1")
	}
	if c.SyncInterval < 0 {
		return fmt.Errorf("sync_interval must be positive, got %s", c.SyncInterval)
	}

	switch c.DebugLevel {
	case "", "error", "debug", "info":
	default:
		return fmt.Errorf("debug_level must be one of error, debug, info, got %q", c.DebugLevel)
	}

	seen := make(map[string]bool, len(c.GameServers))
	for i, gs := range c.GameServers {
		if gs.Name == "" {
			return fmt.Errorf("game_servers[%d].name is required", i)
		}
		if seen[gs.Name] {
			return fmt.Errorf("game_servers[%d].name %q is duplicated", i, gs.Name)
		}
		seen[gs.Name] = true
	}

	if c.Metrics.NATSURL != "" && c.Metrics.Embedded {
		return errors.New("metrics.nats_url and metrics.embedded are mutually exclusive")
	}
	return nil
}
