package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the root configuration for a gateway process.
type Config struct {
	Host              string        `yaml:"host"`
	Port              int           `yaml:"port"`
	DebugLevel        string        `yaml:"debug_level"` // error, debug or info
	ServerName        string        `yaml:"server_name"` // Key prefix for this gateway's counters
	NbWorlds          int           `yaml:"nb_worlds"`
	NbPlayersPerWorld int           `yaml:"nb_players_per_world"`
	MapFilepath       string        `yaml:"map_filepath"`
	MetricsEnabled    bool          `yaml:"metrics_enabled"`
	GameServers       []GameServer  `yaml:"game_servers"`
	Metrics           MetricsConfig `yaml:"metrics"`
	SyncInterval      time.Duration `yaml:"sync_interval"`
}

// GameServer names a gateway sharing the metrics backend.
type GameServer struct {
	Name string `yaml:"name"`
	Addr string `yaml:"addr"` // Status address, used by the status command
}

// MetricsConfig selects the store behind the metrics backend. With no
// NATS URL and Embedded unset, counters live in process memory.
type MetricsConfig struct {
	NATSURL  string `yaml:"nats_url"`
	Bucket   string `yaml:"bucket"`
	Embedded bool   `yaml:"embedded"` // Run an in-process NATS server
}

// Address is the listen address built from Host and Port.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ServerNames lists the configured game servers.
func (c *Config) ServerNames() []string {
	names := make([]string, 0, len(c.GameServers))
	for _, gs := range c.GameServers {
		names = append(names, gs.Name)
	}
	return names
}
