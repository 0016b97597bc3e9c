package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultHost              = "0.0.0.0"
	DefaultPort              = 8000
	DefaultDebugLevel        = "info"
	DefaultServerName        = "worldgate"
	DefaultNbWorlds          = 5
	DefaultNbPlayersPerWorld = 200
	DefaultBucket            = "worldgate"
	DefaultSyncInterval      = 1 * time.Second
)

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DebugLevel == "" {
		c.DebugLevel = DefaultDebugLevel
	}
	if c.ServerName == "" {
		c.ServerName = DefaultServerName
	}
	if c.NbWorlds == 0 {
		c.NbWorlds = DefaultNbWorlds
	}
	if c.NbPlayersPerWorld == 0 {
		c.NbPlayersPerWorld = DefaultNbPlayersPerWorld
	}
	if c.SyncInterval == 0 {
		c.SyncInterval = DefaultSyncInterval
	}

	// Metrics defaults
	if c.Metrics.Bucket == "" {
		c.Metrics.Bucket = DefaultBucket
	}
	if len(c.GameServers) == 0 {
		c.GameServers = []GameServer{{Name: c.ServerName}}
	}
}
