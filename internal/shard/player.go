package shard

import (
	"time"

	"github.com/google/uuid"
)

// Conn is the transport session a player speaks through.
type Conn interface {
	// ID identifies the session for logging.
	ID() string
	// Send writes one JSON message to the client.
	Send(msg any) error
	// Close terminates the session, reporting reason to the client.
	Close(reason error)
}

// Player is the entity created for an accepted connection. It is bound to
// exactly one world for its lifetime.
type Player struct {
	ID       string
	Conn     Conn
	JoinedAt time.Time

	world *World
}

// NewPlayer creates an unbound player for conn with a fresh UUID.
func NewPlayer(conn Conn) *Player {
	return &Player{
		ID:       uuid.NewString(),
		Conn:     conn,
		JoinedAt: time.Now(),
	}
}

// World returns the world the player was admitted to, or nil before Connect.
func (p *Player) World() *World { return p.world }

// Send forwards msg to the player's connection. A player without a
// connection silently drops messages.
func (p *Player) Send(msg any) error {
	if p.Conn == nil {
		return nil
	}
	return p.Conn.Send(msg)
}

// WelcomeMessage is sent once a player has been admitted.
type WelcomeMessage struct {
	Type    string `json:"type"`
	World   string `json:"world"`
	ID      string `json:"id"`
	Players int    `json:"players"`
}

// PopulationMessage reports the world occupancy and the cluster total.
type PopulationMessage struct {
	Type  string `json:"type"`
	World int    `json:"world"`
	Total int    `json:"total"`
}
