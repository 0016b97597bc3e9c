// Package telemetry records local gateway measurements: per-world occupancy,
// assignment outcomes and population broadcasts.
package telemetry

// Recorder receives measurements from the coordinator.
// Implementations must be safe for concurrent use.
type Recorder interface {
	// AssignmentAccepted counts a connection placed on world.
	AssignmentAccepted(world string)

	// AssignmentRejected counts a connection turned away for lack of capacity.
	AssignmentRejected()

	// Occupancy reports the current player count of world.
	Occupancy(world string, players int)

	// PopulationBroadcast counts a total pushed to every world.
	PopulationBroadcast(total int)
}

// Nop discards every measurement.
type Nop struct{}

// Compile-time assertion that Nop implements Recorder.
var _ Recorder = Nop{}

// NewNop returns a Recorder that does nothing.
func NewNop() Nop { return Nop{} }

func (Nop) AssignmentAccepted(string) {}
func (Nop) AssignmentRejected()       {}
func (Nop) Occupancy(string, int)     {}
func (Nop) PopulationBroadcast(int)   {}
