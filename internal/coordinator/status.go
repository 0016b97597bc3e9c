package coordinator

import (
	"encoding/json"
)

// StatusReporter serves the per-world occupancy to the status surface.
type StatusReporter struct {
	registry *ShardRegistry
}

// NewStatusReporter creates a reporter over registry.
func NewStatusReporter(registry *ShardRegistry) *StatusReporter {
	return &StatusReporter{registry: registry}
}

// GetStatus builds a fresh snapshot on every call.
func (r *StatusReporter) GetStatus() Snapshot {
	return r.registry.Occupancy()
}

// StatusJSON returns the snapshot as a JSON array of integers, "[]" for an
// empty registry.
func (r *StatusReporter) StatusJSON() string {
	// Marshalling a []int cannot fail.
	data, _ := json.Marshal([]int(r.GetStatus()))
	return string(data)
}
