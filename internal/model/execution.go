package model

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewID returns a fresh ULID. Execution and request IDs share the format so
// they sort by creation time.
func NewID() string {
	return ulid.Make().String()
}

// Execution status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// IsTerminal reports whether no further transitions are possible from status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Execution is the persisted record of one dispatched function invocation.
// Results holds the JSON encoding of every resolved result slot, in order.
type Execution struct {
	ID         string          `json:"id"`
	Program    string          `json:"program"`
	Status     string          `json:"status"`
	NumArgs    int             `json:"num_args"`
	NumResults int             `json:"num_results"`
	Results    json.RawMessage `json:"results,omitempty"`
	Error      string          `json:"error,omitempty"`
	DurationMS *int            `json:"duration_ms,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}
