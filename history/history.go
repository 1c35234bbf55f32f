// Package history records what the orchestrator did: runs started
// and finished, jobs settled, rollouts applied, approvals given. It
// is an append-only event log for operators, not state the engine
// depends on.
package history

import (
	"time"

	"github.com/convoycd/convoy"
)

const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventJobCompleted = "job_completed"
	EventApproved     = "approved"
	EventRollout      = "rollout"
)

type Event struct {
	ID      int64        `json:"id"`
	RunID   convoy.RunID `json:"runId"`
	Type    string       `json:"type"`
	Job     string       `json:"job,omitempty"`
	Message string       `json:"message"`
	Stamp   time.Time    `json:"stamp"`
}

type EventWriter interface {
	// LogEvent appends to the history. The store assigns ID and, if
	// unset, Stamp.
	LogEvent(Event) error
}

type EventReader interface {
	// AllEvents returns the history, newest first.
	AllEvents() ([]Event, error)
	// EventsForRun returns one run's history, newest first.
	EventsForRun(convoy.RunID) ([]Event, error)
}

type DB interface {
	EventWriter
	EventReader
}
