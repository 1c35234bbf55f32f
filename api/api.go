// Package api defines the surface the daemon serves and the CLI
// consumes. Both sides depend on this package, not on each other.
package api

import (
	"context"
	"errors"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/history"
	"github.com/convoycd/convoy/scheduler"
)

// RunSpec is what a trigger carries: which commit, which ref, who
// asked.
type RunSpec struct {
	Revision string         `json:"revision"`
	Ref      string         `json:"ref"`
	RefKind  convoy.RefKind `json:"refKind"`
	Actor    string         `json:"actor"`
}

// Status is the daemon's view of the current (or, if idle, the most
// recent) run.
type Status struct {
	Active bool              `json:"active"`
	Run    *scheduler.Result `json:"run,omitempty"`
}

// ErrRunInProgress: the daemon runs one pipeline at a time; a second
// trigger while one is active is refused rather than queued.
var ErrRunInProgress = errors.New("a run is already in progress")

// ErrNoActiveRun: approve arrived but nothing is executing.
var ErrNoActiveRun = errors.New("no run in progress")

type Service interface {
	// Run executes the pipeline for spec and blocks until the run
	// settles; a run with an unapproved manual job blocks until the
	// approval arrives.
	Run(ctx context.Context, spec RunSpec) (scheduler.Result, error)

	// Approve unblocks the named manual job in the active run.
	Approve(ctx context.Context, jobName string) error

	Status(ctx context.Context) (Status, error)
	History(ctx context.Context) ([]history.Event, error)
	Ping(ctx context.Context) error
}
