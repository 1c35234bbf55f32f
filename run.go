package convoy

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunID string

func NewRunID() RunID {
	return RunID(uuid.NewString())
}

type RefKind string

const (
	RefKindBranch RefKind = "branch"
	RefKindTag    RefKind = "tag"
)

func ParseRefKind(s string) (RefKind, error) {
	switch RefKind(s) {
	case RefKindBranch, RefKindTag:
		return RefKind(s), nil
	}
	return "", fmt.Errorf("unknown ref kind %q; expected %q or %q", s, RefKindBranch, RefKindTag)
}

// RunContext is the immutable record describing one pipeline
// execution. It is created once when the run is triggered and passed
// by value into every gate evaluation and job; nothing may mutate it.
type RunContext struct {
	ID        RunID     `json:"id"`
	Revision  string    `json:"revision"`
	Ref       string    `json:"ref"`
	RefKind   RefKind   `json:"refKind"`
	Actor     string    `json:"actor"`
	StartedAt time.Time `json:"startedAt"`
}

// ShortRevision is the revision truncated for artifact keys and log
// lines, the way CI systems abbreviate commit SHAs.
func (c RunContext) ShortRevision() string {
	if len(c.Revision) > 8 {
		return c.Revision[:8]
	}
	return c.Revision
}

type JobStatus string

const (
	// JobPending covers both "not yet reached" and "manual, waiting
	// for approval"; a manual job stays pending until approved.
	JobPending   JobStatus = "pending"
	JobSkipped   JobStatus = "skipped"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether a job in this status will not run again
// within its run.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSkipped, JobSucceeded, JobFailed:
		return true
	}
	return false
}

type RunStatus string

const (
	RunPending RunStatus = "pending"
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	// RunDegraded means the run completed but some tolerated part of
	// it failed, e.g. a fixed-set rollout that lost an instance.
	RunDegraded RunStatus = "degraded"
	RunFailed   RunStatus = "failed"
)
