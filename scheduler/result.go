package scheduler

import (
	"github.com/convoycd/convoy"
)

type JobResult struct {
	Name   string           `json:"name"`
	Status convoy.JobStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
	// Log is what the job reported line by line: script commands with
	// exit codes, pushed artifacts, per-instance rollout results.
	Log []string `json:"log,omitempty"`
}

type StageResult struct {
	Name string      `json:"name"`
	Jobs []JobResult `json:"jobs"`
}

// Result is the per-stage, per-job state of a run. While the run is
// in flight (Snapshot) statuses may still be pending or running; once
// Execute returns they are all terminal.
type Result struct {
	ID        convoy.RunID     `json:"id"`
	Revision  string           `json:"revision"`
	Ref       string           `json:"ref"`
	Status    convoy.RunStatus `json:"status"`
	Stages    []StageResult    `json:"stages"`
	Approvals []string         `json:"pendingApprovals,omitempty"`
}

// Snapshot reports the state of the run right now.
func (r *Run) Snapshot() Result {
	return r.snapshot()
}

func (r *Run) snapshot() Result {
	pending := r.PendingApprovals()

	r.mtx.Lock()
	defer r.mtx.Unlock()

	res := Result{
		ID:        r.Context.ID,
		Revision:  r.Context.Revision,
		Ref:       r.Context.Ref,
		Approvals: pending,
	}
	stages := r.Graph.Stages()
	for i, group := range r.Graph.TopologicalOrder() {
		sr := StageResult{Name: stages[i]}
		for _, job := range group {
			jr := JobResult{Name: job.Name, Status: r.status[job.Name]}
			if err := r.errs[job.Name]; err != nil {
				jr.Error = err.Error()
			}
			if lines := r.logs[job.Name]; len(lines) > 0 {
				jr.Log = append([]string(nil), lines...)
			}
			sr.Jobs = append(sr.Jobs, jr)
		}
		res.Stages = append(res.Stages, sr)
	}

	switch {
	case r.failed:
		res.Status = convoy.RunFailed
	case !r.finished:
		res.Status = convoy.RunRunning
	case r.degraded:
		res.Status = convoy.RunDegraded
	default:
		res.Status = convoy.RunSuccess
	}
	return res
}
