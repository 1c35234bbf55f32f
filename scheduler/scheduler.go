// Package scheduler walks a job graph for one run: stages in order
// with a barrier between them, jobs within a stage concurrent, gates
// evaluated against the immutable run context. Manual jobs park until
// approved; always jobs run even after the run has failed.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/pipeline"
)

type Scheduler struct {
	runner  Runner
	logger  log.Logger
	metrics Metrics
}

func New(runner Runner, logger log.Logger, metrics Metrics) *Scheduler {
	return &Scheduler{runner: runner, logger: logger, metrics: metrics}
}

// Run is the state of one pipeline execution. Construct with NewRun,
// drive with Execute; Approve and Snapshot are safe to call from
// other goroutines while Execute is in flight.
type Run struct {
	Graph   *pipeline.Graph
	Context convoy.RunContext

	runner  Runner
	logger  log.Logger
	metrics Metrics

	mtx      sync.Mutex
	status   map[string]convoy.JobStatus
	errs     map[string]error
	logs     map[string][]string
	eligible map[string]bool
	failed   bool
	degraded bool
	finished bool

	approvals map[string]chan struct{}
	approved  map[string]bool
	done      map[string]chan struct{}
}

func (s *Scheduler) NewRun(graph *pipeline.Graph, runCtx convoy.RunContext) *Run {
	r := &Run{
		Graph:     graph,
		Context:   runCtx,
		runner:    s.runner,
		logger:    log.With(s.logger, "run", runCtx.ID),
		metrics:   s.metrics,
		status:    map[string]convoy.JobStatus{},
		errs:      map[string]error{},
		logs:      map[string][]string{},
		eligible:  map[string]bool{},
		approvals: map[string]chan struct{}{},
		approved:  map[string]bool{},
		done:      map[string]chan struct{}{},
	}
	for _, group := range graph.TopologicalOrder() {
		for _, job := range group {
			r.status[job.Name] = convoy.JobPending
			r.eligible[job.Name] = job.Gate.Match(runCtx)
			r.done[job.Name] = make(chan struct{})
			if job.Gate.Manual {
				r.approvals[job.Name] = make(chan struct{})
			}
		}
	}
	return r
}

// Execute walks the stages. The given context cancels the run between
// jobs only: anything already started is allowed to finish, so no
// instance is left stopped-but-not-restarted, and stages after the
// cancellation are skipped except for always jobs.
func (r *Run) Execute(ctx context.Context) Result {
	stages := r.Graph.Stages()
	for i, group := range r.Graph.TopologicalOrder() {
		r.executeStage(ctx, stages[i], group)
	}
	r.mtx.Lock()
	r.finished = true
	r.mtx.Unlock()

	result := r.snapshot()
	r.logger.Log("status", result.Status, "revision", r.Context.Revision, "ref", r.Context.Ref)
	return result
}

func (r *Run) executeStage(ctx context.Context, stage string, jobs []*pipeline.Job) {
	begin := time.Now()
	var wg sync.WaitGroup
	ran := false
	// The skip decision is made once, at the stage barrier: a failure
	// inside this stage must not skip siblings already collected.
	sunk := r.hasFailed() || ctx.Err() != nil
	for _, job := range jobs {
		job := job
		if !r.eligible[job.Name] {
			r.finish(job.Name, convoy.JobSkipped, nil)
			continue
		}
		if sunk && !job.Gate.Always {
			r.finish(job.Name, convoy.JobSkipped, nil)
			continue
		}
		ran = true
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.executeJob(ctx, job)
		}()
	}
	// Stage barrier: everything in this stage settles before the next
	// stage's gates are evaluated.
	wg.Wait()
	if ran {
		r.metrics.observeStage(stage, begin)
	}
}

func (r *Run) executeJob(ctx context.Context, job *pipeline.Job) {
	// Same-stage dependencies first.
	for _, need := range job.Needs {
		<-r.done[need]
		if r.jobSankRun(need) {
			r.finish(job.Name, convoy.JobSkipped, nil)
			return
		}
	}

	if job.Gate.Manual {
		// Cooperative, unbounded wait; approval may already have
		// arrived, in which case the channel is closed.
		select {
		case <-r.approvals[job.Name]:
		case <-ctx.Done():
			r.finish(job.Name, convoy.JobSkipped, nil)
			return
		}
	}

	r.setStatus(job.Name, convoy.JobRunning)
	r.logger.Log("job", job.Name, "stage", job.Stage, "state", "running")

	begin := time.Now()
	// Jobs run to completion even if the run is cancelled meanwhile;
	// cancellation takes effect at the next job boundary.
	outcome, err := r.runner.RunJob(context.Background(), r.Context, job)
	r.metrics.observeJob(job.Name, job.Stage, begin, err)

	if len(outcome.Log) > 0 {
		r.mtx.Lock()
		r.logs[job.Name] = outcome.Log
		r.mtx.Unlock()
	}
	if err != nil {
		r.finish(job.Name, convoy.JobFailed, &convoy.JobError{Job: job.Name, Err: err})
		if !job.AllowFailure {
			r.sink()
		}
		r.logger.Log("job", job.Name, "state", "failed", "tolerated", job.AllowFailure, "err", err)
		return
	}
	if outcome.Degraded {
		r.setDegraded()
	}
	r.finish(job.Name, convoy.JobSucceeded, nil)
	r.logger.Log("job", job.Name, "state", "succeeded", "degraded", outcome.Degraded)
}

// Approve unblocks the named manual job once its stage is reached; it
// may be called before that. Approving twice is harmless.
func (r *Run) Approve(jobName string) error {
	job, ok := r.Graph.Job(jobName)
	if !ok {
		return &convoy.UnknownJobError{Job: jobName}
	}
	if !job.Gate.Manual {
		return convoy.Errorf("job %q is not manual; nothing to approve", jobName)
	}
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if !r.approved[jobName] {
		r.approved[jobName] = true
		close(r.approvals[jobName])
	}
	return nil
}

// PendingApprovals lists manual jobs that still need an Approve call:
// gated in for this run, not yet approved, not yet settled.
func (r *Run) PendingApprovals() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	var out []string
	for _, group := range r.Graph.TopologicalOrder() {
		for _, job := range group {
			if !job.Gate.Manual || !r.eligible[job.Name] {
				continue
			}
			if r.approved[job.Name] || r.status[job.Name].Terminal() {
				continue
			}
			out = append(out, job.Name)
		}
	}
	return out
}

func (r *Run) setStatus(job string, s convoy.JobStatus) {
	r.mtx.Lock()
	r.status[job] = s
	r.mtx.Unlock()
}

func (r *Run) finish(job string, s convoy.JobStatus, err error) {
	r.mtx.Lock()
	r.status[job] = s
	if err != nil {
		r.errs[job] = err
	}
	r.mtx.Unlock()
	close(r.done[job])
}

func (r *Run) sink() {
	r.mtx.Lock()
	r.failed = true
	r.mtx.Unlock()
}

func (r *Run) setDegraded() {
	r.mtx.Lock()
	r.degraded = true
	r.mtx.Unlock()
}

func (r *Run) hasFailed() bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.failed
}

// jobSankRun reports whether the named job failed in a way the run
// does not tolerate, in which case dependents must not start.
func (r *Run) jobSankRun(job string) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if r.status[job] != convoy.JobFailed {
		return false
	}
	j, _ := r.Graph.Job(job)
	return !j.AllowFailure
}
