// Package daemon ties the engine together behind the api.Service
// interface: it owns the parsed pipeline, admits one run at a time,
// routes approvals to the active run, and writes the history log.
package daemon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/api"
	"github.com/convoycd/convoy/history"
	"github.com/convoycd/convoy/pipeline"
	"github.com/convoycd/convoy/scheduler"
)

type Daemon struct {
	graph     *pipeline.Graph
	scheduler *scheduler.Scheduler
	events    history.DB
	logger    log.Logger

	mtx     sync.Mutex
	current *scheduler.Run
	last    *scheduler.Result
}

var _ api.Service = &Daemon{}

func New(graph *pipeline.Graph, sched *scheduler.Scheduler, events history.DB, logger log.Logger) *Daemon {
	return &Daemon{
		graph:     graph,
		scheduler: sched,
		events:    events,
		logger:    logger,
	}
}

func (d *Daemon) Run(ctx context.Context, spec api.RunSpec) (scheduler.Result, error) {
	runCtx, err := d.runContext(spec)
	if err != nil {
		return scheduler.Result{}, err
	}

	d.mtx.Lock()
	if d.current != nil {
		d.mtx.Unlock()
		return scheduler.Result{}, api.ErrRunInProgress
	}
	run := d.scheduler.NewRun(d.graph, runCtx)
	d.current = run
	d.mtx.Unlock()

	d.logEvent(history.Event{
		RunID:   runCtx.ID,
		Type:    history.EventRunStarted,
		Message: fmt.Sprintf("%s %s @ %s by %s", runCtx.RefKind, runCtx.Ref, runCtx.ShortRevision(), runCtx.Actor),
	})

	res := run.Execute(ctx)

	for _, stage := range res.Stages {
		for _, job := range stage.Jobs {
			if job.Status == convoy.JobSkipped || job.Status == convoy.JobPending {
				continue
			}
			msg := string(job.Status)
			if job.Error != "" {
				msg += ": " + job.Error
			}
			d.logEvent(history.Event{
				RunID: runCtx.ID, Type: history.EventJobCompleted,
				Job: job.Name, Message: msg,
			})
			if j, ok := d.graph.Job(job.Name); ok && j.Deploy != nil {
				// The job's log carries the per-instance results.
				summary := strings.Join(job.Log, "; ")
				if summary == "" {
					summary = msg
				}
				d.logEvent(history.Event{
					RunID: runCtx.ID, Type: history.EventRollout,
					Job: job.Name, Message: summary,
				})
			}
		}
	}
	d.logEvent(history.Event{
		RunID: runCtx.ID, Type: history.EventRunCompleted,
		Message: string(res.Status),
	})

	d.mtx.Lock()
	d.current = nil
	d.last = &res
	d.mtx.Unlock()
	return res, nil
}

func (d *Daemon) runContext(spec api.RunSpec) (convoy.RunContext, error) {
	if spec.Ref == "" {
		return convoy.RunContext{}, convoy.Errorf("run needs a ref")
	}
	if spec.Revision == "" {
		return convoy.RunContext{}, convoy.Errorf("run needs a revision")
	}
	kind := spec.RefKind
	if kind == "" {
		kind = convoy.RefKindBranch
	}
	if _, err := convoy.ParseRefKind(string(kind)); err != nil {
		return convoy.RunContext{}, &convoy.ConfigError{Err: err}
	}
	actor := spec.Actor
	if actor == "" {
		actor = "anonymous"
	}
	return convoy.RunContext{
		ID:        convoy.NewRunID(),
		Revision:  spec.Revision,
		Ref:       spec.Ref,
		RefKind:   kind,
		Actor:     actor,
		StartedAt: time.Now(),
	}, nil
}

func (d *Daemon) Approve(_ context.Context, jobName string) error {
	d.mtx.Lock()
	run := d.current
	d.mtx.Unlock()
	if run == nil {
		return api.ErrNoActiveRun
	}
	if err := run.Approve(jobName); err != nil {
		return err
	}
	d.logEvent(history.Event{
		RunID: run.Context.ID, Type: history.EventApproved,
		Job: jobName, Message: "approved",
	})
	return nil
}

func (d *Daemon) Status(context.Context) (api.Status, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.current != nil {
		snap := d.current.Snapshot()
		return api.Status{Active: true, Run: &snap}, nil
	}
	return api.Status{Run: d.last}, nil
}

func (d *Daemon) History(context.Context) ([]history.Event, error) {
	return d.events.AllEvents()
}

func (d *Daemon) Ping(context.Context) error { return nil }

func (d *Daemon) logEvent(e history.Event) {
	if err := d.events.LogEvent(e); err != nil {
		d.logger.Log("err", fmt.Errorf("logging event: %v", err))
	}
}
