package scheduler

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/pipeline"
	"github.com/convoycd/convoy/registry"
	"github.com/convoycd/convoy/remote"
	"github.com/convoycd/convoy/rollout"
)

// Outcome is what a job's work reports beyond pass/fail: a degraded
// outcome (a rollout that lost an instance) does not fail the run but
// marks it degraded.
type Outcome struct {
	Degraded bool
	Log      []string
}

// Runner executes one job's work. The scheduler decides when and
// whether a job runs; the runner decides how.
type Runner interface {
	RunJob(ctx context.Context, runCtx convoy.RunContext, job *pipeline.Job) (Outcome, error)
}

// JobRunner is the production Runner: script jobs go line by line
// through the remote transport, push jobs publish into the artifact
// registry, deploy jobs hand off to the rollout coordinator.
type JobRunner struct {
	Transport remote.Transport
	// Target is where script jobs run, e.g. "local" for a standalone
	// daemon doing its own builds.
	Target   string
	Registry registry.Client
	Rollouts *rollout.Coordinator
	Logger   log.Logger
}

func (r *JobRunner) RunJob(ctx context.Context, runCtx convoy.RunContext, job *pipeline.Job) (Outcome, error) {
	switch {
	case job.Push != nil:
		return r.push(ctx, runCtx, job)
	case job.Deploy != nil:
		return r.deploy(ctx, runCtx, job)
	default:
		return r.script(ctx, runCtx, job)
	}
}

func (r *JobRunner) script(ctx context.Context, runCtx convoy.RunContext, job *pipeline.Job) (Outcome, error) {
	var out Outcome
	for i, cmd := range job.Script {
		line := Expand(cmd.Line, runCtx)
		res, err := remote.Run(ctx, r.Transport, r.Target, line, cmd.AllowNonZero)
		r.Logger.Log("job", job.Name, "cmd", line, "exit", res.ExitCode)
		out.Log = append(out.Log, fmt.Sprintf("$ %s (exit %d)", line, res.ExitCode))
		if err != nil {
			return out, errors.Wrapf(err, "script line %d", i+1)
		}
	}
	return out, nil
}

func (r *JobRunner) push(ctx context.Context, runCtx convoy.RunContext, job *pipeline.Job) (Outcome, error) {
	key := Expand(job.Push.Artifact, runCtx)
	var out Outcome
	if job.Push.File != "" {
		path := Expand(job.Push.File, runCtx)
		f, err := os.Open(path)
		if err != nil {
			return out, errors.Wrapf(err, "opening artifact content %s", path)
		}
		a, err := r.Registry.Push(ctx, key, f)
		f.Close()
		if err != nil {
			return out, errors.Wrapf(err, "pushing %s", key)
		}
		r.Logger.Log("job", job.Name, "pushed", a.Key)
		out.Log = append(out.Log, "pushed "+a.Key)
	}
	if job.Push.Alias != "" {
		alias := Expand(job.Push.Alias, runCtx)
		if err := r.Registry.Tag(ctx, key, alias); err != nil {
			return out, errors.Wrapf(err, "promoting %s to %s", key, alias)
		}
		r.Logger.Log("job", job.Name, "alias", alias, "artifact", key)
		out.Log = append(out.Log, "alias "+alias+" -> "+key)
	}
	return out, nil
}

func (r *JobRunner) deploy(ctx context.Context, runCtx convoy.RunContext, job *pipeline.Job) (Outcome, error) {
	key := Expand(job.Deploy.Artifact, runCtx)
	// The reference may be an alias. Pin it to a concrete key up front
	// so every instance in the rollout gets the same artifact even if
	// the alias moves mid-run.
	if r.Registry != nil {
		if a, err := r.Registry.Resolve(ctx, key); err == nil {
			key = a.Key
		}
	}
	r.Logger.Log("job", job.Name, "strategy", job.Deploy.Strategy, "artifact", key)
	res, err := r.Rollouts.Rollout(ctx, job.Deploy.Strategy, job.Deploy.Instances, key)
	if err != nil {
		return Outcome{}, err
	}
	var out Outcome
	for _, name := range res.Order {
		ir := res.Instances[name]
		line := fmt.Sprintf("%s: %s", name, ir.Status)
		if ir.Error != "" {
			line += " (" + ir.Error + ")"
		}
		out.Log = append(out.Log, line)
	}
	switch res.Status {
	case rollout.Success:
		return out, nil
	case rollout.PartialFailure:
		// The run carries on degraded; the per-instance results are
		// in the log for the operator.
		out.Degraded = true
		return out, nil
	default:
		return out, fmt.Errorf("rollout failed on all instances: %s", strings.Join(out.Log, "; "))
	}
}

// Expand substitutes the run context into an artifact key or script
// line template: {revision}, {short_revision} and {ref}.
func Expand(tpl string, runCtx convoy.RunContext) string {
	s := strings.ReplaceAll(tpl, "{revision}", runCtx.Revision)
	s = strings.ReplaceAll(s, "{short_revision}", runCtx.ShortRevision())
	s = strings.ReplaceAll(s, "{ref}", runCtx.Ref)
	return s
}
